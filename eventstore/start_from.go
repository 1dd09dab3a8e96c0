package eventstore

import "fmt"

// StartFrom tells a subscription where to begin: at the origin of the stream, at whatever
// version is current when the subscription is registered, or at an explicit version.
//
// A StartFrom is resolved to a concrete StreamVersion by the stream controller before it
// crosses the SubscriptionRegistry boundary.
type StartFrom struct {
	kind    startFromKind
	version StreamVersion
}

type startFromKind int

const (
	startFromOrigin startFromKind = iota
	startFromCurrent
	startFromVersion
)

// Origin returns a StartFrom that resolves to version 0, so every event of the stream is delivered.
func Origin() StartFrom {
	return StartFrom{kind: startFromOrigin}
}

// Current returns a StartFrom that resolves to the stream's version at the moment the
// subscription is registered, so only events appended afterward are delivered.
func Current() StartFrom {
	return StartFrom{kind: startFromCurrent}
}

// AtVersion returns a StartFrom that resolves to the given version.
// Events with a version greater than it are delivered.
func AtVersion(version StreamVersion) StartFrom {
	return StartFrom{kind: startFromVersion, version: version}
}

// IsOrigin returns true if this StartFrom was created with Origin.
func (sf StartFrom) IsOrigin() bool {
	return sf.kind == startFromOrigin
}

// IsCurrent returns true if this StartFrom was created with Current.
func (sf StartFrom) IsCurrent() bool {
	return sf.kind == startFromCurrent
}

// Resolve maps the StartFrom to a concrete version, given the stream's current version.
func (sf StartFrom) Resolve(currentVersion StreamVersion) StreamVersion {
	switch sf.kind {
	case startFromCurrent:
		return currentVersion
	case startFromVersion:
		return sf.version
	default:
		return 0
	}
}

// String returns a string representation of the StartFrom.
func (sf StartFrom) String() string {
	switch sf.kind {
	case startFromCurrent:
		return "Current"
	case startFromVersion:
		return fmt.Sprintf("AtVersion(%d)", sf.version)
	default:
		return "Origin"
	}
}
