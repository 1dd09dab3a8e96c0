package pebbleengine

import (
	"encoding/binary"

	"github.com/AntonStoeckl/stream-eventstore-go/eventstore"
)

const (
	prefixSequence byte = 'q'
	prefixName     byte = 'n'
	prefixVersion  byte = 'v'
	prefixEntry    byte = 'e'
)

func keySequence() []byte {
	return []byte{prefixSequence}
}

func keyName(streamName string) []byte {
	key := make([]byte, 0, 1+len(streamName))
	key = append(key, prefixName)

	return append(key, streamName...)
}

func keyVersion(streamID eventstore.StreamID) []byte {
	key := make([]byte, 9)
	key[0] = prefixVersion
	binary.BigEndian.PutUint64(key[1:], uint64(streamID))

	return key
}

func keyEntry(streamID eventstore.StreamID, version eventstore.StreamVersion) []byte {
	key := make([]byte, 17)
	key[0] = prefixEntry
	binary.BigEndian.PutUint64(key[1:9], uint64(streamID))
	binary.BigEndian.PutUint64(key[9:], version)

	return key
}

// keyEntriesEnd is the exclusive upper bound of all entries of streamID.
func keyEntriesEnd(streamID eventstore.StreamID) []byte {
	key := make([]byte, 9)
	key[0] = prefixEntry
	binary.BigEndian.PutUint64(key[1:], uint64(streamID)+1)

	return key
}

func versionFromEntryKey(key []byte) eventstore.StreamVersion {
	return binary.BigEndian.Uint64(key[9:17])
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)

	return buf
}

func decodeUint64(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, ErrCorruptValue
	}

	return binary.BigEndian.Uint64(buf), nil
}
