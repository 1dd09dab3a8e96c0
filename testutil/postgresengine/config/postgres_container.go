package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// EnvTestContainer, when set to "1", starts a throwaway PostgreSQL container for tests that
	// find no POSTGRES_TEST_DSN. It is shared by all tests of one test binary.
	EnvTestContainer = "POSTGRES_TEST_CONTAINER"

	containerImage    = "postgres:16-alpine"
	containerPort     = "5432/tcp"
	containerDatabase = "eventstore"
	containerUser     = "test"
	containerPassword = "test"
	containerStartup  = 90 * time.Second
)

var (
	sharedContainerOnce sync.Once
	sharedContainerDSN  string
	sharedContainerErr  error
)

func containerRequested() bool {
	return os.Getenv(EnvTestContainer) == "1"
}

// containerDSN returns the DSN of the shared test container, starting it on first use.
// The container is removed by the testcontainers reaper when the test binary exits.
// If docker is not available the test is skipped.
func containerDSN(t testing.TB) string {
	t.Helper()

	sharedContainerOnce.Do(func() {
		sharedContainerDSN, sharedContainerErr = startContainer()
	})

	if sharedContainerErr != nil {
		t.Skipf("postgres test container unavailable: %v", sharedContainerErr)
	}

	return sharedContainerDSN
}

func startContainer() (dsn string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), containerStartup)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("container runtime panicked: %v", r)
		}
	}()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        containerImage,
			ExposedPorts: []string{containerPort},
			Env: map[string]string{
				"POSTGRES_DB":       containerDatabase,
				"POSTGRES_USER":     containerUser,
				"POSTGRES_PASSWORD": containerPassword,
			},
			// the server restarts once after the init scripts ran
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(containerStartup),
		},
		Started: true,
	})
	if err != nil {
		return "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}

	port, err := container.MappedPort(ctx, containerPort)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		containerUser, containerPassword, host, port.Port(), containerDatabase,
	), nil
}
