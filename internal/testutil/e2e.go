//go:build integration

// Package testutil provides the shared harness for integration tests that
// run against a real Redis container.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/corvid-labs/rookery/pkg/hub"
)

// E2EEnvironment is one isolated hub instance backed by a Redis container.
type E2EEnvironment struct {
	T            *testing.T
	Ctx          context.Context
	RedisURL     string
	InstanceName string
	Client       *hub.Client
}

// SetupE2EEnvironment starts a Redis container and connects a hub client
// on a unique instance name. Everything is cleaned up with the test.
func SetupE2EEnvironment(t *testing.T) *E2EEnvironment {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, nat.Port("6379/tcp"))
	require.NoError(t, err)

	redisURL := fmt.Sprintf("redis://%s:%s", host, port.Port())
	instanceName := fmt.Sprintf("e2e-%s", time.Now().Format("20060102-150405-000000"))

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	client, err := hub.NewClient(opts, instanceName)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Ping(ctx), "Redis container not reachable")

	return &E2EEnvironment{
		T:            t,
		Ctx:          ctx,
		RedisURL:     redisURL,
		InstanceName: instanceName,
		Client:       client,
	}
}

// NewClient connects an additional hub client to the same instance, for
// roles that need their own connection.
func (e *E2EEnvironment) NewClient() *hub.Client {
	e.T.Helper()

	opts, err := redis.ParseURL(e.RedisURL)
	require.NoError(e.T, err)

	client, err := hub.NewClient(opts, e.InstanceName)
	require.NoError(e.T, err)
	e.T.Cleanup(func() { client.Close() })
	return client
}

// SessionConfig builds a session config for one agent on this instance.
func (e *E2EEnvironment) SessionConfig(agentID, name string) hub.SessionConfig {
	return hub.SessionConfig{
		URL:       e.RedisURL,
		Instance:  e.InstanceName,
		AgentID:   agentID,
		AgentName: name,
	}
}
