package hub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessionConfig(addr string) SessionConfig {
	return SessionConfig{
		URL:              "redis://" + addr,
		Instance:         "test-instance",
		AgentID:          "user_interaction_agent",
		AgentName:        "User Interaction Agent",
		AgentDescription: "Handles user instructions.",
		ConnectTimeout:   2 * time.Second,
		ReadTimeout:      2 * time.Second,
		MaxAttempts:      3,
		RetryDelay:       10 * time.Millisecond,
	}
}

func startMiniredis(t *testing.T) *miniredis.Miniredis {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)
	return mr
}

func TestSessionConfigValidate(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		cfg := SessionConfig{URL: "redis://localhost:6379", Instance: "i", AgentID: "a"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
		assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
		assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
		assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
	})

	t.Run("rejects missing URL", func(t *testing.T) {
		cfg := SessionConfig{Instance: "i", AgentID: "a"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects missing instance", func(t *testing.T) {
		cfg := SessionConfig{URL: "redis://localhost:6379", AgentID: "a"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects invalid agent ID", func(t *testing.T) {
		cfg := SessionConfig{URL: "redis://localhost:6379", Instance: "i", AgentID: "bad id"}
		assert.Error(t, cfg.Validate())
	})
}

func TestDial(t *testing.T) {
	mr := startMiniredis(t)
	ctx := context.Background()

	t.Run("connects and pings", func(t *testing.T) {
		client, err := Dial(ctx, testSessionConfig(mr.Addr()))
		require.NoError(t, err)
		defer client.Close()

		assert.NoError(t, client.Ping(ctx))
	})

	t.Run("rejects malformed URL", func(t *testing.T) {
		cfg := testSessionConfig(mr.Addr())
		cfg.URL = "not-a-url"
		_, err := Dial(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid hub URL")
	})

	t.Run("waits for expected agent count", func(t *testing.T) {
		seed, err := Dial(ctx, testSessionConfig(mr.Addr()))
		require.NoError(t, err)
		defer seed.Close()
		require.NoError(t, seed.EnsureRegistered(ctx, Agent{ID: "gitclone_agent", Name: "Git Clone Agent"}))

		cfg := testSessionConfig(mr.Addr())
		cfg.WaitForAgents = 1
		client, err := Dial(ctx, cfg)
		require.NoError(t, err)
		client.Close()
	})

	t.Run("gives up waiting when cancelled", func(t *testing.T) {
		cfg := testSessionConfig(mr.Addr())
		cfg.WaitForAgents = 50

		waitCtx, cancel := context.WithTimeout(ctx, 700*time.Millisecond)
		defer cancel()

		_, err := Dial(waitCtx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "waiting for 50 agents")
	})
}

func TestRunSession(t *testing.T) {
	mr := startMiniredis(t)
	ctx := context.Background()

	t.Run("reconnect re-establishes registration without duplicating it", func(t *testing.T) {
		attempts := 0
		err := RunSession(ctx, testSessionConfig(mr.Addr()), func(ctx context.Context, client *Client) error {
			attempts++
			if err := client.EnsureRegistered(ctx, Agent{ID: "user_interaction_agent", Name: "User Interaction Agent"}); err != nil {
				return err
			}
			if attempts == 1 {
				// Simulate the transport dropping mid-session.
				return fmt.Errorf("read mentions: %w", context.DeadlineExceeded)
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, attempts)

		client, err := Dial(ctx, testSessionConfig(mr.Addr()))
		require.NoError(t, err)
		defer client.Close()

		agents, err := client.ListAgents(ctx, false)
		require.NoError(t, err)
		assert.Len(t, agents, 1)
	})

	t.Run("max retries reached is fatal and distinguishable", func(t *testing.T) {
		attempts := 0
		err := RunSession(ctx, testSessionConfig(mr.Addr()), func(ctx context.Context, client *Client) error {
			attempts++
			return fmt.Errorf("connection lost: %w", context.DeadlineExceeded)
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 3, attempts)
	})

	t.Run("permanent errors abort without retrying", func(t *testing.T) {
		attempts := 0
		err := RunSession(ctx, testSessionConfig(mr.Addr()), func(ctx context.Context, client *Client) error {
			attempts++
			return fmt.Errorf("Error creating thread.")
		})

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 1, attempts)
	})

	t.Run("context cancellation ends the session cleanly", func(t *testing.T) {
		runCtx, cancel := context.WithCancel(ctx)
		err := RunSession(runCtx, testSessionConfig(mr.Addr()), func(ctx context.Context, client *Client) error {
			cancel()
			return ctx.Err()
		})
		assert.NoError(t, err)
	})
}
