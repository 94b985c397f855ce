package hub

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// Session handling
//
// Each agent process owns one logical connection to the hub for its
// lifetime. The hub endpoint carries session-scoped identity (instance
// name, agent ID, expected agent count), so transport faults are handled
// by retrying the ENTIRE session setup rather than individual calls:
// reopening mid-call would corrupt in-flight state. Retries use a fixed
// delay between attempts; exhausting the budget is the only path that
// terminates an agent process.

const (
	// DefaultConnectTimeout bounds the initial dial and ping.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultReadTimeout bounds individual reads on the established session.
	DefaultReadTimeout = 60 * time.Second

	// DefaultMaxAttempts is the session retry budget.
	DefaultMaxAttempts = 5

	// DefaultRetryDelay is the fixed sleep between session attempts.
	DefaultRetryDelay = 5 * time.Second

	// agentCountPollInterval is how often Dial re-checks the registered
	// agent count when WaitForAgents is set.
	agentCountPollInterval = 500 * time.Millisecond
)

// SessionConfig holds everything needed to establish one agent session.
// All values are supplied at startup and never renegotiated mid-run.
type SessionConfig struct {
	// URL is the hub endpoint, e.g. "redis://localhost:6379/0".
	URL string

	// Instance is the Rookery instance name used to namespace all keys.
	Instance string

	// AgentID, AgentName and AgentDescription identify this agent. Session
	// helpers do not register the agent themselves; the role loop does that
	// so registration is re-established (idempotently) after a reconnect.
	AgentID          string
	AgentName        string
	AgentDescription string

	// WaitForAgents, when positive, makes Dial block until at least that
	// many agents are registered on the instance.
	WaitForAgents int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// MaxAttempts is the whole-session retry budget. RetryDelay is the
	// fixed sleep between attempts (no jitter, no growth).
	MaxAttempts int
	RetryDelay  time.Duration
}

// Validate checks the config and applies defaults for zero-valued fields.
func (c *SessionConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("session URL cannot be empty")
	}

	if c.Instance == "" {
		return fmt.Errorf("session instance cannot be empty")
	}

	if err := ValidateAgentID(c.AgentID); err != nil {
		return fmt.Errorf("session agent: %w", err)
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}

	return nil
}

// Agent returns the registration record for this session's agent.
func (c *SessionConfig) Agent() Agent {
	return Agent{
		ID:          c.AgentID,
		Name:        c.AgentName,
		Description: c.AgentDescription,
	}
}

// Dial establishes one hub session: parse the endpoint, connect with the
// configured timeouts, verify connectivity, and (when WaitForAgents is set)
// wait for the expected number of registered agents. The returned client
// must be closed by the caller.
func Dial(ctx context.Context, cfg SessionConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid hub URL: %w", err)
	}
	opts.DialTimeout = cfg.ConnectTimeout
	opts.ReadTimeout = cfg.ReadTimeout

	client, err := NewClient(opts, cfg.Instance)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("hub not reachable: %w", err)
	}

	if cfg.WaitForAgents > 0 {
		if err := awaitAgentCount(ctx, client, cfg.WaitForAgents); err != nil {
			client.Close()
			return nil, err
		}
	}

	return client, nil
}

// awaitAgentCount polls the registry until enough agents are present or
// the context is cancelled.
func awaitAgentCount(ctx context.Context, client *Client, want int) error {
	ticker := time.NewTicker(agentCountPollInterval)
	defer ticker.Stop()

	for {
		agents, err := client.ListAgents(ctx, false)
		if err != nil {
			return fmt.Errorf("failed to poll agent count: %w", err)
		}
		if len(agents) >= want {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled while waiting for %d agents (have %d): %w", want, len(agents), ctx.Err())
		case <-ticker.C:
		}
	}
}

// RunSession dials the hub and runs fn with the live client, retrying the
// whole sequence (dial included) on transient transport faults. The client
// is closed on every exit path of every attempt. Non-transient errors from
// fn abort immediately. Context cancellation ends the session cleanly with
// no error.
//
// Exhausting MaxAttempts returns an error wrapping ErrMaxRetries so the
// process can log a distinguishable final line and exit.
func RunSession(ctx context.Context, cfg SessionConfig, fn func(ctx context.Context, client *Client) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	attempt := 0
	operation := func() error {
		attempt++

		client, err := Dial(ctx, cfg)
		if err != nil {
			log.Printf("[ERROR] Session attempt %d/%d: connect failed: %v. Retrying in %s",
				attempt, cfg.MaxAttempts, err, cfg.RetryDelay)
			return err
		}
		defer client.Close()

		log.Printf("[INFO] Connected to hub instance=%s agent=%s attempt=%d",
			cfg.Instance, cfg.AgentID, attempt)

		err = fn(ctx, client)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			// Shutdown, not a fault.
			return backoff.Permanent(ctx.Err())
		}

		if !IsTransient(err) {
			return backoff.Permanent(err)
		}

		log.Printf("[ERROR] Session attempt %d/%d: connection fault: %v. Retrying in %s",
			attempt, cfg.MaxAttempts, err, cfg.RetryDelay)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.RetryDelay), uint64(cfg.MaxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(operation, policy)
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("[INFO] Session ended by shutdown signal")
			return nil
		}
		if attempt >= cfg.MaxAttempts {
			log.Printf("[ERROR] Max retries reached (%d attempts). Exiting.", cfg.MaxAttempts)
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, cfg.MaxAttempts, err)
		}
		return err
	}

	return nil
}
