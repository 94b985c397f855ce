// Package hub provides type-safe Go definitions and Redis schema patterns
// for the Rookery message hub. The hub is the shared coordination service
// where all Rookery agents (coordinator, specialists, CLI) interact via
// named threads, append-only messages, and @-mention addressing.
//
// All Redis keys and channels are namespaced by instance name to enable
// multiple Rookery instances to safely coexist on a single Redis server.
package hub

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// agentIDPattern restricts agent IDs to characters that are safe inside
// Redis key names. IDs are stable, human-chosen strings such as
// "user_interaction_agent", not UUIDs.
var agentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Agent represents a registered agent on the hub.
// Agents register once per process lifetime and are read-mostly afterward.
type Agent struct {
	ID             string `json:"id"`               // Stable unique identifier (e.g. "codediff_review_agent")
	Name           string `json:"name"`             // Human-readable display name
	Description    string `json:"description"`      // What this agent does
	RegisteredAtMs int64  `json:"registered_at_ms"` // Unix timestamp in milliseconds when the agent registered
}

// Thread represents a named, participant-scoped, append-only message log.
// Threads are created by the coordinator; participants are added and removed
// over the thread's lifetime.
type Thread struct {
	ID           string   `json:"id"`           // UUID - unique identifier for this thread
	Name         string   `json:"name"`         // Human-readable thread name
	CreatorID    string   `json:"creator_id"`   // Agent ID of the thread creator
	Participants []string `json:"participants"` // Agent IDs currently in the thread
	Closed       bool     `json:"closed"`       // A closed thread accepts no new messages
	CreatedAtMs  int64    `json:"created_at_ms"`
}

// Message represents a single message in a thread. Messages are immutable
// once sent and observed by all participants in send order. Mentions name
// the agents the message is addressed to; they filter visibility for
// WaitForMentions but never reorder messages.
type Message struct {
	ID       string   `json:"id"`        // UUID - unique identifier for this message
	ThreadID string   `json:"thread_id"` // UUID of the containing thread
	SenderID string   `json:"sender_id"` // Agent ID of the sender
	Content  string   `json:"content"`   // Free-form message body
	Mentions []string `json:"mentions"`  // Agent IDs this message is addressed to (may be empty)
	SentAtMs int64    `json:"sent_at_ms"`
}

// HasParticipant reports whether the given agent is currently in the thread.
func (t *Thread) HasParticipant(agentID string) bool {
	for _, p := range t.Participants {
		if p == agentID {
			return true
		}
	}
	return false
}

// Validate checks if the Agent has valid field values.
func (a *Agent) Validate() error {
	if err := ValidateAgentID(a.ID); err != nil {
		return err
	}

	if a.Name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}

	return nil
}

// Validate checks if the Thread has valid field values.
// Enforces the invariant that the creator is always a participant.
func (t *Thread) Validate() error {
	if !isValidUUID(t.ID) {
		return fmt.Errorf("invalid thread ID: not a valid UUID")
	}

	if t.Name == "" {
		return fmt.Errorf("thread name cannot be empty")
	}

	if err := ValidateAgentID(t.CreatorID); err != nil {
		return fmt.Errorf("invalid creator: %w", err)
	}

	for i, p := range t.Participants {
		if err := ValidateAgentID(p); err != nil {
			return fmt.Errorf("invalid participant at index %d: %w", i, err)
		}
	}

	if !t.HasParticipant(t.CreatorID) {
		return fmt.Errorf("thread creator %q must be a participant", t.CreatorID)
	}

	return nil
}

// Validate checks if the Message has valid field values.
func (m *Message) Validate() error {
	if !isValidUUID(m.ID) {
		return fmt.Errorf("invalid message ID: not a valid UUID")
	}

	if !isValidUUID(m.ThreadID) {
		return fmt.Errorf("invalid thread ID: not a valid UUID")
	}

	if err := ValidateAgentID(m.SenderID); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	for i, mention := range m.Mentions {
		if err := ValidateAgentID(mention); err != nil {
			return fmt.Errorf("invalid mention at index %d: %w", i, err)
		}
	}

	return nil
}

// ValidateAgentID checks that an agent ID is non-empty and contains only
// characters safe for use in Redis key names.
func ValidateAgentID(id string) error {
	if id == "" {
		return fmt.Errorf("agent ID cannot be empty")
	}

	if !agentIDPattern.MatchString(id) {
		return fmt.Errorf("invalid agent ID %q: must match %s", id, agentIDPattern.String())
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
