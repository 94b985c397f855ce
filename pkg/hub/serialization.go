package hub

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Array fields like
// participants and mentions are JSON-encoded into single hash fields. This
// provides a balance between queryability (individual fields) and
// flexibility (complex structures).

// AgentToHash converts an Agent struct to a Redis hash format.
func AgentToHash(a *Agent) map[string]interface{} {
	return map[string]interface{}{
		"id":               a.ID,
		"name":             a.Name,
		"description":      a.Description,
		"registered_at_ms": a.RegisteredAtMs,
	}
}

// HashToAgent converts a Redis hash to an Agent struct.
func HashToAgent(hash map[string]string) (*Agent, error) {
	registeredAtMs, _ := strconv.ParseInt(hash["registered_at_ms"], 10, 64)

	agent := &Agent{
		ID:             hash["id"],
		Name:           hash["name"],
		Description:    hash["description"],
		RegisteredAtMs: registeredAtMs,
	}

	if agent.ID == "" {
		return nil, fmt.Errorf("agent hash missing id field")
	}

	return agent, nil
}

// ThreadToHash converts a Thread struct to a Redis hash format.
// The participants array is JSON-encoded.
func ThreadToHash(t *Thread) (map[string]interface{}, error) {
	participantsJSON, err := json.Marshal(t.Participants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal participants: %w", err)
	}

	closed := "0"
	if t.Closed {
		closed = "1"
	}

	hash := map[string]interface{}{
		"id":            t.ID,
		"name":          t.Name,
		"creator_id":    t.CreatorID,
		"participants":  string(participantsJSON),
		"closed":        closed,
		"created_at_ms": t.CreatedAtMs,
	}

	return hash, nil
}

// HashToThread converts a Redis hash to a Thread struct.
func HashToThread(hash map[string]string) (*Thread, error) {
	var participants []string
	if participantsJSON := hash["participants"]; participantsJSON != "" {
		if err := json.Unmarshal([]byte(participantsJSON), &participants); err != nil {
			return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
		}
	}

	// Ensure we have an empty slice instead of nil for consistency
	if participants == nil {
		participants = []string{}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	thread := &Thread{
		ID:           hash["id"],
		Name:         hash["name"],
		CreatorID:    hash["creator_id"],
		Participants: participants,
		Closed:       hash["closed"] == "1",
		CreatedAtMs:  createdAtMs,
	}

	return thread, nil
}

// MessageToHash converts a Message struct to a Redis hash format.
// The mentions array is JSON-encoded.
func MessageToHash(m *Message) (map[string]interface{}, error) {
	mentionsJSON, err := json.Marshal(m.Mentions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mentions: %w", err)
	}

	hash := map[string]interface{}{
		"id":         m.ID,
		"thread_id":  m.ThreadID,
		"sender_id":  m.SenderID,
		"content":    m.Content,
		"mentions":   string(mentionsJSON),
		"sent_at_ms": m.SentAtMs,
	}

	return hash, nil
}

// HashToMessage converts a Redis hash to a Message struct.
func HashToMessage(hash map[string]string) (*Message, error) {
	var mentions []string
	if mentionsJSON := hash["mentions"]; mentionsJSON != "" {
		if err := json.Unmarshal([]byte(mentionsJSON), &mentions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mentions: %w", err)
		}
	}

	if mentions == nil {
		mentions = []string{}
	}

	sentAtMs, _ := strconv.ParseInt(hash["sent_at_ms"], 10, 64)

	message := &Message{
		ID:       hash["id"],
		ThreadID: hash["thread_id"],
		SenderID: hash["sender_id"],
		Content:  hash["content"],
		Mentions: mentions,
		SentAtMs: sentAtMs,
	}

	return message, nil
}
