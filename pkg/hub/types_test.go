package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validThread() *Thread {
	return &Thread{
		ID:           uuid.New().String(),
		Name:         "User Interaction Thread",
		CreatorID:    "user_interaction_agent",
		Participants: []string{"user_interaction_agent", "codediff_review_agent"},
	}
}

func validMessage() *Message {
	return &Message{
		ID:       uuid.New().String(),
		ThreadID: uuid.New().String(),
		SenderID: "user_interaction_agent",
		Content:  "Analyze the diff between a.py and b.py.",
		Mentions: []string{"codediff_review_agent"},
	}
}

func TestValidateAgentID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple id", "user_interaction_agent", false},
		{"with digits and dots", "agent-2.beta", false},
		{"empty", "", true},
		{"contains space", "bad agent", true},
		{"contains colon", "bad:agent", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgentID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAgentValidate(t *testing.T) {
	t.Run("valid agent", func(t *testing.T) {
		agent := &Agent{ID: "gitclone_agent", Name: "Git Clone Agent", Description: "Clones repos"}
		assert.NoError(t, agent.Validate())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		agent := &Agent{ID: "gitclone_agent"}
		err := agent.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "name cannot be empty")
	})

	t.Run("rejects invalid ID", func(t *testing.T) {
		agent := &Agent{ID: "has space", Name: "X"}
		assert.Error(t, agent.Validate())
	})
}

func TestThreadValidate(t *testing.T) {
	t.Run("valid thread", func(t *testing.T) {
		assert.NoError(t, validThread().Validate())
	})

	t.Run("rejects non-UUID ID", func(t *testing.T) {
		thread := validThread()
		thread.ID = "not-a-uuid"
		assert.Error(t, thread.Validate())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		thread := validThread()
		thread.Name = ""
		assert.Error(t, thread.Validate())
	})

	t.Run("rejects creator missing from participants", func(t *testing.T) {
		thread := validThread()
		thread.Participants = []string{"codediff_review_agent"}
		err := thread.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be a participant")
	})

	t.Run("rejects invalid participant", func(t *testing.T) {
		thread := validThread()
		thread.Participants = append(thread.Participants, "bad participant")
		assert.Error(t, thread.Validate())
	})
}

func TestMessageValidate(t *testing.T) {
	t.Run("valid message", func(t *testing.T) {
		assert.NoError(t, validMessage().Validate())
	})

	t.Run("empty mentions are allowed", func(t *testing.T) {
		message := validMessage()
		message.Mentions = []string{}
		assert.NoError(t, message.Validate())
	})

	t.Run("rejects non-UUID thread ID", func(t *testing.T) {
		message := validMessage()
		message.ThreadID = "thread-1"
		assert.Error(t, message.Validate())
	})

	t.Run("rejects invalid sender", func(t *testing.T) {
		message := validMessage()
		message.SenderID = ""
		assert.Error(t, message.Validate())
	})

	t.Run("rejects invalid mention", func(t *testing.T) {
		message := validMessage()
		message.Mentions = []string{"ok_agent", "bad mention"}
		assert.Error(t, message.Validate())
	})
}

func TestHasParticipant(t *testing.T) {
	thread := validThread()
	assert.True(t, thread.HasParticipant("codediff_review_agent"))
	assert.False(t, thread.HasParticipant("unit_test_runner_agent"))
}
