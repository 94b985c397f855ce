package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadHashRoundTrip(t *testing.T) {
	thread := &Thread{
		ID:           uuid.New().String(),
		Name:         "User Interaction Thread",
		CreatorID:    "user_interaction_agent",
		Participants: []string{"user_interaction_agent", "unit_test_runner_agent"},
		Closed:       true,
		CreatedAtMs:  1700000000123,
	}

	hash, err := ThreadToHash(thread)
	require.NoError(t, err)
	assert.Equal(t, "1", hash["closed"])

	stringHash := make(map[string]string, len(hash))
	for k, v := range hash {
		switch val := v.(type) {
		case string:
			stringHash[k] = val
		case int64:
			stringHash[k] = "1700000000123"
		}
	}

	got, err := HashToThread(stringHash)
	require.NoError(t, err)
	assert.Equal(t, thread, got)
}

func TestHashToThreadDefaults(t *testing.T) {
	t.Run("missing participants becomes empty slice", func(t *testing.T) {
		got, err := HashToThread(map[string]string{"id": uuid.New().String(), "name": "x", "creator_id": "a"})
		require.NoError(t, err)
		assert.NotNil(t, got.Participants)
		assert.Empty(t, got.Participants)
		assert.False(t, got.Closed)
	})

	t.Run("malformed participants JSON fails", func(t *testing.T) {
		_, err := HashToThread(map[string]string{"participants": "{corrupt"})
		assert.Error(t, err)
	})
}

func TestMessageHashRoundTrip(t *testing.T) {
	message := &Message{
		ID:       uuid.New().String(),
		ThreadID: uuid.New().String(),
		SenderID: "codediff_review_agent",
		Content:  "Changed functions: multiply",
		Mentions: []string{"user_interaction_agent"},
		SentAtMs: 1700000000456,
	}

	hash, err := MessageToHash(message)
	require.NoError(t, err)

	stringHash := make(map[string]string, len(hash))
	for k, v := range hash {
		switch val := v.(type) {
		case string:
			stringHash[k] = val
		case int64:
			stringHash[k] = "1700000000456"
		}
	}

	got, err := HashToMessage(stringHash)
	require.NoError(t, err)
	assert.Equal(t, message, got)
}

func TestHashToAgent(t *testing.T) {
	t.Run("complete record", func(t *testing.T) {
		got, err := HashToAgent(map[string]string{
			"id":               "gitclone_agent",
			"name":             "Git Clone Agent",
			"description":      "Clones GitHub repositories",
			"registered_at_ms": "42",
		})
		require.NoError(t, err)
		assert.Equal(t, "gitclone_agent", got.ID)
		assert.Equal(t, int64(42), got.RegisteredAtMs)
	})

	t.Run("missing id fails", func(t *testing.T) {
		_, err := HashToAgent(map[string]string{"name": "X"})
		assert.Error(t, err)
	})
}
