package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped hub operations over one Redis connection.
// All keys and channels are automatically namespaced with the instance name.
// The client is safe for concurrent use from multiple goroutines, though
// each Rookery role runs as a single cooperative loop and rarely needs that.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new hub client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, timeouts, etc.)
//   - instanceName: Rookery instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies hub connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RegisterAgent records an agent on the hub. Returns ErrAlreadyRegistered
// if the agent ID is already taken; most callers want EnsureRegistered,
// which treats that as success.
func (c *Client) RegisterAgent(ctx context.Context, agent Agent) error {
	if err := agent.Validate(); err != nil {
		return fmt.Errorf("invalid agent: %w", err)
	}

	added, err := c.rdb.SAdd(ctx, AgentsKey(c.instanceName), agent.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to register agent: %w", err)
	}

	if added == 0 {
		return fmt.Errorf("agent %q: %w", agent.ID, ErrAlreadyRegistered)
	}

	agent.RegisteredAtMs = time.Now().UnixMilli()
	if err := c.rdb.HSet(ctx, AgentKey(c.instanceName, agent.ID), AgentToHash(&agent)).Err(); err != nil {
		return fmt.Errorf("failed to write agent record: %w", err)
	}

	return nil
}

// EnsureRegistered registers the agent, treating "already registered" as
// success. This is the idempotent registration used at every process start
// and after every session reconnect: calling it twice with the same ID
// succeeds both times without duplicating the registration.
func (c *Client) EnsureRegistered(ctx context.Context, agent Agent) error {
	err := c.RegisterAgent(ctx, agent)
	if err != nil && errors.Is(err, ErrAlreadyRegistered) {
		return nil
	}
	return err
}

// IsRegistered checks whether an agent ID is registered on the hub.
func (c *Client) IsRegistered(ctx context.Context, agentID string) (bool, error) {
	registered, err := c.rdb.SIsMember(ctx, AgentsKey(c.instanceName), agentID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check agent registration: %w", err)
	}
	return registered, nil
}

// ListAgents returns all registered agents sorted by ID. When includeDetails
// is false only the IDs are populated, avoiding one hash read per agent.
// Callers may cache the result for the duration of a pipeline run; the
// cache is a performance hint, never a consistency mechanism.
func (c *Client) ListAgents(ctx context.Context, includeDetails bool) ([]Agent, error) {
	ids, err := c.rdb.SMembers(ctx, AgentsKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	sort.Strings(ids)

	agents := make([]Agent, 0, len(ids))
	for _, id := range ids {
		if !includeDetails {
			agents = append(agents, Agent{ID: id})
			continue
		}

		hash, err := c.rdb.HGetAll(ctx, AgentKey(c.instanceName, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read agent %s: %w", id, err)
		}

		// Membership without a record means a half-finished registration;
		// surface the ID alone rather than failing the whole listing.
		if len(hash) == 0 {
			agents = append(agents, Agent{ID: id})
			continue
		}

		agent, err := HashToAgent(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize agent %s: %w", id, err)
		}
		agents = append(agents, *agent)
	}

	return agents, nil
}

// CreateThread creates a new named thread. The creator is always included
// in the participant set, whether or not it appears in participantIDs.
// Every participant (creator included) must be a registered agent.
func (c *Client) CreateThread(ctx context.Context, name, creatorID string, participantIDs []string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("thread name cannot be empty")
	}

	participants := []string{creatorID}
	for _, id := range participantIDs {
		if id != creatorID {
			participants = append(participants, id)
		}
	}

	for _, id := range participants {
		registered, err := c.IsRegistered(ctx, id)
		if err != nil {
			return "", err
		}
		if !registered {
			return "", fmt.Errorf("participant %q: %w", id, ErrAgentNotRegistered)
		}
	}

	thread := &Thread{
		ID:           uuid.New().String(),
		Name:         name,
		CreatorID:    creatorID,
		Participants: participants,
		Closed:       false,
		CreatedAtMs:  time.Now().UnixMilli(),
	}

	if err := thread.Validate(); err != nil {
		return "", fmt.Errorf("invalid thread: %w", err)
	}

	hash, err := ThreadToHash(thread)
	if err != nil {
		return "", fmt.Errorf("failed to serialize thread: %w", err)
	}

	if err := c.rdb.HSet(ctx, ThreadKey(c.instanceName, thread.ID), hash).Err(); err != nil {
		return "", fmt.Errorf("failed to write thread to Redis: %w", err)
	}

	return thread.ID, nil
}

// GetThread retrieves a thread by ID.
// Returns (nil, redis.Nil) if the thread doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	hash, err := c.rdb.HGetAll(ctx, ThreadKey(c.instanceName, threadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read thread from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	thread, err := HashToThread(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize thread: %w", err)
	}

	return thread, nil
}

// AddParticipant adds a registered agent to an open thread.
// Adding an agent that is already a participant is a no-op, not an error:
// concurrent joins on the same thread are resolved by the hub and this
// layer tolerates either outcome.
func (c *Client) AddParticipant(ctx context.Context, threadID, agentID string) error {
	registered, err := c.IsRegistered(ctx, agentID)
	if err != nil {
		return err
	}
	if !registered {
		return fmt.Errorf("agent %q: %w", agentID, ErrAgentNotRegistered)
	}

	thread, err := c.GetThread(ctx, threadID)
	if err != nil {
		return err
	}

	if thread.Closed {
		return fmt.Errorf("thread %s: %w", threadID, ErrThreadClosed)
	}

	if thread.HasParticipant(agentID) {
		return nil
	}

	thread.Participants = append(thread.Participants, agentID)
	return c.writeParticipants(ctx, thread)
}

// RemoveParticipant removes an agent from a thread's participant set.
// Removing an agent that is not a participant is a no-op. The creator can
// never be removed.
func (c *Client) RemoveParticipant(ctx context.Context, threadID, agentID string) error {
	thread, err := c.GetThread(ctx, threadID)
	if err != nil {
		return err
	}

	if agentID == thread.CreatorID {
		return fmt.Errorf("thread %s: %w", threadID, ErrCreatorRemoval)
	}

	if !thread.HasParticipant(agentID) {
		return nil
	}

	remaining := make([]string, 0, len(thread.Participants)-1)
	for _, p := range thread.Participants {
		if p != agentID {
			remaining = append(remaining, p)
		}
	}
	thread.Participants = remaining

	return c.writeParticipants(ctx, thread)
}

func (c *Client) writeParticipants(ctx context.Context, thread *Thread) error {
	participantsJSON, err := json.Marshal(thread.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	key := ThreadKey(c.instanceName, thread.ID)
	if err := c.rdb.HSet(ctx, key, "participants", string(participantsJSON)).Err(); err != nil {
		return fmt.Errorf("failed to update thread participants: %w", err)
	}

	return nil
}

// CloseThread marks a thread closed. A closed thread accepts no new
// messages or participants. Closing an already-closed thread is a no-op.
func (c *Client) CloseThread(ctx context.Context, threadID string) error {
	// Existence check so a bad thread ID surfaces as not-found rather
	// than silently creating a stub hash.
	if _, err := c.GetThread(ctx, threadID); err != nil {
		return err
	}

	key := ThreadKey(c.instanceName, threadID)
	if err := c.rdb.HSet(ctx, key, "closed", "1").Err(); err != nil {
		return fmt.Errorf("failed to close thread: %w", err)
	}

	return nil
}

// SendMessage appends a message to an open thread and makes it visible to
// every mentioned agent's WaitForMentions from this point forward (there is
// no retroactive visibility). The sender and every mentioned agent must be
// thread participants. A message with no mentions is recorded in the thread
// but never delivered via WaitForMentions to any agent.
func (c *Client) SendMessage(ctx context.Context, threadID, senderID, content string, mentions []string) (string, error) {
	thread, err := c.GetThread(ctx, threadID)
	if err != nil {
		return "", err
	}

	if thread.Closed {
		return "", fmt.Errorf("thread %s: %w", threadID, ErrThreadClosed)
	}

	if !thread.HasParticipant(senderID) {
		return "", fmt.Errorf("sender %q in thread %s: %w", senderID, threadID, ErrNotParticipant)
	}

	for _, mention := range mentions {
		if !thread.HasParticipant(mention) {
			return "", fmt.Errorf("mention %q in thread %s: %w", mention, threadID, ErrMentionNotParticipant)
		}
	}

	if mentions == nil {
		mentions = []string{}
	}

	message := &Message{
		ID:       uuid.New().String(),
		ThreadID: threadID,
		SenderID: senderID,
		Content:  content,
		Mentions: mentions,
		SentAtMs: time.Now().UnixMilli(),
	}

	if err := message.Validate(); err != nil {
		return "", fmt.Errorf("invalid message: %w", err)
	}

	hash, err := MessageToHash(message)
	if err != nil {
		return "", fmt.Errorf("failed to serialize message: %w", err)
	}

	if err := c.rdb.HSet(ctx, MessageKey(c.instanceName, message.ID), hash).Err(); err != nil {
		return "", fmt.Errorf("failed to write message to Redis: %w", err)
	}

	// Append to the thread's ordered log. RPUSH preserves send order for
	// all participants.
	if err := c.rdb.RPush(ctx, ThreadMessagesKey(c.instanceName, threadID), message.ID).Err(); err != nil {
		return "", fmt.Errorf("failed to append message to thread: %w", err)
	}

	// Queue the message for each mentioned agent. Mentions only filter
	// visibility; the thread log above is the ordering authority.
	for _, mention := range mentions {
		if err := c.rdb.RPush(ctx, MentionQueueKey(c.instanceName, mention), message.ID).Err(); err != nil {
			return "", fmt.Errorf("failed to queue mention for %s: %w", mention, err)
		}
	}

	// Publish for observers (CLI watch). Best-effort side channel only.
	messageJSON, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message for event: %w", err)
	}
	if err := c.rdb.Publish(ctx, ThreadEventsChannel(c.instanceName), messageJSON).Err(); err != nil {
		return "", fmt.Errorf("failed to publish message event: %w", err)
	}

	return message.ID, nil
}

// GetMessage retrieves a message by ID.
// Returns (nil, redis.Nil) if the message doesn't exist.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	hash, err := c.rdb.HGetAll(ctx, MessageKey(c.instanceName, messageID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Redis: %w", err)
	}

	if len(hash) == 0 {
		return nil, redis.Nil
	}

	message, err := HashToMessage(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %w", err)
	}

	return message, nil
}

// ThreadMessages returns every message in a thread in send order.
func (c *Client) ThreadMessages(ctx context.Context, threadID string) ([]Message, error) {
	ids, err := c.rdb.LRange(ctx, ThreadMessagesKey(c.instanceName, threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read thread message list: %w", err)
	}

	messages := make([]Message, 0, len(ids))
	for _, id := range ids {
		message, err := c.GetMessage(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load message %s: %w", id, err)
		}
		messages = append(messages, *message)
	}

	return messages, nil
}

// WaitForMentions blocks until at least one message mentioning agentID
// arrives, or the timeout expires. On arrival it drains everything queued
// for the agent and returns the messages in delivery order. An expired
// deadline returns an empty slice and no error: an empty result is a
// normal outcome, not a fault.
//
// This is the only hub operation that suspends the calling loop, and it
// never blocks longer than the timeout plus bounded processing overhead.
// There is no mid-call cancellation beyond ctx: a pending wait simply
// expires at its deadline.
func (c *Client) WaitForMentions(ctx context.Context, agentID string, timeout time.Duration) ([]Message, error) {
	if err := ValidateAgentID(agentID); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
	}

	queueKey := MentionQueueKey(c.instanceName, agentID)

	vals, err := c.rdb.BLPop(ctx, timeout, queueKey).Result()
	if err != nil {
		if err == redis.Nil {
			// Deadline expired with nothing queued.
			return []Message{}, nil
		}
		return nil, fmt.Errorf("failed to wait for mentions: %w", err)
	}

	// BLPop returns [key, value].
	ids := []string{vals[1]}

	// Drain whatever else arrived while we were blocked.
	for {
		id, err := c.rdb.LPop(ctx, queueKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to drain mention queue: %w", err)
		}
		ids = append(ids, id)
	}

	messages := make([]Message, 0, len(ids))
	for _, id := range ids {
		message, err := c.GetMessage(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				// Queue entry outlived its message record; skip it.
				continue
			}
			return nil, err
		}
		messages = append(messages, *message)
	}

	return messages, nil
}

// Subscription represents an active Pub/Sub subscription to message events.
// Caller must call Close() when done to clean up resources. Subscriptions
// are for observers only; mention delivery never depends on them.
type Subscription struct {
	events <-chan *Message
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of message events.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *Subscription) Events() <-chan *Message {
	return s.events
}

// Errors returns the channel of subscription errors. Errors include JSON
// unmarshaling failures; the subscription continues after errors and the
// offending payload is skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements
// io.Closer. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeMessageEvents subscribes to message events for this instance.
// Returns a Subscription delivering full message objects. Caller must call
// subscription.Close() when done; context cancellation also stops it.
//
// Events are delivered on a buffered channel (size 10). A slow subscriber
// may miss events: Redis Pub/Sub is at-most-once.
func (c *Client) SubscribeMessageEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, ThreadEventsChannel(c.instanceName))

	eventsChan := make(chan *Message, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var message Message
				if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal message event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &message:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
