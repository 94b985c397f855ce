// Package worker implements the generic request-act-reply loop shared by
// every specialist agent. A specialist polls for mentions, handles at most
// one capability invocation per message, and replies into the originating
// thread mentioning the requester. Malformed or unauthorized messages are
// dropped silently; the loop itself never crashes on a failed turn.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/corvid-labs/rookery/internal/poller"
	"github.com/corvid-labs/rookery/pkg/hub"
)

// DefaultPollTimeout bounds each mention poll when the config leaves it
// unset. Matches the coordinator's per-attempt wait.
const DefaultPollTimeout = 8 * time.Second

// Hub is the subset of hub client operations the worker loop needs.
type Hub interface {
	WaitForMentions(ctx context.Context, agentID string, timeout time.Duration) ([]hub.Message, error)
	SendMessage(ctx context.Context, threadID, senderID, content string, mentions []string) (string, error)
}

// Handler processes one mention addressed to this role.
//
// The returned ok reports whether the message was well-formed for the role:
// ok=false means the message did not match the role's instruction pattern
// and no reply is sent (silence, not error). When ok=true the reply string
// is sent back into the originating thread - on success it carries the
// result payload, on capability failure a structured error description.
// Handlers never return errors across the hub boundary.
type Handler interface {
	Handle(ctx context.Context, m hub.Message) (reply string, ok bool)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, m hub.Message) (string, bool)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, m hub.Message) (string, bool) {
	return f(ctx, m)
}

// Config holds a worker loop's runtime settings.
type Config struct {
	// AgentID is this specialist's hub identity.
	AgentID string

	// AuthorizedSender, when non-empty, restricts processing to mentions
	// from that sender; everything else is dropped silently.
	AuthorizedSender string

	// PollTimeout bounds each WaitForMentions call.
	PollTimeout time.Duration
}

// Loop is the specialist role state machine: AWAITING_MENTION ->
// PROCESSING -> REPLYING -> AWAITING_MENTION, with timeouts and malformed
// messages looping straight back to AWAITING_MENTION. It has no terminal
// state; it runs until the context is cancelled.
type Loop struct {
	cfg     Config
	hub     Hub
	poller  *poller.Poller
	handler Handler
}

// New creates a worker loop for one specialist role.
func New(cfg Config, h Hub, handler Handler) (*Loop, error) {
	if err := hub.ValidateAgentID(cfg.AgentID); err != nil {
		return nil, fmt.Errorf("worker config: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("worker config: handler cannot be nil")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}

	return &Loop{
		cfg:     cfg,
		hub:     h,
		poller:  poller.New(h),
		handler: handler,
	}, nil
}

// Run polls for mentions until the context is cancelled. Transient hub
// errors on the poll are logged and the loop continues; anything else is
// returned so the session layer can retry the whole connection.
func (l *Loop) Run(ctx context.Context) error {
	log.Printf("[INFO] Worker loop starting agent=%s poll_timeout=%s", l.cfg.AgentID, l.cfg.PollTimeout)

	for {
		if ctx.Err() != nil {
			log.Printf("[INFO] Worker loop shutting down agent=%s", l.cfg.AgentID)
			return nil
		}

		messages, err := l.poller.AwaitOnce(ctx, l.cfg.AgentID, l.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[INFO] Worker loop shutting down agent=%s", l.cfg.AgentID)
				return nil
			}
			// Transport faults bubble up for a whole-session retry.
			return fmt.Errorf("waiting for mentions: %w", err)
		}

		for _, message := range messages {
			l.process(ctx, message)
		}
	}
}

// process runs one PROCESSING -> REPLYING turn for a single mention.
func (l *Loop) process(ctx context.Context, m hub.Message) {
	if l.cfg.AuthorizedSender != "" && m.SenderID != l.cfg.AuthorizedSender {
		log.Printf("[DEBUG] Ignoring mention from unauthorized sender agent=%s sender=%s", l.cfg.AgentID, m.SenderID)
		return
	}

	reply, ok := l.handler.Handle(ctx, m)
	if !ok {
		log.Printf("[DEBUG] Ignoring malformed mention agent=%s message_id=%s", l.cfg.AgentID, m.ID)
		return
	}

	l.reply(ctx, m, reply)
}

// reply sends exactly one message back into the originating thread,
// mentioning the original sender. A transient failure gets one retry; a
// second consecutive failure drops the turn silently - a worker must never
// crash its loop over a single failed reply.
func (l *Loop) reply(ctx context.Context, request hub.Message, content string) {
	_, err := l.hub.SendMessage(ctx, request.ThreadID, l.cfg.AgentID, content, []string{request.SenderID})
	if err == nil {
		return
	}

	if hub.IsTransient(err) {
		log.Printf("[WARN] Reply failed, retrying once agent=%s thread=%s error=%v", l.cfg.AgentID, request.ThreadID, err)
		if _, err = l.hub.SendMessage(ctx, request.ThreadID, l.cfg.AgentID, content, []string{request.SenderID}); err == nil {
			return
		}
	}

	log.Printf("[WARN] Dropping turn after failed reply agent=%s thread=%s message_id=%s error=%v",
		l.cfg.AgentID, request.ThreadID, request.ID, err)
}
