// Package poller turns the hub's bounded single-shot WaitForMentions call
// into the higher-level waiting semantics each agent role needs: one poll
// per loop cycle for specialists, and a bounded (or explicitly unbounded)
// "wait until a matching mention arrives or give up" for the coordinator.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/corvid-labs/rookery/pkg/hub"
)

// ErrAwaitExhausted is returned by AwaitUntil and AwaitMatch when the
// attempt budget runs out with no (matching) mention. It is a normal,
// expected outcome - callers degrade gracefully ("no response received")
// rather than treating it as a defect.
var ErrAwaitExhausted = errors.New("no mentions received within the attempt budget")

// Waiter is the single hub operation the poller needs.
type Waiter interface {
	WaitForMentions(ctx context.Context, agentID string, timeout time.Duration) ([]hub.Message, error)
}

// Poller wraps repeated bounded-timeout polling over a hub client.
type Poller struct {
	hub Waiter
}

// New creates a Poller over the given hub client.
func New(waiter Waiter) *Poller {
	return &Poller{hub: waiter}
}

// AwaitOnce performs exactly one bounded poll. Specialist workers call this
// every loop cycle and re-enter the loop regardless of the result.
func (p *Poller) AwaitOnce(ctx context.Context, agentID string, timeout time.Duration) ([]hub.Message, error) {
	return p.hub.WaitForMentions(ctx, agentID, timeout)
}

// AwaitUntil repeats WaitForMentions up to maxAttempts times, returning as
// soon as any non-empty batch arrives. maxAttempts <= 0 selects the
// explicitly-unbounded mode, which polls until the context is cancelled;
// bounded is the default callers should prefer since unbounded waits
// complicate shutdown.
//
// Never performs more than maxAttempts underlying polls.
func (p *Poller) AwaitUntil(ctx context.Context, agentID string, timeout time.Duration, maxAttempts int) ([]hub.Message, error) {
	return p.AwaitMatch(ctx, agentID, timeout, maxAttempts, nil)
}

// AwaitMatch is AwaitUntil with a filter: batches are scanned for messages
// accepted by match, and unrelated mentions are discarded rather than ending
// the wait. A nil match accepts every message. The coordinator uses this to
// wait for a reply from the specific specialist it delegated to while
// ignoring unrelated mentions.
func (p *Poller) AwaitMatch(ctx context.Context, agentID string, timeout time.Duration, maxAttempts int, match func(hub.Message) bool) ([]hub.Message, error) {
	for attempt := 1; maxAttempts <= 0 || attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := p.hub.WaitForMentions(ctx, agentID, timeout)
		if err != nil {
			return nil, err
		}

		if match == nil {
			if len(batch) > 0 {
				return batch, nil
			}
			continue
		}

		matched := batch[:0:0]
		for _, message := range batch {
			if match(message) {
				matched = append(matched, message)
			}
		}
		if len(matched) > 0 {
			return matched, nil
		}
	}

	return nil, ErrAwaitExhausted
}
