package hub

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/redis/go-redis/v9"
)

// Error taxonomy for hub operations.
//
// Callers classify failures into two buckets: transient (worth exactly one
// retry at the call site, or a whole-session retry at the transport level)
// and permanent (report and move on). IsTransient is the single
// classification point; everything it rejects is treated as permanent.
var (
	// ErrAlreadyRegistered is returned by RegisterAgent when the agent ID
	// already exists. EnsureRegistered treats this as success.
	ErrAlreadyRegistered = errors.New("agent already registered")

	// ErrAgentNotRegistered is returned when an operation references an
	// agent ID that has not been registered on the hub.
	ErrAgentNotRegistered = errors.New("agent not registered")

	// ErrThreadClosed is returned when sending to or joining a closed thread.
	ErrThreadClosed = errors.New("thread is closed")

	// ErrNotParticipant is returned when the sender of a message is not a
	// participant of the target thread.
	ErrNotParticipant = errors.New("sender is not a thread participant")

	// ErrMentionNotParticipant is returned when a message mentions an agent
	// that is not a participant of the target thread.
	ErrMentionNotParticipant = errors.New("mentioned agent is not a thread participant")

	// ErrCreatorRemoval is returned when attempting to remove a thread's
	// creator from its participant set.
	ErrCreatorRemoval = errors.New("thread creator cannot be removed")

	// ErrMaxRetries is returned by RunSession when the whole-session retry
	// budget is exhausted. It is the only error that should terminate an
	// agent process.
	ErrMaxRetries = errors.New("max retries reached")
)

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetThread or GetMessage returned
// "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsTransient reports whether an error looks like a transient transport
// fault: a timeout, a reset or refused connection, or an unexpectedly
// closed stream. Transient errors are candidates for one extra attempt at
// the call site; at the session level they trigger a full reconnect.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
