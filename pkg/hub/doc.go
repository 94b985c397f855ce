// Package hub provides type-safe Go definitions and Redis schema patterns
// for the Rookery message hub.
//
// # Overview
//
// The hub is the shared coordination service through which all Rookery
// agents communicate. Agents never call each other directly: the
// coordinator and the specialists exchange mention-addressed messages in
// named threads, and each agent discovers work by polling its mention
// queue with a bounded timeout.
//
// # Core Concepts
//
// Agents register once per process lifetime under a stable string ID.
// Registration is idempotent from the caller's perspective: EnsureRegistered
// succeeds whether or not the ID already exists, which is what makes
// session reconnects safe.
//
// Threads are named, participant-scoped, append-only message logs. The
// creator of a thread is always a participant, and a closed thread accepts
// no new messages. Participant changes are serialized by the hub; this
// layer tolerates "already present" and "already closed" outcomes.
//
// Messages are immutable once sent and observed by all participants in
// send order. Mentions are an addressing marker naming the intended
// recipients; they filter visibility for WaitForMentions but never reorder
// messages. A message with no mentions is never delivered to any agent's
// wait queue.
//
// # Sessions
//
// Each agent process owns one logical hub session. On transport failure
// the whole session is retried (dial and role loop together) up to a fixed
// attempt budget with a fixed delay; see RunSession. Exhausting the budget
// is fatal by design.
//
// # Redis Schema
//
// All Redis keys follow the pattern: rookery:{instance_name}:{entity}:{id}
//
//	Agents:         rookery:{instance_name}:agent:{agent_id}
//	Agent registry: rookery:{instance_name}:agents
//	Threads:        rookery:{instance_name}:thread:{thread_id}
//	Thread log:     rookery:{instance_name}:thread:{thread_id}:messages
//	Messages:       rookery:{instance_name}:message:{message_id}
//	Mention queues: rookery:{instance_name}:mentions:{agent_id}
//
// Pub/Sub channel for observers: rookery:{instance_name}:thread_events
//
// # Design Principles
//
//   - Type Safety: all data structures have strong typing with validation
//   - Immutability: messages are append-only within their thread
//   - Isolation: instance namespacing prevents cross-instance interference
//   - Bounded waiting: WaitForMentions is the only suspending operation,
//     and it never blocks past its timeout
package hub
