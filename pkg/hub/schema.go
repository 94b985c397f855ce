package hub

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple Rookery instances to safely coexist on a single Redis
// server.
//
// Key pattern: rookery:{instance_name}:{entity}:{id}
// Channel pattern: rookery:{instance_name}:{event_type}_events

// AgentKey returns the Redis key for an agent's registration record.
// Pattern: rookery:{instance_name}:agent:{agent_id}
func AgentKey(instanceName, agentID string) string {
	return fmt.Sprintf("rookery:%s:agent:%s", instanceName, agentID)
}

// AgentsKey returns the Redis key for the set of registered agent IDs.
// Pattern: rookery:{instance_name}:agents
func AgentsKey(instanceName string) string {
	return fmt.Sprintf("rookery:%s:agents", instanceName)
}

// ThreadKey returns the Redis key for a thread record.
// Pattern: rookery:{instance_name}:thread:{thread_id}
func ThreadKey(instanceName, threadID string) string {
	return fmt.Sprintf("rookery:%s:thread:%s", instanceName, threadID)
}

// ThreadMessagesKey returns the Redis key for a thread's ordered message
// list. Messages are RPUSHed so list order is send order.
// Pattern: rookery:{instance_name}:thread:{thread_id}:messages
func ThreadMessagesKey(instanceName, threadID string) string {
	return fmt.Sprintf("rookery:%s:thread:%s:messages", instanceName, threadID)
}

// MessageKey returns the Redis key for a message record.
// Pattern: rookery:{instance_name}:message:{message_id}
func MessageKey(instanceName, messageID string) string {
	return fmt.Sprintf("rookery:%s:message:%s", instanceName, messageID)
}

// MentionQueueKey returns the Redis key for an agent's pending-mention
// queue. SendMessage RPUSHes the message ID onto the queue of every
// mentioned agent; WaitForMentions BLPOPs from it.
// Pattern: rookery:{instance_name}:mentions:{agent_id}
func MentionQueueKey(instanceName, agentID string) string {
	return fmt.Sprintf("rookery:%s:mentions:%s", instanceName, agentID)
}

// ThreadEventsChannel returns the Pub/Sub channel name for message events.
// Every sent message is published here for real-time observers (CLI watch,
// debugging). Delivery to mentioned agents does NOT depend on this channel.
// Pattern: rookery:{instance_name}:thread_events
func ThreadEventsChannel(instanceName string) string {
	return fmt.Sprintf("rookery:%s:thread_events", instanceName)
}
