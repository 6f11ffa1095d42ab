package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation timeline.
//
// Pending marks a user message that was echoed locally but not yet confirmed
// by a completed round trip; it is cleared, never removed. Typing marks the
// transient "assistant is composing" placeholder, which is never persisted.
// Voice marks turns that entered through the voice channel.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	Pending        bool      `json:"pending,omitempty"`
	Typing         bool      `json:"typing,omitempty"`
	Voice          bool      `json:"voice,omitempty"`
}
