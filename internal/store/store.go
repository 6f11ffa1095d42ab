package store

import (
	"context"
	"errors"

	"github.com/flightdeck/aerochat/internal/model/chat"
)

var (
	ErrNotFound      = errors.New("conversation not found")
	ErrTitleRequired = errors.New("conversation title is required")
)

// ConversationStore is the persistence contract consumed by the session
// machine. Any call may fail; read failures are absorbed by the caller, write
// failures are surfaced to the UI.
type ConversationStore interface {
	// List returns the conversations for a domain, most recently updated first.
	List(ctx context.Context, domain string) ([]chat.Conversation, error)
	// Create inserts a new conversation scoped to the domain.
	Create(ctx context.Context, title, domain string) (chat.Conversation, error)
	// Delete removes a conversation and its messages.
	Delete(ctx context.Context, id string) error
	// ListMessages returns the ordered timeline of a conversation.
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	// AppendMessage persists one message and bumps the conversation's UpdatedAt.
	AppendMessage(ctx context.Context, conversationID string, message chat.Message) error
}
