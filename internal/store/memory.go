package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flightdeck/aerochat/internal/model/chat"
)

// MemoryStore implements ConversationStore with in-memory maps, suitable for
// development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message
	now           func() time.Time
}

// NewMemoryStore bootstraps an empty in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		now:           time.Now,
	}
}

// List returns the domain's conversations ordered by UpdatedAt descending.
func (s *MemoryStore) List(_ context.Context, domain string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]chat.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if conv.Domain == domain {
			items = append(items, conv)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items, nil
}

// Create provisions a conversation scoped to the domain.
func (s *MemoryStore) Create(_ context.Context, title, domain string) (chat.Conversation, error) {
	if title == "" {
		return chat.Conversation{}, ErrTitleRequired
	}

	now := s.now().UTC()
	conv := chat.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Domain:    domain,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.messages[conv.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return conv, nil
}

// Delete removes a conversation together with its timeline.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

// ListMessages returns a copy of the conversation's timeline.
func (s *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[conversationID]
	if !ok {
		return nil, ErrNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// AppendMessage appends a message to the conversation history.
func (s *MemoryStore) AppendMessage(_ context.Context, conversationID string, message chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.ConversationID = conversationID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now().UTC()
	}

	s.messages[conversationID] = append(s.messages[conversationID], message)

	conv.UpdatedAt = s.now().UTC()
	s.conversations[conversationID] = conv
	return nil
}
