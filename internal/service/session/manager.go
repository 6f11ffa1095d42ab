package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flightdeck/aerochat/internal/model/chat"
	"github.com/flightdeck/aerochat/internal/model/fleet"
	"github.com/flightdeck/aerochat/internal/service/answer"
	"github.com/flightdeck/aerochat/internal/store"
)

var ErrEmptyContent = errors.New("message content is required")

// RemoteAnswerError reports a failed answer round trip. The local timeline is
// already reconciled (typing placeholder removed, pending messages confirmed)
// by the time this is returned.
type RemoteAnswerError struct {
	Domain string
	Err    error
}

func (e *RemoteAnswerError) Error() string {
	return fmt.Sprintf("remote answer failed for domain %s: %v", e.Domain, e.Err)
}

func (e *RemoteAnswerError) Unwrap() error { return e.Err }

// Updater produces the next session state from the previous one. It runs
// under the domain's lock against the latest state, never against a stale
// snapshot, so concurrent writers (text send, voice transcripts) cannot lose
// each other's updates.
type Updater func(chat.DomainSession) chat.DomainSession

// Manager is the sole mutation surface for per-domain conversation state. It
// holds one DomainSession per knowledge domain and serializes every write to
// a domain through that domain's lock.
type Manager struct {
	store    store.ConversationStore
	answers  answer.Client
	registry fleet.Registry
	now      func() time.Time

	mu      sync.RWMutex
	domains map[string]*domainState
	active  string
}

type domainState struct {
	mu      sync.Mutex
	session chat.DomainSession
	// listed records that the conversation list was populated at least once,
	// so switching back to a domain does not refetch it.
	listed bool
}

// NewManager bootstraps one empty session per registered domain. The first
// registered domain starts active. answers may be nil when the backend is not
// configured; sends then fail with answer.ErrUnavailable.
func NewManager(conversations store.ConversationStore, answers answer.Client, registry fleet.Registry) *Manager {
	m := &Manager{
		store:    conversations,
		answers:  answers,
		registry: registry,
		now:      time.Now,
		domains:  make(map[string]*domainState),
	}
	for _, domain := range registry.List() {
		m.domains[domain.Tag] = &domainState{}
		if m.active == "" {
			m.active = domain.Tag
		}
	}
	return m
}

func (m *Manager) state(domain string) *domainState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.domains[domain]
	if !ok {
		st = &domainState{}
		m.domains[domain] = st
	}
	return st
}

// Session returns a snapshot of the domain's session.
func (m *Manager) Session(domain string) chat.DomainSession {
	st := m.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session.Clone()
}

// Sessions returns a snapshot of every domain's session keyed by tag.
func (m *Manager) Sessions() map[string]chat.DomainSession {
	m.mu.RLock()
	tags := make([]string, 0, len(m.domains))
	for tag := range m.domains {
		tags = append(tags, tag)
	}
	m.mu.RUnlock()

	out := make(map[string]chat.DomainSession, len(tags))
	for _, tag := range tags {
		out[tag] = m.Session(tag)
	}
	return out
}

// Update applies fn atomically against the domain's latest state. This is the
// universal write primitive; every other operation goes through it.
func (m *Manager) Update(domain string, fn Updater) {
	st := m.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.session = fn(st.session.Clone())
}

// ActiveDomain returns the tag of the globally active domain.
func (m *Manager) ActiveDomain() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// SwitchDomain changes the active domain pointer. The first activation of a
// domain populates its conversation list; other domains are left untouched.
func (m *Manager) SwitchDomain(ctx context.Context, domain string) {
	m.mu.Lock()
	m.active = domain
	m.mu.Unlock()

	st := m.state(domain)
	st.mu.Lock()
	listed := st.listed
	st.mu.Unlock()

	if !listed {
		m.LoadConversations(ctx, domain)
	}
}

// LoadConversations replaces the domain's conversation list from the store.
// A store failure leaves the previous list untouched.
func (m *Manager) LoadConversations(ctx context.Context, domain string) {
	items, err := m.store.List(ctx, domain)
	if err != nil {
		log.Printf("[session] failed to load conversations domain=%s: %v", domain, err)
		return
	}

	st := m.state(domain)
	st.mu.Lock()
	session := st.session.Clone()
	session.Conversations = items
	st.session = session
	st.listed = true
	st.mu.Unlock()
}

// LoadMessages replaces the domain's visible timeline with the conversation's
// stored history. On failure the timeline falls back to empty rather than
// keeping partial data. Either way the load only lands if the conversation is
// still the current one for the domain.
func (m *Manager) LoadMessages(ctx context.Context, conversationID, domain string) {
	messages, err := m.store.ListMessages(ctx, conversationID)
	if err != nil {
		log.Printf("[session] failed to load messages conversation=%s: %v", conversationID, err)
		m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
			if s.CurrentConversationID != conversationID {
				return s
			}
			s.Messages = []chat.Message{}
			s.IsLoading = false
			return s
		})
		return
	}

	m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
		if s.CurrentConversationID != conversationID {
			return s
		}
		s.Messages = messages
		s.IsLoading = false
		return s
	})
}

// SwitchConversation makes the conversation current and reloads its timeline.
// The previous messages stay visible while the load is in flight to avoid a
// flash to empty.
func (m *Manager) SwitchConversation(ctx context.Context, conversationID, domain string) {
	m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
		s.CurrentConversationID = conversationID
		s.IsLoading = true
		return s
	})
	m.LoadMessages(ctx, conversationID, domain)
}

// CreateConversation inserts a new conversation scoped to the domain and
// refreshes the conversation list.
func (m *Manager) CreateConversation(ctx context.Context, title, domain string) (string, error) {
	conv, err := m.store.Create(ctx, title, domain)
	if err != nil {
		log.Printf("[session] failed to create conversation domain=%s: %v", domain, err)
		return "", fmt.Errorf("create conversation: %w", err)
	}

	m.LoadConversations(ctx, domain)
	return conv.ID, nil
}

// DeleteConversation removes the conversation from the store. Deleting the
// current conversation clears the pointer and empties the visible timeline.
func (m *Manager) DeleteConversation(ctx context.Context, conversationID, domain string) error {
	if err := m.store.Delete(ctx, conversationID); err != nil {
		log.Printf("[session] failed to delete conversation=%s: %v", conversationID, err)
		return fmt.Errorf("delete conversation: %w", err)
	}

	m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
		kept := make([]chat.Conversation, 0, len(s.Conversations))
		for _, conv := range s.Conversations {
			if conv.ID != conversationID {
				kept = append(kept, conv)
			}
		}
		s.Conversations = kept
		if s.CurrentConversationID == conversationID {
			s.CurrentConversationID = ""
			s.Messages = []chat.Message{}
		}
		return s
	})

	m.LoadConversations(ctx, domain)
	return nil
}

// GenerateTitle derives a default conversation title from the domain's
// display name and the current date.
func (m *Manager) GenerateTitle(domain string) string {
	name := domain
	if meta, ok := m.registry.FindByTag(domain); ok {
		name = meta.Name
	}
	return fmt.Sprintf("%s · %s", name, m.now().Format("Jan 2, 15:04"))
}

// SendMessage runs the two-phase exchange: echo the user message and a typing
// placeholder into the visible timeline, call the answer backend, then
// reconcile against the live session. conversationID may be empty, in which
// case the domain's current conversation is used, or a new one is created.
//
// The reply is always persisted to the store; it is merged into the visible
// timeline only if its conversation is still current for the domain, so a
// slow response cannot overwrite a newer conversation the user switched to.
func (m *Manager) SendMessage(ctx context.Context, content, domain, conversationID string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if m.answers == nil {
		return answer.ErrUnavailable
	}

	target := conversationID
	if target == "" {
		target = m.Session(domain).CurrentConversationID
	}
	if target == "" {
		id, err := m.CreateConversation(ctx, m.GenerateTitle(domain), domain)
		if err != nil {
			return err
		}
		target = id
		m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
			s.CurrentConversationID = id
			return s
		})
	}

	now := m.now().UTC()
	userMsg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: target,
		Role:           chat.RoleUser,
		Content:        content,
		CreatedAt:      now,
		Pending:        true,
	}
	typing := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: target,
		Role:           chat.RoleAssistant,
		CreatedAt:      now,
		Typing:         true,
	}

	m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
		// Stripping first keeps the at-most-one-typing invariant when a
		// second send overlaps the first.
		s.Messages = append(stripTyping(s.Messages), userMsg, typing)
		s.IsLoading = true
		return s
	})

	persisted := userMsg
	persisted.Pending = false
	if err := m.store.AppendMessage(ctx, target, persisted); err != nil {
		log.Printf("[session] failed to persist user message conversation=%s: %v", target, err)
	}

	reply, err := m.answers.Ask(ctx, domain, content)
	if err != nil {
		// Reconcile the live session, not a snapshot: transcripts appended
		// mid-flight must survive, the user's own message must stay visible.
		m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
			s.Messages = confirmPending(stripTyping(s.Messages))
			s.IsLoading = false
			return s
		})
		return &RemoteAnswerError{Domain: domain, Err: err}
	}

	assistantMsg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: target,
		Role:           chat.RoleAssistant,
		Content:        reply,
		CreatedAt:      m.now().UTC(),
	}
	if err := m.store.AppendMessage(ctx, target, assistantMsg); err != nil {
		log.Printf("[session] failed to persist assistant message conversation=%s: %v", target, err)
	}

	m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
		s.Messages = confirmPending(stripTyping(s.Messages))
		s.IsLoading = false
		if s.CurrentConversationID != target {
			log.Printf("[session] dropping stale reply from view domain=%s conversation=%s", domain, target)
			return s
		}
		s.Messages = append(s.Messages, assistantMsg)
		return s
	})

	// Reflect the conversation's new UpdatedAt ordering.
	m.LoadConversations(ctx, domain)
	return nil
}

// AppendVoiceMessage inserts a transcript turn from the voice channel into
// the domain's visible timeline and persists it. It uses the same update
// primitive as text sends, so it composes safely with an in-flight send.
func (m *Manager) AppendVoiceMessage(ctx context.Context, domain string, role chat.Role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	target := m.Session(domain).CurrentConversationID
	if target == "" {
		id, err := m.CreateConversation(ctx, m.GenerateTitle(domain), domain)
		if err != nil {
			log.Printf("[session] voice transcript without conversation domain=%s: %v", domain, err)
		} else {
			target = id
			m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
				s.CurrentConversationID = id
				return s
			})
		}
	}

	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: target,
		Role:           role,
		Content:        content,
		CreatedAt:      m.now().UTC(),
		Voice:          true,
	}

	m.Update(domain, func(s chat.DomainSession) chat.DomainSession {
		// Keep the typing placeholder visually last while a send is in flight.
		tail, hadTyping := takeTyping(s.Messages)
		s.Messages = append(tail, msg)
		if hadTyping != nil {
			s.Messages = append(s.Messages, *hadTyping)
		}
		return s
	})

	if target == "" {
		return
	}
	if err := m.store.AppendMessage(ctx, target, msg); err != nil {
		log.Printf("[session] failed to persist voice message conversation=%s: %v", target, err)
	}
}

// stripTyping removes every typing placeholder from the timeline.
func stripTyping(messages []chat.Message) []chat.Message {
	kept := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Typing {
			continue
		}
		kept = append(kept, msg)
	}
	return kept
}

// takeTyping splits off the typing placeholder, if any.
func takeTyping(messages []chat.Message) ([]chat.Message, *chat.Message) {
	var typing *chat.Message
	kept := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Typing {
			copied := msg
			typing = &copied
			continue
		}
		kept = append(kept, msg)
	}
	return kept, typing
}

// confirmPending clears the pending flag on every message; pending messages
// are never removed, only confirmed.
func confirmPending(messages []chat.Message) []chat.Message {
	for i := range messages {
		messages[i].Pending = false
	}
	return messages
}
