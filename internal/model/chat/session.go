package chat

// DomainSession aggregates everything the UI shows for one knowledge domain:
// the conversation list, the active conversation pointer, the visible message
// timeline and the in-flight indicator. Messages always reflects the timeline
// of CurrentConversationID, except for the brief window between switching
// conversations and the reconciling load completing.
type DomainSession struct {
	Conversations         []Conversation `json:"conversations"`
	CurrentConversationID string         `json:"currentConversationId,omitempty"`
	Messages              []Message      `json:"messages"`
	IsLoading             bool           `json:"isLoading"`
}

// Clone returns a deep copy safe to hand out as a snapshot.
func (s DomainSession) Clone() DomainSession {
	out := s
	if s.Conversations != nil {
		out.Conversations = append([]Conversation(nil), s.Conversations...)
	}
	if s.Messages != nil {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	return out
}
