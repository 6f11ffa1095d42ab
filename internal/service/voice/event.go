package voice

import (
	"encoding/json"
	"fmt"
)

// Event is an inbound occurrence on the voice channel, decoded once at the
// transport boundary into a closed set of variants.
type Event interface {
	isEvent()
}

// UserTranscript carries the final transcription of the user's speech.
type UserTranscript struct {
	Text string
}

// AssistantTranscript carries the completed transcript of an assistant turn.
type AssistantTranscript struct {
	Text string
}

// SpeakingStarted signals that the assistant began speaking.
type SpeakingStarted struct{}

// SpeakingStopped signals that the assistant stopped speaking.
type SpeakingStopped struct{}

// Unknown preserves an event type this client does not understand.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (UserTranscript) isEvent()      {}
func (AssistantTranscript) isEvent() {}
func (SpeakingStarted) isEvent()     {}
func (SpeakingStopped) isEvent()     {}
func (Unknown) isEvent()             {}

// envelope is the wire shape of every channel message in both directions.
type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

type transcriptPayload struct {
	Text string `json:"text"`
}

// DecodeEvent maps a raw channel frame to its event variant. Unrecognized
// types decode to Unknown rather than an error so a gateway upgrade cannot
// break the session.
func DecodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed channel frame: %w", err)
	}

	switch env.Type {
	case "user_transcript":
		var payload transcriptPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, fmt.Errorf("malformed user transcript: %w", err)
		}
		return UserTranscript{Text: payload.Text}, nil
	case "assistant_transcript":
		var payload transcriptPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, fmt.Errorf("malformed assistant transcript: %w", err)
		}
		return AssistantTranscript{Text: payload.Text}, nil
	case "speaking_started":
		return SpeakingStarted{}, nil
	case "speaking_stopped":
		return SpeakingStopped{}, nil
	default:
		return Unknown{Type: env.Type, Raw: env.Data}, nil
	}
}
