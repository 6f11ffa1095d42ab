package voice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/flightdeck/aerochat/internal/config"
	"github.com/flightdeck/aerochat/internal/model/chat"
	"github.com/flightdeck/aerochat/internal/model/fleet"
)

var ErrUnknownDomain = errors.New("unknown knowledge domain")

// ConnectionError reports a failed channel establishment. No partial
// connection remains after it is returned.
type ConnectionError struct {
	Domain string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("voice connect failed for domain %s: %v", e.Domain, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Appender is the session machine's append path for voice transcripts. The
// adapter never mutates session state through any other route.
type Appender interface {
	AppendVoiceMessage(ctx context.Context, domain string, role chat.Role, content string)
}

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// Adapter bridges the realtime voice channel to the session machine. It owns
// the channel lifecycle and the speaking indicator, nothing else: transcripts
// flow straight into the session's append path.
type Adapter struct {
	transport Transport
	sessions  Appender
	registry  fleet.Registry
	cfg       config.VoiceConfig

	mu       sync.Mutex
	state    connState
	channel  Channel
	domain   string
	muted    bool
	speaking bool
	subs     map[int]chan bool
	nextSub  int
	pumpDone chan struct{}
}

// NewAdapter wires the transport to the session machine.
func NewAdapter(transport Transport, sessions Appender, registry fleet.Registry, cfg config.VoiceConfig) *Adapter {
	return &Adapter{
		transport: transport,
		sessions:  sessions,
		registry:  registry,
		cfg:       cfg,
		subs:      make(map[int]chan bool),
	}
}

// Connect establishes the voice channel for a domain and configures the
// remote model with the domain's instructions and knowledge base. Calling it
// while connected or connecting is a no-op.
func (a *Adapter) Connect(ctx context.Context, domain string) error {
	a.mu.Lock()
	if a.state != stateDisconnected {
		a.mu.Unlock()
		return nil
	}
	a.state = stateConnecting
	a.mu.Unlock()

	meta, ok := a.registry.FindByTag(domain)
	if !ok {
		a.reset()
		return &ConnectionError{Domain: domain, Err: ErrUnknownDomain}
	}

	channel, err := a.transport.Open(ctx, ChannelConfig{
		URL:              a.cfg.GatewayURL,
		Domain:           domain,
		Instructions:     meta.PromptHint,
		KnowledgeBase:    meta.KnowledgeBase,
		HandshakeTimeout: a.cfg.HandshakeTimeout,
		ReadTimeout:      a.cfg.ReadTimeout,
		WriteTimeout:     a.cfg.WriteTimeout,
		PingInterval:     a.cfg.PingInterval,
		MaxRetries:       a.cfg.MaxRetries,
	})
	if err != nil {
		a.reset()
		return &ConnectionError{Domain: domain, Err: err}
	}

	configMsg := ControlMessage{
		Type: "session_config",
		Data: map[string]any{
			"domain":        domain,
			"instructions":  meta.PromptHint,
			"knowledgeBase": meta.KnowledgeBase,
		},
	}
	if err := channel.Send(ctx, configMsg); err != nil {
		// Release the half-open channel before reporting: no zombies.
		channel.Close()
		a.reset()
		return &ConnectionError{Domain: domain, Err: err}
	}

	pumpDone := make(chan struct{})
	a.mu.Lock()
	a.channel = channel
	a.domain = domain
	a.state = stateConnected
	a.muted = false
	a.pumpDone = pumpDone
	a.mu.Unlock()

	go a.pump(channel, domain, pumpDone)

	log.Printf("[voice] connected domain=%s", domain)
	return nil
}

// Disconnect tears down the channel and releases all resources. Safe to call
// when not connected; calling it twice is the same as calling it once.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	channel := a.channel
	pumpDone := a.pumpDone
	a.channel = nil
	a.pumpDone = nil
	a.state = stateDisconnected
	a.domain = ""
	a.muted = false
	a.mu.Unlock()

	if channel == nil {
		return
	}

	channel.Close()
	if pumpDone != nil {
		<-pumpDone
	}
	a.setSpeaking(false)
	log.Printf("[voice] disconnected")
}

// ToggleMute flips the outbound microphone track without tearing down the
// session and returns the new muted state.
func (a *Adapter) ToggleMute() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateConnected || a.channel == nil {
		return false
	}

	a.muted = !a.muted
	msg := ControlMessage{
		Type: "microphone",
		Data: map[string]any{"enabled": !a.muted},
	}
	if err := a.channel.Send(context.Background(), msg); err != nil {
		log.Printf("[voice] failed to send microphone control: %v", err)
	}
	return a.muted
}

// Connected reports whether a channel is currently established.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == stateConnected
}

// Domain returns the domain of the current connection, if any.
func (a *Adapter) Domain() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.domain
}

// Speaking reports whether the assistant is currently speaking.
func (a *Adapter) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking
}

// SubscribeSpeaking registers for speaking-state changes. The indicator is a
// purely presentational signal and is never persisted. The returned cancel
// func must be called to release the subscription.
func (a *Adapter) SubscribeSpeaking() (<-chan bool, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan bool, 8)
	a.subs[id] = ch

	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	}
}

func (a *Adapter) reset() {
	a.mu.Lock()
	a.state = stateDisconnected
	a.channel = nil
	a.domain = ""
	a.mu.Unlock()
}

func (a *Adapter) setSpeaking(speaking bool) {
	a.mu.Lock()
	if a.speaking == speaking {
		a.mu.Unlock()
		return
	}
	a.speaking = speaking
	subs := make([]chan bool, 0, len(a.subs))
	for _, sub := range a.subs {
		subs = append(subs, sub)
	}
	a.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- speaking:
		default:
			// A slow subscriber misses an edge rather than blocking the pump.
		}
	}
}

func (a *Adapter) pump(channel Channel, domain string, done chan struct{}) {
	defer close(done)

	for event := range channel.Events() {
		switch e := event.(type) {
		case UserTranscript:
			a.sessions.AppendVoiceMessage(context.Background(), domain, chat.RoleUser, e.Text)
		case AssistantTranscript:
			a.sessions.AppendVoiceMessage(context.Background(), domain, chat.RoleAssistant, e.Text)
		case SpeakingStarted:
			a.setSpeaking(true)
		case SpeakingStopped:
			a.setSpeaking(false)
		case Unknown:
			log.Printf("[voice] ignoring unknown event type=%s", e.Type)
		}
	}

	// Remote end closed the channel; if nobody called Disconnect, mark the
	// adapter disconnected so a later Connect can succeed.
	a.mu.Lock()
	if a.channel == channel {
		a.channel = nil
		a.pumpDone = nil
		a.state = stateDisconnected
		a.domain = ""
		a.muted = false
	}
	a.mu.Unlock()
	a.setSpeaking(false)
}
