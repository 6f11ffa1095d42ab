package voice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightdeck/aerochat/internal/config"
	"github.com/flightdeck/aerochat/internal/model/chat"
	"github.com/flightdeck/aerochat/internal/model/fleet"
	"github.com/flightdeck/aerochat/internal/service/voice"
)

type fakeChannel struct {
	mu      sync.Mutex
	events  chan voice.Event
	sent    []voice.ControlMessage
	sendErr error
	closes  int
	closer  sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan voice.Event, 16)}
}

func (c *fakeChannel) Send(_ context.Context, msg voice.ControlMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Events() <-chan voice.Event { return c.events }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.closer.Do(func() { close(c.events) })
	return nil
}

func (c *fakeChannel) sentMessages() []voice.ControlMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]voice.ControlMessage(nil), c.sent...)
}

type fakeTransport struct {
	mu      sync.Mutex
	channel *fakeChannel
	openErr error
	opened  []voice.ChannelConfig
}

func (t *fakeTransport) Open(_ context.Context, cfg voice.ChannelConfig) (voice.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opened = append(t.opened, cfg)
	if t.openErr != nil {
		return nil, t.openErr
	}
	if t.channel == nil {
		t.channel = newFakeChannel()
	}
	return t.channel, nil
}

func (t *fakeTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opened)
}

type appendedMessage struct {
	domain  string
	role    chat.Role
	content string
}

type recordingAppender struct {
	mu     sync.Mutex
	msgs   []appendedMessage
	notify chan struct{}
}

func newRecordingAppender() *recordingAppender {
	return &recordingAppender{notify: make(chan struct{}, 16)}
}

func (r *recordingAppender) AppendVoiceMessage(_ context.Context, domain string, role chat.Role, content string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, appendedMessage{domain: domain, role: role, content: content})
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recordingAppender) messages() []appendedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]appendedMessage(nil), r.msgs...)
}

func (r *recordingAppender) waitForAppend(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcript append")
	}
}

func newAdapter(transport voice.Transport, appender voice.Appender) *voice.Adapter {
	registry := fleet.NewMemoryRegistry(fleet.Seed())
	return voice.NewAdapter(transport, appender, registry, config.VoiceConfig{GatewayURL: "ws://voice.test/channel"})
}

func TestConnectSendsSessionConfig(t *testing.T) {
	transport := &fakeTransport{}
	adapter := newAdapter(transport, newRecordingAppender())
	defer adapter.Disconnect()

	require.NoError(t, adapter.Connect(context.Background(), "a320"))
	assert.True(t, adapter.Connected())
	assert.Equal(t, "a320", adapter.Domain())

	sent := transport.channel.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "session_config", sent[0].Type)

	data, ok := sent[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a320", data["domain"])
	assert.Equal(t, "kb-a320", data["knowledgeBase"])
	assert.NotEmpty(t, data["instructions"])
}

func TestConnectIsIdempotent(t *testing.T) {
	transport := &fakeTransport{}
	adapter := newAdapter(transport, newRecordingAppender())
	defer adapter.Disconnect()

	require.NoError(t, adapter.Connect(context.Background(), "a330"))
	require.NoError(t, adapter.Connect(context.Background(), "a330"))
	require.NoError(t, adapter.Connect(context.Background(), "a350"))

	assert.Equal(t, 1, transport.openCount(), "connect while connected must be a no-op")
}

func TestConnectFailureLeavesDisconnected(t *testing.T) {
	transport := &fakeTransport{openErr: errors.New("gateway refused")}
	adapter := newAdapter(transport, newRecordingAppender())

	err := adapter.Connect(context.Background(), "a320")
	require.Error(t, err)

	var connErr *voice.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "a320", connErr.Domain)
	assert.False(t, adapter.Connected())

	// The failure is not sticky: a later attempt can succeed.
	transport.mu.Lock()
	transport.openErr = nil
	transport.mu.Unlock()
	require.NoError(t, adapter.Connect(context.Background(), "a320"))
	assert.True(t, adapter.Connected())
	adapter.Disconnect()
}

func TestConnectUnknownDomain(t *testing.T) {
	adapter := newAdapter(&fakeTransport{}, newRecordingAppender())

	err := adapter.Connect(context.Background(), "concorde")
	require.Error(t, err)
	assert.False(t, adapter.Connected())
}

func TestConnectConfigSendFailureClosesChannel(t *testing.T) {
	channel := newFakeChannel()
	channel.sendErr = errors.New("write refused")
	transport := &fakeTransport{channel: channel}
	adapter := newAdapter(transport, newRecordingAppender())

	err := adapter.Connect(context.Background(), "a320")
	require.Error(t, err)
	assert.False(t, adapter.Connected())

	channel.mu.Lock()
	closes := channel.closes
	channel.mu.Unlock()
	assert.GreaterOrEqual(t, closes, 1, "a half-open channel must be released before reporting the error")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	transport := &fakeTransport{}
	adapter := newAdapter(transport, newRecordingAppender())

	// Never connected: a no-op.
	adapter.Disconnect()
	assert.False(t, adapter.Connected())

	require.NoError(t, adapter.Connect(context.Background(), "a320"))
	adapter.Disconnect()
	adapter.Disconnect()

	assert.False(t, adapter.Connected())
	assert.Empty(t, adapter.Domain())
}

func TestTranscriptsFeedSession(t *testing.T) {
	transport := &fakeTransport{}
	appender := newRecordingAppender()
	adapter := newAdapter(transport, appender)
	defer adapter.Disconnect()

	require.NoError(t, adapter.Connect(context.Background(), "a350"))

	transport.channel.events <- voice.UserTranscript{Text: "request descent"}
	transport.channel.events <- voice.AssistantTranscript{Text: "descent approved"}
	appender.waitForAppend(t)
	appender.waitForAppend(t)

	msgs := appender.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, appendedMessage{domain: "a350", role: chat.RoleUser, content: "request descent"}, msgs[0])
	assert.Equal(t, appendedMessage{domain: "a350", role: chat.RoleAssistant, content: "descent approved"}, msgs[1])
}

func TestSpeakingIndicator(t *testing.T) {
	transport := &fakeTransport{}
	adapter := newAdapter(transport, newRecordingAppender())
	defer adapter.Disconnect()

	updates, cancel := adapter.SubscribeSpeaking()
	defer cancel()

	require.NoError(t, adapter.Connect(context.Background(), "briefing"))

	transport.channel.events <- voice.SpeakingStarted{}
	select {
	case speaking := <-updates:
		assert.True(t, speaking)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for speaking update")
	}
	assert.True(t, adapter.Speaking())

	transport.channel.events <- voice.SpeakingStopped{}
	select {
	case speaking := <-updates:
		assert.False(t, speaking)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for speaking update")
	}
	assert.False(t, adapter.Speaking())
}

func TestToggleMute(t *testing.T) {
	transport := &fakeTransport{}
	adapter := newAdapter(transport, newRecordingAppender())

	assert.False(t, adapter.ToggleMute(), "mute is a no-op while disconnected")

	require.NoError(t, adapter.Connect(context.Background(), "a320"))
	defer adapter.Disconnect()

	assert.True(t, adapter.ToggleMute())
	assert.False(t, adapter.ToggleMute())

	var mic []voice.ControlMessage
	for _, msg := range transport.channel.sentMessages() {
		if msg.Type == "microphone" {
			mic = append(mic, msg)
		}
	}
	require.Len(t, mic, 2)
	assert.Equal(t, map[string]any{"enabled": false}, mic[0].Data)
	assert.Equal(t, map[string]any{"enabled": true}, mic[1].Data)
}

func TestUnknownEventsAreIgnored(t *testing.T) {
	transport := &fakeTransport{}
	appender := newRecordingAppender()
	adapter := newAdapter(transport, appender)
	defer adapter.Disconnect()

	require.NoError(t, adapter.Connect(context.Background(), "a320"))

	transport.channel.events <- voice.Unknown{Type: "latency_report"}
	transport.channel.events <- voice.UserTranscript{Text: "still here"}
	appender.waitForAppend(t)

	msgs := appender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "still here", msgs[0].content)
}

func TestRemoteCloseAllowsReconnect(t *testing.T) {
	transport := &fakeTransport{}
	adapter := newAdapter(transport, newRecordingAppender())

	require.NoError(t, adapter.Connect(context.Background(), "a320"))
	first := transport.channel

	first.Close()

	// The pump notices the closed channel and resets the adapter.
	require.Eventually(t, func() bool { return !adapter.Connected() }, 2*time.Second, 10*time.Millisecond)

	transport.mu.Lock()
	transport.channel = nil
	transport.mu.Unlock()

	require.NoError(t, adapter.Connect(context.Background(), "a330"))
	assert.True(t, adapter.Connected())
	assert.Equal(t, "a330", adapter.Domain())
	adapter.Disconnect()
}
