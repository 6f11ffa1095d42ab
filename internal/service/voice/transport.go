package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ControlMessage is an outbound command on the channel: session
// configuration, microphone control and similar.
type ControlMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ChannelConfig parameterizes one channel negotiation.
type ChannelConfig struct {
	URL              string
	Domain           string
	Instructions     string
	KnowledgeBase    string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	MaxRetries       int
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	return c
}

// Channel is one open duplex event channel to the voice gateway.
type Channel interface {
	Send(ctx context.Context, msg ControlMessage) error
	// Events yields decoded inbound events; the channel is closed when the
	// connection ends.
	Events() <-chan Event
	Close() error
}

// Transport opens channels. The websocket implementation is the production
// path; tests substitute an in-process fake.
type Transport interface {
	Open(ctx context.Context, cfg ChannelConfig) (Channel, error)
}

// WebsocketTransport dials the voice gateway over websocket with bounded
// retries and keeps the connection alive with pings.
type WebsocketTransport struct{}

// NewWebsocketTransport returns the production transport.
func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{}
}

// Open dials with linear backoff up to cfg.MaxRetries attempts.
func (t *WebsocketTransport) Open(ctx context.Context, cfg ChannelConfig) (Channel, error) {
	cfg = cfg.withDefaults()
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		ch, err := t.dial(ctx, cfg)
		if err == nil {
			return ch, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		retryDelay := time.Duration(i+1) * time.Second
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("failed to connect after %d retries, last error: %w", retries, lastErr)
}

func (t *WebsocketTransport) dial(ctx context.Context, cfg ChannelConfig) (Channel, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	ch := &websocketChannel{
		conn:   conn,
		cfg:    cfg,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go ch.readLoop()
	go ch.pingLoop()

	return ch, nil
}

type websocketChannel struct {
	conn    *websocket.Conn
	cfg     ChannelConfig
	events  chan Event
	done    chan struct{}
	writeMu sync.Mutex
	closer  sync.Once
}

func (c *websocketChannel) Send(ctx context.Context, msg ControlMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal control message: %w", err)
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
	}
	return nil
}

func (c *websocketChannel) Events() <-chan Event {
	return c.events
}

func (c *websocketChannel) Close() error {
	c.closer.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

func (c *websocketChannel) readLoop() {
	defer close(c.events)
	defer c.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[voice] read error: %v", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		event, err := DecodeEvent(raw)
		if err != nil {
			log.Printf("[voice] dropping malformed frame: %v", err)
			continue
		}

		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

func (c *websocketChannel) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.Close()
				return
			}
		}
	}
}
