package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"powtoken/internal/notify"
)

// SubscriberConfig configures Subscriber behavior.
type SubscriberConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the capacity of the events channel.
	Buffer int
}

// DefaultSubscriberConfig returns default configuration.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
	}
}

// Filter narrows a subscription. Empty fields match everything.
type Filter struct {
	Account string
	Symbol  string
}

// Subscriber streams ledger events from a server's /ws endpoint and
// reconnects with exponential backoff when the connection drops.
// Events committed while disconnected are not replayed; use
// HTTPClient.Events to catch up.
type Subscriber struct {
	endpoint string
	config   SubscriberConfig
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	events chan notify.EventMessage

	// done signals shutdown; cancelling ctx aborts an in-flight dial
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnects atomic.Uint64
}

// WebsocketURL turns a server base URL into its /ws URL with filter applied.
func WebsocketURL(base string, filter Filter) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"

	q := url.Values{}
	if filter.Account != "" {
		q.Set("account", filter.Account)
	}
	if filter.Symbol != "" {
		q.Set("symbol", filter.Symbol)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe connects to the server at base and starts streaming events.
func Subscribe(ctx context.Context, base string, filter Filter, config *SubscriberConfig, logger *zap.Logger) (*Subscriber, error) {
	endpoint, err := WebsocketURL(base, filter)
	if err != nil {
		return nil, err
	}
	cfg := DefaultSubscriberConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Subscriber{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.Named("subscriber"),
		events:   make(chan notify.EventMessage, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	// Start reader goroutine
	s.wg.Add(1)
	go s.readLoop()

	// Start ping goroutine
	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Events returns the stream of events. It is closed by Close.
func (s *Subscriber) Events() <-chan notify.EventMessage {
	return s.events
}

// Reconnects returns how many times the connection was re-established.
func (s *Subscriber) Reconnects() uint64 {
	return s.reconnects.Load()
}

// connect establishes WebSocket connection.
func (s *Subscriber) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed.Load() {
		conn.Close()
		return fmt.Errorf("subscriber closed")
	}
	s.conn = conn
	return nil
}

// Close closes the connection and the events channel.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)
	s.cancel()

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.events)
	return nil
}

// readLoop reads messages and reconnects on failure.
func (s *Subscriber) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnect(reconnectDelay) {
				// Increase delay for next reconnect (exponential backoff)
				reconnectDelay *= 2
				if reconnectDelay > s.config.MaxReconnectDelay {
					reconnectDelay = s.config.MaxReconnectDelay
				}
				continue
			}
			reconnectDelay = s.config.ReconnectDelay
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Warn("connection lost", zap.String("endpoint", s.endpoint), zap.Error(err))

			s.connMu.Lock()
			if s.conn == conn {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()
			continue
		}

		var m notify.EventMessage
		if err := json.Unmarshal(message, &m); err != nil {
			s.logger.Debug("skipping malformed message", zap.Error(err))
			continue
		}

		// Block until we can send - never drop events
		select {
		case s.events <- m:
		case <-s.done:
			return
		}
	}
}

// reconnect waits delay and dials again. It reports whether a connection
// was established.
func (s *Subscriber) reconnect(delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.logger.Debug("reconnect failed", zap.Duration("delay", delay), zap.Error(err))
		return false
	}
	s.reconnects.Add(1)
	s.logger.Info("reconnected", zap.String("endpoint", s.endpoint))
	return true
}

// pingLoop sends periodic ping frames to keep connection alive.
func (s *Subscriber) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				// Connection might be dead, reader will handle reconnect
				_ = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}
