package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"powtoken/internal/domain"
	"powtoken/internal/observability"
)

// HubConfig configures websocket delivery.
type HubConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a subscriber may stay silent (pongs included).
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SendBuffer is the per-subscriber queue length. A subscriber whose
	// queue is full is disconnected.
	SendBuffer int
}

// DefaultHubConfig returns default websocket configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   256,
	}
}

// Hub pushes events to websocket subscribers. A subscriber may narrow its
// feed with the "account" and "symbol" query parameters.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn    *websocket.Conn
	send    chan EventMessage
	account string
	symbol  string
	once    sync.Once
	done    chan struct{}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) wants(m EventMessage) bool {
	if s.account != "" && !m.Involves(s.account) {
		return false
	}
	return s.symbol == "" || s.symbol == m.Symbol
}

// NewHub creates a hub.
func NewHub(config *HubConfig, logger *zap.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.Named("ws"),
		clients: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until either side closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	s := &subscriber{
		conn:    conn,
		send:    make(chan EventMessage, h.config.SendBuffer),
		account: r.URL.Query().Get("account"),
		symbol:  r.URL.Query().Get("symbol"),
		done:    make(chan struct{}),
	}
	if !h.register(s) {
		conn.Close()
		return
	}
	defer h.unregister(s)

	go h.writeLoop(s)
	h.readLoop(s)
}

func (h *Hub) register(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[s] = struct{}{}
	observability.UpdateWSClients(len(h.clients))
	return true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	delete(h.clients, s)
	n := len(h.clients)
	h.mu.Unlock()

	observability.UpdateWSClients(n)
	s.stop()
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *Hub) readLoop(s *subscriber) {
	s.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop sends queued events and periodic pings.
func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case m := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := s.conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Notify implements ledger.Notifier. It never blocks on a slow subscriber.
func (h *Hub) Notify(_ context.Context, events []*domain.LedgerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, e := range events {
		m := NewEventMessage(e)
		for s := range h.clients {
			if !s.wants(m) {
				continue
			}
			select {
			case s.send <- m:
			case <-s.done:
			default:
				observability.RecordNotifierFailure("websocket")
				h.logger.Warn("dropping slow subscriber", zap.String("account", s.account))
				s.stop()
			}
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.clients {
		s.stop()
	}
}
