package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"powtoken/internal/domain"
	"powtoken/internal/notify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base    string
		filter  Filter
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", Filter{}, "ws://localhost:8080/ws", false},
		{"https://ledger.example/", Filter{Account: "alice"}, "wss://ledger.example/ws?account=alice", false},
		{"ws://h/api", Filter{Account: "bob", Symbol: "TOK"}, "ws://h/api/ws?account=bob&symbol=TOK", false},
		{"ftp://h", Filter{}, "", true},
	}

	for _, tt := range tests {
		got, err := WebsocketURL(tt.base, tt.filter)
		if (err != nil) != tt.wantErr {
			t.Errorf("WebsocketURL(%q) error = %v, wantErr %v", tt.base, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("WebsocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscriber_ReceivesHubEvents(t *testing.T) {
	hub := notify.NewHub(nil, nil)
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	server := httptest.NewServer(mux)
	defer server.Close()
	defer hub.Close()

	sub, err := Subscribe(context.Background(), server.URL, Filter{Account: "bob"}, nil, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 })

	sym := domain.NewSymbol("TOK", 4)
	hub.Notify(context.Background(), []*domain.LedgerEvent{
		{EventID: "e1", Kind: domain.EventTransfer, Symbol: "TOK", From: "alice", To: "carol", Quantity: domain.NewAsset(1, sym)},
		{EventID: "e2", Kind: domain.EventTransfer, Symbol: "TOK", From: "alice", To: "bob", Quantity: domain.NewAsset(2, sym)},
	})

	select {
	case m := <-sub.Events():
		if m.EventID != "e2" {
			t.Errorf("expected e2, got %s", m.EventID)
		}
		if m.Quantity != "0.0002 TOK" {
			t.Errorf("expected 0.0002 TOK, got %s", m.Quantity)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestSubscriber_Reconnects(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		// Drop the first connection straight away.
		if conns.Add(1) == 1 {
			return
		}
		c.WriteJSON(notify.EventMessage{EventID: "after-reconnect", Kind: "MINE", Symbol: "TOK"})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultSubscriberConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond

	sub, err := Subscribe(context.Background(), server.URL, Filter{}, &cfg, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case m := <-sub.Events():
		if m.EventID != "after-reconnect" {
			t.Errorf("unexpected event %s", m.EventID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event after reconnect")
	}
	if sub.Reconnects() < 1 {
		t.Errorf("expected at least one reconnect, got %d", sub.Reconnects())
	}
}

func TestSubscriber_CloseIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	sub, err := Subscribe(context.Background(), server.URL, Filter{}, nil, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("expected events channel to be closed")
	}
}
