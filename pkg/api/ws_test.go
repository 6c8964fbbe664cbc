package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.clientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.clientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	h.Broadcast("campaign.progress", map[string]int{"sent": 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var event wsEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatal(err)
	}
	if event.Type != "campaign.progress" {
		t.Errorf("expected campaign.progress event, got %q", event.Type)
	}
	data, ok := event.Data.(map[string]interface{})
	if !ok || data["sent"].(float64) != 3 {
		t.Errorf("payload lost in broadcast: %v", event.Data)
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn := dialHub(t, h)
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)
}

func TestHub_DropsSaturatedClient(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// A client whose send buffer holds a single frame and whose write pump
	// never runs: the second delivery must evict it instead of blocking Run.
	client := &wsClient{send: make(chan []byte, 1), hub: h}
	h.register <- client
	waitForClients(t, h, 1)

	h.Broadcast("connector.state", "a")
	h.Broadcast("connector.state", "b")
	h.Broadcast("connector.state", "c")
	waitForClients(t, h, 0)

	// The evicted client's channel is closed after handing over the frames
	// that fit.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-client.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("dropped client's send channel never closed")
		}
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	client := &wsClient{send: make(chan []byte, 1), hub: h}
	h.register <- client
	waitForClients(t, h, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop on cancellation")
	}
	if h.clientCount() != 0 {
		t.Error("shutdown should release all clients")
	}
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel closed on shutdown")
		}
	default:
		t.Error("expected send channel closed on shutdown")
	}
}
