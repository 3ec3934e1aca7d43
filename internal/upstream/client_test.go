package upstream

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

func TestState_String(t *testing.T) {
	cases := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		Reconnecting: "reconnecting",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestState_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Connected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"connected"` {
		t.Errorf("MarshalJSON = %s, want \"connected\"", data)
	}
}

func TestNewClient_DefaultStateIsDisconnected(t *testing.T) {
	c := NewClient("ws://example.invalid/feed", func([]byte) {}, Options{})
	if c.State() != Disconnected {
		t.Errorf("expected initial state Disconnected, got %s", c.State())
	}
}

func waitForState(t *testing.T, c *Client, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s, stuck at %s", want, c.State())
}

func TestConnectWithRetry_ReachesConnectedThenReconnectingOnDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewClient(url, func([]byte) {}, Options{
		InitialReconnectDelay: 10 * time.Millisecond,
		MaxReconnectDelay:     20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go client.ConnectWithRetry(ctx)

	waitForState(t, client, Reconnecting, 2*time.Second)

	cancel()
	waitForState(t, client, Disconnected, 2*time.Second)
}

func TestGetStats_ReflectsStateAndURL(t *testing.T) {
	client := NewClient("ws://example.invalid/feed", func([]byte) {}, Options{})
	stats := client.GetStats()
	if stats.State != Disconnected {
		t.Errorf("expected State=disconnected, got %s", stats.State)
	}
	if stats.URL != "ws://example.invalid/feed" {
		t.Errorf("URL = %q, want ws://example.invalid/feed", stats.URL)
	}
}
