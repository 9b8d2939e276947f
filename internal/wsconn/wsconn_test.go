package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// wsServer runs a test WebSocket endpoint driven by handler.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		if handler != nil {
			handler(conn)
		}
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, msgType, data); err != nil {
			return
		}
	}
}

// newTestClient builds a client with pings disabled so short-lived test
// servers don't see keepalive traffic.
func newTestClient(t *testing.T, url string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig(url, "test")
	cfg.PingInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestClient_ConnectTransitions(t *testing.T) {
	srv, url := wsServer(t, func(conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	client := newTestClient(t, url, nil)
	defer client.Close()

	var mu sync.Mutex
	var states []State
	client.OnStateChange(func(state State, err error) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Errorf("state transitions = %v, want [connecting connected ...]", states)
	}
}

func TestClient_ConnectRefused(t *testing.T) {
	// Nothing listens on this port.
	client := newTestClient(t, "ws://localhost:59999", nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err == nil {
		t.Fatal("Connect succeeded against a dead endpoint")
	}
	if got := client.State(); got != StateDisconnected {
		t.Errorf("state = %v, want %v", got, StateDisconnected)
	}
}

func TestClient_SendJSON(t *testing.T) {
	var mu sync.Mutex
	var received []byte
	srv, url := wsServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		mu.Lock()
		received = data
		mu.Unlock()
	})
	defer srv.Close()

	client := newTestClient(t, url, nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// The shape the stream feed sends for a live subscription.
	payload := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": []string{"bnbbusd@bookTicker"},
		"id":     1,
	}
	if err := client.SendJSON(ctx, payload); err != nil {
		t.Fatalf("SendJSON: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(received) == 0 {
		t.Fatal("server received nothing")
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(received, &parsed); err != nil {
		t.Fatalf("payload is not JSON: %v (%s)", err, received)
	}
	if parsed["method"] != "SUBSCRIBE" {
		t.Errorf("method = %v, want SUBSCRIBE", parsed["method"])
	}
}

func TestClient_MessageHandler(t *testing.T) {
	srv, url := wsServer(t, echo)
	defer srv.Close()

	client := newTestClient(t, url, nil)
	defer client.Close()

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})
	client.OnMessage(func(ctx context.Context, msg []byte) {
		mu.Lock()
		got = msg
		mu.Unlock()
		close(done)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	want := []byte(`{"stream":"bnbbusd@bookTicker"}`)
	if err := client.Send(ctx, want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("echo never arrived")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != string(want) {
		t.Errorf("message = %s, want %s", got, want)
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	srv, url := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	client := newTestClient(t, url, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := client.State(); got != StateClosed {
		t.Errorf("state = %v, want %v", got, StateClosed)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := client.Send(ctx, []byte("x")); err != ErrClosed {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestClient_OversizedMessageDropsConnection(t *testing.T) {
	srv, url := wsServer(t, func(conn *websocket.Conn) {
		big := make([]byte, 64*1024)
		for i := range big {
			big[i] = 'A'
		}
		conn.Write(context.Background(), websocket.MessageText, big)
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	client := newTestClient(t, url, func(cfg *Config) {
		cfg.MaxMessageSize = 100
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if state := client.State(); state == StateConnected {
		t.Error("still connected after an oversized frame")
	}
}
