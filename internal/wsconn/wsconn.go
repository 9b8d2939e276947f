// Package wsconn provides a production-grade WebSocket client with reconnection.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// ErrClosed is returned when operating on a closed client.
var ErrClosed = errors.New("wsconn: client closed")

// ErrNotConnected is returned when sending without an established connection.
var ErrNotConnected = errors.New("wsconn: not connected")

// MessageHandler receives raw messages from the connection.
type MessageHandler func(ctx context.Context, msg []byte)

// StateChangeHandler is notified on every state transition. err is non-nil
// when the transition was caused by a failure.
type StateChangeHandler func(state State, err error)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64 // 0 = library default
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0, // infinite
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
	}
}

// Client is a production-grade WebSocket client.
type Client struct {
	config Config

	mu      sync.RWMutex
	state   State
	conn    *websocket.Conn
	closed  bool
	readCtx context.CancelFunc

	onMessage     MessageHandler
	onStateChange StateChangeHandler

	wg sync.WaitGroup
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("wsconn: url is required")
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = 30 * time.Second
	}

	return &Client{
		config: config,
		state:  StateDisconnected,
	}, nil
}

// OnMessage registers the message handler. Must be called before Connect.
func (c *Client) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	c.onMessage = handler
	c.mu.Unlock()
}

// OnStateChange registers the state transition handler. Must be called
// before Connect.
func (c *Client) OnStateChange(handler StateChangeHandler) {
	c.mu.Lock()
	c.onStateChange = handler
	c.mu.Unlock()
}

// Connect establishes the WebSocket connection and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	c.setState(StateConnecting, nil)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected, err)
		return fmt.Errorf("wsconn: connect %s: %w", c.config.URL, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.readCtx = cancel
	c.mu.Unlock()

	c.setState(StateConnected, nil)

	c.wg.Add(1)
	go c.readLoop(readCtx, conn)

	if c.config.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(readCtx, conn)
	}

	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		return nil, err
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}
	return conn, nil
}

// Send sends a raw text message through the WebSocket.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	return conn.Write(ctx, websocket.MessageText, msg)
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsconn: marshal: %w", err)
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the connection is established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close gracefully closes the WebSocket connection. Safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	cancel := c.readCtx
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client closing")
	}

	c.wg.Wait()
	c.setState(StateClosed, nil)
	return nil
}

// readLoop reads messages until the connection fails, then reconnects.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return
			}
			c.reconnect(ctx, err)
			return
		}

		c.mu.RLock()
		handler := c.onMessage
		c.mu.RUnlock()

		if handler != nil {
			handler(ctx, data)
		}
	}
}

// pingLoop keeps the connection alive.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.config.PongTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil || c.isClosed() {
					return
				}
				// The read loop will observe the broken connection and
				// drive the reconnect.
				conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

// reconnect retries with exponential backoff and jitter.
func (c *Client) reconnect(ctx context.Context, cause error) {
	c.setState(StateReconnecting, cause)

	backoff := c.config.InitialBackoff
	attempts := 0

	for {
		if c.isClosed() || ctx.Err() != nil {
			return
		}
		if c.config.MaxReconnects > 0 && attempts >= c.config.MaxReconnects {
			c.setState(StateDisconnected, cause)
			return
		}

		var jitter time.Duration
		if half := int64(backoff) / 2; half > 0 {
			jitter = time.Duration(rand.Int63n(half))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff + jitter):
		}

		attempts++

		conn, err := c.dial(ctx)
		if err != nil {
			cause = err
			backoff *= 2
			if backoff > c.config.MaxBackoff {
				backoff = c.config.MaxBackoff
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "client closing")
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.setState(StateConnected, nil)

		c.wg.Add(1)
		go c.readLoop(ctx, conn)

		if c.config.PingInterval > 0 {
			c.wg.Add(1)
			go c.pingLoop(ctx, conn)
		}

		return
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	c.state = state
	handler := c.onStateChange
	c.mu.Unlock()

	if handler != nil {
		handler(state, err)
	}
}
