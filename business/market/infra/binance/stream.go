package binance

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/railgun-trading/railgun/business/market/domain"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/logger"
	"github.com/railgun-trading/railgun/internal/wsconn"
)

// StreamConfig holds the bookTicker stream configuration.
type StreamConfig struct {
	WebSocketURL string
	Symbols      []string
	StaleTimeout time.Duration
}

// Stream maintains an in-memory book of best bid/ask updated from the
// <symbol>@bookTicker combined stream. It satisfies app.TickerSource so the
// snapshot builder can read prices without touching the REST budget.
type Stream struct {
	cfg    StreamConfig
	client *wsconn.Client
	log    logger.LoggerInterface

	mu      sync.RWMutex
	tickers map[string]domain.BookTicker

	reqID atomic.Int64
}

// NewStream creates a bookTicker stream feed.
func NewStream(cfg StreamConfig, log logger.LoggerInterface) (*Stream, error) {
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = 5 * time.Second
	}

	wsCfg := wsconn.DefaultConfig(streamURL(cfg.WebSocketURL, cfg.Symbols), "binance-bookticker")
	client, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		cfg:     cfg,
		client:  client,
		log:     log,
		tickers: make(map[string]domain.BookTicker, len(cfg.Symbols)),
	}

	client.OnMessage(s.handleMessage)
	client.OnStateChange(func(state wsconn.State, err error) {
		if err != nil {
			log.Warn(context.Background(), "stream state change", "state", string(state), "error", err)
		}
	})

	return s, nil
}

// streamURL builds a combined stream URL for the given symbols.
func streamURL(base string, symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, strings.ToLower(sym)+"@bookTicker")
	}
	return strings.TrimSuffix(base, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

// Connect establishes the stream connection.
func (s *Stream) Connect(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return apperror.Wrap(err, apperror.CodeWebSocketConnectionError, "bookTicker stream")
	}
	return nil
}

// Subscribe adds symbols to the running stream.
func (s *Stream) Subscribe(ctx context.Context, symbols []string) error {
	params := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		params = append(params, strings.ToLower(sym)+"@bookTicker")
	}
	return s.client.SendJSON(ctx, wsRequest{
		Method: "SUBSCRIBE",
		Params: params,
		ID:     s.reqID.Add(1),
	})
}

// Close stops the stream.
func (s *Stream) Close() error {
	return s.client.Close()
}

// IsConnected reports whether the stream connection is up.
func (s *Stream) IsConnected() bool {
	return s.client.IsConnected()
}

func (s *Stream) handleMessage(ctx context.Context, msg []byte) {
	var combined combinedStreamEvent
	if err := json.Unmarshal(msg, &combined); err != nil {
		return
	}

	payload := combined.Data
	if payload == nil {
		// Raw stream endpoint delivers the event without the wrapper.
		payload = msg
	}

	var event bookTickerEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.Symbol == "" {
		return
	}

	bid, err := decimal.NewFromString(event.BidPrice)
	if err != nil {
		return
	}
	bidQty, err := decimal.NewFromString(event.BidQty)
	if err != nil {
		return
	}
	ask, err := decimal.NewFromString(event.AskPrice)
	if err != nil {
		return
	}
	askQty, err := decimal.NewFromString(event.AskQty)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.tickers[event.Symbol] = domain.BookTicker{
		Symbol:    event.Symbol,
		BidPrice:  bid,
		BidQty:    bidQty,
		AskPrice:  ask,
		AskQty:    askQty,
		UpdatedAt: time.Now(),
	}
	s.mu.Unlock()
}

// GetAllBookTickers returns the current in-memory book, excluding entries
// older than the stale timeout.
func (s *Stream) GetAllBookTickers(ctx context.Context) ([]domain.BookTicker, error) {
	if !s.client.IsConnected() {
		return nil, apperror.New(apperror.CodeWebSocketClosed)
	}

	cutoff := time.Now().Add(-s.cfg.StaleTimeout)

	s.mu.RLock()
	defer s.mu.RUnlock()

	tickers := make([]domain.BookTicker, 0, len(s.tickers))
	for _, t := range s.tickers {
		if t.UpdatedAt.After(cutoff) {
			tickers = append(tickers, t)
		}
	}
	return tickers, nil
}
