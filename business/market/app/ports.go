// Package app contains application services and port definitions for the market context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/railgun-trading/railgun/business/market/domain"
)

// ExchangeClient defines the interface for spot exchange access.
type ExchangeClient interface {
	// GetAllBookTickers retrieves best bid/ask for every traded symbol.
	GetAllBookTickers(ctx context.Context) ([]domain.BookTicker, error)

	// GetBookTicker retrieves best bid/ask for one symbol.
	GetBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error)

	// GetExchangeInfo retrieves trading rules for all symbols.
	GetExchangeInfo(ctx context.Context) ([]domain.SymbolConstraints, error)

	// GetBalance retrieves the free spot balance for one asset.
	GetBalance(ctx context.Context, asset string) (domain.Balance, error)

	// PlaceLimitOrder submits a limit order and returns the initial report.
	PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, qty, price decimal.Decimal) (domain.Order, error)

	// PlaceMarketOrder submits a market order and returns the final report.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal) (domain.Order, error)

	// GetOrder retrieves the current state of an order.
	GetOrder(ctx context.Context, symbol string, orderID int64) (domain.Order, error)

	// CancelOrder cancels an open order and returns its final report.
	CancelOrder(ctx context.Context, symbol string, orderID int64) (domain.Order, error)
}

// TickerSource provides current book tickers. The REST client satisfies it
// directly; the stream feed satisfies it from its in-memory book.
type TickerSource interface {
	GetAllBookTickers(ctx context.Context) ([]domain.BookTicker, error)
}
