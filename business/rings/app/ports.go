// Package app contains application services and port definitions for the rings context.
package app

import (
	"context"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
)

// TickerSource provides one cycle's worth of book tickers.
type TickerSource interface {
	GetAllBookTickers(ctx context.Context) ([]marketDomain.BookTicker, error)
}

// ExchangeInfoSource provides symbol trading rules.
type ExchangeInfoSource interface {
	GetExchangeInfo(ctx context.Context) ([]marketDomain.SymbolConstraints, error)
}
