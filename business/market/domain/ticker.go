// Package domain contains market data types for the market context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookTicker is the best bid/ask for a symbol at a point in time.
type BookTicker struct {
	Symbol    string
	BidPrice  decimal.Decimal
	BidQty    decimal.Decimal
	AskPrice  decimal.Decimal
	AskQty    decimal.Decimal
	UpdatedAt time.Time
}

// Mid returns the midpoint between best bid and best ask.
func (t BookTicker) Mid() decimal.Decimal {
	return t.BidPrice.Add(t.AskPrice).Div(decimal.NewFromInt(2))
}

// IsZero reports whether the ticker carries no prices.
func (t BookTicker) IsZero() bool {
	return t.BidPrice.IsZero() && t.AskPrice.IsZero()
}

// Balance is a spot account balance for a single asset.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}
