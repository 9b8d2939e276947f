// Package app contains the trading application services.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
	ringsApp "github.com/railgun-trading/railgun/business/rings/app"
	"github.com/railgun-trading/railgun/business/trading/domain"
)

// ExchangePort is the slice of exchange operations the trading context
// needs to place, track and unwind orders.
type ExchangePort interface {
	GetBookTicker(ctx context.Context, symbol string) (marketDomain.BookTicker, error)
	GetBalance(ctx context.Context, asset string) (marketDomain.Balance, error)
	PlaceLimitOrder(ctx context.Context, symbol string, side marketDomain.Side, qty, price decimal.Decimal) (marketDomain.Order, error)
	GetOrder(ctx context.Context, symbol string, orderID int64) (marketDomain.Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (marketDomain.Order, error)
}

// DetectionSource runs opportunity detection cycles.
type DetectionSource interface {
	DetectOnce(ctx context.Context, invest decimal.Decimal) (ringsApp.Detection, error)
	ClearStability()
}

// Reporter receives per-cycle results for presentation.
type Reporter interface {
	Start(ctx context.Context) error
	ReportDetection(detection ringsApp.Detection)
	ReportCycle(report domain.CycleReport)
	Stop() error
}
