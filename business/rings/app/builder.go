package app

import (
	"time"

	"github.com/shopspring/decimal"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
	"github.com/railgun-trading/railgun/business/rings/domain"
)

// TickOffsets are the per-leg price bias multipliers, in ticks. The buy
// leg leans above the bid, the sell legs lean below the ask, trading a
// sliver of margin for prompt fills.
type TickOffsets struct {
	Buy    decimal.Decimal
	Bridge decimal.Decimal
	Stable decimal.Decimal
}

// SnapshotBuilder turns raw tickers into a biased price snapshot.
type SnapshotBuilder struct {
	constraints marketDomain.ConstraintSet
	offsets     TickOffsets
}

// NewSnapshotBuilder creates a builder over the given trading rules.
func NewSnapshotBuilder(constraints marketDomain.ConstraintSet, offsets TickOffsets) *SnapshotBuilder {
	return &SnapshotBuilder{constraints: constraints, offsets: offsets}
}

// Build produces the per-leg price tables from one batch of tickers.
// Symbols with no known constraints or an empty book are skipped: a
// missing entry later reads as "ring not tradable this cycle".
func (b *SnapshotBuilder) Build(tickers []marketDomain.BookTicker) *domain.PriceSnapshot {
	snap := &domain.PriceSnapshot{
		Buy:     make(map[string]domain.PriceLevel, len(tickers)),
		Bridge:  make(map[string]domain.PriceLevel, len(tickers)),
		Stable:  make(map[string]domain.PriceLevel, len(tickers)),
		TakenAt: time.Now(),
	}

	for _, t := range tickers {
		c, ok := b.constraints.Get(t.Symbol)
		if !ok || t.IsZero() {
			continue
		}

		tick := c.StepPrice

		if buy := biasPrice(t.BidPrice, tick, b.offsets.Buy, c); buy.IsPositive() {
			snap.Buy[t.Symbol] = domain.PriceLevel{Price: buy, Qty: t.BidQty}
		}
		if bridge := biasPrice(t.AskPrice, tick, b.offsets.Bridge, c); bridge.IsPositive() {
			snap.Bridge[t.Symbol] = domain.PriceLevel{Price: bridge, Qty: t.AskQty}
		}
		if stable := biasPrice(t.AskPrice, tick, b.offsets.Stable, c); stable.IsPositive() {
			snap.Stable[t.Symbol] = domain.PriceLevel{Price: stable, Qty: t.AskQty}
		}
	}

	return snap
}

// biasPrice shifts a price by offset ticks and truncates it onto the tick
// grid. Prices that would cross zero are clamped to one tick.
func biasPrice(price, tick, offset decimal.Decimal, c marketDomain.SymbolConstraints) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}

	biased := price.Add(tick.Mul(offset))
	if !biased.IsPositive() {
		biased = tick
	}
	return c.NormalizePrice(biased)
}
