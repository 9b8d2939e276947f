package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/railgun-trading/railgun/business/rings/domain"
	"github.com/railgun-trading/railgun/internal/apperror"
)

var oneHundred = decimal.NewFromInt(100)

// EvaluatorConfig holds the profit thresholds.
type EvaluatorConfig struct {
	FeeRate          decimal.Decimal // per-leg taker fee, e.g. 0.001
	MinProfitPct     decimal.Decimal // below this the ring is not worth trading
	WarningProfitPct decimal.Decimal // above this the quote is assumed broken
}

// Evaluator simulates a ring against a snapshot. Pure computation, safe
// for concurrent use.
type Evaluator struct {
	cfg     EvaluatorConfig
	feeKeep decimal.Decimal // 1 - FeeRate
}

// NewEvaluator creates an evaluator.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	return &Evaluator{
		cfg:     cfg,
		feeKeep: decimal.NewFromInt(1).Sub(cfg.FeeRate),
	}
}

// Evaluate simulates investing the given stablecoin amount through the
// ring. A missing price entry means the ring is not tradable this cycle.
// A profit above the warning ceiling is treated as a broken quote, not an
// opportunity.
func (e *Evaluator) Evaluate(ring domain.Ring, snap *domain.PriceSnapshot, invest decimal.Decimal) (domain.RingResult, error) {
	if !invest.IsPositive() {
		return domain.RingResult{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("invest="+invest.String()))
	}

	buy, bridge, stable, ok := snap.Lookup(ring)
	if !ok {
		return domain.RingResult{}, apperror.New(apperror.CodeMissingSnapshotEntry,
			apperror.WithContext(ring.String()))
	}

	// Leg 1: stablecoin buys the base asset.
	grossBaseQty := invest.Div(buy.Price)
	baseQty := grossBaseQty.Mul(e.feeKeep)

	// Leg 2: base sells into the bridge asset.
	bridgeQty := baseQty.Mul(bridge.Price).Mul(e.feeKeep)

	// Leg 3: bridge sells back into the stablecoin.
	finalReturn := bridgeQty.Mul(stable.Price).Mul(e.feeKeep)

	profit := finalReturn.Sub(invest)
	profitPct := profit.Div(invest).Mul(oneHundred)

	result := domain.RingResult{
		Ring:        ring,
		Invest:      invest,
		BaseQty:     grossBaseQty,
		FinalReturn: finalReturn,
		Profit:      profit,
		ProfitPct:   profitPct,
		BuyPrice:    buy.Price,
		BridgePrice: bridge.Price,
		StablePrice: stable.Price,
		EvaluatedAt: time.Now(),
	}

	if profitPct.GreaterThan(e.cfg.WarningProfitPct) {
		return result, apperror.New(apperror.CodeProfitAnomaly,
			apperror.WithContext(ring.String()+" profit_pct="+profitPct.StringFixed(4)))
	}

	return result, nil
}

// IsProfitable reports whether a result clears the minimum threshold.
// A profit exactly at the threshold does not clear it.
func (e *Evaluator) IsProfitable(r domain.RingResult) bool {
	return r.ProfitPct.GreaterThan(e.cfg.MinProfitPct)
}
