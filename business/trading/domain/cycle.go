// Package domain contains the trade cycle model for the trading context.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
	ringsDomain "github.com/railgun-trading/railgun/business/rings/domain"
	"github.com/railgun-trading/railgun/internal/apperror"
)

// Outcome classifies how a trade cycle ended.
type Outcome string

const (
	// OutcomeCompleted means every leg reached a terminal fill and the
	// resulting stablecoin balance is confirmed.
	OutcomeCompleted Outcome = "COMPLETED"
	// OutcomeAbandoned means the cycle stopped early but every position
	// is accounted for. Trading may continue.
	OutcomeAbandoned Outcome = "ABANDONED"
	// OutcomeFailed means the capital state could not be confirmed. The
	// control loop must halt rather than trade on unknown balances.
	OutcomeFailed Outcome = "FAILED"
)

// Leg is one order of a trade cycle, sized and priced from a snapshot.
type Leg struct {
	Symbol string
	Side   marketDomain.Side
	Qty    decimal.Decimal
	Price  decimal.Decimal
}

// Plan holds the three legs of a ring trade in execution order: buy the
// base asset with the stablecoin, sell the base for the bridge, sell the
// bridge back to the stablecoin. Quantities are sized analytically from
// the evaluated snapshot and normalized to each symbol's trading grid.
type Plan struct {
	Ring   ringsDomain.Ring
	Invest decimal.Decimal
	Legs   [3]Leg
}

// NewPlan sizes the three legs of a ring trade from an evaluation result.
// Each leg's quantity assumes the previous leg fills completely, net of
// the taker fee, and is truncated to the symbol's lot grid.
func NewPlan(result ringsDomain.RingResult, constraints marketDomain.ConstraintSet, feeRate decimal.Decimal) (Plan, error) {
	feeKeep := decimal.NewFromInt(1).Sub(feeRate)

	buyC, ok := constraints.Get(result.Ring.BuySymbol)
	if !ok {
		return Plan{}, apperror.New(apperror.CodeUnknownSymbol, apperror.WithContext(result.Ring.BuySymbol))
	}
	bridgeC, ok := constraints.Get(result.Ring.BridgeSymbol)
	if !ok {
		return Plan{}, apperror.New(apperror.CodeUnknownSymbol, apperror.WithContext(result.Ring.BridgeSymbol))
	}
	stableC, ok := constraints.Get(result.Ring.StableSymbol)
	if !ok {
		return Plan{}, apperror.New(apperror.CodeUnknownSymbol, apperror.WithContext(result.Ring.StableSymbol))
	}

	buyQty := buyC.NormalizeQty(result.BaseQty)
	if err := buyC.CheckQty(buyQty); err != nil {
		return Plan{}, apperror.Wrap(err, apperror.CodeQuantityOutOfRange, fmt.Sprintf("buy leg %s", result.Ring.BuySymbol))
	}

	bridgeQty := bridgeC.NormalizeQty(buyQty.Mul(feeKeep))
	if err := bridgeC.CheckQty(bridgeQty); err != nil {
		return Plan{}, apperror.Wrap(err, apperror.CodeQuantityOutOfRange, fmt.Sprintf("bridge leg %s", result.Ring.BridgeSymbol))
	}

	stableQty := stableC.NormalizeQty(bridgeQty.Mul(result.BridgePrice).Mul(feeKeep))
	if err := stableC.CheckQty(stableQty); err != nil {
		return Plan{}, apperror.Wrap(err, apperror.CodeQuantityOutOfRange, fmt.Sprintf("stable leg %s", result.Ring.StableSymbol))
	}

	return Plan{
		Ring:   result.Ring,
		Invest: result.Invest,
		Legs: [3]Leg{
			{Symbol: result.Ring.BuySymbol, Side: marketDomain.SideBuy, Qty: buyQty, Price: result.BuyPrice},
			{Symbol: result.Ring.BridgeSymbol, Side: marketDomain.SideSell, Qty: bridgeQty, Price: result.BridgePrice},
			{Symbol: result.Ring.StableSymbol, Side: marketDomain.SideSell, Qty: stableQty, Price: result.StablePrice},
		},
	}, nil
}

// CycleReport summarizes one pass of the trading loop.
type CycleReport struct {
	Cycle        int
	Ring         ringsDomain.Ring
	Outcome      Outcome
	Reason       string
	Invest       decimal.Decimal
	FinalBalance decimal.Decimal
	Profit       decimal.Decimal
	ProfitPct    decimal.Decimal
	FallbackUsed bool
	Duration     time.Duration
	FinishedAt   time.Time
}
