package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
	ringsDomain "github.com/railgun-trading/railgun/business/rings/domain"
	"github.com/railgun-trading/railgun/business/trading/domain"
	"github.com/railgun-trading/railgun/internal/apm"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/logger"
)

// Strategy names accepted by the executor.
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
)

// ExecutorConfig holds execution settings.
type ExecutorConfig struct {
	Strategy   string
	Stablecoin string
	// FeeRate is the taker fee charged per leg.
	FeeRate decimal.Decimal
	// MinOperatingBalance is the stablecoin floor below which no cycle
	// is started.
	MinOperatingBalance decimal.Decimal
}

// Executor turns a detected ring into orders and drives them to a
// terminal state. Sequential execution walks the legs in ring order and
// re-sizes each from the previous leg's actual fills. Parallel execution
// sizes all legs from the snapshot, leads with the bridge leg and runs
// the remaining two concurrently once it lands.
type Executor struct {
	exchange    ExchangePort
	poller      *Poller
	constraints marketDomain.ConstraintSet
	cfg         ExecutorConfig
	log         logger.LoggerInterface
	tracer      apm.Tracer

	cycleCounter    metric.Int64Counter
	fallbackCounter metric.Int64Counter
	cycleDuration   metric.Float64Histogram
}

// NewExecutor creates an Executor.
func NewExecutor(
	exchange ExchangePort,
	poller *Poller,
	constraints marketDomain.ConstraintSet,
	cfg ExecutorConfig,
	log logger.LoggerInterface,
) *Executor {
	meter := otel.GetMeterProvider().Meter("trading.executor")
	cycleCounter, _ := meter.Int64Counter("trade_cycles_total",
		metric.WithDescription("Total executed trade cycles by outcome"))
	fallbackCounter, _ := meter.Int64Counter("trade_fallbacks_total",
		metric.WithDescription("Total cycles that exited a stalled leg through a fallback sale"))
	cycleDuration, _ := meter.Float64Histogram("trade_cycle_duration_seconds",
		metric.WithDescription("Trade cycle duration from first order to settled balance"))

	return &Executor{
		exchange:        exchange,
		poller:          poller,
		constraints:     constraints,
		cfg:             cfg,
		log:             log,
		tracer:          apm.NewTracer("trading.executor"),
		cycleCounter:    cycleCounter,
		fallbackCounter: fallbackCounter,
		cycleDuration:   cycleDuration,
	}
}

// Execute runs one trade cycle for the selected ring. The returned report
// always carries an outcome; the error is non-nil for abandoned and
// failed cycles and explains why. A report with OutcomeFailed means the
// capital state is unknown and the caller must stop trading.
func (e *Executor) Execute(ctx context.Context, cycle int, result ringsDomain.RingResult) (domain.CycleReport, error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "trading.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("ring", result.Ring.String()),
		attribute.String("strategy", e.cfg.Strategy),
	)

	start := time.Now()
	report := domain.CycleReport{
		Cycle:  cycle,
		Ring:   result.Ring,
		Invest: result.Invest,
	}
	finish := func(outcome domain.Outcome, reason string, err error) (domain.CycleReport, error) {
		report.Outcome = outcome
		report.Reason = reason
		report.Duration = time.Since(start)
		report.FinishedAt = time.Now()
		e.cycleCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
		e.cycleDuration.Record(ctx, report.Duration.Seconds())
		if report.FallbackUsed {
			e.fallbackCounter.Add(ctx, 1)
		}
		if err != nil {
			span.NoticeError(err)
		}
		return report, err
	}

	balance, err := e.exchange.GetBalance(ctx, e.cfg.Stablecoin)
	if err != nil {
		return finish(domain.OutcomeAbandoned, "balance check failed",
			apperror.Wrap(err, apperror.CodeExchangeAPIError, "pre-trade balance check"))
	}
	if balance.Free.LessThan(e.cfg.MinOperatingBalance) {
		return finish(domain.OutcomeAbandoned, "balance below operating minimum",
			apperror.New(apperror.CodeBalanceTooLow,
				apperror.WithContext(fmt.Sprintf("%s %s < %s", e.cfg.Stablecoin, balance.Free, e.cfg.MinOperatingBalance))))
	}
	startBalance := balance.Free

	plan, err := domain.NewPlan(result, e.constraints, e.cfg.FeeRate)
	if err != nil {
		return finish(domain.OutcomeAbandoned, "leg sizing failed", err)
	}

	var outcome domain.Outcome
	var reason string
	var fallbackUsed bool
	switch e.cfg.Strategy {
	case StrategyParallel:
		outcome, reason, fallbackUsed, err = e.runParallel(ctx, plan)
	default:
		outcome, reason, fallbackUsed, err = e.runSequential(ctx, plan)
	}
	report.FallbackUsed = fallbackUsed

	if outcome == domain.OutcomeFailed {
		return finish(outcome, reason, err)
	}

	final, balErr := e.exchange.GetBalance(ctx, e.cfg.Stablecoin)
	if balErr != nil {
		// A completed cycle without a confirmed balance is not completed.
		return finish(domain.OutcomeFailed, "post-trade balance unconfirmed",
			apperror.Wrap(balErr, apperror.CodeCapitalStateUnknown, "post-trade balance check"))
	}
	report.FinalBalance = final.Free
	report.Profit = final.Free.Sub(startBalance)
	if result.Invest.IsPositive() {
		report.ProfitPct = report.Profit.Div(result.Invest).Mul(decimal.NewFromInt(100))
	}

	return finish(outcome, reason, err)
}

// runSequential executes the legs in ring order. Each sell leg is sized
// from the previous leg's actual fills net of the taker fee.
func (e *Executor) runSequential(ctx context.Context, plan domain.Plan) (domain.Outcome, string, bool, error) {
	feeKeep := decimal.NewFromInt(1).Sub(e.cfg.FeeRate)
	fallbackUsed := false

	// Leg 0: buy the base with the stablecoin.
	buy := plan.Legs[0]
	order0, err := e.exchange.PlaceLimitOrder(ctx, buy.Symbol, buy.Side, buy.Qty, buy.Price)
	if err != nil {
		return e.placementOutcome(err, buy.Symbol, "first leg")
	}
	res0, err := e.poller.Await(ctx, order0, AwaitOptions{
		FirstLeg:       true,
		CommittedValue: plan.Invest,
	})
	if err != nil {
		return domain.OutcomeFailed, "first leg lost", false, err
	}
	baseQty := res0.Order.ExecutedQty
	if baseQty.IsZero() {
		return domain.OutcomeAbandoned, "first leg unfilled", false, nil
	}
	committed := res0.Order.CumQuoteQty

	// Leg 1: sell the base for the bridge asset.
	bridgeC, ok := e.constraints.Get(plan.Ring.BridgeSymbol)
	if !ok {
		return domain.OutcomeAbandoned, "bridge symbol constraints missing", false,
			apperror.New(apperror.CodeUnknownSymbol, apperror.WithContext(plan.Ring.BridgeSymbol))
	}
	bridgeQty := bridgeC.NormalizeQty(baseQty.Mul(feeKeep))
	if err := bridgeC.CheckQty(bridgeQty); err != nil {
		return domain.OutcomeAbandoned, fmt.Sprintf("holding %s, fills below lot floor", plan.Ring.Base), fallbackUsed, err
	}
	order1, err := e.exchange.PlaceLimitOrder(ctx, plan.Ring.BridgeSymbol, marketDomain.SideSell, bridgeQty, plan.Legs[1].Price)
	if err != nil {
		return e.placementOutcome(err, plan.Ring.BridgeSymbol, "bridge leg")
	}
	res1, err := e.poller.Await(ctx, order1, AwaitOptions{
		CommittedValue:   committed,
		QuoteValueSymbol: plan.Ring.StableSymbol,
	})
	if err != nil {
		return domain.OutcomeFailed, "bridge leg lost", fallbackUsed, err
	}
	bridgeProceeds, baseRemainder, usedFallback := legProceeds(res1, bridgeQty)
	fallbackUsed = fallbackUsed || usedFallback
	if bridgeProceeds.IsZero() {
		return domain.OutcomeAbandoned, fmt.Sprintf("bridge leg unfilled, holding %s", plan.Ring.Base), fallbackUsed, nil
	}

	// Leg 2: sell the bridge asset back to the stablecoin.
	stableC, ok := e.constraints.Get(plan.Ring.StableSymbol)
	if !ok {
		return domain.OutcomeAbandoned, "stable symbol constraints missing", fallbackUsed,
			apperror.New(apperror.CodeUnknownSymbol, apperror.WithContext(plan.Ring.StableSymbol))
	}
	stableQty := stableC.NormalizeQty(bridgeProceeds.Mul(feeKeep))
	if err := stableC.CheckQty(stableQty); err != nil {
		return domain.OutcomeAbandoned, "holding bridge asset, proceeds below lot floor", fallbackUsed, err
	}
	order2, err := e.exchange.PlaceLimitOrder(ctx, plan.Ring.StableSymbol, marketDomain.SideSell, stableQty, plan.Legs[2].Price)
	if err != nil {
		return e.placementOutcome(err, plan.Ring.StableSymbol, "stable leg")
	}
	res2, err := e.poller.Await(ctx, order2, AwaitOptions{
		CommittedValue: committed,
	})
	if err != nil {
		return domain.OutcomeFailed, "stable leg lost", fallbackUsed, err
	}
	stableProceeds, bridgeRemainder, usedFallback := legProceeds(res2, stableQty)
	fallbackUsed = fallbackUsed || usedFallback
	if stableProceeds.IsZero() {
		return domain.OutcomeAbandoned, "stable leg unfilled, holding bridge asset", fallbackUsed, nil
	}

	if baseRemainder.IsPositive() || bridgeRemainder.IsPositive() {
		return domain.OutcomeAbandoned,
			fmt.Sprintf("cycle settled with remainders held (%s %s, bridge %s)",
				plan.Ring.Base, baseRemainder, bridgeRemainder),
			fallbackUsed, nil
	}
	return domain.OutcomeCompleted, "all legs filled", fallbackUsed, nil
}

// runParallel sizes every leg from the snapshot and leads with the
// bridge leg, the one exposed to the thinnest book. Once it resolves,
// the buy and stable legs run concurrently.
func (e *Executor) runParallel(ctx context.Context, plan domain.Plan) (domain.Outcome, string, bool, error) {
	bridge := plan.Legs[1]
	order1, err := e.exchange.PlaceLimitOrder(ctx, bridge.Symbol, bridge.Side, bridge.Qty, bridge.Price)
	if err != nil {
		return e.placementOutcome(err, bridge.Symbol, "bridge leg")
	}
	res1, err := e.poller.Await(ctx, order1, AwaitOptions{
		FirstLeg:       true,
		CommittedValue: plan.Invest,
	})
	if err != nil {
		return domain.OutcomeFailed, "bridge leg lost", false, err
	}
	if !res1.Order.HasFills() {
		return domain.OutcomeAbandoned, "bridge leg unfilled", false, nil
	}

	type legRun struct {
		leg domain.Leg
		res AwaitResult
		err error
	}
	runs := []legRun{{leg: plan.Legs[0]}, {leg: plan.Legs[2]}}

	var wg sync.WaitGroup
	for i := range runs {
		wg.Add(1)
		go func(r *legRun) {
			defer wg.Done()
			order, err := e.exchange.PlaceLimitOrder(ctx, r.leg.Symbol, r.leg.Side, r.leg.Qty, r.leg.Price)
			if err != nil {
				r.err = err
				return
			}
			opts := AwaitOptions{CommittedValue: plan.Invest}
			if r.leg.Side == marketDomain.SideBuy {
				// The buy leg holds stablecoin until it fills, a stall
				// is canceled rather than exited.
				opts.FirstLeg = true
			}
			r.res, r.err = e.poller.Await(ctx, order, opts)
		}(&runs[i])
	}
	wg.Wait()

	fallbackUsed := false
	unfilled := []string{}
	for _, r := range runs {
		if r.err != nil {
			return domain.OutcomeFailed, fmt.Sprintf("%s leg lost", r.leg.Symbol), fallbackUsed, r.err
		}
		if r.res.Fallback != nil {
			fallbackUsed = true
		}
		if r.res.Outcome == AwaitCanceled && !r.res.Order.IsFilled() {
			unfilled = append(unfilled, r.leg.Symbol)
		}
	}
	if res1.Outcome == AwaitCanceled && !res1.Order.IsFilled() {
		unfilled = append(unfilled, bridge.Symbol)
	}
	if len(unfilled) > 0 {
		return domain.OutcomeAbandoned, fmt.Sprintf("legs settled short: %v", unfilled), fallbackUsed, nil
	}
	return domain.OutcomeCompleted, "all legs filled", fallbackUsed, nil
}

// placementOutcome classifies an order placement error. A definite
// rejection leaves capital where it was; anything else, a timed-out
// submit included, may have reached the matching engine.
func (e *Executor) placementOutcome(err error, symbol, leg string) (domain.Outcome, string, bool, error) {
	if apperror.IsCode(err, apperror.CodeInsufficientFunds) ||
		apperror.IsCode(err, apperror.CodeOrderRejected) ||
		apperror.IsCode(err, apperror.CodeQuantityOutOfRange) {
		return domain.OutcomeAbandoned, fmt.Sprintf("%s rejected on %s", leg, symbol), false, err
	}
	return domain.OutcomeFailed, fmt.Sprintf("%s placement unconfirmed on %s", leg, symbol), false,
		apperror.Wrap(err, apperror.CodeCapitalStateUnknown, fmt.Sprintf("placing %s on %s", leg, symbol))
}

// legProceeds sums the quote proceeds of a polled sell leg across the
// original order and any fallback sale, and reports the base quantity
// left unconverted.
func legProceeds(res AwaitResult, planned decimal.Decimal) (proceeds, remainder decimal.Decimal, fallback bool) {
	proceeds = res.Order.CumQuoteQty
	sold := res.Order.ExecutedQty
	if res.Fallback != nil {
		proceeds = proceeds.Add(res.Fallback.CumQuoteQty)
		sold = sold.Add(res.Fallback.ExecutedQty)
		fallback = true
	}
	remainder = planned.Sub(sold)
	if remainder.IsNegative() {
		remainder = decimal.Zero
	}
	return proceeds, remainder, fallback
}
