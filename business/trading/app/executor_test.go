package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
	ringsDomain "github.com/railgun-trading/railgun/business/rings/domain"
	"github.com/railgun-trading/railgun/business/trading/domain"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/logger"
)

func testExecutorConstraints(t *testing.T) marketDomain.ConstraintSet {
	t.Helper()
	specs := []struct {
		symbol string
	}{
		{symbol: "AAABUSD"},
		{symbol: "AAABNB"},
		{symbol: "BNBBUSD"},
	}
	all := make([]marketDomain.SymbolConstraints, 0, len(specs))
	for _, s := range specs {
		c, err := marketDomain.NewSymbolConstraints(s.symbol, "", "", "0.01", "0.01", "0.01", "100000")
		if err != nil {
			t.Fatalf("NewSymbolConstraints(%s): %v", s.symbol, err)
		}
		all = append(all, c)
	}
	return marketDomain.NewConstraintSet(all)
}

func testRingResult() ringsDomain.RingResult {
	return ringsDomain.RingResult{
		Ring:        ringsDomain.NewRing("AAA", "BNB", "BUSD"),
		Invest:      decimal.RequireFromString("100"),
		BaseQty:     decimal.RequireFromString("10"),
		BuyPrice:    decimal.RequireFromString("10.00"),
		BridgePrice: decimal.RequireFromString("0.05"),
		StablePrice: decimal.RequireFromString("210.00"),
	}
}

func newTestExecutor(t *testing.T, f *fakeExchange, strategy string) *Executor {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	constraints := testExecutorConstraints(t)
	poller := NewPoller(f, constraints, PollerConfig{
		Interval:           time.Millisecond,
		StallPolls:         3,
		PartialStallPolls:  6,
		MinShortSaleProfit: decimal.RequireFromString("0.1"),
	}, log)

	return NewExecutor(f, poller, constraints, ExecutorConfig{
		Strategy:            strategy,
		Stablecoin:          "BUSD",
		FeeRate:             decimal.RequireFromString("0.001"),
		MinOperatingBalance: decimal.RequireFromString("10"),
	}, log)
}

func TestExecutor_AbortsBelowOperatingBalance(t *testing.T) {
	f := newFakeExchange()
	f.balances = []marketDomain.Balance{{Free: decimal.RequireFromString("5")}}

	e := newTestExecutor(t, f, StrategySequential)
	report, err := e.Execute(context.Background(), 1, testRingResult())

	if report.Outcome != domain.OutcomeAbandoned {
		t.Errorf("outcome = %s, want %s", report.Outcome, domain.OutcomeAbandoned)
	}
	if !apperror.IsCode(err, apperror.CodeBalanceTooLow) {
		t.Errorf("error = %v, want %s", err, apperror.CodeBalanceTooLow)
	}
	if len(f.placedOrders()) != 0 {
		t.Errorf("placed %d orders with balance below the floor, want none", len(f.placedOrders()))
	}
}

func TestExecutor_SequentialHappyPath(t *testing.T) {
	f := newFakeExchange()
	f.balances = []marketDomain.Balance{
		{Free: decimal.RequireFromString("100")},
		{Free: decimal.RequireFromString("104.5")},
	}
	// Orders are placed in leg order, so IDs are deterministic.
	f.script(1, newOrder(1, marketDomain.OrderStatusFilled, "10", "10", "100"))
	f.script(2, newOrder(2, marketDomain.OrderStatusFilled, "9.99", "9.99", "0.4995"))
	f.script(3, newOrder(3, marketDomain.OrderStatusFilled, "0.49", "0.49", "102.9"))

	e := newTestExecutor(t, f, StrategySequential)
	report, err := e.Execute(context.Background(), 1, testRingResult())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if report.Outcome != domain.OutcomeCompleted {
		t.Fatalf("outcome = %s (%s), want %s", report.Outcome, report.Reason, domain.OutcomeCompleted)
	}

	placed := f.placedOrders()
	if len(placed) != 3 {
		t.Fatalf("placed %d orders, want 3", len(placed))
	}
	// Leg 0 buys the evaluated base quantity at the snapshot price.
	if placed[0].Symbol != "AAABUSD" || placed[0].Side != marketDomain.SideBuy {
		t.Errorf("leg 0 = %s %s, want BUY AAABUSD", placed[0].Side, placed[0].Symbol)
	}
	if !placed[0].OrigQty.Equal(decimal.RequireFromString("10")) {
		t.Errorf("leg 0 qty = %s, want 10", placed[0].OrigQty)
	}
	// Leg 1 re-sizes from leg 0's fills net of the fee: 10 * 0.999.
	if placed[1].Symbol != "AAABNB" || placed[1].Side != marketDomain.SideSell {
		t.Errorf("leg 1 = %s %s, want SELL AAABNB", placed[1].Side, placed[1].Symbol)
	}
	if !placed[1].OrigQty.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("leg 1 qty = %s, want 9.99", placed[1].OrigQty)
	}
	// Leg 2 re-sizes from leg 1's proceeds net of the fee, truncated to
	// the lot grid: 0.4995 * 0.999 = 0.49900005 -> 0.49.
	if placed[2].Symbol != "BNBBUSD" || placed[2].Side != marketDomain.SideSell {
		t.Errorf("leg 2 = %s %s, want SELL BNBBUSD", placed[2].Side, placed[2].Symbol)
	}
	if !placed[2].OrigQty.Equal(decimal.RequireFromString("0.49")) {
		t.Errorf("leg 2 qty = %s, want 0.49", placed[2].OrigQty)
	}

	if !report.Profit.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("profit = %s, want 4.5", report.Profit)
	}
	if report.FallbackUsed {
		t.Error("clean fills flagged a fallback sale")
	}
}

func TestExecutor_SequentialFirstLegUnfilled(t *testing.T) {
	f := newFakeExchange()
	f.balances = []marketDomain.Balance{
		{Free: decimal.RequireFromString("100")},
		{Free: decimal.RequireFromString("100")},
	}
	stuck := newOrder(1, marketDomain.OrderStatusNew, "10", "0", "0")
	f.script(1, stuck, stuck, stuck)

	e := newTestExecutor(t, f, StrategySequential)
	report, err := e.Execute(context.Background(), 1, testRingResult())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if report.Outcome != domain.OutcomeAbandoned {
		t.Errorf("outcome = %s, want %s", report.Outcome, domain.OutcomeAbandoned)
	}
	// Only the first leg ever went out.
	if len(f.placedOrders()) != 1 {
		t.Errorf("placed %d orders, want 1", len(f.placedOrders()))
	}
	if len(f.cancels()) != 1 {
		t.Errorf("canceled %v, want the stalled first leg", f.cancels())
	}
}

func TestExecutor_ParallelLeadsWithBridgeLeg(t *testing.T) {
	f := newFakeExchange()
	f.balances = []marketDomain.Balance{
		{Free: decimal.RequireFromString("100")},
		{Free: decimal.RequireFromString("104.5")},
	}
	// The bridge leg is submitted alone first and gets ID 1.
	f.script(1, newOrder(1, marketDomain.OrderStatusFilled, "9.99", "9.99", "0.4995"))
	f.script(2, newOrder(2, marketDomain.OrderStatusFilled, "10", "10", "100"))
	f.script(3, newOrder(3, marketDomain.OrderStatusFilled, "0.49", "0.49", "102.9"))

	e := newTestExecutor(t, f, StrategyParallel)
	report, err := e.Execute(context.Background(), 1, testRingResult())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if report.Outcome != domain.OutcomeCompleted {
		t.Fatalf("outcome = %s (%s), want %s", report.Outcome, report.Reason, domain.OutcomeCompleted)
	}

	placed := f.placedOrders()
	if len(placed) != 3 {
		t.Fatalf("placed %d orders, want 3", len(placed))
	}
	if placed[0].Symbol != "AAABNB" {
		t.Errorf("first submitted leg = %s, want the bridge leg AAABNB", placed[0].Symbol)
	}
	// All legs sized analytically from the snapshot, not from fills.
	if !placed[0].OrigQty.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("bridge qty = %s, want 9.99", placed[0].OrigQty)
	}
}

func TestExecutor_ParallelBridgeUnfilledAbandons(t *testing.T) {
	f := newFakeExchange()
	f.balances = []marketDomain.Balance{
		{Free: decimal.RequireFromString("100")},
		{Free: decimal.RequireFromString("100")},
	}
	stuck := newOrder(1, marketDomain.OrderStatusNew, "9.99", "0", "0")
	f.script(1, stuck, stuck, stuck)

	e := newTestExecutor(t, f, StrategyParallel)
	report, err := e.Execute(context.Background(), 1, testRingResult())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if report.Outcome != domain.OutcomeAbandoned {
		t.Errorf("outcome = %s, want %s", report.Outcome, domain.OutcomeAbandoned)
	}
	if len(f.placedOrders()) != 1 {
		t.Errorf("placed %d orders after the lead leg failed, want 1", len(f.placedOrders()))
	}
}
