package app

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/railgun-trading/railgun/business/rings/domain"
	"github.com/railgun-trading/railgun/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

// snapshotFor merges per-ring price levels into one snapshot.
func snapshotFor(prices map[string][3]string) *domain.PriceSnapshot {
	snap := &domain.PriceSnapshot{
		Buy:     map[string]domain.PriceLevel{},
		Bridge:  map[string]domain.PriceLevel{},
		Stable:  map[string]domain.PriceLevel{},
		TakenAt: time.Now(),
	}
	qty := decimal.RequireFromString("1000")
	for base, p := range prices {
		ring := domain.NewRing(base, "BNB", "BUSD")
		snap.Buy[ring.BuySymbol] = domain.PriceLevel{Price: decimal.RequireFromString(p[0]), Qty: qty}
		snap.Bridge[ring.BridgeSymbol] = domain.PriceLevel{Price: decimal.RequireFromString(p[1]), Qty: qty}
		snap.Stable[ring.StableSymbol] = domain.PriceLevel{Price: decimal.RequireFromString(p[2]), Qty: qty}
	}
	return snap
}

func TestScheduler_OrdersByAbsoluteProfit(t *testing.T) {
	evaluator := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.3"),
		WarningProfitPct: decimal.RequireFromString("50"),
	})
	s := NewScheduler(evaluator, testLogger())

	// AAA yields ~4.69%, BBB ~2.06%, CCC loses money.
	snap := snapshotFor(map[string][3]string{
		"AAA": {"10.00", "0.05", "210.00"},
		"BBB": {"10.00", "0.0487", "210.00"},
		"CCC": {"10.00", "0.0400", "210.00"},
	})
	rings := []domain.Ring{
		domain.NewRing("CCC", "BNB", "BUSD"),
		domain.NewRing("BBB", "BNB", "BUSD"),
		domain.NewRing("AAA", "BNB", "BUSD"),
	}

	candidates := s.Evaluate(context.Background(), rings, snap, decimal.RequireFromString("100"))

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].Ring.Base != "AAA" || candidates[1].Ring.Base != "BBB" {
		t.Errorf("order = [%s, %s], want [AAA, BBB]",
			candidates[0].Ring.Base, candidates[1].Ring.Base)
	}
	if candidates[0].Profit.LessThan(candidates[1].Profit) {
		t.Error("candidates not sorted by descending profit")
	}
}

func TestScheduler_DeterministicTieBreak(t *testing.T) {
	evaluator := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.3"),
		WarningProfitPct: decimal.RequireFromString("50"),
	})
	s := NewScheduler(evaluator, testLogger())

	// Identical prices, identical profit. Only the ring identity differs.
	snap := snapshotFor(map[string][3]string{
		"XXX": {"10.00", "0.05", "210.00"},
		"AAA": {"10.00", "0.05", "210.00"},
	})
	rings := []domain.Ring{
		domain.NewRing("XXX", "BNB", "BUSD"),
		domain.NewRing("AAA", "BNB", "BUSD"),
	}

	for i := 0; i < 10; i++ {
		candidates := s.Evaluate(context.Background(), rings, snap, decimal.RequireFromString("100"))
		if len(candidates) != 2 {
			t.Fatalf("got %d candidates, want 2", len(candidates))
		}
		if candidates[0].Ring.Base != "AAA" {
			t.Fatalf("run %d: tie broke to %s, want AAA", i, candidates[0].Ring.Base)
		}
	}
}

func TestScheduler_DiscardsAnomalies(t *testing.T) {
	evaluator := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.3"),
		WarningProfitPct: decimal.RequireFromString("3"),
	})
	s := NewScheduler(evaluator, testLogger())

	// ~4.69% profit crosses the 3% ceiling, so nothing survives.
	snap := snapshotFor(map[string][3]string{
		"AAA": {"10.00", "0.05", "210.00"},
	})
	rings := []domain.Ring{domain.NewRing("AAA", "BNB", "BUSD")}

	candidates := s.Evaluate(context.Background(), rings, snap, decimal.RequireFromString("100"))
	if len(candidates) != 0 {
		t.Errorf("got %d candidates, want 0", len(candidates))
	}
}

func TestScheduler_LogsMissingEntrySkip(t *testing.T) {
	evaluator := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.3"),
		WarningProfitPct: decimal.RequireFromString("50"),
	})

	var buf bytes.Buffer
	s := NewScheduler(evaluator, logger.New(&buf, logger.LevelDebug, "test", nil))

	// ZZZ has no snapshot entries, so it is skipped, not traded and not
	// swallowed.
	snap := snapshotFor(map[string][3]string{
		"AAA": {"10.00", "0.05", "210.00"},
	})
	rings := []domain.Ring{
		domain.NewRing("AAA", "BNB", "BUSD"),
		domain.NewRing("ZZZ", "BNB", "BUSD"),
	}

	candidates := s.Evaluate(context.Background(), rings, snap, decimal.RequireFromString("100"))
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}

	out := buf.String()
	if !strings.Contains(out, "ring not tradable this cycle") {
		t.Errorf("missing-entry skip not logged, output: %s", out)
	}
	if !strings.Contains(out, "ZZZBUSD>ZZZBNB>BNBBUSD") {
		t.Errorf("skip log does not name the ring, output: %s", out)
	}
}
