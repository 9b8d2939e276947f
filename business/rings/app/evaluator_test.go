package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/railgun-trading/railgun/business/rings/domain"
	"github.com/railgun-trading/railgun/internal/apperror"
)

func makeSnapshot(buy, bridge, stable string) *domain.PriceSnapshot {
	return &domain.PriceSnapshot{
		Buy: map[string]domain.PriceLevel{
			"AAABUSD": {Price: decimal.RequireFromString(buy), Qty: decimal.RequireFromString("1000")},
		},
		Bridge: map[string]domain.PriceLevel{
			"AAABNB": {Price: decimal.RequireFromString(bridge), Qty: decimal.RequireFromString("1000")},
		},
		Stable: map[string]domain.PriceLevel{
			"BNBBUSD": {Price: decimal.RequireFromString(stable), Qty: decimal.RequireFromString("1000")},
		},
		TakenAt: time.Now(),
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	ring := domain.NewRing("AAA", "BNB", "BUSD")
	snap := makeSnapshot("10.00", "0.05", "210.00")
	invest := decimal.RequireFromString("100")

	e := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.3"),
		WarningProfitPct: decimal.RequireFromString("50"),
	})

	result, err := e.Evaluate(ring, snap, invest)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// 100 -> 10 AAA -> taker fee per leg compounds through three legs.
	if got := result.BaseQty.StringFixed(4); got != "10.0000" {
		t.Errorf("BaseQty = %s, want 10.0000", got)
	}
	if got := result.FinalReturn.StringFixed(3); got != "104.685" {
		t.Errorf("FinalReturn = %s, want 104.685", got)
	}
	if got := result.Profit.StringFixed(3); got != "4.685" {
		t.Errorf("Profit = %s, want 4.685", got)
	}
	if got := result.ProfitPct.StringFixed(4); got != "4.6853" {
		t.Errorf("ProfitPct = %s, want 4.6853", got)
	}
	if !e.IsProfitable(result) {
		t.Error("result above threshold reported unprofitable")
	}

	// Pure computation: a second run over the same inputs must agree.
	again, err := e.Evaluate(ring, snap, invest)
	if err != nil {
		t.Fatalf("Evaluate (second run): %v", err)
	}
	if !again.FinalReturn.Equal(result.FinalReturn) {
		t.Errorf("second evaluation diverged: %s vs %s", again.FinalReturn, result.FinalReturn)
	}
}

func TestEvaluator_ProfitThresholdBoundary(t *testing.T) {
	e := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.5"),
		WarningProfitPct: decimal.RequireFromString("50"),
	})

	tests := []struct {
		name      string
		profitPct string
		want      bool
	}{
		{name: "exactly_at_threshold_rejected", profitPct: "0.5", want: false},
		{name: "just_below", profitPct: "0.499999", want: false},
		{name: "just_above", profitPct: "0.500001", want: true},
		{name: "negative", profitPct: "-1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := domain.RingResult{ProfitPct: decimal.RequireFromString(tt.profitPct)}
			if got := e.IsProfitable(r); got != tt.want {
				t.Errorf("IsProfitable(%s%%) = %v, want %v", tt.profitPct, got, tt.want)
			}
		})
	}
}

func TestEvaluator_AnomalousProfitRejected(t *testing.T) {
	ring := domain.NewRing("AAA", "BNB", "BUSD")
	snap := makeSnapshot("10.00", "0.05", "210.00")

	// The same quotes yield ~4.69%, over a 3% ceiling that reads as a
	// broken feed rather than an opportunity.
	e := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.3"),
		WarningProfitPct: decimal.RequireFromString("3"),
	})

	result, err := e.Evaluate(ring, snap, decimal.RequireFromString("100"))
	if err == nil {
		t.Fatal("expected anomaly error for profit over the warning ceiling")
	}
	if !apperror.IsCode(err, apperror.CodeProfitAnomaly) {
		t.Errorf("error code = %v, want %s", err, apperror.CodeProfitAnomaly)
	}
	// The result still carries the numbers so the caller can log them.
	if result.ProfitPct.IsZero() {
		t.Error("anomalous result lost its profit figures")
	}
}

func TestEvaluator_CeilingBoundaryStillTrades(t *testing.T) {
	ring := domain.NewRing("AAA", "BNB", "BUSD")
	snap := makeSnapshot("10.00", "0.05", "210.00")

	// A ceiling equal to the exact projected profit is not crossed.
	e := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.3"),
		WarningProfitPct: decimal.RequireFromString("4.685314895"),
	})

	if _, err := e.Evaluate(ring, snap, decimal.RequireFromString("100")); err != nil {
		t.Errorf("profit exactly at the ceiling rejected: %v", err)
	}
}

func TestEvaluator_ZeroInvestRejected(t *testing.T) {
	ring := domain.NewRing("AAA", "BNB", "BUSD")
	snap := makeSnapshot("10.00", "0.05", "210.00")

	e := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.3"),
		WarningProfitPct: decimal.RequireFromString("50"),
	})

	// A drained balance can feed a zero investment into detection; the
	// ring must read as untradable, not divide by zero.
	for _, invest := range []decimal.Decimal{decimal.Zero, decimal.RequireFromString("-1")} {
		_, err := e.Evaluate(ring, snap, invest)
		if !apperror.IsCode(err, apperror.CodeInvalidInput) {
			t.Errorf("Evaluate(invest=%s) error = %v, want %s", invest, err, apperror.CodeInvalidInput)
		}
	}
}

func TestEvaluator_MissingSnapshotEntry(t *testing.T) {
	e := NewEvaluator(EvaluatorConfig{
		FeeRate:          decimal.RequireFromString("0.001"),
		MinProfitPct:     decimal.RequireFromString("0.3"),
		WarningProfitPct: decimal.RequireFromString("50"),
	})

	snap := makeSnapshot("10.00", "0.05", "210.00")
	ghost := domain.NewRing("ZZZ", "BNB", "BUSD")

	_, err := e.Evaluate(ghost, snap, decimal.RequireFromString("100"))
	if !apperror.IsCode(err, apperror.CodeMissingSnapshotEntry) {
		t.Errorf("error = %v, want %s", err, apperror.CodeMissingSnapshotEntry)
	}
}
