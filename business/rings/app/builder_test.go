package app

import (
	"testing"

	"github.com/shopspring/decimal"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
)

func testConstraintSet(t *testing.T, symbols ...string) marketDomain.ConstraintSet {
	t.Helper()
	all := make([]marketDomain.SymbolConstraints, 0, len(symbols))
	for _, sym := range symbols {
		c, err := marketDomain.NewSymbolConstraints(sym, "", "", "0.001", "0.01", "0.001", "100000")
		if err != nil {
			t.Fatalf("NewSymbolConstraints(%s): %v", sym, err)
		}
		all = append(all, c)
	}
	return marketDomain.NewConstraintSet(all)
}

func TestSnapshotBuilder_BiasesPerLeg(t *testing.T) {
	constraints := testConstraintSet(t, "AAABUSD")
	b := NewSnapshotBuilder(constraints, TickOffsets{
		Buy:    decimal.RequireFromString("2"),
		Bridge: decimal.RequireFromString("-1"),
		Stable: decimal.RequireFromString("-1"),
	})

	snap := b.Build([]marketDomain.BookTicker{{
		Symbol:   "AAABUSD",
		BidPrice: decimal.RequireFromString("9.98"),
		BidQty:   decimal.RequireFromString("50"),
		AskPrice: decimal.RequireFromString("10.00"),
		AskQty:   decimal.RequireFromString("40"),
	}})

	// Buy leans two ticks over the bid and carries the bid depth, sells
	// lean one tick under the ask and carry the ask depth.
	buy, ok := snap.Buy["AAABUSD"]
	if !ok {
		t.Fatal("buy entry missing")
	}
	if want := decimal.RequireFromString("10.00"); !buy.Price.Equal(want) {
		t.Errorf("buy price = %s, want %s", buy.Price, want)
	}
	if !buy.Qty.Equal(decimal.RequireFromString("50")) {
		t.Errorf("buy qty = %s, want 50", buy.Qty)
	}

	bridge := snap.Bridge["AAABUSD"]
	if want := decimal.RequireFromString("9.99"); !bridge.Price.Equal(want) {
		t.Errorf("bridge price = %s, want %s", bridge.Price, want)
	}
	if !bridge.Qty.Equal(decimal.RequireFromString("40")) {
		t.Errorf("bridge qty = %s, want 40", bridge.Qty)
	}
	stable := snap.Stable["AAABUSD"]
	if want := decimal.RequireFromString("9.99"); !stable.Price.Equal(want) {
		t.Errorf("stable price = %s, want %s", stable.Price, want)
	}
	if !stable.Qty.Equal(decimal.RequireFromString("40")) {
		t.Errorf("stable qty = %s, want 40", stable.Qty)
	}
}

func TestSnapshotBuilder_ClampsToOneTick(t *testing.T) {
	constraints := testConstraintSet(t, "AAABUSD")
	b := NewSnapshotBuilder(constraints, TickOffsets{
		Buy:    decimal.Zero,
		Bridge: decimal.RequireFromString("-5"),
		Stable: decimal.RequireFromString("-5"),
	})

	// Ask of two ticks minus five ticks would go negative.
	snap := b.Build([]marketDomain.BookTicker{{
		Symbol:   "AAABUSD",
		BidPrice: decimal.RequireFromString("0.01"),
		BidQty:   decimal.RequireFromString("50"),
		AskPrice: decimal.RequireFromString("0.02"),
		AskQty:   decimal.RequireFromString("40"),
	}})

	bridge, ok := snap.Bridge["AAABUSD"]
	if !ok {
		t.Fatal("bridge entry missing")
	}
	if want := decimal.RequireFromString("0.01"); !bridge.Price.Equal(want) {
		t.Errorf("bridge price = %s, want clamp to one tick %s", bridge.Price, want)
	}
}

func TestSnapshotBuilder_SkipsUnknownAndEmpty(t *testing.T) {
	constraints := testConstraintSet(t, "AAABUSD")
	b := NewSnapshotBuilder(constraints, TickOffsets{})

	snap := b.Build([]marketDomain.BookTicker{
		{
			// No constraints on file for this symbol.
			Symbol:   "ZZZBUSD",
			BidPrice: decimal.RequireFromString("1"),
			BidQty:   decimal.RequireFromString("1"),
			AskPrice: decimal.RequireFromString("1"),
			AskQty:   decimal.RequireFromString("1"),
		},
		{
			// Empty book.
			Symbol: "AAABUSD",
		},
	})

	if len(snap.Buy)+len(snap.Bridge)+len(snap.Stable) != 0 {
		t.Errorf("snapshot not empty: %d buy, %d bridge, %d stable entries",
			len(snap.Buy), len(snap.Bridge), len(snap.Stable))
	}
}
