// Package domain contains the triangular ring model for the rings context.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Ring is a three-leg trade cycle: buy the base asset with the stablecoin,
// sell it for the bridge asset, sell the bridge back to the stablecoin.
type Ring struct {
	Base         string `json:"base"`
	BuySymbol    string `json:"buy_symbol"`    // base/stable, bought
	BridgeSymbol string `json:"bridge_symbol"` // base/bridge, sold
	StableSymbol string `json:"stable_symbol"` // bridge/stable, sold
}

// NewRing derives the three leg symbols from the assets.
func NewRing(base, bridge, stable string) Ring {
	return Ring{
		Base:         base,
		BuySymbol:    base + stable,
		BridgeSymbol: base + bridge,
		StableSymbol: bridge + stable,
	}
}

func (r Ring) String() string {
	return fmt.Sprintf("%s>%s>%s", r.BuySymbol, r.BridgeSymbol, r.StableSymbol)
}

// PriceLevel is a biased price with the book quantity behind it.
type PriceLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// PriceSnapshot holds one cycle's biased prices, one table per leg role.
// Buy prices lean above the bid so the first leg joins the queue near the
// top of the book; bridge and stable prices lean below the ask so the sell
// legs fill promptly.
type PriceSnapshot struct {
	Buy     map[string]PriceLevel
	Bridge  map[string]PriceLevel
	Stable  map[string]PriceLevel
	TakenAt time.Time
}

// Lookup returns the three leg price levels for a ring.
func (s *PriceSnapshot) Lookup(r Ring) (buy, bridge, stable PriceLevel, ok bool) {
	buy, ok = s.Buy[r.BuySymbol]
	if !ok {
		return
	}
	bridge, ok = s.Bridge[r.BridgeSymbol]
	if !ok {
		return
	}
	stable, ok = s.Stable[r.StableSymbol]
	return
}

// RingResult is the outcome of evaluating one ring against a snapshot.
type RingResult struct {
	Ring        Ring
	Invest      decimal.Decimal
	BaseQty     decimal.Decimal // base asset bought by the first leg
	FinalReturn decimal.Decimal
	Profit      decimal.Decimal
	ProfitPct   decimal.Decimal
	BuyPrice    decimal.Decimal
	BridgePrice decimal.Decimal
	StablePrice decimal.Decimal
	Stability   int
	EvaluatedAt time.Time
}
