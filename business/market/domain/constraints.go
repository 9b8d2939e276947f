package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/railgun-trading/railgun/internal/apperror"
)

// SymbolConstraints holds the exchange trading rules for one symbol.
// Quantities and prices sent to the exchange must land exactly on the
// step grids or the order is rejected.
type SymbolConstraints struct {
	Symbol     string          `json:"symbol"`
	BaseAsset  string          `json:"base_asset"`
	QuoteAsset string          `json:"quote_asset"`
	StepQty    decimal.Decimal `json:"step_qty"`
	StepPrice  decimal.Decimal `json:"step_price"`
	MinQty     decimal.Decimal `json:"min_qty"`
	MaxQty     decimal.Decimal `json:"max_qty"`

	// Grid decimal places, precomputed from the step strings.
	QtyPlaces   int32 `json:"qty_places"`
	PricePlaces int32 `json:"price_places"`
}

// NewSymbolConstraints builds constraints from the raw filter strings the
// exchange publishes (for example "0.00100000").
func NewSymbolConstraints(symbol, base, quote, stepQty, stepPrice, minQty, maxQty string) (SymbolConstraints, error) {
	sq, err := decimal.NewFromString(stepQty)
	if err != nil {
		return SymbolConstraints{}, fmt.Errorf("symbol %s: bad step quantity %q: %w", symbol, stepQty, err)
	}
	sp, err := decimal.NewFromString(stepPrice)
	if err != nil {
		return SymbolConstraints{}, fmt.Errorf("symbol %s: bad step price %q: %w", symbol, stepPrice, err)
	}
	minq, err := decimal.NewFromString(minQty)
	if err != nil {
		return SymbolConstraints{}, fmt.Errorf("symbol %s: bad min quantity %q: %w", symbol, minQty, err)
	}
	maxq, err := decimal.NewFromString(maxQty)
	if err != nil {
		return SymbolConstraints{}, fmt.Errorf("symbol %s: bad max quantity %q: %w", symbol, maxQty, err)
	}

	return SymbolConstraints{
		Symbol:      symbol,
		BaseAsset:   base,
		QuoteAsset:  quote,
		StepQty:     sq,
		StepPrice:   sp,
		MinQty:      minq,
		MaxQty:      maxq,
		QtyPlaces:   gridPlaces(stepQty),
		PricePlaces: gridPlaces(stepPrice),
	}, nil
}

// gridPlaces returns the number of meaningful decimal places in a step
// string. Trailing zeros do not narrow the grid.
func gridPlaces(step string) int32 {
	dot := strings.IndexByte(step, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(step[dot+1:], "0")
	return int32(len(frac))
}

// NormalizeQty truncates a quantity down onto the symbol's lot grid.
// Truncation never rounds up, so a normalized quantity is always covered
// by the balance that produced it.
func (c SymbolConstraints) NormalizeQty(q decimal.Decimal) decimal.Decimal {
	return q.Truncate(c.QtyPlaces)
}

// NormalizePrice truncates a price down onto the symbol's tick grid.
func (c SymbolConstraints) NormalizePrice(p decimal.Decimal) decimal.Decimal {
	return p.Truncate(c.PricePlaces)
}

// CheckQty validates a normalized quantity against the lot size range.
func (c SymbolConstraints) CheckQty(q decimal.Decimal) error {
	if q.LessThan(c.MinQty) {
		return apperror.New(apperror.CodeQuantityOutOfRange,
			apperror.WithContext(fmt.Sprintf("%s quantity %s below minimum %s", c.Symbol, q, c.MinQty)))
	}
	if c.MaxQty.IsPositive() && q.GreaterThan(c.MaxQty) {
		return apperror.New(apperror.CodeQuantityOutOfRange,
			apperror.WithContext(fmt.Sprintf("%s quantity %s above maximum %s", c.Symbol, q, c.MaxQty)))
	}
	return nil
}

// ConstraintSet indexes constraints by symbol.
type ConstraintSet map[string]SymbolConstraints

// Get returns the constraints for symbol.
func (s ConstraintSet) Get(symbol string) (SymbolConstraints, bool) {
	c, ok := s[symbol]
	return c, ok
}

// NewConstraintSet builds a set from a slice.
func NewConstraintSet(constraints []SymbolConstraints) ConstraintSet {
	set := make(ConstraintSet, len(constraints))
	for _, c := range constraints {
		set[c.Symbol] = c
	}
	return set
}
