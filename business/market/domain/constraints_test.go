package domain

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/railgun-trading/railgun/internal/apperror"
)

func makeConstraints(t *testing.T, stepQty, stepPrice, minQty, maxQty string) SymbolConstraints {
	t.Helper()
	c, err := NewSymbolConstraints("AAABUSD", "AAA", "BUSD", stepQty, stepPrice, minQty, maxQty)
	if err != nil {
		t.Fatalf("NewSymbolConstraints: %v", err)
	}
	return c
}

func TestSymbolConstraints_NormalizeQty(t *testing.T) {
	tests := []struct {
		name    string
		stepQty string
		in      string
		want    string
	}{
		{name: "truncates_to_grid", stepQty: "0.001", in: "1.23456", want: "1.234"},
		{name: "already_on_grid", stepQty: "0.001", in: "1.234", want: "1.234"},
		{name: "integer_step", stepQty: "1", in: "7.9", want: "7"},
		{name: "trailing_zeros_in_step", stepQty: "0.0100", in: "1.2345", want: "1.23"},
		{name: "never_rounds_up", stepQty: "0.1", in: "0.19999", want: "0.1"},
		{name: "zero_stays_zero", stepQty: "0.001", in: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := makeConstraints(t, tt.stepQty, "0.01", "0.001", "100000")
			in := decimal.RequireFromString(tt.in)
			got := c.NormalizeQty(in)

			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("NormalizeQty(%s) = %s, want %s", tt.in, got, tt.want)
			}
			if got.GreaterThan(in) {
				t.Errorf("NormalizeQty(%s) = %s exceeds the input", tt.in, got)
			}
		})
	}
}

func TestSymbolConstraints_NormalizePrice(t *testing.T) {
	c := makeConstraints(t, "0.001", "0.01", "0.001", "100000")

	got := c.NormalizePrice(decimal.RequireFromString("10.0299"))
	if want := decimal.RequireFromString("10.02"); !got.Equal(want) {
		t.Errorf("NormalizePrice = %s, want %s", got, want)
	}
}

func TestSymbolConstraints_CheckQty(t *testing.T) {
	c := makeConstraints(t, "0.001", "0.01", "0.1", "1000")

	tests := []struct {
		name    string
		qty     string
		wantErr bool
	}{
		{name: "within_range", qty: "5", wantErr: false},
		{name: "at_minimum", qty: "0.1", wantErr: false},
		{name: "below_minimum", qty: "0.099", wantErr: true},
		{name: "at_maximum", qty: "1000", wantErr: false},
		{name: "above_maximum", qty: "1000.001", wantErr: true},
		{name: "zero", qty: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.CheckQty(decimal.RequireFromString(tt.qty))
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckQty(%s) error = %v, wantErr %v", tt.qty, err, tt.wantErr)
			}
			if err != nil && !apperror.IsCode(err, apperror.CodeQuantityOutOfRange) {
				t.Errorf("CheckQty(%s) error code = %v, want %s", tt.qty, err, apperror.CodeQuantityOutOfRange)
			}
		})
	}
}

func TestNewSymbolConstraints_BadInput(t *testing.T) {
	if _, err := NewSymbolConstraints("AAABUSD", "AAA", "BUSD", "abc", "0.01", "0.1", "1000"); err == nil {
		t.Error("expected error for malformed step quantity")
	}
}
