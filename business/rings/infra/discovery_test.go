package infra

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
	"github.com/railgun-trading/railgun/internal/logger"
)

// fakeInfoSource serves a fixed exchangeInfo payload and counts calls.
type fakeInfoSource struct {
	constraints []marketDomain.SymbolConstraints
	calls       int
}

func (f *fakeInfoSource) GetExchangeInfo(ctx context.Context) ([]marketDomain.SymbolConstraints, error) {
	f.calls++
	return f.constraints, nil
}

func makeSymbol(t *testing.T, symbol, base, quote string) marketDomain.SymbolConstraints {
	t.Helper()
	c, err := marketDomain.NewSymbolConstraints(symbol, base, quote, "0.001", "0.01", "0.001", "100000")
	if err != nil {
		t.Fatalf("NewSymbolConstraints(%s): %v", symbol, err)
	}
	return c
}

func newTestDiscovery(t *testing.T, source *fakeInfoSource, ignored []string) *Discovery {
	t.Helper()
	dir := t.TempDir()
	return NewDiscovery(source, DiscoveryConfig{
		Stablecoin:           "BUSD",
		Bridge:               "BNB",
		Ignored:              ignored,
		RingsCachePath:       filepath.Join(dir, "rings.json"),
		ConstraintsCachePath: filepath.Join(dir, "constraints.json"),
	}, logger.New(io.Discard, logger.LevelError, "test", nil))
}

func TestDiscovery_BuildsRings(t *testing.T) {
	source := &fakeInfoSource{constraints: []marketDomain.SymbolConstraints{
		makeSymbol(t, "BNBBUSD", "BNB", "BUSD"),
		makeSymbol(t, "AAABUSD", "AAA", "BUSD"),
		makeSymbol(t, "AAABNB", "AAA", "BNB"),
		// BBB has a stable leg but no bridge leg, no ring closes.
		makeSymbol(t, "BBBBUSD", "BBB", "BUSD"),
		// CCC only trades against the bridge.
		makeSymbol(t, "CCCBNB", "CCC", "BNB"),
		// Quoted in another currency entirely.
		makeSymbol(t, "AAAUSDT", "AAA", "USDT"),
	}}

	d := newTestDiscovery(t, source, nil)
	rings, constraints, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(rings) != 1 {
		t.Fatalf("got %d rings, want 1", len(rings))
	}
	ring := rings[0]
	if ring.Base != "AAA" || ring.BuySymbol != "AAABUSD" || ring.BridgeSymbol != "AAABNB" || ring.StableSymbol != "BNBBUSD" {
		t.Errorf("ring = %+v, want AAA via AAABUSD/AAABNB/BNBBUSD", ring)
	}

	// Only the three leg symbols survive into the constraint set.
	for _, sym := range []string{"AAABUSD", "AAABNB", "BNBBUSD"} {
		if _, ok := constraints.Get(sym); !ok {
			t.Errorf("constraints missing %s", sym)
		}
	}
	if _, ok := constraints.Get("BBBBUSD"); ok {
		t.Error("constraints kept a symbol with no ring")
	}
}

func TestDiscovery_IgnoredAssets(t *testing.T) {
	source := &fakeInfoSource{constraints: []marketDomain.SymbolConstraints{
		makeSymbol(t, "BNBBUSD", "BNB", "BUSD"),
		makeSymbol(t, "AAABUSD", "AAA", "BUSD"),
		makeSymbol(t, "AAABNB", "AAA", "BNB"),
	}}

	d := newTestDiscovery(t, source, []string{"AAA"})
	_, _, err := d.Discover(context.Background())
	if err == nil {
		t.Fatal("expected an error once every base asset is ignored")
	}
}

func TestDiscovery_MissingStableLeg(t *testing.T) {
	source := &fakeInfoSource{constraints: []marketDomain.SymbolConstraints{
		// Without BNBBUSD no ring can close.
		makeSymbol(t, "AAABUSD", "AAA", "BUSD"),
		makeSymbol(t, "AAABNB", "AAA", "BNB"),
	}}

	d := newTestDiscovery(t, source, nil)
	if _, _, err := d.Discover(context.Background()); err == nil {
		t.Fatal("expected an error without the bridge/stable symbol")
	}
}

func TestDiscovery_CacheRoundTrip(t *testing.T) {
	source := &fakeInfoSource{constraints: []marketDomain.SymbolConstraints{
		makeSymbol(t, "BNBBUSD", "BNB", "BUSD"),
		makeSymbol(t, "AAABUSD", "AAA", "BUSD"),
		makeSymbol(t, "AAABNB", "AAA", "BNB"),
	}}

	d := newTestDiscovery(t, source, nil)

	first, firstConstraints, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("first Discover: %v", err)
	}
	second, secondConstraints, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("second Discover: %v", err)
	}

	if source.calls != 1 {
		t.Errorf("exchangeInfo fetched %d times, want 1 (second load from cache)", source.calls)
	}
	if len(second) != len(first) {
		t.Fatalf("cache returned %d rings, want %d", len(second), len(first))
	}
	if second[0] != first[0] {
		t.Errorf("cached ring = %+v, want %+v", second[0], first[0])
	}

	for sym := range firstConstraints {
		cached, ok := secondConstraints.Get(sym)
		if !ok {
			t.Errorf("cached constraints missing %s", sym)
			continue
		}
		if !cached.StepQty.Equal(firstConstraints[sym].StepQty) {
			t.Errorf("%s step quantity changed through the cache: %s vs %s",
				sym, cached.StepQty, firstConstraints[sym].StepQty)
		}
	}
}

func TestDiscovery_RejectsMismatchedCache(t *testing.T) {
	source := &fakeInfoSource{constraints: []marketDomain.SymbolConstraints{
		makeSymbol(t, "BNBBUSD", "BNB", "BUSD"),
		makeSymbol(t, "AAABUSD", "AAA", "BUSD"),
		makeSymbol(t, "AAABNB", "AAA", "BNB"),
	}}

	dir := t.TempDir()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	ringsPath := filepath.Join(dir, "rings.json")
	constraintsPath := filepath.Join(dir, "constraints.json")

	first := NewDiscovery(source, DiscoveryConfig{
		Stablecoin:           "BUSD",
		Bridge:               "BNB",
		RingsCachePath:       ringsPath,
		ConstraintsCachePath: constraintsPath,
	}, log)
	if _, _, err := first.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	// Same cache files, different bridge asset. The cache must be
	// ignored and the exchange asked again.
	other := NewDiscovery(&fakeInfoSource{constraints: []marketDomain.SymbolConstraints{
		makeSymbol(t, "ETHBUSD", "ETH", "BUSD"),
		makeSymbol(t, "AAABUSD", "AAA", "BUSD"),
		makeSymbol(t, "AAAETH", "AAA", "ETH"),
	}}, DiscoveryConfig{
		Stablecoin:           "BUSD",
		Bridge:               "ETH",
		RingsCachePath:       ringsPath,
		ConstraintsCachePath: constraintsPath,
	}, log)

	rings, _, err := other.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover with different bridge: %v", err)
	}
	if len(rings) != 1 || rings[0].BridgeSymbol != "AAAETH" {
		t.Errorf("rings = %+v, want the ETH ring rebuilt from the exchange", rings)
	}
}
