// Package infra contains ring discovery and cache persistence for the rings context.
package infra

import (
	"context"
	"encoding/json"
	"os"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
	"github.com/railgun-trading/railgun/business/rings/app"
	"github.com/railgun-trading/railgun/business/rings/domain"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/logger"
)

// DiscoveryConfig holds the discovery settings.
type DiscoveryConfig struct {
	Stablecoin           string
	Bridge               string
	Ignored              []string
	RingsCachePath       string
	ConstraintsCachePath string
}

// Discovery finds tradable rings from the exchange trading rules and
// persists them, so restarts skip the heavyweight exchangeInfo call.
type Discovery struct {
	source  app.ExchangeInfoSource
	cfg     DiscoveryConfig
	ignored map[string]bool
	log     logger.LoggerInterface
}

// NewDiscovery creates a Discovery.
func NewDiscovery(source app.ExchangeInfoSource, cfg DiscoveryConfig, log logger.LoggerInterface) *Discovery {
	ignored := make(map[string]bool, len(cfg.Ignored))
	for _, asset := range cfg.Ignored {
		ignored[asset] = true
	}
	return &Discovery{source: source, cfg: cfg, ignored: ignored, log: log}
}

// Discover returns the ring universe and symbol constraints, from cache
// when available, otherwise from the exchange.
func (d *Discovery) Discover(ctx context.Context) ([]domain.Ring, marketDomain.ConstraintSet, error) {
	if rings, constraints, err := d.loadCache(); err == nil {
		d.log.Info(ctx, "loaded ring universe from cache",
			"rings", len(rings), "symbols", len(constraints))
		return rings, constraints, nil
	}

	return d.Refresh(ctx)
}

// Refresh rebuilds the ring universe from the exchange and rewrites the
// caches.
func (d *Discovery) Refresh(ctx context.Context) ([]domain.Ring, marketDomain.ConstraintSet, error) {
	all, err := d.source.GetExchangeInfo(ctx)
	if err != nil {
		return nil, nil, err
	}

	rings, constraints := d.buildRings(all)
	if len(rings) == 0 {
		return nil, nil, apperror.New(apperror.CodeExchangeInfoFetchFailed,
			apperror.WithMessage("no tradable rings found"),
			apperror.WithContext("stable="+d.cfg.Stablecoin+" bridge="+d.cfg.Bridge))
	}

	if err := d.writeCache(rings, constraints); err != nil {
		// Cache write failure is not fatal, next start just rediscovers.
		d.log.Warn(ctx, "failed to write ring cache", "error", err)
	}

	d.log.Info(ctx, "discovered ring universe",
		"rings", len(rings), "symbols", len(constraints))
	return rings, constraints, nil
}

// buildRings selects every base asset that trades against both the
// stablecoin and the bridge. The bridge/stable symbol itself must trade
// or no ring can close.
func (d *Discovery) buildRings(all []marketDomain.SymbolConstraints) ([]domain.Ring, marketDomain.ConstraintSet) {
	bySymbol := marketDomain.NewConstraintSet(all)

	stableLeg := d.cfg.Bridge + d.cfg.Stablecoin
	if _, ok := bySymbol.Get(stableLeg); !ok {
		return nil, nil
	}

	var rings []domain.Ring
	kept := marketDomain.ConstraintSet{}

	for _, c := range all {
		if c.QuoteAsset != d.cfg.Stablecoin || c.BaseAsset == d.cfg.Bridge {
			continue
		}
		if d.ignored[c.BaseAsset] {
			continue
		}

		bridgeLeg, ok := bySymbol.Get(c.BaseAsset + d.cfg.Bridge)
		if !ok {
			continue
		}

		ring := domain.NewRing(c.BaseAsset, d.cfg.Bridge, d.cfg.Stablecoin)
		rings = append(rings, ring)
		kept[c.Symbol] = c
		kept[bridgeLeg.Symbol] = bridgeLeg
	}

	if len(rings) > 0 {
		leg, _ := bySymbol.Get(stableLeg)
		kept[stableLeg] = leg
	}

	return rings, kept
}

// ringCache is the on-disk layout of the rings cache file.
type ringCache struct {
	Stablecoin string        `json:"stablecoin"`
	Bridge     string        `json:"bridge"`
	Rings      []domain.Ring `json:"rings"`
}

func (d *Discovery) loadCache() ([]domain.Ring, marketDomain.ConstraintSet, error) {
	ringData, err := os.ReadFile(d.cfg.RingsCachePath)
	if err != nil {
		return nil, nil, err
	}
	constraintData, err := os.ReadFile(d.cfg.ConstraintsCachePath)
	if err != nil {
		return nil, nil, err
	}

	var cache ringCache
	if err := json.Unmarshal(ringData, &cache); err != nil {
		return nil, nil, err
	}
	// A cache produced for different assets is worthless.
	if cache.Stablecoin != d.cfg.Stablecoin || cache.Bridge != d.cfg.Bridge || len(cache.Rings) == 0 {
		return nil, nil, apperror.New(apperror.CodeExchangeInfoFetchFailed,
			apperror.WithMessage("ring cache does not match configuration"))
	}

	var constraints marketDomain.ConstraintSet
	if err := json.Unmarshal(constraintData, &constraints); err != nil {
		return nil, nil, err
	}
	if len(constraints) == 0 {
		return nil, nil, apperror.New(apperror.CodeExchangeInfoFetchFailed,
			apperror.WithMessage("constraints cache is empty"))
	}

	return cache.Rings, constraints, nil
}

func (d *Discovery) writeCache(rings []domain.Ring, constraints marketDomain.ConstraintSet) error {
	ringData, err := json.MarshalIndent(ringCache{
		Stablecoin: d.cfg.Stablecoin,
		Bridge:     d.cfg.Bridge,
		Rings:      rings,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(d.cfg.RingsCachePath, ringData, 0o644); err != nil {
		return err
	}

	constraintData, err := json.MarshalIndent(constraints, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(d.cfg.ConstraintsCachePath, constraintData, 0o644)
}
