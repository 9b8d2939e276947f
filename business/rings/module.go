// Package rings implements the rings bounded context for opportunity detection.
package rings

import (
	"context"

	marketDI "github.com/railgun-trading/railgun/business/market/di"
	"github.com/railgun-trading/railgun/business/rings/app"
	ringsDI "github.com/railgun-trading/railgun/business/rings/di"
	"github.com/railgun-trading/railgun/business/rings/infra"
	"github.com/railgun-trading/railgun/internal/config"
	"github.com/railgun-trading/railgun/internal/di"
	"github.com/railgun-trading/railgun/internal/logger"
	"github.com/railgun-trading/railgun/internal/monolith"
)

// Module implements the rings bounded context.
type Module struct{}

// RegisterServices registers all rings services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Discovery - private dependency
	di.RegisterToken(c, ringsDI.Discovery, func(sr di.ServiceRegistry) *infra.Discovery {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		market := marketDI.GetMarketService(sr)

		return infra.NewDiscovery(market, infra.DiscoveryConfig{
			Stablecoin:           cfg.Rings.Stablecoin,
			Bridge:               cfg.Rings.Bridge,
			Ignored:              cfg.Rings.Ignored,
			RingsCachePath:       cfg.Rings.CacheFile,
			ConstraintsCachePath: cfg.Rings.ConstraintsCacheFile,
		}, log)
	})

	// Register Detector (public - exposed to the trading module)
	di.RegisterToken(c, ringsDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		discovery := ringsDI.GetDiscovery(sr)

		ringUniverse, constraints, err := discovery.Discover(context.Background())
		if err != nil {
			panic("ring discovery failed: " + err.Error())
		}

		buyOff, bridgeOff, stableOff := cfg.Rings.TickOffsets()
		builder := app.NewSnapshotBuilder(constraints, app.TickOffsets{
			Buy:    buyOff,
			Bridge: bridgeOff,
			Stable: stableOff,
		})

		evaluator := app.NewEvaluator(app.EvaluatorConfig{
			FeeRate:          cfg.Exchange.TakerFeeRateDecimal(),
			MinProfitPct:     cfg.Rings.MinProfitPctDecimal(),
			WarningProfitPct: cfg.Rings.WarningProfitPctDecimal(),
		})

		scheduler := app.NewScheduler(evaluator, log)

		return app.NewDetector(
			marketDI.GetTickerSource(sr),
			builder,
			scheduler,
			app.NewStabilityTracker(),
			ringUniverse,
			app.DetectorConfig{MinStability: cfg.Rings.MinStability},
			log,
		)
	})

	return nil
}

// Startup initializes the rings module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	detector := ringsDI.GetDetector(mono.Services())

	// A streaming ticker source only carries the symbols it subscribed to,
	// so feed it the discovered ring legs.
	source := marketDI.GetTickerSource(mono.Services())
	if sub, ok := source.(interface {
		Subscribe(context.Context, []string) error
	}); ok {
		symbols := make(map[string]bool)
		for _, ring := range detector.Rings() {
			symbols[ring.BuySymbol] = true
			symbols[ring.BridgeSymbol] = true
			symbols[ring.StableSymbol] = true
		}
		list := make([]string, 0, len(symbols))
		for sym := range symbols {
			list = append(list, sym)
		}
		if err := sub.Subscribe(ctx, list); err != nil {
			log.Warn(ctx, "stream subscription failed", "error", err)
		}
	}

	log.Info(ctx, "rings module started", "rings", len(detector.Rings()))
	return nil
}
