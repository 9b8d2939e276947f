// Package trading implements the trading bounded context for order execution.
package trading

import (
	"context"

	marketDI "github.com/railgun-trading/railgun/business/market/di"
	ringsDI "github.com/railgun-trading/railgun/business/rings/di"
	"github.com/railgun-trading/railgun/business/trading/app"
	tradingDI "github.com/railgun-trading/railgun/business/trading/di"
	"github.com/railgun-trading/railgun/business/trading/infra"
	"github.com/railgun-trading/railgun/internal/config"
	"github.com/railgun-trading/railgun/internal/di"
	"github.com/railgun-trading/railgun/internal/logger"
	"github.com/railgun-trading/railgun/internal/monolith"
)

// Module implements the trading bounded context.
type Module struct{}

// RegisterServices registers all trading services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Reporter - private dependency
	di.RegisterToken(c, tradingDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		return infra.NewConsoleReporter()
	})

	// Register Poller - private dependency
	di.RegisterToken(c, tradingDI.Poller, func(sr di.ServiceRegistry) *app.Poller {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		discovery := ringsDI.GetDiscovery(sr)

		// The discovery run in the rings module already populated the
		// cache, this load is local.
		_, constraints, err := discovery.Discover(context.Background())
		if err != nil {
			panic("symbol constraints unavailable: " + err.Error())
		}

		return app.NewPoller(marketDI.GetMarketService(sr), constraints, app.PollerConfig{
			Interval:           cfg.Execution.PollInterval,
			StallPolls:         cfg.Execution.StallPolls,
			PartialStallPolls:  cfg.Execution.PartialStallPolls,
			MinShortSaleProfit: cfg.Execution.MinShortSaleProfitDecimal(),
		}, log)
	})

	// Register Executor - private dependency
	di.RegisterToken(c, tradingDI.Executor, func(sr di.ServiceRegistry) *app.Executor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		discovery := ringsDI.GetDiscovery(sr)

		_, constraints, err := discovery.Discover(context.Background())
		if err != nil {
			panic("symbol constraints unavailable: " + err.Error())
		}

		return app.NewExecutor(
			marketDI.GetMarketService(sr),
			tradingDI.GetPoller(sr),
			constraints,
			app.ExecutorConfig{
				Strategy:            cfg.Execution.Strategy,
				Stablecoin:          cfg.Rings.Stablecoin,
				FeeRate:             cfg.Exchange.TakerFeeRateDecimal(),
				MinOperatingBalance: cfg.Execution.MinOperatingBalanceDecimal(),
			},
			log,
		)
	})

	// Register Runner (public - the application entry point drives it)
	di.RegisterToken(c, tradingDI.Runner, func(sr di.ServiceRegistry) *app.Runner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewRunner(
			ringsDI.GetDetector(sr),
			tradingDI.GetExecutor(sr),
			marketDI.GetMarketService(sr),
			tradingDI.GetReporter(sr),
			app.RunnerConfig{
				Stablecoin:          cfg.Rings.Stablecoin,
				MaxInvest:           cfg.Rings.MaxInvestDecimal(),
				MinOperatingBalance: cfg.Execution.MinOperatingBalanceDecimal(),
				CycleDelay:          cfg.Rings.CycleDelay,
			},
			log,
		)
	})

	return nil
}

// Startup initializes the trading module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	// Force construction so wiring errors surface at startup, not on
	// the first cycle.
	_ = tradingDI.GetRunner(mono.Services())

	log.Info(ctx, "trading module started",
		"strategy", mono.Config().Execution.Strategy)
	return nil
}
