// Package market implements the market bounded context for exchange access.
package market

import (
	"context"
	"time"

	"github.com/railgun-trading/railgun/business/market/app"
	marketDI "github.com/railgun-trading/railgun/business/market/di"
	"github.com/railgun-trading/railgun/business/market/infra/binance"
	"github.com/railgun-trading/railgun/internal/config"
	"github.com/railgun-trading/railgun/internal/di"
	"github.com/railgun-trading/railgun/internal/logger"
	"github.com/railgun-trading/railgun/internal/monolith"
)

// Module implements the market bounded context.
type Module struct{}

// RegisterServices registers all market services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register ExchangeClient (Binance REST) - private dependency
	di.RegisterToken(c, marketDI.ExchangeClient, func(sr di.ServiceRegistry) app.ExchangeClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		client, err := binance.NewClient(binance.ClientConfig{
			BaseURL:           cfg.Exchange.RESTURL,
			APIKey:            cfg.Exchange.APIKey,
			SecretKey:         cfg.Exchange.SecretKey,
			RequestsPerMinute: cfg.Exchange.RequestsPerMinute,
		}, log)
		if err != nil {
			panic("failed to create binance client: " + err.Error())
		}
		return client
	})

	// Register MarketService (public - exposed to other modules)
	di.RegisterToken(c, marketDI.MarketService, func(sr di.ServiceRegistry) *app.MarketService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := marketDI.GetExchangeClient(sr)

		return app.NewMarketService(client, app.MarketServiceConfig{
			RetryAttempts: cfg.Exchange.RetryAttempts,
			RetryBackoff:  cfg.Exchange.RetryBackoff,
		}, log)
	})

	// Register TickerSource (public). With streaming enabled the source is
	// the in-memory WebSocket book, otherwise the REST service.
	di.RegisterToken(c, marketDI.TickerSource, func(sr di.ServiceRegistry) app.TickerSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if !cfg.Exchange.UseStream {
			return marketDI.GetMarketService(sr)
		}

		stream, err := binance.NewStream(binance.StreamConfig{
			WebSocketURL: cfg.Exchange.WebSocketURL,
			StaleTimeout: cfg.Exchange.StreamStale,
		}, log)
		if err != nil {
			panic("failed to create binance stream: " + err.Error())
		}
		return stream
	})

	return nil
}

// Startup initializes the market module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	// Connect the stream source if configured (don't fail startup - the
	// client reconnects in the background)
	source := marketDI.GetTickerSource(mono.Services())
	if connector, ok := source.(interface{ Connect(context.Context) error }); ok {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := connector.Connect(connectCtx); err != nil {
			log.Warn(ctx, "ticker stream connection failed, falling back to reconnect loop", "error", err)
		}
	}

	log.Info(ctx, "market module started")
	return nil
}
