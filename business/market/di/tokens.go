// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/railgun-trading/railgun/business/market/app"
	"github.com/railgun-trading/railgun/internal/di"
)

// Public service tokens - exposed to other modules
var (
	MarketService = di.NewToken[*app.MarketService]("market.MarketService")
	TickerSource  = di.NewToken[app.TickerSource]("market.TickerSource")
)

// Private dependency tokens - internal to the market module
var (
	ExchangeClient = di.NewToken[app.ExchangeClient]("market:exchangeClient")
)

// Helper functions for type-safe access
func GetMarketService(c di.ServiceRegistry) *app.MarketService {
	return di.GetToken(c, MarketService)
}

func GetTickerSource(c di.ServiceRegistry) app.TickerSource {
	return di.GetToken(c, TickerSource)
}

func GetExchangeClient(c di.ServiceRegistry) app.ExchangeClient {
	return di.GetToken(c, ExchangeClient)
}
