// Package di contains dependency injection tokens for the trading context.
package di

import (
	"github.com/railgun-trading/railgun/business/trading/app"
	"github.com/railgun-trading/railgun/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Runner = di.NewToken[*app.Runner]("trading.Runner")
)

// Private dependency tokens - internal to the trading module
var (
	Executor = di.NewToken[*app.Executor]("trading:executor")
	Poller   = di.NewToken[*app.Poller]("trading:poller")
	Reporter = di.NewToken[app.Reporter]("trading:reporter")
)

// Helper functions for type-safe access
func GetRunner(c di.ServiceRegistry) *app.Runner {
	return di.GetToken(c, Runner)
}

func GetExecutor(c di.ServiceRegistry) *app.Executor {
	return di.GetToken(c, Executor)
}

func GetPoller(c di.ServiceRegistry) *app.Poller {
	return di.GetToken(c, Poller)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
