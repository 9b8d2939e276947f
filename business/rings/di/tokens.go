// Package di contains dependency injection tokens for the rings context.
package di

import (
	"github.com/railgun-trading/railgun/business/rings/app"
	"github.com/railgun-trading/railgun/business/rings/infra"
	"github.com/railgun-trading/railgun/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Detector = di.NewToken[*app.Detector]("rings.Detector")
)

// Private dependency tokens - internal to the rings module
var (
	Discovery = di.NewToken[*infra.Discovery]("rings:discovery")
)

// Helper functions for type-safe access
func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}

func GetDiscovery(c di.ServiceRegistry) *infra.Discovery {
	return di.GetToken(c, Discovery)
}
