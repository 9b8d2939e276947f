// Package main is the entry point for the railgun ring trader.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/railgun-trading/railgun/business/market"
	marketDI "github.com/railgun-trading/railgun/business/market/di"
	"github.com/railgun-trading/railgun/business/rings"
	"github.com/railgun-trading/railgun/business/trading"
	tradingDI "github.com/railgun-trading/railgun/business/trading/di"
	"github.com/railgun-trading/railgun/internal/apm"
	"github.com/railgun-trading/railgun/internal/config"
	"github.com/railgun-trading/railgun/internal/health"
	"github.com/railgun-trading/railgun/internal/logger"
	"github.com/railgun-trading/railgun/internal/metrics"
	"github.com/railgun-trading/railgun/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("railgun %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting railgun",
		"version", version,
		"environment", cfg.App.Environment,
		"stablecoin", cfg.Rings.Stablecoin,
		"bridge", cfg.Rings.Bridge,
	)

	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(cfg.Telemetry.ServiceName,
			apm.WithProvider(apm.OTLPGRPCProvider, cfg.Telemetry.OTLPEndpoint, log))
		log.Info(ctx, "tracing initialized", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	healthServer := health.NewServer(cfg.App.HealthPort, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.App.HealthPort)
	}
	defer healthServer.Stop(ctx)

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}

	// Modules in dependency order
	modules := []monolith.Module{
		&market.Module{},  // Exchange access, must be first
		&rings.Module{},   // Depends on market for discovery and tickers
		&trading.Module{}, // Depends on market and rings
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	// The bridge/stable pair exists in every ring, so its book doubles
	// as an exchange reachability probe.
	marketSvc := marketDI.GetMarketService(mono.Services())
	probeSymbol := cfg.Rings.Bridge + cfg.Rings.Stablecoin
	healthServer.RegisterCheck("exchange", func(ctx context.Context) (bool, string) {
		book, err := marketSvc.GetBookTicker(ctx, probeSymbol)
		if err != nil {
			return false, err.Error()
		}
		if book.IsZero() {
			return false, "empty book for " + probeSymbol
		}
		return true, ""
	})

	runner := tradingDI.GetRunner(mono.Services())
	log.Info(ctx, "all modules started, entering trading loop")

	if err := runner.Run(ctx); err != nil {
		log.Error(ctx, "trading loop halted", "error", err)
		return err
	}

	log.Info(ctx, "shutting down")
	return nil
}
