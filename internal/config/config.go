// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Execution strategy names accepted by execution.strategy.
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Rings     RingsConfig     `mapstructure:"rings"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	HealthPort  int    `mapstructure:"health_port"`
}

// ExchangeConfig holds exchange API configuration.
type ExchangeConfig struct {
	RESTURL           string        `mapstructure:"rest_url"`
	WebSocketURL      string        `mapstructure:"websocket_url"`
	APIKey            string        `mapstructure:"api_key"`
	SecretKey         string        `mapstructure:"secret_key"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	TakerFeeRate      float64       `mapstructure:"taker_fee_rate"`
	UseStream         bool          `mapstructure:"use_stream"`
	StreamStale       time.Duration `mapstructure:"stream_stale"`
}

// TakerFeeRateDecimal returns the per-leg taker fee as decimal.Decimal.
func (c *ExchangeConfig) TakerFeeRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TakerFeeRate)
}

// RingsConfig holds ring discovery and evaluation configuration.
type RingsConfig struct {
	Stablecoin           string        `mapstructure:"stablecoin"`
	Bridge               string        `mapstructure:"bridge"`
	Ignored              []string      `mapstructure:"ignored"`
	MaxInvest            float64       `mapstructure:"max_invest"`
	MinProfitPct         float64       `mapstructure:"min_profit_pct"`
	WarningProfitPct     float64       `mapstructure:"warning_profit_pct"`
	MinStability         int           `mapstructure:"min_stability"`
	CycleDelay           time.Duration `mapstructure:"cycle_delay"`
	BuyLegTickOffset     float64       `mapstructure:"buy_leg_tick_offset"`
	BridgeLegTickOffset  float64       `mapstructure:"bridge_leg_tick_offset"`
	StableLegTickOffset  float64       `mapstructure:"stable_leg_tick_offset"`
	CacheFile            string        `mapstructure:"cache_file"`
	ConstraintsCacheFile string        `mapstructure:"constraints_cache_file"`
}

// MaxInvestDecimal returns the per-trade investment ceiling as decimal.
func (c *RingsConfig) MaxInvestDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxInvest)
}

// MinProfitPctDecimal returns the minimum profit threshold (percent) as decimal.
func (c *RingsConfig) MinProfitPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitPct)
}

// WarningProfitPctDecimal returns the anomaly ceiling (percent) as decimal.
func (c *RingsConfig) WarningProfitPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.WarningProfitPct)
}

// TickOffsets returns the three price bias multipliers (buy, bridge, stable legs).
func (c *RingsConfig) TickOffsets() (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	return decimal.NewFromFloat(c.BuyLegTickOffset),
		decimal.NewFromFloat(c.BridgeLegTickOffset),
		decimal.NewFromFloat(c.StableLegTickOffset)
}

// ExecutionConfig holds order execution configuration.
type ExecutionConfig struct {
	Strategy            string        `mapstructure:"strategy"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	StallPolls          int           `mapstructure:"stall_polls"`
	PartialStallPolls   int           `mapstructure:"partial_stall_polls"`
	MinShortSaleProfit  float64       `mapstructure:"min_short_sale_profit"`
	MinOperatingBalance float64       `mapstructure:"min_operating_balance"`
}

// MinShortSaleProfitDecimal returns the early-exit profit floor as decimal.
func (c *ExecutionConfig) MinShortSaleProfitDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinShortSaleProfit)
}

// MinOperatingBalanceDecimal returns the minimum stablecoin balance as decimal.
func (c *ExecutionConfig) MinOperatingBalanceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinOperatingBalance)
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("RAILGUN")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Config file is optional, env vars can carry everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "RAILGUN_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "RAILGUN_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "RAILGUN_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("exchange.rest_url", "RAILGUN_EXCHANGE_REST_URL")
	v.BindEnv("exchange.websocket_url", "RAILGUN_EXCHANGE_WS_URL")
	v.BindEnv("exchange.api_key", "RAILGUN_API_KEY", "EXCHANGE_API_KEY")
	v.BindEnv("exchange.secret_key", "RAILGUN_SECRET_KEY", "EXCHANGE_SECRET_KEY")

	v.BindEnv("rings.stablecoin", "RAILGUN_STABLECOIN")
	v.BindEnv("rings.bridge", "RAILGUN_BRIDGE")
	v.BindEnv("rings.max_invest", "RAILGUN_MAX_INVEST")
	v.BindEnv("rings.min_profit_pct", "RAILGUN_MIN_PROFIT_PCT")
	v.BindEnv("rings.warning_profit_pct", "RAILGUN_WARNING_PROFIT_PCT")

	v.BindEnv("execution.strategy", "RAILGUN_EXECUTION_STRATEGY")

	v.BindEnv("telemetry.enabled", "RAILGUN_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "RAILGUN_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "RAILGUN_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "railgun")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.health_port", 8081)

	v.SetDefault("exchange.rest_url", "https://api.binance.com")
	v.SetDefault("exchange.websocket_url", "wss://stream.binance.com:9443")
	v.SetDefault("exchange.requests_per_minute", 1100)
	v.SetDefault("exchange.retry_attempts", 3)
	v.SetDefault("exchange.retry_backoff", "500ms")
	v.SetDefault("exchange.taker_fee_rate", 0.001)
	v.SetDefault("exchange.use_stream", false)
	v.SetDefault("exchange.stream_stale", "5s")

	v.SetDefault("rings.stablecoin", "BUSD")
	v.SetDefault("rings.bridge", "BNB")
	v.SetDefault("rings.ignored", []string{})
	v.SetDefault("rings.max_invest", 50.0)
	v.SetDefault("rings.min_profit_pct", 0.5)
	v.SetDefault("rings.warning_profit_pct", 9.0)
	v.SetDefault("rings.min_stability", 0)
	v.SetDefault("rings.cycle_delay", "1s")
	v.SetDefault("rings.buy_leg_tick_offset", 2.0)
	v.SetDefault("rings.bridge_leg_tick_offset", -2.0)
	v.SetDefault("rings.stable_leg_tick_offset", -100.0)
	v.SetDefault("rings.cache_file", "rings.cache.json")
	v.SetDefault("rings.constraints_cache_file", "constraints.cache.json")

	v.SetDefault("execution.strategy", StrategySequential)
	v.SetDefault("execution.poll_interval", "500ms")
	v.SetDefault("execution.stall_polls", 3)
	v.SetDefault("execution.partial_stall_polls", 6)
	v.SetDefault("execution.min_short_sale_profit", 0.1)
	v.SetDefault("execution.min_operating_balance", 10.0)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "railgun")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Exchange.RESTURL == "" {
		return fmt.Errorf("exchange.rest_url is required")
	}
	if c.Rings.Stablecoin == "" {
		return fmt.Errorf("rings.stablecoin is required")
	}
	if c.Rings.Bridge == "" {
		return fmt.Errorf("rings.bridge is required")
	}
	if c.Rings.Stablecoin == c.Rings.Bridge {
		return fmt.Errorf("rings.stablecoin and rings.bridge must differ")
	}
	if c.Rings.MaxInvest <= 0 {
		return fmt.Errorf("rings.max_invest must be positive")
	}
	if c.Rings.MinProfitPct < 0 {
		return fmt.Errorf("rings.min_profit_pct must not be negative")
	}
	if c.Rings.WarningProfitPct <= c.Rings.MinProfitPct {
		return fmt.Errorf("rings.warning_profit_pct must exceed rings.min_profit_pct")
	}
	switch c.Execution.Strategy {
	case StrategySequential, StrategyParallel:
	default:
		return fmt.Errorf("execution.strategy must be %q or %q", StrategySequential, StrategyParallel)
	}
	if c.Execution.PollInterval <= 0 {
		return fmt.Errorf("execution.poll_interval must be positive")
	}
	if c.Execution.PartialStallPolls <= c.Execution.StallPolls {
		return fmt.Errorf("execution.partial_stall_polls must exceed execution.stall_polls")
	}
	if c.Execution.MinOperatingBalance < 0 {
		return fmt.Errorf("execution.min_operating_balance must not be negative")
	}
	return nil
}
