// Package config loads the tcx configuration from the environment (and an
// optional .env file) and the broker fee schedules from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/etnz/tradecost"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	DatabasePath  string // TCX_DB
	SchedulesPath string // TCX_SCHEDULES
	Broker        string // TCX_BROKER, id of the broker in use
	Currency      string // TCX_CURRENCY
	LogLevel      string // TCX_LOG_LEVEL
	LogPretty     bool   // TCX_LOG_PRETTY
	// IndustryCostPct is the reference cost, in percent of volume, used by
	// the benchmark (TCX_INDUSTRY_COST_PCT).
	IndustryCostPct tradecost.Rate
	// SmallTradeFloor is the gross amount under which a trade is small
	// (TCX_SMALL_TRADE_FLOOR).
	SmallTradeFloor tradecost.Money
}

// Load reads configuration from environment variables, after loading the
// given .env files (or ./.env by default) when they exist.
func Load(envFiles ...string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(envFiles...)

	currency := getEnv("TCX_CURRENCY", "EUR")
	industry, err := getEnvAsDecimal("TCX_INDUSTRY_COST_PCT", "0.5")
	if err != nil {
		return nil, err
	}
	floor, err := getEnvAsDecimal("TCX_SMALL_TRADE_FLOOR", "500")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabasePath:    getEnv("TCX_DB", "./data/tcx.db"),
		SchedulesPath:   getEnv("TCX_SCHEDULES", "./schedules.yaml"),
		Broker:          getEnv("TCX_BROKER", ""),
		Currency:        currency,
		LogLevel:        getEnv("TCX_LOG_LEVEL", "info"),
		LogPretty:       getEnvAsBool("TCX_LOG_PRETTY", true),
		IndustryCostPct: tradecost.R(industry),
		SmallTradeFloor: tradecost.M(floor, currency),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("TCX_DB is required")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("TCX_CURRENCY must be an ISO 4217 code, got %q", c.Currency)
	}
	if c.IndustryCostPct.IsNegative() || c.IndustryCostPct.IsZero() {
		return fmt.Errorf("TCX_INDUSTRY_COST_PCT must be positive, got %s", c.IndustryCostPct)
	}
	if c.SmallTradeFloor.IsNegative() {
		return fmt.Errorf("TCX_SMALL_TRADE_FLOOR must not be negative, got %s", c.SmallTradeFloor.Decimal())
	}
	return nil
}

// Thresholds returns the alert thresholds for this configuration. The
// schedules are the custody alternatives.
func (c *Config) Thresholds(schedules []tradecost.FeeSchedule) tradecost.Thresholds {
	th := tradecost.DefaultThresholds()
	th.SmallTradeFloor = c.SmallTradeFloor
	th.CustodyAlternatives = schedules
	return th
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", key, value, err)
	}
	return d, nil
}
