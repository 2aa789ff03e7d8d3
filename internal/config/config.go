// Package config defines all configuration for the execution management
// core. Config is loaded from a YAML file (default: configs/config.yaml)
// with sensitive fields overridable via EMC_* environment variables, the
// same viper-based pattern the teacher uses for POLY_*.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Strategy    StrategyConfig         `mapstructure:"strategy"`
	Cache       CacheConfig            `mapstructure:"cache"`
	Redis       RedisConfig            `mapstructure:"redis"`
	Venues      map[string]VenueConfig `mapstructure:"venues"`
	Logging     LoggingConfig          `mapstructure:"logging"`
	MarketsFile string                 `mapstructure:"markets_file"`
}

// StrategyConfig identifies which strategy/user scope this engine
// instance persists Cache state under.
type StrategyConfig struct {
	StrategyID string `mapstructure:"strategy_id"`
	UserID     string `mapstructure:"user_id"`
}

// CacheConfig tunes the write-through sync cadence and retention window,
// mirroring AsyncCache's sync_interval / expire_time constructor
// parameters.
type CacheConfig struct {
	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	ExpireDuration time.Duration `mapstructure:"expire_duration"`
}

// RedisConfig addresses the external KV store backing Cache's
// write-through layer.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// VenueConfig lists the account types this engine instance should build
// connectors and order-submit queues for. AccountType values are
// venue-specific strings (e.g. "bybit.unified", "okx.demo",
// "binance.portfolio_margin") — see internal/ems's per-venue routers for
// the recognized set per exchange.
type VenueConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	AccountTypes []string `mapstructure:"account_types"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides. Sensitive
// fields use env vars: EMC_REDIS_PASSWORD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("EMC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if pass := os.Getenv("EMC_REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Strategy.StrategyID == "" {
		return fmt.Errorf("strategy.strategy_id is required")
	}
	if c.Strategy.UserID == "" {
		return fmt.Errorf("strategy.user_id is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Cache.SyncInterval <= 0 {
		return fmt.Errorf("cache.sync_interval must be > 0")
	}
	if c.Cache.ExpireDuration <= 0 {
		return fmt.Errorf("cache.expire_duration must be > 0")
	}
	anyEnabled := false
	for name, venue := range c.Venues {
		if !venue.Enabled {
			continue
		}
		anyEnabled = true
		if len(venue.AccountTypes) == 0 {
			return fmt.Errorf("venues.%s.account_types must list at least one account type", name)
		}
	}
	if !anyEnabled {
		return fmt.Errorf("at least one venue must be enabled")
	}
	return nil
}
