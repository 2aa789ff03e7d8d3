// Execution Management Core — a venue-routing order execution service
// that accepts OrderSubmit envelopes (create / cancel / TWAP / cancel
// TWAP), enforces per-venue account routing and precision rules, and
// tracks order/position state in a Redis-backed Cache.
//
// Architecture:
//
//	main.go                  — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	internal/engine/engine.go — orchestrator: wires Clock, Bus, Cache, Registry, per-venue EMS, OMS
//	internal/ems             — per-venue execution worker: submit/create/cancel/TWAP
//	internal/oms             — applies venue-pushed order updates to Cache, republishes lifecycle events
//	internal/cache           — in-memory order/position/market-data state, write-through to Redis
//	internal/precision       — tick/lot rounding and TWAP limit-price calculation
//	internal/registry        — uuid <-> venue order id bidirectional lookup
//	internal/connector       — PrivateConnector boundary; real venue transport is out of scope here
//	internal/config          — YAML + EMC_* env var configuration loader
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/nexustrader/emc/internal/cache"
	"github.com/nexustrader/emc/internal/config"
	"github.com/nexustrader/emc/internal/connector"
	"github.com/nexustrader/emc/internal/engine"
	"github.com/nexustrader/emc/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("EMC_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	markets, err := loadMarkets(cfg.MarketsFile)
	if err != nil {
		logger.Error("failed to load markets", "error", err, "path", cfg.MarketsFile)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	eng, err := engine.New(*cfg, markets, buildConnectors(*cfg, logger), cache.NewRedisKV(redisClient), logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("execution management core started",
		"strategy_id", cfg.Strategy.StrategyID,
		"venues", enabledVenueNames(*cfg),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

// buildConnectors wires one PrivateConnector per enabled venue account
// type. Real venue transport (HTTP/WebSocket clients, order signing) is
// out of scope for this module, so every account type is driven by the
// in-memory connector.Fake — the same "no network" branch the teacher's
// exchange.Client takes in dry-run mode. A deployment with a real
// transport layer swaps this function out for one that constructs the
// venue-specific client per account type instead.
func buildConnectors(cfg config.Config, logger *slog.Logger) engine.Connectors {
	connectors := make(engine.Connectors)
	for name, venueCfg := range cfg.Venues {
		if !venueCfg.Enabled {
			continue
		}
		exchange := types.ExchangeType(name)
		perAccount := make(map[types.AccountType]connector.PrivateConnector, len(venueCfg.AccountTypes))
		for _, at := range venueCfg.AccountTypes {
			perAccount[types.AccountType(at)] = connector.NewFake()
		}
		connectors[exchange] = perAccount
		logger.Warn("venue wired to in-memory fake connector, no live orders will be placed", "venue", name)
	}
	return connectors
}

func enabledVenueNames(cfg config.Config) []string {
	names := make([]string, 0, len(cfg.Venues))
	for name, venueCfg := range cfg.Venues {
		if venueCfg.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// loadMarkets reads the static per-symbol market descriptors EMS and
// PrecisionEngine need. An empty path loads zero markets, which is
// valid for a dry run with no symbols configured.
func loadMarkets(path string) (map[string]types.Market, error) {
	markets := make(map[string]types.Market)
	if path == "" {
		return markets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markets file: %w", err)
	}

	var list []types.Market
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse markets file: %w", err)
	}
	for _, m := range list {
		markets[m.Symbol] = m
	}
	return markets, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
