// Package engine is the central orchestrator of the execution management
// core.
//
// It wires together all subsystems:
//
//  1. Clock, MessageBus, Cache, and OrderRegistry are the shared
//     collaborators every other component depends on.
//  2. One ems.Base is built per enabled venue, specialized by that
//     venue's VenueRouter and wired to the PrivateConnector
//     implementations the caller supplies for it.
//  3. OMS subscribes to each enabled venue's order-update topic so
//     venue-pushed fills flow back into Cache and out to strategy
//     callbacks.
//  4. Cache runs its own periodic Redis sync goroutine.
//
// Lifecycle: New() -> Start() -> [runs until Stop] -> Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nexustrader/emc/internal/bus"
	"github.com/nexustrader/emc/internal/cache"
	"github.com/nexustrader/emc/internal/clock"
	"github.com/nexustrader/emc/internal/config"
	"github.com/nexustrader/emc/internal/connector"
	"github.com/nexustrader/emc/internal/ems"
	"github.com/nexustrader/emc/internal/oms"
	"github.com/nexustrader/emc/internal/precision"
	"github.com/nexustrader/emc/internal/registry"
	"github.com/nexustrader/emc/pkg/types"
)

// Connectors groups the PrivateConnector implementations an enabled
// venue should be wired with, keyed by the venue's own account-type
// strings. Real implementations are out of scope for this module (see
// internal/connector's package doc); callers wire in whatever transport
// they have, or internal/connector.Fake for a transport-less deployment.
type Connectors map[types.ExchangeType]map[types.AccountType]connector.PrivateConnector

// Engine orchestrates all components of the execution management core.
// It owns the lifecycle of all goroutines.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	clock    clock.Clock
	bus      *bus.Bus
	cache    *cache.Cache
	registry *registry.Registry
	prec     *precision.Engine
	oms      *oms.OMS

	// venues maps a venue name (config.Venues key) to its running EMS.
	venues map[string]*ems.Base

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires all engine components for every venue enabled in cfg.Venues.
// markets is the full set of symbol->Market descriptors the precision
// engine and EMS routers need; connectors supplies the per-venue,
// per-account-type PrivateConnector implementations to drive.
func New(cfg config.Config, markets map[string]types.Market, connectors Connectors, kv cache.KV, logger *slog.Logger) (*Engine, error) {
	logger = logger.With("component", "engine")

	clk := clock.New()
	b := bus.New()
	reg := registry.New()
	prec := precision.New(markets)

	c := cache.New(cache.Config{
		StrategyID:     cfg.Strategy.StrategyID,
		UserID:         cfg.Strategy.UserID,
		SyncInterval:   cfg.Cache.SyncInterval,
		ExpireDuration: cfg.Cache.ExpireDuration,
	}, clk, kv, b, logger)

	o := oms.New(c, b, logger)

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		clock:    clk,
		bus:      b,
		cache:    c,
		registry: reg,
		prec:     prec,
		oms:      o,
		venues:   make(map[string]*ems.Base),
		ctx:      ctx,
		cancel:   cancel,
	}

	for name, venueCfg := range cfg.Venues {
		if !venueCfg.Enabled {
			continue
		}
		exchange, router, err := venueRouter(name)
		if err != nil {
			cancel()
			return nil, err
		}

		base := ems.New(ems.Deps{
			Markets:   markets,
			Cache:     c,
			Bus:       b,
			Registry:  reg,
			Precision: prec,
			Clock:     clk,
			Logger:    logger,
		}, router)

		base.Build(connectors[exchange])
		e.venues[name] = base
		o.Subscribe(exchange)

		logger.Info("venue configured", "venue", name, "account_types", venueCfg.AccountTypes)
	}

	if len(e.venues) == 0 {
		cancel()
		return nil, fmt.Errorf("engine: no enabled venue produced a running EMS")
	}

	return e, nil
}

// venueRouter resolves a config venue name to its ExchangeType and
// VenueRouter. New venues are added here alongside their router
// implementation in internal/ems.
func venueRouter(name string) (types.ExchangeType, ems.VenueRouter, error) {
	switch name {
	case string(types.Bybit):
		return types.Bybit, ems.NewBybitRouter(), nil
	case string(types.Okx):
		return types.Okx, ems.NewOkxRouter(), nil
	case string(types.Binance):
		return types.Binance, ems.NewBinanceRouter(), nil
	default:
		return "", nil, fmt.Errorf("engine: unknown venue %q", name)
	}
}

// Start launches the Cache sync loop, the OMS lifecycle placeholder, and
// every venue EMS's order-submit queue goroutines.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.cache.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.oms.Run(e.ctx)
	}()

	for name, base := range e.venues {
		base.Start(e.ctx)
		e.logger.Info("ems started", "venue", name)
	}

	return nil
}

// Stop cancels all contexts, waits for every goroutine to exit, and
// performs one final Cache sync so the last in-memory state reaches
// Redis before the process exits.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")

	e.cancel()
	e.wg.Wait()

	closeCtx, closeCancel := context.WithCancel(context.Background())
	defer closeCancel()
	e.cache.Close(closeCtx)

	e.logger.Info("shutdown complete")
}

// Submit routes an OrderSubmit to the named venue's EMS. The venue name
// must match a key in cfg.Venues this engine was built with.
func (e *Engine) Submit(venue string, submit types.OrderSubmit) error {
	base, ok := e.venues[venue]
	if !ok {
		return fmt.Errorf("engine: no running EMS for venue %q", venue)
	}
	return base.Submit(submit)
}

// Cache exposes the shared Cache for strategy code and tests that need
// to read order/position state directly.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// Bus exposes the shared MessageBus so strategy code can subscribe to
// lifecycle events published by EMS and OMS.
func (e *Engine) Bus() *bus.Bus { return e.bus }
