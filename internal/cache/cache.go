// Package cache implements the in-memory order/position store with
// write-through persistence to Redis, grounded on
// tradebot/core/cache.py's AsyncCache. In-memory maps are always the
// source of truth for reads; Redis exists purely so a restarted process
// can recover recent state, and is written to on a timer rather than on
// every mutation, exactly as the original's sync_interval does.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nexustrader/emc/internal/bus"
	"github.com/nexustrader/emc/internal/clock"
	"github.com/nexustrader/emc/pkg/types"
)

// Config controls sync cadence and retention, mirroring AsyncCache's
// sync_interval / expire_time constructor parameters.
type Config struct {
	StrategyID     string
	UserID         string
	SyncInterval   time.Duration // default 60s
	ExpireDuration time.Duration // default 3600s
}

// Cache is the private-state store shared by the EMS, OMS, and engine.
// All exported methods are safe for concurrent use.
type Cache struct {
	cfg    Config
	clock  clock.Clock
	kv     KV
	bus    *bus.Bus
	logger *slog.Logger

	mu                sync.RWMutex
	closedOrders      map[string]bool
	orders            map[string]types.Order
	algoOrders        map[string]types.AlgoOrder
	openOrdersByVenue map[types.ExchangeType]map[string]struct{}
	symbolOpenOrders  map[string]map[string]struct{}
	symbolOrders      map[string]map[string]struct{}
	spotPositions     map[string]types.Position
	futurePositions   map[string]types.Position

	marketMu sync.RWMutex
	klines   map[string]types.Kline
	bookl1s  map[string]types.BookL1
	trades   map[string]types.Trade
}

// New constructs a Cache and subscribes its market-data handlers to b,
// mirroring AsyncCache.__init__'s three msgbus.subscribe calls.
func New(cfg Config, clk clock.Clock, kv KV, b *bus.Bus, logger *slog.Logger) *Cache {
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = 60 * time.Second
	}
	if cfg.ExpireDuration == 0 {
		cfg.ExpireDuration = 3600 * time.Second
	}
	c := &Cache{
		cfg:               cfg,
		clock:             clk,
		kv:                kv,
		bus:               b,
		logger:            logger.With("component", "cache"),
		closedOrders:      make(map[string]bool),
		orders:            make(map[string]types.Order),
		algoOrders:        make(map[string]types.AlgoOrder),
		openOrdersByVenue: make(map[types.ExchangeType]map[string]struct{}),
		symbolOpenOrders:  make(map[string]map[string]struct{}),
		symbolOrders:      make(map[string]map[string]struct{}),
		spotPositions:     make(map[string]types.Position),
		futurePositions:   make(map[string]types.Position),
		klines:            make(map[string]types.Kline),
		bookl1s:           make(map[string]types.BookL1),
		trades:            make(map[string]types.Trade),
	}

	b.Subscribe(bus.TopicKline, func(msg any) {
		if k, ok := msg.(types.Kline); ok {
			c.marketMu.Lock()
			c.klines[k.Symbol] = k
			c.marketMu.Unlock()
		}
	})
	b.Subscribe(bus.TopicBookL1, func(msg any) {
		if bk, ok := msg.(types.BookL1); ok {
			c.marketMu.Lock()
			c.bookl1s[bk.Symbol] = bk
			c.marketMu.Unlock()
		}
	})
	b.Subscribe(bus.TopicTrade, func(msg any) {
		if tr, ok := msg.(types.Trade); ok {
			c.marketMu.Lock()
			c.trades[tr.Symbol] = tr
			c.marketMu.Unlock()
		}
	})

	return c
}

// Run starts the periodic sync-then-evict loop and blocks until ctx is
// canceled, mirroring _periodic_sync. The engine runs this in its own
// goroutine.
func (c *Cache) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.syncToRedis(context.Background())
			return
		case <-c.clock.After(c.cfg.SyncInterval):
			c.syncToRedis(ctx)
			c.cleanupExpired()
		}
	}
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cache: encode: %w", err)
	}
	return string(b), nil
}

// syncToRedis snapshots every in-memory map and writes it through to
// Redis, mirroring _sync_to_redis's per-collection hset/sadd/set calls.
func (c *Cache) syncToRedis(ctx context.Context) {
	c.logger.Debug("syncing to redis")

	c.mu.RLock()
	orders := make(map[string]types.Order, len(c.orders))
	for k, v := range c.orders {
		orders[k] = v
	}
	algoOrders := make(map[string]types.AlgoOrder, len(c.algoOrders))
	for k, v := range c.algoOrders {
		algoOrders[k] = v
	}
	openByVenue := make(map[types.ExchangeType][]string, len(c.openOrdersByVenue))
	for ex, set := range c.openOrdersByVenue {
		for uuid := range set {
			openByVenue[ex] = append(openByVenue[ex], uuid)
		}
	}
	symbolOrders := make(map[string][]string, len(c.symbolOrders))
	for sym, set := range c.symbolOrders {
		for uuid := range set {
			symbolOrders[sym] = append(symbolOrders[sym], uuid)
		}
	}
	symbolOpenOrders := make(map[string][]string, len(c.symbolOpenOrders))
	for sym, set := range c.symbolOpenOrders {
		for uuid := range set {
			symbolOpenOrders[sym] = append(symbolOpenOrders[sym], uuid)
		}
	}
	spotPositions := make(map[string]types.Position, len(c.spotPositions))
	for k, v := range c.spotPositions {
		spotPositions[k] = v
	}
	futurePositions := make(map[string]types.Position, len(c.futurePositions))
	for k, v := range c.futurePositions {
		futurePositions[k] = v
	}
	c.mu.RUnlock()

	ordersKeyName := ordersKey(c.cfg.StrategyID, c.cfg.UserID)
	for uuid, order := range orders {
		enc, err := encode(order)
		if err != nil {
			c.logger.Error("encode order failed", "uuid", uuid, "error", err)
			continue
		}
		if err := c.kv.HSet(ctx, ordersKeyName, uuid, enc); err != nil {
			c.logger.Error("hset order failed", "uuid", uuid, "error", err)
		}
	}

	algoOrdersKeyName := algoOrdersKey(c.cfg.StrategyID, c.cfg.UserID)
	for uuid, algo := range algoOrders {
		enc, err := encode(algo)
		if err != nil {
			c.logger.Error("encode algo order failed", "uuid", uuid, "error", err)
			continue
		}
		if err := c.kv.HSet(ctx, algoOrdersKeyName, uuid, enc); err != nil {
			c.logger.Error("hset algo order failed", "uuid", uuid, "error", err)
		}
	}

	for exchange, uuids := range openByVenue {
		key := openOrdersKey(c.cfg.StrategyID, c.cfg.UserID, string(exchange))
		if err := c.kv.Del(ctx, key); err != nil {
			c.logger.Error("del open orders failed", "exchange", exchange, "error", err)
			continue
		}
		if len(uuids) > 0 {
			members := make([]any, len(uuids))
			for i, u := range uuids {
				members[i] = u
			}
			if err := c.kv.SAdd(ctx, key, members...); err != nil {
				c.logger.Error("sadd open orders failed", "exchange", exchange, "error", err)
			}
		}
	}

	for symbol, uuids := range symbolOrders {
		inst, err := types.ParseInstrumentId(symbol)
		if err != nil {
			c.logger.Error("parse instrument id failed", "symbol", symbol, "error", err)
			continue
		}
		key := symbolOrdersKey(c.cfg.StrategyID, c.cfg.UserID, string(inst.Exchange), symbol)
		if err := c.kv.Del(ctx, key); err != nil {
			continue
		}
		if len(uuids) > 0 {
			members := make([]any, len(uuids))
			for i, u := range uuids {
				members[i] = u
			}
			c.kv.SAdd(ctx, key, members...)
		}
	}

	for symbol, uuids := range symbolOpenOrders {
		inst, err := types.ParseInstrumentId(symbol)
		if err != nil {
			continue
		}
		key := symbolOpenOrdersKey(c.cfg.StrategyID, c.cfg.UserID, string(inst.Exchange), symbol)
		if err := c.kv.Del(ctx, key); err != nil {
			continue
		}
		if len(uuids) > 0 {
			members := make([]any, len(uuids))
			for i, u := range uuids {
				members[i] = u
			}
			c.kv.SAdd(ctx, key, members...)
		}
	}

	for symbol, pos := range spotPositions {
		key := symbolPositionsKey(c.cfg.StrategyID, c.cfg.UserID, string(pos.Exchange), symbol)
		if enc, err := encode(pos); err == nil {
			c.kv.Set(ctx, key, enc)
		}
	}
	for symbol, pos := range futurePositions {
		key := symbolPositionsKey(c.cfg.StrategyID, c.cfg.UserID, string(pos.Exchange), symbol)
		if enc, err := encode(pos); err == nil {
			c.kv.Set(ctx, key, enc)
		}
	}
}

// cleanupExpired drops orders (and their symbol-set membership) and algo
// orders older than ExpireDuration, mirroring _cleanup_expired_data.
// Only terminal-status entries are evicted, per spec: a still-open order
// or running algo order is never dropped from memory just because it is
// old, since OrderStatusUpdate/AlgoOrderStatusUpdate are the only paths
// that remove open-set membership and an eviction here must never leave
// a dangling open-set entry.
func (c *Cache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	expireBefore := c.clock.NowMillis() - c.cfg.ExpireDuration.Milliseconds()

	for uuid, order := range c.orders {
		if order.Timestamp < expireBefore && order.IsClosed() {
			delete(c.orders, uuid)
			delete(c.closedOrders, uuid)
			c.logger.Debug("removing order from memory", "uuid", uuid)
			for symbol, set := range c.symbolOrders {
				if _, ok := set[uuid]; ok {
					delete(set, uuid)
					c.logger.Debug("removing order from symbol", "uuid", uuid, "symbol", symbol)
				}
			}
		}
	}

	for uuid, algo := range c.algoOrders {
		if algo.Timestamp < expireBefore && algo.Status.IsClosed() {
			delete(c.algoOrders, uuid)
			c.logger.Debug("removing algo order from memory", "uuid", uuid)
		}
	}
}

// Close flushes one final sync and returns.
func (c *Cache) Close(ctx context.Context) {
	c.syncToRedis(ctx)
}

// ————————————————————————————————————————————————————————————————————————
// Public market-data reads
// ————————————————————————————————————————————————————————————————————————

func (c *Cache) Kline(symbol string) (types.Kline, bool) {
	c.marketMu.RLock()
	defer c.marketMu.RUnlock()
	k, ok := c.klines[symbol]
	return k, ok
}

func (c *Cache) BookL1(symbol string) (types.BookL1, bool) {
	c.marketMu.RLock()
	defer c.marketMu.RUnlock()
	b, ok := c.bookl1s[symbol]
	return b, ok
}

func (c *Cache) Trade(symbol string) (types.Trade, bool) {
	c.marketMu.RLock()
	defer c.marketMu.RUnlock()
	t, ok := c.trades[symbol]
	return t, ok
}

// ————————————————————————————————————————————————————————————————————————
// Private-state reads and writes
// ————————————————————————————————————————————————————————————————————————

// checkStatusTransition reports whether moving to order.Status from
// whatever status is currently recorded for order.UUID is legal,
// mirroring _check_status_transition. An order never seen before is
// always allowed through.
func (c *Cache) checkStatusTransition(order types.Order) bool {
	prev, ok := c.orders[order.UUID]
	if !ok {
		return true
	}
	if !types.IsValidTransition(prev.Status, order.Status) {
		c.logger.Error("invalid status transition", "order_id", order.ID, "from", prev.Status, "to", order.Status)
		return false
	}
	return true
}

// OrderInitialized records a brand-new order seen for the first time,
// mirroring _order_initialized. TWAP parents are recorded through
// AlgoOrderInitialized instead.
func (c *Cache) OrderInitialized(order types.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.checkStatusTransition(order) {
		return
	}
	c.orders[order.UUID] = order
	c.addToSet(c.venueSet(order.Exchange), order.UUID)
	c.addToSet(c.symbolSet(c.symbolOrders, order.Symbol), order.UUID)
	c.addToSet(c.symbolSet(c.symbolOpenOrders, order.Symbol), order.UUID)
}

// AlgoOrderInitialized records a new TWAP parent.
func (c *Cache) AlgoOrderInitialized(algo types.AlgoOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.algoOrders[algo.UUID] = algo
}

// OrderStatusUpdate applies a status transition to an already-known order,
// dropping open-order set membership once the order closes, mirroring
// _order_status_update.
func (c *Cache) OrderStatusUpdate(order types.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.checkStatusTransition(order) {
		return
	}
	c.orders[order.UUID] = order
	if order.IsClosed() {
		if set, ok := c.openOrdersByVenue[order.Exchange]; ok {
			delete(set, order.UUID)
		}
		if set, ok := c.symbolOpenOrders[order.Symbol]; ok {
			delete(set, order.UUID)
		}
	}
	if order.Symbol != "" {
		if inst, err := types.ParseInstrumentId(order.Symbol); err == nil && inst.IsSpot() {
			c.applySpotPositionLocked(order)
		}
	}
}

// AlgoOrderStatusUpdate applies a status update to a TWAP parent.
func (c *Cache) AlgoOrderStatusUpdate(algo types.AlgoOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.algoOrders[algo.UUID] = algo
}

// applySpotPositionLocked folds a closed/partially-closed order's fill
// into the symbol's spot position, mirroring _apply_spot_position. Caller
// must hold c.mu.
func (c *Cache) applySpotPositionLocked(order types.Order) {
	if c.closedOrders[order.UUID] {
		c.logger.Debug("order already closed, skipping position update", "uuid", order.UUID)
		return
	}

	pos, ok := c.spotPositions[order.Symbol]
	if !ok {
		pos = types.Position{Symbol: order.Symbol, Exchange: order.Exchange, Kind: types.KindSpot}
	}

	if order.Status == types.Filled || order.Status == types.Canceled {
		c.closedOrders[order.UUID] = true
	}

	if order.Status == types.Filled || order.Status == types.PartiallyFilled || order.Status == types.Canceled {
		c.logger.Debug("position updated", "status", order.Status, "order_id", order.ID, "side", order.Side, "filled", order.Filled, "amount", order.Amount)
		pos.Apply(order)
		pos.LastUpdated = c.clock.NowMillis()
	}

	c.spotPositions[order.Symbol] = pos
}

// ApplyFuturePosition overwrites a symbol's future position snapshot,
// mirroring _apply_future_position. Futures position computation (mark
// price, funding) happens upstream of the Cache; this is a pure store.
func (c *Cache) ApplyFuturePosition(pos types.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.futurePositions[pos.Symbol] = pos
}

// GetPosition returns the current position for symbol, checking memory
// then falling back to Redis, mirroring get_position.
func (c *Cache) GetPosition(ctx context.Context, symbol string) (types.Position, bool) {
	inst, err := types.ParseInstrumentId(symbol)
	if err != nil {
		return types.Position{}, false
	}

	c.mu.RLock()
	if inst.IsSpot() {
		if pos, ok := c.spotPositions[symbol]; ok {
			c.mu.RUnlock()
			return pos, true
		}
	} else {
		if pos, ok := c.futurePositions[symbol]; ok {
			c.mu.RUnlock()
			return pos, true
		}
	}
	c.mu.RUnlock()

	key := symbolPositionsKey(c.cfg.StrategyID, c.cfg.UserID, string(inst.Exchange), symbol)
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil || !ok {
		return types.Position{}, false
	}

	var pos types.Position
	if err := json.Unmarshal([]byte(raw), &pos); err != nil {
		c.logger.Error("decode position failed", "symbol", symbol, "error", err)
		return types.Position{}, false
	}

	c.mu.Lock()
	if inst.IsSpot() {
		c.spotPositions[symbol] = pos
	} else {
		c.futurePositions[symbol] = pos
	}
	c.mu.Unlock()

	return pos, true
}

// GetOrder returns an order by uuid, checking memory then Redis, mirroring
// get_order. It only looks at plain orders; algo orders are read with
// GetAlgoOrder.
func (c *Cache) GetOrder(ctx context.Context, uuid string) (types.Order, bool) {
	c.mu.RLock()
	order, ok := c.orders[uuid]
	c.mu.RUnlock()
	if ok {
		return order, true
	}

	key := ordersKey(c.cfg.StrategyID, c.cfg.UserID)
	raw, ok, err := c.kv.HGet(ctx, key, uuid)
	if err != nil || !ok {
		return types.Order{}, false
	}
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		c.logger.Error("decode order failed", "uuid", uuid, "error", err)
		return types.Order{}, false
	}
	c.mu.Lock()
	c.orders[uuid] = order
	c.mu.Unlock()
	return order, true
}

// GetAlgoOrder returns an AlgoOrder by uuid, checking memory then Redis.
func (c *Cache) GetAlgoOrder(ctx context.Context, uuid string) (types.AlgoOrder, bool) {
	c.mu.RLock()
	algo, ok := c.algoOrders[uuid]
	c.mu.RUnlock()
	if ok {
		return algo, true
	}

	key := algoOrdersKey(c.cfg.StrategyID, c.cfg.UserID)
	raw, ok, err := c.kv.HGet(ctx, key, uuid)
	if err != nil || !ok {
		return types.AlgoOrder{}, false
	}
	if err := json.Unmarshal([]byte(raw), &algo); err != nil {
		c.logger.Error("decode algo order failed", "uuid", uuid, "error", err)
		return types.AlgoOrder{}, false
	}
	c.mu.Lock()
	c.algoOrders[uuid] = algo
	c.mu.Unlock()
	return algo, true
}

// GetSymbolOrders returns every uuid recorded for symbol that has not been
// evicted by cleanupExpired, optionally unioned with Redis's copy,
// mirroring get_symbol_orders.
func (c *Cache) GetSymbolOrders(ctx context.Context, symbol string, inMem bool) (map[string]struct{}, error) {
	c.mu.RLock()
	mem := make(map[string]struct{}, len(c.symbolOrders[symbol]))
	for u := range c.symbolOrders[symbol] {
		mem[u] = struct{}{}
	}
	c.mu.RUnlock()

	if inMem {
		return mem, nil
	}

	inst, err := types.ParseInstrumentId(symbol)
	if err != nil {
		return nil, fmt.Errorf("cache: get symbol orders: %w", err)
	}
	key := symbolOrdersKey(c.cfg.StrategyID, c.cfg.UserID, string(inst.Exchange), symbol)
	remote, err := c.kv.SMembers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache: smembers: %w", err)
	}
	for _, u := range remote {
		mem[u] = struct{}{}
	}
	return mem, nil
}

// GetOpenOrders returns the open-order uuid set for either a symbol or an
// exchange (exactly one must be given), mirroring get_open_orders.
func (c *Cache) GetOpenOrders(symbol string, exchange types.ExchangeType) (map[string]struct{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if symbol != "" {
		return copySet(c.symbolOpenOrders[symbol]), nil
	}
	if exchange != "" {
		return copySet(c.openOrdersByVenue[exchange]), nil
	}
	return nil, fmt.Errorf("cache: get open orders: either symbol or exchange must be specified")
}

func copySet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func (c *Cache) venueSet(exchange types.ExchangeType) map[string]struct{} {
	s, ok := c.openOrdersByVenue[exchange]
	if !ok {
		s = make(map[string]struct{})
		c.openOrdersByVenue[exchange] = s
	}
	return s
}

func (c *Cache) symbolSet(parent map[string]map[string]struct{}, symbol string) map[string]struct{} {
	s, ok := parent[symbol]
	if !ok {
		s = make(map[string]struct{})
		parent[symbol] = s
	}
	return s
}

func (c *Cache) addToSet(set map[string]struct{}, uuid string) {
	set[uuid] = struct{}{}
}
