// Package oms implements the order management system: the second half
// of the execution pipeline after EMS's create/cancel calls only start
// an order. OMS listens for venue-pushed order and fill updates, updates
// the Cache's authoritative state, and republishes the resulting
// lifecycle event for strategy callbacks. No Python source for this
// component survived the distillation into original_source/ — it is
// grounded on the data-flow shape spec.md's component table implies
// (PrivateConnector -> OMS -> Cache -> MessageBus -> Strategy) and on
// tradebot/engine.py's OrderManagerSystem wiring (constructed with
// cache, msgbus, task_manager; started via oms.start()).
package oms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexustrader/emc/internal/bus"
	"github.com/nexustrader/emc/internal/cache"
	"github.com/nexustrader/emc/pkg/types"
)

// VenueOrderTopic names the per-venue bus topic a connector's event loop
// publishes order/fill updates to. EMS and strategy code never publish
// here directly; only the out-of-scope venue transport layer does.
func VenueOrderTopic(exchange types.ExchangeType) string {
	return fmt.Sprintf("venue.%s.order", exchange)
}

// Lifecycle event topics OMS republishes on, named after the order
// status that triggered them (mirrors spec.md §4's published topic list).
const (
	EventAccepted        = "accepted"
	EventPartiallyFilled = "partially_filled"
	EventFilled          = "filled"
	EventCanceled        = "canceled"
)

// OMS subscribes to every configured venue's order topic and keeps the
// Cache up to date.
type OMS struct {
	cache  *cache.Cache
	bus    *bus.Bus
	logger *slog.Logger
}

// New constructs an OMS. Call Subscribe once per venue the engine
// connects to.
func New(c *cache.Cache, b *bus.Bus, logger *slog.Logger) *OMS {
	return &OMS{cache: c, bus: b, logger: logger.With("component", "oms")}
}

// Subscribe wires the OMS to one venue's order-update topic, mirroring
// OrderManagerSystem's per-connector event-loop subscription.
func (o *OMS) Subscribe(exchange types.ExchangeType) {
	o.bus.Subscribe(VenueOrderTopic(exchange), func(msg any) {
		order, ok := msg.(types.Order)
		if !ok {
			o.logger.Error("venue order update had unexpected type", "exchange", exchange)
			return
		}
		o.handleOrderUpdate(order)
	})
}

// handleOrderUpdate applies a venue-pushed order update to the Cache and
// republishes the corresponding lifecycle event. Orders never seen
// before by the Cache are treated as already-initialized (a create
// acknowledgement always reaches the Cache through EMS first); this only
// ever applies subsequent status transitions.
func (o *OMS) handleOrderUpdate(order types.Order) {
	o.cache.OrderStatusUpdate(order)

	var topic string
	switch order.Status {
	case types.Accepted:
		topic = EventAccepted
	case types.PartiallyFilled:
		topic = EventPartiallyFilled
	case types.Filled:
		topic = EventFilled
	case types.Canceled:
		topic = EventCanceled
	default:
		return
	}
	o.bus.Publish(topic, order)
}

// Run is a no-op placeholder for lifecycle symmetry with other
// components (Cache.Run, Base.Start): OMS does all of its work inside
// bus handler callbacks registered by Subscribe, so there is no
// dedicated goroutine loop to run. It accepts a context so the engine's
// uniform start sequence doesn't need a special case for it.
func (o *OMS) Run(ctx context.Context) {
	<-ctx.Done()
}
