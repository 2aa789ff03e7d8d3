// Package ems implements the execution management system: translation of
// high-level OrderSubmit envelopes into venue calls, per-venue account
// routing, and the TWAP slicing engine. Grounded on
// tradebot/base/ems.py's ExecutionManagementSystem, generalized from one
// abstract Python base class with per-venue subclasses into one Base
// struct parameterized over a VenueRouter interface (see router.go) —
// the natural Go shape for "shared algorithm, varying policy hooks."
package ems

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/internal/bus"
	"github.com/nexustrader/emc/internal/cache"
	"github.com/nexustrader/emc/internal/clock"
	"github.com/nexustrader/emc/internal/connector"
	"github.com/nexustrader/emc/internal/precision"
	"github.com/nexustrader/emc/internal/registry"
	"github.com/nexustrader/emc/pkg/types"
)

// MessageBus topics an EMS publishes order lifecycle events to, per
// spec's "create"/"cancel" path.
const (
	EventPending      = "pending"
	EventFailed       = "failed"
	EventCanceling    = "canceling"
	EventCancelFailed = "cancel_failed"
)

// queueCapacity bounds each venue account-type's order-submit queue. The
// original uses an unbounded asyncio.Queue; Go channels need a capacity,
// so submissions beyond this are rejected with an error rather than
// blocking the submitting goroutine indefinitely.
const queueCapacity = 4096

// Deps bundles the shared collaborators every venue EMS needs, mirroring
// the constructor parameters common to tradebot/base/ems.py's
// ExecutionManagementSystem and its three venue subclasses.
type Deps struct {
	Markets   map[string]types.Market
	Cache     *cache.Cache
	Bus       *bus.Bus
	Registry  *registry.Registry
	Precision *precision.Engine
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Base is the common EMS engine, specialized per venue by a VenueRouter
// and a set of PrivateConnector implementations (one per account type).
type Base struct {
	deps   Deps
	router VenueRouter
	logger *slog.Logger

	connectors map[types.AccountType]connector.PrivateConnector
	queues     map[types.AccountType]chan types.OrderSubmit

	mu          sync.Mutex
	twapCancels map[string]context.CancelFunc
}

// New constructs a Base EMS for one venue. Build must be called before
// Start to wire connectors and compute account-type routing.
func New(deps Deps, router VenueRouter) *Base {
	return &Base{
		deps:        deps,
		router:      router,
		logger:      deps.Logger.With("component", "ems", "venue", router.Name()),
		twapCancels: make(map[string]context.CancelFunc),
	}
}

// Build wires the venue's live connectors, builds one order-submit queue
// per selected account type (per VenueRouter.BuildQueues), and resolves
// default account-type routing, mirroring ExecutionManagementSystem._build.
func (b *Base) Build(connectors map[types.AccountType]connector.PrivateConnector) {
	b.connectors = connectors

	available := make([]types.AccountType, 0, len(connectors))
	for at := range connectors {
		available = append(available, at)
	}

	b.queues = make(map[types.AccountType]chan types.OrderSubmit)
	for _, at := range b.router.BuildQueues(available) {
		b.queues[at] = make(chan types.OrderSubmit, queueCapacity)
	}

	b.router.ConfigureDefaults(available)
}

// Start launches one goroutine per order-submit queue, mirroring
// ExecutionManagementSystem.start's per-account-type task_manager.create_task.
func (b *Base) Start(ctx context.Context) {
	for at, q := range b.queues {
		go b.runQueue(ctx, at, q)
	}
}

func (b *Base) runQueue(ctx context.Context, accountType types.AccountType, queue chan types.OrderSubmit) {
	b.logger.Debug("handling orders for account type", "account_type", accountType)
	for {
		select {
		case <-ctx.Done():
			return
		case submit := <-queue:
			b.logger.Debug("order submit", "submit_type", submit.SubmitType, "uuid", submit.UUID)
			switch submit.SubmitType {
			case types.SubmitCreate:
				b.createOrder(ctx, submit, accountType)
			case types.SubmitCancel:
				b.cancelOrder(ctx, submit, accountType)
			case types.SubmitTWAP:
				b.startTwap(ctx, submit, accountType)
			case types.SubmitCancelTWAP:
				b.cancelTwap(submit.UUIDTarget)
			}
		}
	}
}

// Submit routes an OrderSubmit to the appropriate account-type queue.
// AccountType on the envelope, if set, overrides routing.
func (b *Base) Submit(submit types.OrderSubmit) error {
	at := submit.AccountType
	if at == "" {
		at = b.router.RouteAccountType(submit.InstrumentId)
	}
	queue, ok := b.queues[at]
	if !ok {
		return fmt.Errorf("ems: no order-submit queue for account type %q", at)
	}
	select {
	case queue <- submit:
		return nil
	default:
		return fmt.Errorf("ems: order-submit queue full for account type %q", at)
	}
}

// createOrder submits a new order, mirroring _create_order.
func (b *Base) createOrder(ctx context.Context, submit types.OrderSubmit, accountType types.AccountType) (types.Order, error) {
	conn, ok := b.connectors[accountType]
	if !ok {
		return types.Order{}, fmt.Errorf("ems: no connector for account type %q", accountType)
	}

	order, err := conn.CreateOrder(ctx, connector.CreateOrderParams{
		Symbol:       submit.Symbol,
		AccountType:  accountType,
		Side:         submit.Side,
		Type:         submit.Type,
		Amount:       submit.Amount,
		Price:        submit.Price,
		TimeInForce:  submit.TimeInForce,
		PositionSide: submit.PositionSide,
	})
	if err != nil {
		return order, fmt.Errorf("ems: create order: %w", err)
	}
	order.UUID = submit.UUID
	if order.Timestamp == 0 {
		order.Timestamp = b.deps.Clock.NowMillis()
	}

	if order.Success {
		b.deps.Registry.Register(order.UUID, order.ID)
		b.deps.Cache.OrderInitialized(order)
		b.deps.Bus.Publish(EventPending, order)
	} else {
		order.Status = types.Failed
		b.deps.Cache.OrderStatusUpdate(order)
		b.deps.Bus.Publish(EventFailed, order)
	}
	return order, nil
}

// cancelOrder resolves uuid to a venue order id and cancels it, mirroring
// _cancel_order. An unresolvable uuid is logged and dropped, matching
// the "order may already be closed" behavior.
func (b *Base) cancelOrder(ctx context.Context, submit types.OrderSubmit, accountType types.AccountType) (types.Order, error) {
	orderID, ok := b.deps.Registry.GetOrderID(submit.UUIDTarget)
	if !ok {
		b.logger.Error("order id not found, order may already be canceled, filled, or not exist", "uuid", submit.UUIDTarget)
		return types.Order{}, nil
	}

	conn, ok := b.connectors[accountType]
	if !ok {
		return types.Order{}, fmt.Errorf("ems: no connector for account type %q", accountType)
	}

	order, err := conn.CancelOrder(ctx, connector.CancelOrderParams{
		Symbol:      submit.Symbol,
		AccountType: accountType,
		OrderID:     orderID,
	})
	if err != nil {
		return order, fmt.Errorf("ems: cancel order: %w", err)
	}
	order.UUID = submit.UUIDTarget

	if order.Success {
		order.Status = types.Canceling
		b.deps.Cache.OrderStatusUpdate(order)
		b.deps.Bus.Publish(EventCanceling, order)
	} else {
		b.deps.Bus.Publish(EventCancelFailed, order)
	}
	return order, nil
}

// MinOrderAmount exposes the venue's minimum TWAP slice size for a
// symbol, using the latest cached top-of-book.
func (b *Base) MinOrderAmount(symbol string) (decimal.Decimal, error) {
	market, ok := b.deps.Markets[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("ems: unknown symbol %q", symbol)
	}
	book, _ := b.deps.Cache.BookL1(symbol)
	return b.router.MinOrderAmount(symbol, market, book, b.deps.Precision)
}
