// Package connector declares the boundary between the execution
// management core and venue-specific transport. Implementations (real
// HTTP/WebSocket clients per venue) are out of scope here and are
// consumed only through this interface, mirroring the teacher's
// exchange.Client being the one thing engine.Engine depends on without
// knowing its HTTP internals.
package connector

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/pkg/types"
)

// CreateOrderParams is the venue-facing order request the EMS builds
// after precision rounding and account-type routing are resolved.
type CreateOrderParams struct {
	Symbol       string
	AccountType  types.AccountType
	Side         types.Side
	Type         types.OrderType
	Amount       decimal.Decimal
	Price        decimal.Decimal
	TimeInForce  types.TimeInForce
	PositionSide types.PositionSide
}

// CancelOrderParams identifies the venue order to cancel.
type CancelOrderParams struct {
	Symbol      string
	AccountType types.AccountType
	OrderID     string
}

// PrivateConnector is the per-venue trading API surface the EMS drives.
// It is implemented once per venue outside this module; within this
// module only internal/connector/fake.go implements it, used by tests and
// by cmd/emc, which wires every enabled venue to the fake.
type PrivateConnector interface {
	// CreateOrder submits a new order and returns the venue's immediate
	// acknowledgement (which may itself report failure via Order.Success).
	CreateOrder(ctx context.Context, p CreateOrderParams) (types.Order, error)
	// CancelOrder requests cancellation of a resting order.
	CancelOrder(ctx context.Context, p CancelOrderParams) (types.Order, error)
}
