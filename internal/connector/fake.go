package connector

import (
	"context"
	"sync"

	"github.com/nexustrader/emc/pkg/types"
)

// Fake is a deterministic in-memory PrivateConnector for tests, grounded
// on the teacher's Client.dryRun branch: it returns synthetic success
// acknowledgements without ever touching the network. Every call is
// recorded so tests can assert on what the EMS submitted.
type Fake struct {
	mu       sync.Mutex
	Created  []CreateOrderParams
	Canceled []CancelOrderParams

	// FailCreate, if set, is returned as the error from CreateOrder
	// instead of a synthetic success.
	FailCreate error
}

// NewFake returns a Fake ready to accept calls.
func NewFake() *Fake { return &Fake{} }

func (f *Fake) CreateOrder(ctx context.Context, p CreateOrderParams) (types.Order, error) {
	f.mu.Lock()
	f.Created = append(f.Created, p)
	f.mu.Unlock()

	if f.FailCreate != nil {
		return types.Order{}, f.FailCreate
	}

	return types.Order{
		ID:           types.NewOrderUUID(),
		Symbol:       p.Symbol,
		Side:         p.Side,
		Type:         p.Type,
		Amount:       p.Amount,
		Price:        p.Price,
		Status:       types.Accepted,
		PositionSide: p.PositionSide,
		TimeInForce:  p.TimeInForce,
		Success:      true,
	}, nil
}

func (f *Fake) CancelOrder(ctx context.Context, p CancelOrderParams) (types.Order, error) {
	f.mu.Lock()
	f.Canceled = append(f.Canceled, p)
	f.mu.Unlock()

	return types.Order{
		ID:      p.OrderID,
		Symbol:  p.Symbol,
		Status:  types.Canceling,
		Success: true,
	}, nil
}
