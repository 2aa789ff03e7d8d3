package ems

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/internal/connector"
	"github.com/nexustrader/emc/pkg/types"
)

func TestSubmitCreateOrderRegistersAndPublishes(t *testing.T) {
	t.Parallel()
	symbol := "BTC/USDT.spot.okx"
	b := newTestBase(t, symbol)
	fake := connector.NewFake()
	b.Build(map[types.AccountType]connector.PrivateConnector{OkxLive: fake})

	var gotPending []any
	b.deps.Bus.Subscribe(EventPending, func(msg any) { gotPending = append(gotPending, msg) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	uuid := types.NewOrderUUID()
	if err := b.Submit(types.OrderSubmit{
		UUID: uuid, Symbol: symbol, SubmitType: types.SubmitCreate,
		Side: types.Buy, Type: types.Limit, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(100),
		InstrumentId: types.InstrumentId{Exchange: types.Okx, Kind: types.KindSpot},
	}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	deadline := time.After(time.Second)
	for len(gotPending) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for pending event")
		case <-time.After(time.Millisecond):
		}
	}

	if len(fake.Created) != 1 {
		t.Fatalf("expected exactly one CreateOrder call, got %d", len(fake.Created))
	}

	orderID, ok := b.deps.Registry.GetOrderID(uuid)
	if !ok || orderID == "" {
		t.Fatal("expected uuid to be registered after successful create")
	}
}

func TestSubmitCancelUnknownUUIDLogsAndReturns(t *testing.T) {
	t.Parallel()
	symbol := "BTC/USDT.spot.okx"
	b := newTestBase(t, symbol)
	fake := connector.NewFake()
	b.Build(map[types.AccountType]connector.PrivateConnector{OkxLive: fake})

	order, err := b.cancelOrder(context.Background(), types.OrderSubmit{
		Symbol: symbol, SubmitType: types.SubmitCancel, UUIDTarget: "nope",
	}, OkxLive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.UUID != "" {
		t.Fatalf("expected zero-value order for unresolvable uuid, got %+v", order)
	}
	if len(fake.Canceled) != 0 {
		t.Fatal("expected no CancelOrder call for unresolvable uuid")
	}
}

func TestSubmitUnknownAccountTypeErrors(t *testing.T) {
	t.Parallel()
	symbol := "BTC/USDT.spot.okx"
	b := newTestBase(t, symbol)
	b.Build(map[types.AccountType]connector.PrivateConnector{})

	err := b.Submit(types.OrderSubmit{
		UUID: types.NewOrderUUID(), Symbol: symbol, SubmitType: types.SubmitCreate,
		InstrumentId: types.InstrumentId{Exchange: types.Okx, Kind: types.KindSpot},
	})
	if err == nil {
		t.Fatal("expected error when no queue exists for the routed account type")
	}
}
