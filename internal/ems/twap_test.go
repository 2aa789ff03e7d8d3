package ems

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/internal/bus"
	"github.com/nexustrader/emc/internal/cache"
	"github.com/nexustrader/emc/internal/clock"
	"github.com/nexustrader/emc/internal/connector"
	"github.com/nexustrader/emc/internal/precision"
	"github.com/nexustrader/emc/internal/registry"
	"github.com/nexustrader/emc/pkg/types"
)

// waitUntil polls cond every 5ms until it reports true or timeout elapses.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func newTestBase(t *testing.T, symbol string) *Base {
	t.Helper()
	markets := map[string]types.Market{
		symbol: {
			Symbol: symbol,
			Precision: types.Precision{
				Amount: decimal.RequireFromString("0.001"),
				Price:  decimal.RequireFromString("0.01"),
			},
			Limits: struct {
				Amount types.AmountLimits `json:"amount"`
			}{Amount: types.AmountLimits{Min: decimal.RequireFromString("0.001")}},
		},
	}
	deps := Deps{
		Markets:   markets,
		Cache:     cache.New(cache.Config{StrategyID: "s", UserID: "u"}, clock.New(), cache.NewFakeKV(), bus.New(), slog.New(slog.NewTextHandler(io.Discard, nil))),
		Bus:       bus.New(),
		Registry:  registry.New(),
		Precision: precision.New(markets),
		Clock:     clock.New(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return New(deps, NewOkxRouter())
}

func TestCalculateTwapOrdersZeroAmount(t *testing.T) {
	t.Parallel()
	b := newTestBase(t, "BTC/USDT.spot.okx")

	amounts, wait, err := b.calculateTwapOrders("BTC/USDT.spot.okx", decimal.Zero, 30, 10, decimal.RequireFromString("0.001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(amounts) != 0 || wait != 0 {
		t.Fatalf("expected empty slice list and wait=0, got amounts=%v wait=%v", amounts, wait)
	}
}

func TestCalculateTwapOrdersBelowMinimum(t *testing.T) {
	t.Parallel()
	b := newTestBase(t, "BTC/USDT.spot.okx")

	min := decimal.RequireFromString("0.01")
	amounts, wait, err := b.calculateTwapOrders("BTC/USDT.spot.okx", decimal.RequireFromString("0.005"), 30, 10, min)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(amounts) != 1 || !amounts[0].Equal(min) {
		t.Fatalf("expected single min-size slice, got %v", amounts)
	}
	if wait != 0 {
		t.Fatalf("expected wait=0, got %v", wait)
	}
}

func TestCalculateTwapOrdersNormalSplit(t *testing.T) {
	t.Parallel()
	b := newTestBase(t, "BTC/USDT.spot.okx")

	min := decimal.RequireFromString("0.001")
	amounts, wait, err := b.calculateTwapOrders("BTC/USDT.spot.okx", decimal.RequireFromString("0.03"), 30, 10, min)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	if !total.Equal(decimal.RequireFromString("0.03")) {
		t.Fatalf("expected slices to sum to total amount, got %s", total.String())
	}
	if wait <= 0 {
		t.Fatalf("expected positive wait, got %v", wait)
	}
}

// TestRunTwapCancelsStuckSliceReclaimsAndFinishes drives a full TWAP run
// through the fake connector + a real Cache: the first resting limit
// slice never fills and gets canceled once its wait slot expires, its
// remaining size is reclaimed into a replacement market order, and the
// run still reaches FINISHED once every child has closed.
func TestRunTwapCancelsStuckSliceReclaimsAndFinishes(t *testing.T) {
	t.Parallel()
	symbol := "BTC/USDT.spot.okx"
	b := newTestBase(t, symbol)
	fake := connector.NewFake()
	b.Build(map[types.AccountType]connector.PrivateConnector{OkxLive: fake})
	c := b.deps.Cache

	var mu sync.Mutex
	var pending []types.Order
	pendingCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(pending)
	}
	pendingAt := func(i int) types.Order {
		mu.Lock()
		defer mu.Unlock()
		return pending[i]
	}

	// EventPending fires synchronously on runTwap's own goroutine (Bus
	// handlers never run detached). runTwap re-checks a just-placed
	// replacement child's status on the very next loop pass with no
	// intervening sleep, so every child after the first deliberately-stuck
	// one must be marked filled right here, before createOrder returns,
	// rather than from the test goroutine racing it.
	b.deps.Bus.Subscribe(EventPending, func(msg any) {
		order := msg.(types.Order)
		mu.Lock()
		pending = append(pending, order)
		idx := len(pending)
		mu.Unlock()

		if idx >= 2 {
			c.OrderStatusUpdate(types.Order{
				UUID: order.UUID, Symbol: symbol, Exchange: types.Okx, Side: types.Buy,
				Status: types.Filled, Amount: order.Amount, Filled: order.Amount, Remaining: decimal.Zero,
				Price:     decimal.RequireFromString("100"),
				Timestamp: b.deps.Clock.NowMillis(),
			})
		}
	})

	parentUUID := types.NewAlgoUUID()
	submit := types.OrderSubmit{
		UUID:         parentUUID,
		Symbol:       symbol,
		InstrumentId: types.InstrumentId{Exchange: types.Okx, Kind: types.KindSpot},
		SubmitType:   types.SubmitTWAP,
		Side:         types.Buy,
		Amount:       decimal.RequireFromString("0.01"),
		Duration:     0.2,
		Wait:         0.1,
	}

	go b.runTwap(context.Background(), submit, OkxLive)

	waitUntil(t, 2*time.Second, func() bool { return pendingCount() >= 1 })
	first := pendingAt(0)

	// The first slice rests open past its wait slot; runTwap must cancel it.
	waitUntil(t, 2*time.Second, func() bool { return len(fake.Canceled) >= 1 })

	// Simulate the venue acking the cancel with nothing filled. runTwap is
	// parked in its watch-poll sleep at this point, so there is no race
	// with this update landing before the next check.
	c.OrderStatusUpdate(types.Order{
		UUID: first.UUID, Symbol: symbol, Exchange: types.Okx, Side: types.Buy,
		Status: types.Canceled, Amount: first.Amount, Filled: decimal.Zero, Remaining: first.Amount,
		Timestamp: b.deps.Clock.NowMillis(),
	})

	waitUntil(t, 2*time.Second, func() bool {
		algo, ok := c.GetAlgoOrder(context.Background(), parentUUID)
		return ok && algo.Status == types.AlgoFinished
	})

	// Slice two of two: one replacement for the stuck first slice's
	// reclaimed remainder, plus the originally scheduled second slice.
	if pendingCount() != 3 {
		t.Fatalf("expected three child orders (stuck + reclaim + scheduled second slice), got %d", pendingCount())
	}
	if pendingAt(1).Type != types.Market {
		t.Fatalf("expected reclaimed remainder to submit as a market order, got %s", pendingAt(1).Type)
	}

	if len(fake.Canceled) != 1 {
		t.Fatalf("expected exactly one cancel attempt, got %d", len(fake.Canceled))
	}

	algo, ok := c.GetAlgoOrder(context.Background(), parentUUID)
	if !ok {
		t.Fatal("expected algo order to remain in cache")
	}
	if len(algo.Orders) != 3 {
		t.Fatalf("expected parent to record all three child uuids, got %v", algo.Orders)
	}
}

// TestRunTwapExternalCancellationCancelsOpenOrdersAndClosesParent covers
// the CANCELING/CANCELED path: canceling the run context while a slice is
// still resting must cancel every open order on the symbol and move the
// parent to CANCELED.
func TestRunTwapExternalCancellationCancelsOpenOrdersAndClosesParent(t *testing.T) {
	t.Parallel()
	symbol := "BTC/USDT.spot.okx"
	b := newTestBase(t, symbol)
	fake := connector.NewFake()
	b.Build(map[types.AccountType]connector.PrivateConnector{OkxLive: fake})
	c := b.deps.Cache

	var mu sync.Mutex
	var pending []types.Order
	b.deps.Bus.Subscribe(EventPending, func(msg any) {
		mu.Lock()
		pending = append(pending, msg.(types.Order))
		mu.Unlock()
	})
	pendingCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(pending)
	}

	parentUUID := types.NewAlgoUUID()
	submit := types.OrderSubmit{
		UUID:         parentUUID,
		Symbol:       symbol,
		InstrumentId: types.InstrumentId{Exchange: types.Okx, Kind: types.KindSpot},
		SubmitType:   types.SubmitTWAP,
		Side:         types.Buy,
		Amount:       decimal.RequireFromString("0.01"),
		Duration:     10,
		Wait:         10,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go b.runTwap(ctx, submit, OkxLive)

	waitUntil(t, 2*time.Second, func() bool { return pendingCount() >= 1 })
	cancel()

	waitUntil(t, 2*time.Second, func() bool {
		algo, ok := c.GetAlgoOrder(context.Background(), parentUUID)
		return ok && algo.Status == types.AlgoCanceled
	})

	if len(fake.Canceled) != 1 {
		t.Fatalf("expected the one resting slice to be canceled, got %d", len(fake.Canceled))
	}
}

// TestRunTwapFirstChildFailureFailsParentImmediately covers the FAILED
// path: a connector error on the first slice must move the parent
// straight to FAILED without placing further slices.
func TestRunTwapFirstChildFailureFailsParentImmediately(t *testing.T) {
	t.Parallel()
	symbol := "BTC/USDT.spot.okx"
	b := newTestBase(t, symbol)
	fake := connector.NewFake()
	fake.FailCreate = errors.New("venue rejected order")
	b.Build(map[types.AccountType]connector.PrivateConnector{OkxLive: fake})
	c := b.deps.Cache

	parentUUID := types.NewAlgoUUID()
	submit := types.OrderSubmit{
		UUID:         parentUUID,
		Symbol:       symbol,
		InstrumentId: types.InstrumentId{Exchange: types.Okx, Kind: types.KindSpot},
		SubmitType:   types.SubmitTWAP,
		Side:         types.Buy,
		Amount:       decimal.RequireFromString("0.01"),
		Duration:     0.1,
		Wait:         0.1,
	}

	b.runTwap(context.Background(), submit, OkxLive)

	algo, ok := c.GetAlgoOrder(context.Background(), parentUUID)
	if !ok || algo.Status != types.AlgoFailed {
		t.Fatalf("expected parent FAILED after first child rejection, got %+v (ok=%v)", algo, ok)
	}
	if len(fake.Created) != 1 {
		t.Fatalf("expected exactly one CreateOrder attempt, got %d", len(fake.Created))
	}
}
