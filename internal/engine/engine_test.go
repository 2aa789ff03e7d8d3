package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/internal/cache"
	"github.com/nexustrader/emc/internal/config"
	"github.com/nexustrader/emc/internal/connector"
	"github.com/nexustrader/emc/internal/ems"
	"github.com/nexustrader/emc/pkg/types"
)

func testConfig() config.Config {
	return config.Config{
		Strategy: config.StrategyConfig{StrategyID: "s1", UserID: "u1"},
		Cache:    config.CacheConfig{SyncInterval: time.Minute, ExpireDuration: time.Hour},
		Redis:    config.RedisConfig{Addr: "localhost:6379"},
		Venues: map[string]config.VenueConfig{
			"okx": {Enabled: true, AccountTypes: []string{"okx.live"}},
		},
	}
}

func testMarkets(symbol string) map[string]types.Market {
	return map[string]types.Market{
		symbol: {
			Symbol:   symbol,
			Exchange: types.Okx,
			Kind:     types.KindSpot,
			Precision: types.Precision{
				Amount: decimal.NewFromFloat(0.001),
				Price:  decimal.NewFromFloat(0.01),
			},
			Limits: struct {
				Amount types.AmountLimits `json:"amount"`
			}{Amount: types.AmountLimits{Min: decimal.NewFromFloat(0.001)}},
		},
	}
}

func TestNewRequiresAtLeastOneEnabledVenue(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Venues = map[string]config.VenueConfig{"okx": {Enabled: false}}

	_, err := New(cfg, nil, Connectors{}, cache.NewFakeKV(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected error when no venue is enabled")
	}
}

func TestEngineStartSubmitStop(t *testing.T) {
	t.Parallel()
	symbol := "BTC/USDT.spot.okx"
	cfg := testConfig()
	fake := connector.NewFake()

	e, err := New(cfg, testMarkets(symbol), Connectors{
		types.Okx: {types.AccountType("okx.live"): fake},
	}, cache.NewFakeKV(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotPending []any
	e.Bus().Subscribe(ems.EventPending, func(msg any) { gotPending = append(gotPending, msg) })

	if err := e.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer e.Stop()

	if err := e.Submit("okx", types.OrderSubmit{
		UUID: types.NewOrderUUID(), Symbol: symbol, SubmitType: types.SubmitCreate,
		Side: types.Buy, Type: types.Limit, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(100),
		InstrumentId: types.InstrumentId{Exchange: types.Okx, Kind: types.KindSpot},
		AccountType:  types.AccountType("okx.live"),
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
		t.Fatalf("expected one CreateOrder call, got %d", len(fake.Created))
	}
}

func TestEngineSubmitUnknownVenueErrors(t *testing.T) {
	t.Parallel()
	symbol := "BTC/USDT.spot.okx"
	cfg := testConfig()
	fake := connector.NewFake()

	e, err := New(cfg, testMarkets(symbol), Connectors{
		types.Okx: {types.AccountType("okx.live"): fake},
	}, cache.NewFakeKV(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.Submit("bybit", types.OrderSubmit{}); err == nil {
		t.Fatal("expected error for unconfigured venue")
	}
}
