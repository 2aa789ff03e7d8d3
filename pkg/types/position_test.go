package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPositionApplyOpensFromFlat(t *testing.T) {
	t.Parallel()
	p := Position{Symbol: "BTC/USDT.spot.okx", Kind: KindSpot}
	p.Apply(Order{Side: Buy, Filled: dec("1"), Price: dec("100")})

	if !p.Amount.Equal(dec("1")) {
		t.Fatalf("expected amount 1, got %s", p.Amount)
	}
	if !p.EntryPrice.Equal(dec("100")) {
		t.Fatalf("expected entry price 100, got %s", p.EntryPrice)
	}
}

func TestPositionApplyAveragesEntryPriceOnIncrease(t *testing.T) {
	t.Parallel()
	p := Position{Symbol: "BTC/USDT.spot.okx", Kind: KindSpot}
	p.Apply(Order{Side: Buy, Filled: dec("1"), Price: dec("100")})
	p.Apply(Order{Side: Buy, Filled: dec("1"), Price: dec("200")})

	if !p.Amount.Equal(dec("2")) {
		t.Fatalf("expected amount 2, got %s", p.Amount)
	}
	if !p.EntryPrice.Equal(dec("150")) {
		t.Fatalf("expected averaged entry price 150, got %s", p.EntryPrice)
	}
}

func TestPositionApplyRealizesPnLOnReduce(t *testing.T) {
	t.Parallel()
	p := Position{Symbol: "BTC/USDT.spot.okx", Kind: KindSpot}
	p.Apply(Order{Side: Buy, Filled: dec("2"), Price: dec("100")})
	p.Apply(Order{Side: Sell, Filled: dec("1"), Price: dec("120")})

	if !p.Amount.Equal(dec("1")) {
		t.Fatalf("expected remaining amount 1, got %s", p.Amount)
	}
	if !p.RealizedPnL.Equal(dec("20")) {
		t.Fatalf("expected realized pnl 20, got %s", p.RealizedPnL)
	}
	if !p.EntryPrice.Equal(dec("100")) {
		t.Fatalf("expected entry price unchanged at 100, got %s", p.EntryPrice)
	}
}

func TestPositionApplyFlipsThroughZero(t *testing.T) {
	t.Parallel()
	p := Position{Symbol: "BTC/USDT.spot.okx", Kind: KindSpot}
	p.Apply(Order{Side: Buy, Filled: dec("1"), Price: dec("100")})
	p.Apply(Order{Side: Sell, Filled: dec("3"), Price: dec("110")})

	if !p.Amount.Equal(dec("-2")) {
		t.Fatalf("expected flipped amount -2, got %s", p.Amount)
	}
	if !p.EntryPrice.Equal(dec("110")) {
		t.Fatalf("expected new entry price 110 from the flip, got %s", p.EntryPrice)
	}
	if !p.RealizedPnL.Equal(dec("10")) {
		t.Fatalf("expected realized pnl 10 from the closing portion, got %s", p.RealizedPnL)
	}
}

func TestPositionApplyIgnoresZeroFill(t *testing.T) {
	t.Parallel()
	p := Position{Symbol: "BTC/USDT.spot.okx", Kind: KindSpot, Amount: dec("1"), EntryPrice: dec("100")}
	p.Apply(Order{Side: Buy, Filled: decimal.Zero, Price: dec("999")})

	if !p.Amount.Equal(dec("1")) || !p.EntryPrice.Equal(dec("100")) {
		t.Fatalf("expected position unchanged on zero fill, got %+v", p)
	}
}
