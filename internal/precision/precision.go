// Package precision rounds amounts and prices to the tick/lot granularity
// a venue advertises for a symbol. Grounded bit-for-bit on
// _amount_to_precision / _price_to_precision in tradebot/base/ems.py: a
// market's precision value >= 1 means an integral step (lot size 10, 100,
// ...), anything < 1 means a fractional decimal step (0.001, 0.0001, ...),
// and the two regimes are rounded differently because the integral case
// divides by the step before quantizing to a whole number, while the
// fractional case quantizes directly against the step's own decimal
// exponent.
package precision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/pkg/types"
)

// Mode selects the rounding direction.
type Mode string

const (
	Round Mode = "round"
	Ceil  Mode = "ceil"
	Floor Mode = "floor"
)

// Engine rounds amounts and prices against a symbol's Market metadata.
// Markets is a read-only snapshot loaded once at startup; Engine never
// mutates it.
type Engine struct {
	markets map[string]types.Market
}

// New returns an Engine over the given symbol -> Market table.
func New(markets map[string]types.Market) *Engine {
	m := make(map[string]types.Market, len(markets))
	for k, v := range markets {
		m[k] = v
	}
	return &Engine{markets: m}
}

// Market returns the static descriptor for symbol, if loaded.
func (e *Engine) Market(symbol string) (types.Market, bool) {
	m, ok := e.markets[symbol]
	return m, ok
}

// AmountToPrecision rounds amount to the symbol's lot size.
func (e *Engine) AmountToPrecision(symbol string, amount decimal.Decimal, mode Mode) (decimal.Decimal, error) {
	market, ok := e.markets[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("precision: unknown symbol %q", symbol)
	}
	return quantize(amount, market.Precision.Amount, mode), nil
}

// PriceToPrecision rounds price to the symbol's tick size.
func (e *Engine) PriceToPrecision(symbol string, price decimal.Decimal, mode Mode) (decimal.Decimal, error) {
	market, ok := e.markets[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("precision: unknown symbol %q", symbol)
	}
	return quantize(price, market.Precision.Price, mode), nil
}

// quantize implements the two-regime rounding algorithm common to amount
// and price precision. step >= 1 is treated as an integral lot/tick (e.g.
// 10): the value is divided by step, quantized to a whole number, then
// multiplied back. step < 1 is treated as a fractional decimal step (e.g.
// 0.001): the value is quantized directly at that step's exponent.
func quantize(value, step decimal.Decimal, mode Mode) decimal.Decimal {
	var exp, target decimal.Decimal
	if step.Cmp(decimal.NewFromInt(1)) >= 0 {
		exp = step.Truncate(0)
		target = decimal.NewFromInt(1)
	} else {
		exp = decimal.NewFromInt(1)
		target = step
	}

	scaled := value.Div(exp)
	places := -target.Exponent()
	if places < 0 {
		places = 0
	}
	factor := decimal.NewFromInt(10).Pow(decimal.NewFromInt32(places))

	var rounded decimal.Decimal
	switch mode {
	case Ceil:
		rounded = scaled.Mul(factor).Ceil().Div(factor)
	case Floor:
		rounded = scaled.Mul(factor).Floor().Div(factor)
	default: // Round: half-up, matching ROUND_HALF_UP in the original
		rounded = scaled.Round(int32(places))
	}

	return rounded.Mul(exp)
}

// LimitPrice computes the limit order price the TWAP engine quotes for a
// single slice, grounded on _cal_limit_order_price: it nudges one tick
// inside the spread when the spread is wider than a tick, otherwise it
// joins the best quote outright, then rounds to the symbol's tick size.
func (e *Engine) LimitPrice(symbol string, side types.Side, book types.BookL1) (decimal.Decimal, error) {
	market, ok := e.markets[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("precision: unknown symbol %q", symbol)
	}
	tick := market.Precision.Price
	spread := book.Ask.Sub(book.Bid)

	var price decimal.Decimal
	if side == types.Buy {
		if spread.GreaterThan(tick) {
			price = book.Bid.Add(tick)
		} else {
			price = book.Bid
		}
	} else {
		if spread.GreaterThan(tick) {
			price = book.Ask.Sub(tick)
		} else {
			price = book.Ask
		}
	}
	return e.PriceToPrecision(symbol, price, Round)
}
