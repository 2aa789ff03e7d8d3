package ems

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/internal/precision"
	"github.com/nexustrader/emc/pkg/types"
)

// Bybit account types recognized by BybitRouter. Grounded on
// nexustrader/exchange/bybit's BybitAccountType enum, collapsed to the
// two values this router's logic actually branches on.
const (
	BybitUnified        types.AccountType = "bybit.unified"
	BybitUnifiedTestnet types.AccountType = "bybit.unified_testnet"
)

func isBybitAccountType(at types.AccountType) bool {
	return at == BybitUnified || at == BybitUnifiedTestnet
}

// BybitRouter implements VenueRouter for Bybit, grounded on
// nexustrader/exchange/bybit/ems.py: it builds a queue for every matching
// account type (no break), prefers the testnet unified account when
// present, and floors the TWAP minimum order amount at 6 USD notional
// split across the current mid price.
type BybitRouter struct {
	defaultAccount types.AccountType
}

func NewBybitRouter() *BybitRouter { return &BybitRouter{} }

func (r *BybitRouter) Name() types.ExchangeType { return types.Bybit }

func (r *BybitRouter) BuildQueues(available []types.AccountType) []types.AccountType {
	var queues []types.AccountType
	for _, at := range available {
		if isBybitAccountType(at) {
			queues = append(queues, at)
		}
	}
	return queues
}

func (r *BybitRouter) ConfigureDefaults(available []types.AccountType) {
	has := func(want types.AccountType) bool {
		for _, at := range available {
			if at == want {
				return true
			}
		}
		return false
	}
	if has(BybitUnifiedTestnet) {
		r.defaultAccount = BybitUnifiedTestnet
	} else {
		r.defaultAccount = BybitUnified
	}
}

func (r *BybitRouter) RouteAccountType(instID types.InstrumentId) types.AccountType {
	return r.defaultAccount
}

// MinOrderAmount mirrors Bybit's `max(6/mid, market.limits.amount.min)`,
// with mid = (bid+ask)/2, rounded up to the symbol's lot precision — Bybit
// requires roughly 6 USD of notional per order regardless of the
// configured exchange minimum.
func (r *BybitRouter) MinOrderAmount(symbol string, market types.Market, book types.BookL1, eng *precision.Engine) (decimal.Decimal, error) {
	mid := book.Bid.Add(book.Ask).Div(decimal.NewFromInt(2))
	if mid.IsZero() {
		return decimal.Zero, fmt.Errorf("ems: bybit min order amount: zero mid price for %s", symbol)
	}
	notionalFloor := decimal.NewFromInt(6).Div(mid)
	floor := decimal.Max(notionalFloor, market.Limits.Amount.Min)
	return eng.AmountToPrecision(symbol, floor, precision.Ceil)
}
