package ems

import (
	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/internal/precision"
	"github.com/nexustrader/emc/pkg/types"
)

// OKX account types recognized by OkxRouter, grounded on
// nexustrader/exchange/okx's OkxAccountType enum and the DEMO/AWS/LIVE
// priority list in nexustrader/exchange/okx/ems.py.
const (
	OkxDemo types.AccountType = "okx.demo"
	OkxAws  types.AccountType = "okx.aws"
	OkxLive types.AccountType = "okx.live"
)

var okxAccountPriority = []types.AccountType{OkxDemo, OkxAws, OkxLive}

func isOkxAccountType(at types.AccountType) bool {
	return at == OkxDemo || at == OkxAws || at == OkxLive
}

// OkxRouter implements VenueRouter for OKX, grounded on
// nexustrader/exchange/okx/ems.py. Unlike Bybit, it stops at the first
// matching account type when building queues — OKX only ever trades
// through one account at a time, so a second matching connector (e.g. a
// stray AWS credential alongside a DEMO one) is intentionally ignored
// rather than given its own queue.
type OkxRouter struct {
	defaultAccount types.AccountType
}

func NewOkxRouter() *OkxRouter { return &OkxRouter{} }

func (r *OkxRouter) Name() types.ExchangeType { return types.Okx }

func (r *OkxRouter) BuildQueues(available []types.AccountType) []types.AccountType {
	for _, at := range available {
		if isOkxAccountType(at) {
			return []types.AccountType{at}
		}
	}
	return nil
}

func (r *OkxRouter) ConfigureDefaults(available []types.AccountType) {
	has := func(want types.AccountType) bool {
		for _, at := range available {
			if at == want {
				return true
			}
		}
		return false
	}
	for _, candidate := range okxAccountPriority {
		if has(candidate) {
			r.defaultAccount = candidate
			return
		}
	}
}

func (r *OkxRouter) RouteAccountType(instID types.InstrumentId) types.AccountType {
	return r.defaultAccount
}

// MinOrderAmount mirrors OKX's plain `market.limits.amount.min`, rounded
// up to the symbol's lot precision — OKX carries no extra notional floor
// the way Bybit does.
func (r *OkxRouter) MinOrderAmount(symbol string, market types.Market, book types.BookL1, eng *precision.Engine) (decimal.Decimal, error) {
	return eng.AmountToPrecision(symbol, market.Limits.Amount.Min, precision.Ceil)
}
