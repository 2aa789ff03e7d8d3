package ems

import (
	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/internal/precision"
	"github.com/nexustrader/emc/pkg/types"
)

// VenueRouter is the per-venue specialization hook set, the Go
// realization of the "abstract venue class with virtual methods" shape
// in nexustrader/exchange/{bybit,okx}/ems.py and
// tradebot/exchange/binance/ems.py. Each venue implements queue
// construction, default-account selection, and per-instrument routing
// differently; Base holds everything else in common.
type VenueRouter interface {
	// Name identifies the venue for logging.
	Name() types.ExchangeType

	// BuildQueues selects which of the available account types get their
	// own order-submit queue. Bybit adds every matching account type
	// (nexustrader/exchange/bybit/ems.py never breaks); OKX stops after
	// the first match (nexustrader/exchange/okx/ems.py breaks); Binance
	// adds every matching account type, same as Bybit. This divergence is
	// preserved intentionally — see DESIGN.md.
	BuildQueues(available []types.AccountType) []types.AccountType

	// ConfigureDefaults picks the priority-ordered default account
	// type(s) from the available set, mirroring each venue's
	// _set_account_type. Called once after BuildQueues, before the
	// engine starts routing submissions.
	ConfigureDefaults(available []types.AccountType)

	// RouteAccountType returns the account type an OrderSubmit with no
	// explicit override should be routed to, given its instrument.
	// Binance's routing depends on instrument kind (spot/linear/inverse)
	// unless a portfolio-margin account short-circuits all of them; Bybit
	// and OKX ignore the instrument and always return their single
	// configured default.
	RouteAccountType(instID types.InstrumentId) types.AccountType

	// MinOrderAmount computes the venue-specific floor below which a
	// TWAP slice is not worth submitting, already rounded up to the
	// symbol's lot precision.
	MinOrderAmount(symbol string, market types.Market, book types.BookL1, eng *precision.Engine) (decimal.Decimal, error)
}
