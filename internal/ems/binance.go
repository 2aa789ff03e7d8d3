package ems

import (
	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/internal/precision"
	"github.com/nexustrader/emc/pkg/types"
)

// Binance account types recognized by BinanceRouter, grounded on
// tradebot/exchange/binance's BinanceAccountType enum and
// tradebot/exchange/binance/ems.py's BINANCE_SPOT_PRIORITY list.
const (
	BinanceIsolatedMargin    types.AccountType = "binance.isolated_margin"
	BinanceMargin            types.AccountType = "binance.margin"
	BinanceSpotTestnet       types.AccountType = "binance.spot_testnet"
	BinanceSpot              types.AccountType = "binance.spot"
	BinanceUSDMFuture        types.AccountType = "binance.usd_m_future"
	BinanceUSDMFutureTestnet types.AccountType = "binance.usd_m_future_testnet"
	BinanceCoinMFuture       types.AccountType = "binance.coin_m_future"
	BinanceCoinMFutureTestnet types.AccountType = "binance.coin_m_future_testnet"
	BinancePortfolioMargin   types.AccountType = "binance.portfolio_margin"
)

var binanceSpotPriority = []types.AccountType{
	BinanceIsolatedMargin,
	BinanceMargin,
	BinanceSpotTestnet,
	BinanceSpot,
}

func isBinanceAccountType(at types.AccountType) bool {
	switch at {
	case BinanceIsolatedMargin, BinanceMargin, BinanceSpotTestnet, BinanceSpot,
		BinanceUSDMFuture, BinanceUSDMFutureTestnet, BinanceCoinMFuture, BinanceCoinMFutureTestnet,
		BinancePortfolioMargin:
		return true
	default:
		return false
	}
}

// BinanceRouter implements VenueRouter for Binance, grounded on
// tradebot/exchange/binance/ems.py. Binance is the most structurally
// different of the three venues: a portfolio-margin account, if
// connected, short-circuits routing for every instrument kind; otherwise
// spot/linear/inverse each get their own independently-selected default
// account, and routing depends on the submitted instrument's kind.
type BinanceRouter struct {
	spot    types.AccountType
	linear  types.AccountType
	inverse types.AccountType
	pm      types.AccountType // set only when portfolio margin is connected
}

func NewBinanceRouter() *BinanceRouter { return &BinanceRouter{} }

func (r *BinanceRouter) Name() types.ExchangeType { return types.Binance }

func (r *BinanceRouter) BuildQueues(available []types.AccountType) []types.AccountType {
	var queues []types.AccountType
	for _, at := range available {
		if isBinanceAccountType(at) {
			queues = append(queues, at)
		}
	}
	return queues
}

func (r *BinanceRouter) ConfigureDefaults(available []types.AccountType) {
	has := func(want types.AccountType) bool {
		for _, at := range available {
			if at == want {
				return true
			}
		}
		return false
	}

	if has(BinancePortfolioMargin) {
		r.pm = BinancePortfolioMargin
		return
	}

	for _, candidate := range binanceSpotPriority {
		if has(candidate) {
			r.spot = candidate
			break
		}
	}

	if has(BinanceUSDMFutureTestnet) {
		r.linear = BinanceUSDMFutureTestnet
	} else {
		r.linear = BinanceUSDMFuture
	}

	if has(BinanceCoinMFutureTestnet) {
		r.inverse = BinanceCoinMFutureTestnet
	} else {
		r.inverse = BinanceCoinMFuture
	}
}

func (r *BinanceRouter) RouteAccountType(instID types.InstrumentId) types.AccountType {
	if r.pm != "" {
		return r.pm
	}
	switch instID.Kind {
	case types.KindSpot:
		return r.spot
	case types.KindLinear:
		return r.linear
	case types.KindInverse:
		return r.inverse
	default:
		return r.spot
	}
}

// MinOrderAmount is unimplemented upstream (tradebot/exchange/binance's
// _get_min_order_amount is a stub that always returns None); this port
// supplies the one behavior that makes TWAP on Binance actually work —
// the plain exchange-advertised minimum, rounded up to lot precision,
// the same floor OKX uses.
func (r *BinanceRouter) MinOrderAmount(symbol string, market types.Market, book types.BookL1, eng *precision.Engine) (decimal.Decimal, error) {
	return eng.AmountToPrecision(symbol, market.Limits.Amount.Min, precision.Ceil)
}
