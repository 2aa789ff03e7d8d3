// Package types defines the shared vocabulary of the execution management
// core — orders, algo orders, positions, markets, and the order-submit
// envelope. It has no dependencies on internal packages so it can be
// imported by every layer, the way the teacher's pkg/types is structured.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType enumerates the order primitives the EMS can submit to a venue.
type OrderType string

const (
	Market   OrderType = "MARKET"
	Limit    OrderType = "LIMIT"
	PostOnly OrderType = "POST_ONLY"
)

// TimeInForce controls how long a resting order stays live.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

// PositionSide identifies which leg of a perpetual futures position a fill
// applies to. Spot markets never use anything but Both.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionBoth  PositionSide = "BOTH"
)

// OrderStatus is the lifecycle state of an Order. The allowed transitions
// between these are defined in transitions.go and enforced by the Cache.
type OrderStatus string

const (
	Initialized     OrderStatus = "INITIALIZED"
	Pending         OrderStatus = "PENDING"
	Accepted        OrderStatus = "ACCEPTED"
	PartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	Filled          OrderStatus = "FILLED"
	Canceling       OrderStatus = "CANCELING"
	Canceled        OrderStatus = "CANCELED"
	Failed          OrderStatus = "FAILED"
	Expired         OrderStatus = "EXPIRED"
)

// IsOpened reports whether an order with this status still has resting
// exposure at the venue.
func (s OrderStatus) IsOpened() bool {
	switch s {
	case Pending, Accepted, PartiallyFilled:
		return true
	default:
		return false
	}
}

// IsClosed reports whether an order with this status is terminal.
func (s OrderStatus) IsClosed() bool {
	switch s {
	case Filled, Canceled, Failed, Expired:
		return true
	default:
		return false
	}
}

// AlgoOrderStatus is the lifecycle state of a TWAP parent.
type AlgoOrderStatus string

const (
	AlgoInitialized AlgoOrderStatus = "INITIALIZED"
	AlgoRunning     AlgoOrderStatus = "RUNNING"
	AlgoFinished    AlgoOrderStatus = "FINISHED"
	AlgoCanceling   AlgoOrderStatus = "CANCELING"
	AlgoCanceled    AlgoOrderStatus = "CANCELED"
	AlgoFailed      AlgoOrderStatus = "FAILED"
)

// IsClosed reports whether an AlgoOrder with this status is terminal.
func (s AlgoOrderStatus) IsClosed() bool {
	switch s {
	case AlgoFinished, AlgoCanceled, AlgoFailed:
		return true
	default:
		return false
	}
}

// SubmitType selects which branch of the EMS an OrderSubmit envelope takes.
type SubmitType string

const (
	SubmitCreate     SubmitType = "CREATE"
	SubmitCancel     SubmitType = "CANCEL"
	SubmitTWAP       SubmitType = "TWAP"
	SubmitCancelTWAP SubmitType = "CANCEL_TWAP"
)

// ExchangeType names a venue. New venues are added here and to the
// per-venue AccountType validity table in internal/ems.
type ExchangeType string

const (
	Bybit   ExchangeType = "bybit"
	Okx     ExchangeType = "okx"
	Binance ExchangeType = "binance"
)

// InstrumentKind distinguishes the market structure a symbol trades under.
type InstrumentKind string

const (
	KindSpot    InstrumentKind = "spot"
	KindLinear  InstrumentKind = "linear"
	KindInverse InstrumentKind = "inverse"
)

// AccountType is a venue-internal partition (spot, margin, USDT-perpetual,
// inverse, portfolio-margin, testnet variants). It is an open string type
// rather than a closed Go enum because each venue defines its own set of
// valid values; internal/ems's venue routers are the source of truth for
// which AccountType values are legal for a given ExchangeType.
type AccountType string

// ALGOPrefix distinguishes AlgoOrder UUIDs from child-order UUIDs sharing
// the same address space, per spec.
const ALGOPrefix = "ALGO-"

// IsAlgoUUID reports whether uuid identifies an AlgoOrder rather than a
// plain Order.
func IsAlgoUUID(uuid string) bool {
	return strings.HasPrefix(uuid, ALGOPrefix)
}

// ————————————————————————————————————————————————————————————————————————
// Instrument identity
// ————————————————————————————————————————————————————————————————————————

// InstrumentId names an instrument: which venue, which kind of market, and
// the base/quote pair. Symbols are rendered as "BASE/QUOTE.KIND.EXCHANGE"
// so InstrumentId round-trips through ParseInstrumentId.
type InstrumentId struct {
	Exchange ExchangeType
	Kind     InstrumentKind
	Base     string
	Quote    string
}

func (i InstrumentId) Symbol() string {
	return fmt.Sprintf("%s/%s.%s.%s", i.Base, i.Quote, i.Kind, i.Exchange)
}

func (i InstrumentId) IsSpot() bool    { return i.Kind == KindSpot }
func (i InstrumentId) IsLinear() bool  { return i.Kind == KindLinear }
func (i InstrumentId) IsInverse() bool { return i.Kind == KindInverse }

// ParseInstrumentId parses the canonical symbol format produced by Symbol().
func ParseInstrumentId(symbol string) (InstrumentId, error) {
	basequote, rest, ok := strings.Cut(symbol, ".")
	if !ok {
		return InstrumentId{}, fmt.Errorf("parse instrument id %q: missing kind/exchange suffix", symbol)
	}
	kind, exchange, ok := strings.Cut(rest, ".")
	if !ok {
		return InstrumentId{}, fmt.Errorf("parse instrument id %q: missing exchange suffix", symbol)
	}
	base, quote, ok := strings.Cut(basequote, "/")
	if !ok {
		return InstrumentId{}, fmt.Errorf("parse instrument id %q: missing base/quote separator", symbol)
	}
	return InstrumentId{
		Exchange: ExchangeType(exchange),
		Kind:     InstrumentKind(kind),
		Base:     base,
		Quote:    quote,
	}, nil
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Order is a single venue-level order. UUID is client-assigned and stable
// across retries; ID is venue-assigned and only populated once the venue
// acknowledges submission.
type Order struct {
	UUID         string          `json:"uuid"`
	ID           string          `json:"id,omitempty"`
	Symbol       string          `json:"symbol"`
	Exchange     ExchangeType    `json:"exchange"`
	Side         Side            `json:"side"`
	Type         OrderType       `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price,omitempty"`
	Filled       decimal.Decimal `json:"filled"`
	Remaining    decimal.Decimal `json:"remaining"`
	Status       OrderStatus     `json:"status"`
	PositionSide PositionSide    `json:"position_side,omitempty"`
	TimeInForce  TimeInForce     `json:"time_in_force,omitempty"`
	Timestamp    int64           `json:"timestamp"` // unix millis
	Success      bool            `json:"success"`
	ErrorMsg     string          `json:"error_msg,omitempty"`
}

func (o Order) IsOpened() bool { return o.Status.IsOpened() }
func (o Order) IsClosed() bool { return o.Status.IsClosed() }

// AlgoOrder is a TWAP parent. Orders is append-only: children are never
// removed once recorded, per the invariant in spec §3.
type AlgoOrder struct {
	UUID         string          `json:"uuid"` // always prefixed with ALGOPrefix
	Symbol       string          `json:"symbol"`
	Exchange     ExchangeType    `json:"exchange"`
	Side         Side            `json:"side"`
	Amount       decimal.Decimal `json:"amount"`
	Duration     float64         `json:"duration"` // seconds
	Wait         float64         `json:"wait"`      // seconds
	Status       AlgoOrderStatus `json:"status"`
	PositionSide PositionSide    `json:"position_side,omitempty"`
	Orders       []string        `json:"orders"` // append-only child UUIDs
	Timestamp    int64           `json:"timestamp"`
}

// ————————————————————————————————————————————————————————————————————————
// Positions
// ————————————————————————————————————————————————————————————————————————

// Position is the common, venue-agnostic shape of a per-symbol aggregate.
// Spot positions only ever populate the Both-side fields; futures
// positions may track Long/Short/Both independently via PositionSide.
type Position struct {
	Symbol        string          `json:"symbol"`
	Exchange      ExchangeType    `json:"exchange"`
	Kind          InstrumentKind  `json:"kind"`
	PositionSide  PositionSide    `json:"position_side,omitempty"`
	Amount        decimal.Decimal `json:"amount"` // signed: positive = long, negative = short (futures)
	EntryPrice    decimal.Decimal `json:"entry_price"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	LastUpdated   int64           `json:"last_updated"`
}

// IsSpot reports whether this position belongs to a spot market, in which
// case PositionSide is meaningless. Apply does not clamp spot positions at
// zero: a sell larger than the holding leaves Amount negative.
func (p Position) IsSpot() bool { return p.Kind == KindSpot }

// Apply folds a closed or partially-closed order into the position,
// grounded on SpotPosition._apply in the original source: fills increase
// or decrease Amount, updating the volume-weighted EntryPrice on
// increases and realizing PnL on decreases or direction flips.
func (p *Position) Apply(order Order) {
	fillQty := order.Filled
	if fillQty.IsZero() {
		return
	}

	signedQty := fillQty
	if order.Side == Sell {
		signedQty = fillQty.Neg()
	}

	sameDirection := p.Amount.Sign() == 0 || p.Amount.Sign() == signedQty.Sign()

	if sameDirection {
		totalCost := p.EntryPrice.Mul(p.Amount.Abs()).Add(order.Price.Mul(fillQty))
		newAmount := p.Amount.Add(signedQty)
		if !newAmount.IsZero() {
			p.EntryPrice = totalCost.Div(newAmount.Abs())
		}
		p.Amount = newAmount
		return
	}

	// Reducing or flipping: realize PnL on the portion that closes existing
	// exposure, mirroring the original's reduce-then-flip handling.
	closingQty := decimal.Min(fillQty, p.Amount.Abs())
	pnlSign := decimal.NewFromInt(1)
	if p.Amount.Sign() < 0 {
		pnlSign = decimal.NewFromInt(-1)
	}
	p.RealizedPnL = p.RealizedPnL.Add(order.Price.Sub(p.EntryPrice).Mul(closingQty).Mul(pnlSign))

	p.Amount = p.Amount.Add(signedQty)
	if p.Amount.IsZero() {
		p.EntryPrice = decimal.Zero
	} else if closingQty.LessThan(fillQty) {
		// Flipped through zero: the remainder opens a new position at the
		// fill price.
		p.EntryPrice = order.Price
	}
}

// ————————————————————————————————————————————————————————————————————————
// Market metadata
// ————————————————————————————————————————————————————————————————————————

// AmountLimits bounds the quantity a venue will accept for a symbol.
type AmountLimits struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Precision holds the tick (price) and lot (amount) granularity for a
// symbol. Values >= 1 mean an integral step (e.g. lot size 10); values < 1
// mean a fractional decimal step (e.g. 0.001) — see internal/precision.
type Precision struct {
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// Market is the static, read-only per-symbol descriptor loaded once at
// startup.
type Market struct {
	Symbol    string         `json:"symbol"`
	Exchange  ExchangeType   `json:"exchange"`
	Kind      InstrumentKind `json:"kind"`
	Precision Precision      `json:"precision"`
	Limits    struct {
		Amount AmountLimits `json:"amount"`
	} `json:"limits"`
}

// ————————————————————————————————————————————————————————————————————————
// Order submission envelope
// ————————————————————————————————————————————————————————————————————————

// OrderSubmit is the request envelope strategies hand to the EMS. Fields
// not relevant to SubmitType are left zero-valued.
type OrderSubmit struct {
	UUID         string
	Symbol       string
	InstrumentId InstrumentId
	SubmitType   SubmitType
	AccountType  AccountType // explicit venue account routing override; empty = derive

	// CREATE
	Side         Side
	Type         OrderType
	Amount       decimal.Decimal
	Price        decimal.Decimal
	TimeInForce  TimeInForce
	PositionSide PositionSide

	// CANCEL / CANCEL_TWAP
	UUIDTarget string

	// TWAP
	Duration float64
	Wait     float64
}

// ————————————————————————————————————————————————————————————————————————
// Market-data snapshots (bookl1, trade, kline) — consumed via MessageBus.
// ————————————————————————————————————————————————————————————————————————

// BookL1 is the best bid/ask snapshot for a symbol.
type BookL1 struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	BidSize   decimal.Decimal `json:"bid_size"`
	Ask       decimal.Decimal `json:"ask"`
	AskSize   decimal.Decimal `json:"ask_size"`
	Timestamp int64           `json:"timestamp"`
}

// Trade is the last-trade snapshot for a symbol.
type Trade struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Side      Side            `json:"side"`
	Timestamp int64           `json:"timestamp"`
}

// Kline is the latest candle snapshot for a symbol.
type Kline struct {
	Symbol    string          `json:"symbol"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp int64           `json:"timestamp"`
}

// NowMillis returns the current wall-clock time in unix milliseconds. It is
// a thin wrapper so callers outside internal/clock don't reach for
// time.Now directly when stamping Order/AlgoOrder timestamps.
func NowMillis() int64 { return time.Now().UnixMilli() }
