package ems

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexustrader/emc/internal/precision"
	"github.com/nexustrader/emc/pkg/types"
)

// watchInterval is the polling cadence while a TWAP slice has an
// outstanding child order, mirroring _twap_order's check_interval = 0.1.
const watchInterval = 100 * time.Millisecond

// startTwap launches the TWAP task for a parent uuid as its own
// goroutine, cancelable through b.twapCancels, mirroring
// _create_twap_order's task_manager.create_task.
func (b *Base) startTwap(parentCtx context.Context, submit types.OrderSubmit, accountType types.AccountType) {
	ctx, cancel := context.WithCancel(parentCtx)

	b.mu.Lock()
	b.twapCancels[submit.UUID] = cancel
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.twapCancels, submit.UUID)
			b.mu.Unlock()
		}()
		b.runTwap(ctx, submit, accountType)
	}()
}

// cancelTwap cancels a running TWAP parent task, mirroring
// _cancel_twap_order's task_manager.cancel_task.
func (b *Base) cancelTwap(uuid string) {
	b.mu.Lock()
	cancel, ok := b.twapCancels[uuid]
	b.mu.Unlock()
	if ok {
		cancel()
	}
}

// calculateTwapOrders computes the slice amount list and per-slice wait,
// grounded bit-for-bit on _calculate_twap_orders (see spec §4.6, step 4).
func (b *Base) calculateTwapOrders(symbol string, totalAmount decimal.Decimal, duration, wait float64, minOrderAmount decimal.Decimal) ([]decimal.Decimal, float64, error) {
	if totalAmount.IsZero() {
		return nil, 0, nil
	}
	if totalAmount.LessThan(minOrderAmount) {
		return []decimal.Decimal{minOrderAmount}, 0, nil
	}

	interval := math.Floor(duration / wait)
	if interval < 1 {
		interval = 1
	}

	baseAmountRaw := totalAmount.Div(decimal.NewFromFloat(interval))
	baseAmount, err := b.deps.Precision.AmountToPrecision(symbol, baseAmountRaw, precision.Round)
	if err != nil {
		return nil, 0, err
	}
	if baseAmount.LessThan(minOrderAmount) {
		baseAmount = minOrderAmount
	}

	count := int(totalAmount.Div(baseAmount).IntPart())
	if count < 1 {
		count = 1
	}
	remaining := totalAmount.Sub(baseAmount.Mul(decimal.NewFromInt(int64(count))))

	var amounts []decimal.Decimal
	if remaining.LessThan(minOrderAmount) {
		amounts = make([]decimal.Decimal, count)
		for i := range amounts {
			amounts[i] = baseAmount
		}
		amounts[len(amounts)-1] = amounts[len(amounts)-1].Add(remaining)
	} else {
		amounts = make([]decimal.Decimal, count+1)
		for i := 0; i < count; i++ {
			amounts[i] = baseAmount
		}
		amounts[count] = remaining
	}

	newWait := duration / float64(len(amounts))
	return amounts, newWait, nil
}

// runTwap executes a TWAP parent end to end, mirroring _twap_order: a
// place phase alternates with a watch phase until the slice list is
// exhausted and the last child has closed, at which point the parent
// becomes FINISHED. A failed child submission fails the parent and exits
// the loop immediately (spec's resolution of the original's ambiguous
// post-loop status assignment). External cancellation (ctx canceled)
// moves the parent through CANCELING to CANCELED, issuing cancels for
// every open order on the parent's symbol — by symbol, not by the
// parent's own child list, matching spec §4.6's documented scoping.
func (b *Base) runTwap(ctx context.Context, submit types.OrderSubmit, accountType types.AccountType) {
	symbol := submit.Symbol
	side := submit.Side

	algo := types.AlgoOrder{
		UUID:         submit.UUID,
		Symbol:       symbol,
		Exchange:     submit.InstrumentId.Exchange,
		Side:         side,
		Amount:       submit.Amount,
		Duration:     submit.Duration,
		Wait:         submit.Wait,
		Status:       types.AlgoRunning,
		PositionSide: submit.PositionSide,
		Timestamp:    b.deps.Clock.NowMillis(),
	}
	b.deps.Cache.AlgoOrderInitialized(algo)

	min, err := b.MinOrderAmount(symbol)
	if err != nil {
		b.logger.Error("twap: compute min order amount failed", "symbol", symbol, "error", err)
		algo.Status = types.AlgoFailed
		b.deps.Cache.AlgoOrderStatusUpdate(algo)
		return
	}

	amounts, wait, err := b.calculateTwapOrders(symbol, submit.Amount, submit.Duration, submit.Wait, min)
	if err != nil {
		b.logger.Error("twap: slice calculation failed", "symbol", symbol, "error", err)
		algo.Status = types.AlgoFailed
		b.deps.Cache.AlgoOrderStatusUpdate(algo)
		return
	}
	b.logger.Debug("twap slices computed", "symbol", symbol, "amounts", amounts, "min_order_amount", min, "wait", wait)

	var orderID string
	var elapsed time.Duration

	for len(amounts) > 0 {
		select {
		case <-ctx.Done():
			b.cancelTwapSymbol(context.Background(), &algo, symbol, accountType)
			return
		default:
		}

		if orderID != "" {
			order, ok := b.deps.Cache.GetOrder(ctx, orderID)
			switch {
			// IsOpened already excludes CANCELING, so a cancel already
			// outstanding on this slice is never re-cancelled here.
			case ok && order.IsOpened():
				if _, err := b.cancelOrder(ctx, types.OrderSubmit{
					Symbol: symbol, InstrumentId: submit.InstrumentId,
					SubmitType: types.SubmitCancel, UUIDTarget: orderID,
				}, accountType); err != nil {
					b.logger.Error("twap: cancel stuck slice failed", "uuid", orderID, "error", err)
				}
			case ok && order.IsClosed():
				orderID = ""
				remaining := order.Remaining
				if remaining.GreaterThan(min) {
					child, err := b.createOrder(ctx, types.OrderSubmit{
						UUID: types.NewOrderUUID(), Symbol: symbol, InstrumentId: submit.InstrumentId,
						SubmitType: types.SubmitCreate, Side: side, Type: types.Market,
						Amount: remaining, PositionSide: submit.PositionSide,
					}, accountType)
					if err != nil || !child.Success {
						algo.Status = types.AlgoFailed
						b.deps.Cache.AlgoOrderStatusUpdate(algo)
						b.logger.Error("twap order failed", "symbol", symbol, "side", side)
						return
					}
					orderID = child.UUID
					algo.Orders = append(algo.Orders, orderID)
					b.deps.Cache.AlgoOrderStatusUpdate(algo)
				} else if len(amounts) > 0 {
					amounts[len(amounts)-1] = amounts[len(amounts)-1].Add(remaining)
				}
			default:
				select {
				case <-ctx.Done():
					b.cancelTwapSymbol(context.Background(), &algo, symbol, accountType)
					return
				case <-time.After(watchInterval):
					elapsed += watchInterval
				}
			}
			continue
		}

		price, err := b.deps.Precision.LimitPrice(symbol, side, currentBookL1(b, symbol))
		if err != nil {
			b.logger.Error("twap: limit price calculation failed", "symbol", symbol, "error", err)
			algo.Status = types.AlgoFailed
			b.deps.Cache.AlgoOrderStatusUpdate(algo)
			return
		}

		amount := amounts[len(amounts)-1]
		amounts = amounts[:len(amounts)-1]

		childUUID := types.NewOrderUUID()
		var orderSubmit types.OrderSubmit
		if len(amounts) > 0 {
			orderSubmit = types.OrderSubmit{
				UUID: childUUID, Symbol: symbol, InstrumentId: submit.InstrumentId, SubmitType: types.SubmitCreate,
				Type: types.Limit, Side: side, Amount: amount, Price: price, PositionSide: submit.PositionSide,
			}
		} else {
			orderSubmit = types.OrderSubmit{
				UUID: childUUID, Symbol: symbol, InstrumentId: submit.InstrumentId, SubmitType: types.SubmitCreate,
				Type: types.Market, Side: side, Amount: amount, PositionSide: submit.PositionSide,
			}
		}

		child, err := b.createOrder(ctx, orderSubmit, accountType)
		if err != nil || !child.Success {
			algo.Status = types.AlgoFailed
			b.deps.Cache.AlgoOrderStatusUpdate(algo)
			b.logger.Error("twap order failed", "symbol", symbol, "side", side)
			return
		}
		orderID = child.UUID
		algo.Orders = append(algo.Orders, orderID)
		b.deps.Cache.AlgoOrderStatusUpdate(algo)

		sleepFor := time.Duration(wait*float64(time.Second)) - elapsed
		elapsed = 0
		if sleepFor > 0 {
			select {
			case <-ctx.Done():
				b.cancelTwapSymbol(context.Background(), &algo, symbol, accountType)
				return
			case <-time.After(sleepFor):
			}
		}
	}

	// The slice list is exhausted; wait for the last child to close before
	// the parent is marked FINISHED.
	for orderID != "" {
		if order, ok := b.deps.Cache.GetOrder(ctx, orderID); ok && order.IsClosed() {
			break
		}
		select {
		case <-ctx.Done():
			b.cancelTwapSymbol(context.Background(), &algo, symbol, accountType)
			return
		case <-time.After(watchInterval):
		}
	}

	algo.Status = types.AlgoFinished
	b.deps.Cache.AlgoOrderStatusUpdate(algo)
	b.logger.Debug("twap order finished", "symbol", symbol, "side", side)
}

// cancelTwapSymbol implements the cancellation cleanup described in spec
// §4.6: every open order on the parent's symbol is canceled (enumerated
// by symbol, not by the parent's own child list), then the parent moves
// CANCELING -> CANCELED. Runs with a background context so cleanup
// completes even though the parent's own ctx has already been canceled.
func (b *Base) cancelTwapSymbol(ctx context.Context, algo *types.AlgoOrder, symbol string, accountType types.AccountType) {
	algo.Status = types.AlgoCanceling
	b.deps.Cache.AlgoOrderStatusUpdate(*algo)

	open, err := b.deps.Cache.GetOpenOrders(symbol, "")
	if err != nil {
		b.logger.Error("twap: enumerate open orders for cancellation failed", "symbol", symbol, "error", err)
	} else {
		for uuid := range open {
			if _, err := b.cancelOrder(ctx, types.OrderSubmit{
				Symbol: symbol, SubmitType: types.SubmitCancel, UUIDTarget: uuid,
			}, accountType); err != nil {
				b.logger.Error("twap: cancel on symbol during shutdown failed", "uuid", uuid, "error", err)
			}
		}
	}

	algo.Status = types.AlgoCanceled
	b.deps.Cache.AlgoOrderStatusUpdate(*algo)
	b.logger.Debug("twap order canceled", "symbol", symbol)
}

func currentBookL1(b *Base, symbol string) types.BookL1 {
	book, _ := b.deps.Cache.BookL1(symbol)
	return book
}
