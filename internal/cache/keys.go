package cache

import "fmt"

// Redis key layout, implemented literally per the original's f-string keys
// in tradebot/core/cache.py. All keys are scoped by strategy id and user
// id so multiple strategies can share one Redis instance.
func ordersKey(strategyID, userID string) string {
	return fmt.Sprintf("strategy:%s:user_id:%s:orders", strategyID, userID)
}

func algoOrdersKey(strategyID, userID string) string {
	return fmt.Sprintf("strategy:%s:user_id:%s:algo_orders", strategyID, userID)
}

func openOrdersKey(strategyID, userID, exchange string) string {
	return fmt.Sprintf("strategy:%s:user_id:%s:exchange:%s:open_orders", strategyID, userID, exchange)
}

func symbolOrdersKey(strategyID, userID, exchange, symbol string) string {
	return fmt.Sprintf("strategy:%s:user_id:%s:exchange:%s:symbol_orders:%s", strategyID, userID, exchange, symbol)
}

func symbolOpenOrdersKey(strategyID, userID, exchange, symbol string) string {
	return fmt.Sprintf("strategy:%s:user_id:%s:exchange:%s:symbol_open_orders:%s", strategyID, userID, exchange, symbol)
}

func symbolPositionsKey(strategyID, userID, exchange, symbol string) string {
	return fmt.Sprintf("strategy:%s:user_id:%s:exchange:%s:symbol_positions:%s", strategyID, userID, exchange, symbol)
}
