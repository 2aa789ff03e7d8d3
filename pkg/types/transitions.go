package types

// statusTransitions is the safe superset of observed order status
// transitions from spec §4.3. It is consulted by internal/cache before
// committing any status update; transitions not listed here are dropped
// with an error log rather than applied.
var statusTransitions = map[OrderStatus]map[OrderStatus]bool{
	Initialized: {
		Pending: true,
		Failed:  true,
	},
	Pending: {
		Accepted:        true,
		PartiallyFilled: true,
		Filled:          true,
		Canceling:       true,
		Canceled:        true,
		Failed:          true,
		Expired:         true,
	},
	Accepted: {
		PartiallyFilled: true,
		Filled:          true,
		Canceling:       true,
		Canceled:        true,
		Expired:         true,
	},
	PartiallyFilled: {
		PartiallyFilled: true,
		Filled:          true,
		Canceling:       true,
		Canceled:        true,
		Expired:         true,
	},
	Canceling: {
		PartiallyFilled: true,
		Filled:          true,
		Canceled:        true,
		Failed:          true,
	},
	// Filled, Canceled, Failed, Expired are terminal: no outgoing edges.
}

// IsValidTransition reports whether moving an order from prev to next is
// legal per the status transition table. A missing previous status (the
// order has never been seen) always allows the transition — that case is
// handled by the caller before reaching here.
func IsValidTransition(prev, next OrderStatus) bool {
	return statusTransitions[prev][next]
}
