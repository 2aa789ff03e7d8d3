// Package bus implements the in-memory topic publish/subscribe hub that
// wires every other component together: EMS publishes order lifecycle
// events, OMS publishes venue fills, Cache subscribes to market-data
// topics. Grounded on the teacher's engine.Engine fan-out pattern
// (per-subsystem goroutines reading from shared channels) and on the
// original's msgbus.MessageBus, which is a single-process, single
// trader-identity singleton — there is exactly one Bus per Engine, never
// one per venue.
package bus

import (
	"sync"
)

// Handler receives a message published to a topic it subscribed to.
// Handlers run synchronously on the publisher's goroutine, matching the
// original's msgbus.send semantics (publish does not spawn goroutines);
// a handler that blocks, blocks its publisher, so handlers that need to
// do real work should hand off to their own queue.
type Handler func(msg any)

// Bus is a topic-keyed publish/subscribe hub. Zero value is not usable;
// construct with New.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe registers handler to be invoked for every message published
// to topic, in registration order. There is no Unsubscribe: subscriptions
// live for the process lifetime, matching the original's subscribe-once
// construction pattern.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], handler)
}

// Publish delivers msg to every handler subscribed to topic. A topic with
// no subscribers is a silent no-op, matching the original's send-without-
// recipients behavior.
func (b *Bus) Publish(topic string, msg any) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[topic]))
	copy(handlers, b.subs[topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}

// Topic names shared across components. Venue-scoped topics are built with
// fmt.Sprintf("venue.%s.order", exchange) by callers; these constants only
// cover the fixed, exchange-independent names. Order lifecycle topics are
// not listed here: internal/ems and internal/oms each publish their own
// named set (pending/failed/canceling/... and accepted/filled/...) rather
// than a single generic order-event topic.
const (
	TopicBookL1 = "bookl1"
	TopicTrade  = "trade"
	TopicKline  = "kline"
)
