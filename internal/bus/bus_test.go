package bus

import (
	"sync"
	"testing"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()
	b := New()

	var mu sync.Mutex
	var got []any

	b.Subscribe("topic.a", func(msg any) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
	})
	b.Subscribe("topic.a", func(msg any) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
	})

	b.Publish("topic.a", "hello")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestPublishToUnknownTopicIsNoop(t *testing.T) {
	t.Parallel()
	b := New()
	b.Publish("nobody.listens", struct{}{})
}

func TestSubscribersIsolatedByTopic(t *testing.T) {
	t.Parallel()
	b := New()

	var aCount, bCount int
	b.Subscribe("a", func(msg any) { aCount++ })
	b.Subscribe("b", func(msg any) { bCount++ })

	b.Publish("a", 1)

	if aCount != 1 {
		t.Fatalf("expected topic a handler to fire once, got %d", aCount)
	}
	if bCount != 0 {
		t.Fatalf("expected topic b handler not to fire, got %d", bCount)
	}
}
