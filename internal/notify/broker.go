package notify

import (
	"context"
	"sync"
)

// Broker fans table-change events out to subscribers.
type Broker interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel of events for the given tables and a
	// teardown func. The channel is closed on teardown or context cancel.
	Subscribe(ctx context.Context, tables ...string) (<-chan Event, func(), error)
}

type memSubscriber struct {
	tables map[string]struct{}
	ch     chan Event
}

// InMemoryBroker is a channel-backed broker for tests and single-process runs.
type InMemoryBroker struct {
	mu   sync.Mutex
	subs map[*memSubscriber]struct{}
}

// NewInMemoryBroker constructs an empty broker.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{subs: make(map[*memSubscriber]struct{})}
}

// Publish delivers the event to every matching subscriber. Slow subscribers
// drop events rather than block the publisher.
func (b *InMemoryBroker) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if _, ok := sub.tables[event.Table]; !ok {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for the given tables.
func (b *InMemoryBroker) Subscribe(ctx context.Context, tables ...string) (<-chan Event, func(), error) {
	sub := &memSubscriber{
		tables: make(map[string]struct{}, len(tables)),
		ch:     make(chan Event, 16),
	}
	for _, table := range tables {
		sub.tables[table] = struct{}{}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return sub.ch, cancel, nil
}
