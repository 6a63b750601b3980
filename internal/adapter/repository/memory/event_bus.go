package memory

import (
	"context"
	"sync"

	"github.com/iho/rideledger/internal/domain"
)

// EventBus is an in-process change feed. It implements usecase.ChangeFeed for
// watchers and the outbox Publisher for the event worker.
type EventBus struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers for wake-ups on channels. Wake-ups coalesce: a slow
// subscriber sees at most one pending signal.
func (b *EventBus) Subscribe(ctx context.Context, channels ...string) (<-chan struct{}, func(), error) {
	wake := make(chan struct{}, 1)

	b.mu.Lock()
	for _, name := range channels {
		set, ok := b.subs[name]
		if !ok {
			set = make(map[chan struct{}]struct{})
			b.subs[name] = set
		}
		set[wake] = struct{}{}
	}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, name := range channels {
				delete(b.subs[name], wake)
				if len(b.subs[name]) == 0 {
					delete(b.subs, name)
				}
			}
		})
	}

	return wake, cancel, nil
}

// Notify wakes every subscriber of the given channels.
func (b *EventBus) Notify(channels ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range channels {
		for wake := range b.subs[name] {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

// Publish notifies the channels affected by an outbox event.
func (b *EventBus) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	b.Notify(event.Channels()...)
	return nil
}
