package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/iho/rideledger/internal/domain"
)

// ChangeFeed implements usecase.ChangeFeed over Redis pub/sub, so a change
// committed by any instance wakes watchers on every instance. It also
// implements the outbox Publisher.
type ChangeFeed struct {
	client redis.UniversalClient
	prefix string
}

// NewChangeFeed creates a new ChangeFeed.
func NewChangeFeed(client redis.UniversalClient) *ChangeFeed {
	return &ChangeFeed{
		client: client,
		prefix: "rideledger:",
	}
}

// Subscribe returns a wake channel for channels. It returns once Redis has
// confirmed the subscription, so later notifications are not lost.
func (f *ChangeFeed) Subscribe(ctx context.Context, channels ...string) (<-chan struct{}, func(), error) {
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = f.prefix + ch
	}

	pubsub := f.client.Subscribe(ctx, names...)
	for range names {
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, nil, fmt.Errorf("%w: subscribe: %w", domain.ErrUnavailable, err)
		}
	}

	wake := make(chan struct{}, 1)
	msgs := pubsub.Channel()
	go func() {
		for range msgs {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = pubsub.Close() })
	}

	return wake, cancel, nil
}

// Notify wakes subscribers of channels.
func (f *ChangeFeed) Notify(ctx context.Context, channels ...string) error {
	for _, ch := range channels {
		if err := f.client.Publish(ctx, f.prefix+ch, "").Err(); err != nil {
			return fmt.Errorf("%w: publish: %w", domain.ErrUnavailable, err)
		}
	}
	return nil
}

// Publish notifies the channels an outbox event touches.
func (f *ChangeFeed) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	return f.Notify(ctx, event.Channels()...)
}
