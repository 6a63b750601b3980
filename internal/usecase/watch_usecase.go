package usecase

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/metrics"
)

// WatchUseCase exposes order state as lazy snapshot streams.
//
// Streams poll on an interval and are additionally woken by the change feed.
// Every yielded value is a complete snapshot; a snapshot whose content did not
// change since the previous yield is skipped, but consumers must still apply
// snapshots idempotently.
type WatchUseCase struct {
	orderRepo OrderRepository
	feed      ChangeFeed
	retrier   Retrier
	interval  time.Duration
	metrics   *metrics.Metrics
}

func NewWatchUseCase(orderRepo OrderRepository, feed ChangeFeed, retrier Retrier, interval time.Duration, metrics *metrics.Metrics) *WatchUseCase {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &WatchUseCase{
		orderRepo: orderRepo,
		feed:      feed,
		retrier:   retrier,
		interval:  interval,
		metrics:   metrics,
	}
}

// WatchOrder streams snapshots of one order. The stream ends when ctx is
// done, when the consumer stops, after a terminal status has been yielded,
// or when the order does not exist.
func (uc *WatchUseCase) WatchOrder(ctx context.Context, orderID string) iter.Seq2[*domain.Order, error] {
	return func(yield func(*domain.Order, error) bool) {
		wake, stop := uc.subscribe(ctx, "order", domain.OrderChannel(orderID))
		defer stop()

		ticker := time.NewTicker(uc.interval)
		defer ticker.Stop()

		var lastVersion int64 = -1
		for {
			order, err := uc.readOrder(ctx, orderID)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				if !yield(nil, err) || !errors.Is(err, domain.ErrUnavailable) {
					return
				}
			case order.Version != lastVersion:
				lastVersion = order.Version
				if !yield(order, nil) || order.Status.IsTerminal() {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-wake:
			}
		}
	}
}

// WatchOrdersByStatus streams list snapshots of orders in a status, as used
// by the driver order board.
func (uc *WatchUseCase) WatchOrdersByStatus(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) iter.Seq2[[]*domain.Order, error] {
	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)

	return func(yield func([]*domain.Order, error) bool) {
		wake, stop := uc.subscribe(ctx, "board", domain.OrderBoardChannel)
		defer stop()

		ticker := time.NewTicker(uc.interval)
		defer ticker.Stop()

		first := true
		var lastFingerprint string
		for {
			orders, err := uc.readBoard(ctx, status, filter)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				if !yield(nil, err) || !errors.Is(err, domain.ErrUnavailable) {
					return
				}
			default:
				fp := fingerprint(orders)
				if first || fp != lastFingerprint {
					first = false
					lastFingerprint = fp
					if !yield(orders, nil) {
						return
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-wake:
			}
		}
	}
}

// subscribe returns a wake-up channel. Without a feed, or if subscribing
// fails, the stream falls back to pure polling.
func (uc *WatchUseCase) subscribe(ctx context.Context, stream string, channel string) (<-chan struct{}, func()) {
	if uc.metrics != nil {
		uc.metrics.ActiveWatchers.WithLabelValues(stream).Inc()
	}
	done := func() {
		if uc.metrics != nil {
			uc.metrics.ActiveWatchers.WithLabelValues(stream).Dec()
		}
	}

	if uc.feed == nil {
		return nil, done
	}

	wake, cancel, err := uc.feed.Subscribe(ctx, channel)
	if err != nil {
		return nil, done
	}

	return wake, func() {
		cancel()
		done()
	}
}

func (uc *WatchUseCase) readOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := retry(ctx, uc.retrier, func() error {
		var err error
		order, err = uc.orderRepo.GetByID(ctx, id)
		return err
	})
	return order, err
}

func (uc *WatchUseCase) readBoard(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := retry(ctx, uc.retrier, func() error {
		var err error
		orders, err = uc.orderRepo.ListByStatus(ctx, status, filter)
		return err
	})
	return orders, err
}

func fingerprint(orders []*domain.Order) string {
	var b strings.Builder
	for _, o := range orders {
		b.WriteString(o.ID)
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(o.Version, 10))
		b.WriteByte(';')
	}
	return b.String()
}
