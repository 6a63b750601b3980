package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
	"github.com/iho/rideledger/internal/usecase/mocks"
)

func TestCoordinator_HappyPath(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "drv", domain.RoleDriver, 0)
	ctx := context.Background()

	placed, err := h.coord.PlaceOrder(ctx, rideInput("pax", 30))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, placed.Order.Status)
	assert.Equal(t, domain.EntryKindSpend, placed.Entry.Kind)
	assert.True(t, h.balance(t, "pax").Equal(dec("70")))

	accepted, err := h.coord.AcceptOrder(ctx, placed.Order.ID, "drv")
	require.NoError(t, err)
	assert.Equal(t, "drv", accepted.DriverID)
	assert.NotNil(t, accepted.AcceptedAt)

	picked, err := h.coord.Pickup(ctx, placed.Order.ID, "drv")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInProgress, picked.Status)

	done, err := h.coord.CompleteOrder(ctx, placed.Order.ID, "drv")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, done.Order.Status)
	require.NotNil(t, done.Entry)
	assert.True(t, done.Entry.Amount.Equal(dec("30")))

	assert.True(t, h.balance(t, "drv").Equal(dec("30")))
	assert.True(t, h.balance(t, "pax").Equal(dec("70")))
	assert.Equal(t, int64(3), done.Order.Version)

	h.reconcile(t)
}

func TestCoordinator_PlaceOrderInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 10)
	ctx := context.Background()

	_, err := h.coord.PlaceOrder(ctx, rideInput("pax", 30))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.True(t, h.balance(t, "pax").Equal(dec("10")))

	orders, err := h.orderUC.ListByAccount(ctx, "pax", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, orders, "no order may survive a failed debit")

	board, err := h.orderUC.ListByStatus(ctx, domain.OrderStatusPending, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, board)
}

func TestCoordinator_PlaceOrderRetryAfterLostCommitIsIdempotent(t *testing.T) {
	retrier := &lostAckRetrier{}
	h := newHarness(t, withRetrier(retrier))
	h.account(t, "pax", domain.RolePassenger, 100)
	ctx := context.Background()

	placed, err := h.coord.PlaceOrder(ctx, rideInput("pax", 30))
	require.NoError(t, err)
	assert.Equal(t, int32(2), retrier.attempts.Load())

	orders, err := h.orderUC.ListByAccount(ctx, "pax", 10, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, placed.Order.ID, orders[0].ID)

	entries, err := h.wallet.ListEntries(ctx, "pax", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2, "seed top-up and a single spend")
	assert.Equal(t, domain.EntryKindSpend, entries[0].Kind)
	assert.Equal(t, placed.Entry.ID, entries[0].ID)

	assert.True(t, h.balance(t, "pax").Equal(dec("70")))
	h.reconcile(t)
}

func TestCoordinator_PlaceOrderRejectsForeignOrderID(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "other", domain.RolePassenger, 100)
	ctx := context.Background()

	placed := h.place(t, "pax", 30)

	reuse := rideInput("other", 30)
	reuse.OrderID = placed.ID
	_, err := h.coord.PlaceOrder(ctx, reuse)
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.True(t, h.balance(t, "other").Equal(dec("100")))
}

func TestCoordinator_PlaceOrderValidation(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "drv", domain.RoleDriver, 100)
	ctx := context.Background()

	noOrigin := rideInput("pax", 10)
	noOrigin.Origin = domain.Place{Name: "   "}

	negative := rideInput("pax", 10)
	negative.Distance = dec("-1")

	tests := []struct {
		name    string
		input   usecase.PlaceOrderInput
		wantErr error
	}{
		{"missing origin", noOrigin, domain.ErrInvalidInput},
		{"negative distance", negative, domain.ErrInvalidInput},
		{"zero price", rideInput("pax", 0), domain.ErrInvalidInput},
		{"unknown passenger", rideInput("ghost", 10), domain.ErrNotFound},
		{"driver cannot order", rideInput("drv", 10), domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.coord.PlaceOrder(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.True(t, h.balance(t, "pax").Equal(dec("100")))
	assert.True(t, h.balance(t, "drv").Equal(dec("100")))
}

func TestCoordinator_AcceptRequiresDriver(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "pax2", domain.RolePassenger, 0)
	order := h.place(t, "pax", 10)

	_, err := h.coord.AcceptOrder(context.Background(), order.ID, "pax2")
	assert.ErrorIs(t, err, domain.ErrRoleMismatch)

	_, err = h.coord.AcceptOrder(context.Background(), "missing-order", "pax2")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCoordinator_OnlyBoundDriverProgresses(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "drv", domain.RoleDriver, 0)
	h.account(t, "other", domain.RoleDriver, 0)
	ctx := context.Background()

	order := h.place(t, "pax", 25)
	_, err := h.coord.AcceptOrder(ctx, order.ID, "drv")
	require.NoError(t, err)

	_, err = h.coord.Pickup(ctx, order.ID, "other")
	assert.ErrorIs(t, err, domain.ErrNotOrderDriver)

	_, err = h.coord.Pickup(ctx, order.ID, "drv")
	require.NoError(t, err)

	_, err = h.coord.CompleteOrder(ctx, order.ID, "other")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.True(t, h.balance(t, "other").IsZero())
}

func TestOrderUseCase_TransitionTable(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "drv", domain.RoleDriver, 0)
	ctx := context.Background()
	order := h.place(t, "pax", 10)

	tests := []struct {
		name    string
		from    domain.OrderStatus
		to      domain.OrderStatus
		wantErr error
	}{
		{"skip to completed", domain.OrderStatusPending, domain.OrderStatusCompleted, domain.ErrInvalidTransition},
		{"skip to in progress", domain.OrderStatusPending, domain.OrderStatusInProgress, domain.ErrInvalidTransition},
		{"backwards", domain.OrderStatusAccepted, domain.OrderStatusPending, domain.ErrInvalidTransition},
		{"out of terminal", domain.OrderStatusCompleted, domain.OrderStatusCancelled, domain.ErrInvalidTransition},
		{"cancel after accept", domain.OrderStatusAccepted, domain.OrderStatusCancelled, domain.ErrInvalidTransition},
		{"stale from", domain.OrderStatusAccepted, domain.OrderStatusInProgress, domain.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.orderUC.Transition(ctx, usecase.TransitionInput{
				OrderID: order.ID,
				From:    tt.from,
				To:      tt.to,
				ActorID: "drv",
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := h.orderUC.Transition(ctx, usecase.TransitionInput{
		OrderID: "missing",
		From:    domain.OrderStatusPending,
		To:      domain.OrderStatusAccepted,
		ActorID: "drv",
	})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	got, err := h.orderUC.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status, "rejected transitions must not change the order")
}

func TestCoordinator_ConcurrentAcceptsOneWins(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	const drivers = 8
	for i := 0; i < drivers; i++ {
		h.account(t, fmt.Sprintf("drv-%d", i), domain.RoleDriver, 0)
	}
	order := h.place(t, "pax", 40)

	var wg sync.WaitGroup
	errs := make([]error, drivers)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.coord.AcceptOrder(context.Background(), order.ID, fmt.Sprintf("drv-%d", i))
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, drivers-1, conflicts)

	got, err := h.orderUC.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAccepted, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, float64(drivers-1), testutil.ToFloat64(h.metrics.OrderConflicts.WithLabelValues("accepted")))
}

func TestCoordinator_ConcurrentSpendsNeverOverdraw(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.coord.PlaceOrder(context.Background(), rideInput("pax", 30))
		}(i)
	}
	wg.Wait()

	placed, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			placed++
		case errors.Is(err, domain.ErrInsufficientFunds):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, placed)
	assert.Equal(t, attempts-3, rejected)
	assert.True(t, h.balance(t, "pax").Equal(dec("10")))

	h.reconcile(t)
}

func TestCoordinator_CompleteOrderTwiceCreditsOnce(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "drv", domain.RoleDriver, 0)
	ctx := context.Background()

	order := h.place(t, "pax", 45)
	_, err := h.coord.AcceptOrder(ctx, order.ID, "drv")
	require.NoError(t, err)
	_, err = h.coord.Pickup(ctx, order.ID, "drv")
	require.NoError(t, err)

	first, err := h.coord.CompleteOrder(ctx, order.ID, "drv")
	require.NoError(t, err)
	second, err := h.coord.CompleteOrder(ctx, order.ID, "drv")
	require.NoError(t, err)

	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.True(t, h.balance(t, "drv").Equal(dec("45")))

	entries, err := h.wallet.ListEntries(ctx, "drv", 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	h.reconcile(t)
}

func TestCoordinator_CompleteOrderRetriesCredit(t *testing.T) {
	h := newHarness(t,
		withFlakyEntries(domain.EntryKindEarning, 2),
		withRetrier(unavailableRetrier{attempts: 3}),
	)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "drv", domain.RoleDriver, 0)
	ctx := context.Background()

	order := h.place(t, "pax", 20)
	_, err := h.coord.AcceptOrder(ctx, order.ID, "drv")
	require.NoError(t, err)
	_, err = h.coord.Pickup(ctx, order.ID, "drv")
	require.NoError(t, err)

	res, err := h.coord.CompleteOrder(ctx, order.ID, "drv")
	require.NoError(t, err)
	require.NotNil(t, res.Entry)

	assert.True(t, h.balance(t, "drv").Equal(dec("20")))
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.CreditRetries))
}

func TestCoordinator_CompleteOrderCreditFailureIsSettledLater(t *testing.T) {
	h := newHarness(t,
		withFlakyEntries(domain.EntryKindEarning, 5),
		withRetrier(unavailableRetrier{attempts: 3}),
	)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "drv", domain.RoleDriver, 0)
	ctx := context.Background()

	order := h.place(t, "pax", 20)
	_, err := h.coord.AcceptOrder(ctx, order.ID, "drv")
	require.NoError(t, err)
	_, err = h.coord.Pickup(ctx, order.ID, "drv")
	require.NoError(t, err)

	res, err := h.coord.CompleteOrder(ctx, order.ID, "drv")
	require.ErrorIs(t, err, domain.ErrSettlementFailed)
	require.ErrorIs(t, err, domain.ErrUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, domain.OrderStatusCompleted, res.Order.Status, "completion must not be reverted")
	assert.True(t, h.balance(t, "drv").IsZero())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.CreditFailures))

	h.flaky.failures.Store(0)

	settlement := usecase.NewSettlementUseCase(h.orders, h.wallet, zerolog.Nop(), h.metrics)
	result, err := settlement.SettleCompleted(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Settled)
	assert.True(t, h.balance(t, "drv").Equal(dec("20")))

	result, err = settlement.SettleCompleted(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned, "settled orders must not be swept again")

	h.reconcile(t)
}

func TestCoordinator_CancelRefunds(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 50)
	h.account(t, "other", domain.RolePassenger, 0)
	ctx := context.Background()

	order := h.place(t, "pax", 35)
	assert.True(t, h.balance(t, "pax").Equal(dec("15")))

	_, err := h.coord.CancelOrder(ctx, order.ID, "other")
	require.ErrorIs(t, err, domain.ErrNotOrderOwner)

	first, err := h.coord.CancelOrder(ctx, order.ID, "pax")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, first.Order.Status)
	assert.Equal(t, domain.EntryKindRefund, first.Entry.Kind)
	assert.True(t, h.balance(t, "pax").Equal(dec("50")))

	second, err := h.coord.CancelOrder(ctx, order.ID, "pax")
	require.NoError(t, err)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.True(t, h.balance(t, "pax").Equal(dec("50")))

	h.reconcile(t)
}

func TestCoordinator_CancelAfterAcceptConflicts(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 50)
	h.account(t, "drv", domain.RoleDriver, 0)
	ctx := context.Background()

	order := h.place(t, "pax", 35)
	_, err := h.coord.AcceptOrder(ctx, order.ID, "drv")
	require.NoError(t, err)

	_, err = h.coord.CancelOrder(ctx, order.ID, "pax")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.True(t, h.balance(t, "pax").Equal(dec("15")))
}

func TestCoordinator_PlaceOrderEstimatesMissingDistance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	estimator := mocks.NewMockRouteEstimator(ctrl)
	estimator.EXPECT().
		EstimateDistance(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(decimal.RequireFromString("12.345"), nil)

	h := newHarness(t, withEstimator(estimator))
	h.account(t, "pax", domain.RolePassenger, 100)

	input := rideInput("pax", 10)
	input.Distance = decimal.Zero

	res, err := h.coord.PlaceOrder(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, res.Order.Distance.Equal(dec("12.35")), "got %s", res.Order.Distance)
}

func TestCoordinator_PlaceOrderIgnoresEstimatorFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	estimator := mocks.NewMockRouteEstimator(ctrl)
	estimator.EXPECT().
		EstimateDistance(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(decimal.Zero, errors.New("quota exceeded"))

	h := newHarness(t, withEstimator(estimator))
	h.account(t, "pax", domain.RolePassenger, 100)

	input := rideInput("pax", 10)
	input.Distance = decimal.Zero

	res, err := h.coord.PlaceOrder(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, res.Order.Distance.IsZero())
}

func TestCoordinator_RandomOperationsReconcile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		h.account(t, fmt.Sprintf("pax-%d", i), domain.RolePassenger, 200)
		h.account(t, fmt.Sprintf("drv-%d", i), domain.RoleDriver, 0)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pax, drv := fmt.Sprintf("pax-%d", i), fmt.Sprintf("drv-%d", (i+1)%4)
			for j := 0; j < 6; j++ {
				res, err := h.coord.PlaceOrder(ctx, rideInput(pax, int64(15+j)))
				if err != nil {
					continue
				}
				if j%3 == 0 {
					_, _ = h.coord.CancelOrder(ctx, res.Order.ID, pax)
					continue
				}
				if _, err := h.coord.AcceptOrder(ctx, res.Order.ID, drv); err != nil {
					continue
				}
				_, _ = h.coord.Pickup(ctx, res.Order.ID, drv)
				_, _ = h.coord.CompleteOrder(ctx, res.Order.ID, drv)
				_, _ = h.wallet.Withdraw(ctx, drv, dec("5"), "")
			}
		}(i)
	}
	wg.Wait()

	h.reconcile(t)

	total := decimal.Zero
	for i := 0; i < 4; i++ {
		total = total.Add(h.balance(t, fmt.Sprintf("pax-%d", i)))
		b := h.balance(t, fmt.Sprintf("drv-%d", i))
		assert.False(t, b.IsNegative())
		total = total.Add(b)
	}
	assert.True(t, total.LessThanOrEqual(dec("800")))
}
