package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/metrics"
)

// PlaceOrderInput is a passenger's ride request.
type PlaceOrderInput = CreateOrderInput

// OrderResult is an order together with the ledger entry the operation produced.
type OrderResult struct {
	Order *domain.Order
	Entry *domain.LedgerEntry
}

// CoordinatorUseCase runs the operations that touch both orders and wallets.
type CoordinatorUseCase struct {
	txManager TransactionManager
	orders    *OrderUseCase
	wallet    *WalletUseCase
	accounts  AccountRepository
	retrier   Retrier
	estimator RouteEstimator
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// CoordinatorConfig holds the coordinator's collaborators. Retrier and
// Estimator are optional.
type CoordinatorConfig struct {
	TxManager   TransactionManager
	Orders      *OrderUseCase
	Wallet      *WalletUseCase
	AccountRepo AccountRepository
	Retrier     Retrier
	Estimator   RouteEstimator
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

func NewCoordinatorUseCase(cfg CoordinatorConfig) *CoordinatorUseCase {
	return &CoordinatorUseCase{
		txManager: cfg.TxManager,
		orders:    cfg.Orders,
		wallet:    cfg.Wallet,
		accounts:  cfg.AccountRepo,
		retrier:   cfg.Retrier,
		estimator: cfg.Estimator,
		logger:    cfg.Logger.With().Str("component", "coordinator").Logger(),
		metrics:   cfg.Metrics,
	}
}

// PlaceOrder creates a pending order and debits its price from the passenger
// in one transaction. If the debit fails nothing is persisted.
//
// The order ID is fixed before the first attempt. An attempt that finds the
// order already stored returns it with its spend entry, so a retry after a
// commit whose acknowledgement was lost neither duplicates the order nor
// debits twice.
func (uc *CoordinatorUseCase) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderResult, error) {
	defer uc.timed("place_order")()

	if err := input.Validate(); err != nil {
		return nil, err
	}
	uc.fillDistance(ctx, &input)
	if input.OrderID == "" {
		input.OrderID = uc.orders.idGen.Generate()
	}

	var (
		result  OrderResult
		created bool
	)
	err := retry(ctx, uc.retrier, func() error {
		return runInTx(ctx, uc.txManager, func(ctx context.Context, tx Transaction) error {
			passenger, err := uc.accounts.GetByIDForUpdate(ctx, tx, input.PassengerID)
			if err != nil {
				return err
			}
			if !passenger.Role.CanPlaceOrders() {
				return domain.ErrRoleMismatch
			}

			order, err := uc.orders.orderRepo.GetByIDTx(ctx, tx, input.OrderID)
			switch {
			case err == nil:
				if order.PassengerID != passenger.ID {
					return fmt.Errorf("order %s belongs to another passenger: %w", order.ID, domain.ErrConflict)
				}
			case errors.Is(err, domain.ErrNotFound):
				order, err = uc.orders.CreateTx(ctx, tx, input)
				if err != nil {
					return err
				}
			default:
				return err
			}

			entry, isNew, err := uc.wallet.applyEntryTx(ctx, tx, ApplyEntryInput{
				AccountID: passenger.ID,
				Kind:      domain.EntryKindSpend,
				Amount:    order.Price,
				OrderID:   order.ID,
			})
			if err != nil {
				return err
			}

			result = OrderResult{Order: order, Entry: entry}
			created = isNew
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	uc.wallet.observe(result.Entry, created)
	if created && uc.metrics != nil {
		uc.metrics.OrdersPlaced.Inc()
	}

	return &result, nil
}

// AcceptOrder binds a driver to a pending order. Exactly one of several
// concurrent acceptances succeeds; the rest get a conflict.
func (uc *CoordinatorUseCase) AcceptOrder(ctx context.Context, orderID, driverID string) (*domain.Order, error) {
	defer uc.timed("accept_order")()

	if err := uc.requireDriver(ctx, driverID); err != nil {
		return nil, err
	}

	return uc.transition(ctx, TransitionInput{
		OrderID: orderID,
		From:    domain.OrderStatusPending,
		To:      domain.OrderStatusAccepted,
		ActorID: driverID,
	})
}

// Pickup marks the passenger as picked up by the bound driver.
func (uc *CoordinatorUseCase) Pickup(ctx context.Context, orderID, driverID string) (*domain.Order, error) {
	defer uc.timed("pickup")()

	return uc.transition(ctx, TransitionInput{
		OrderID: orderID,
		From:    domain.OrderStatusAccepted,
		To:      domain.OrderStatusInProgress,
		ActorID: driverID,
	})
}

// CompleteOrder closes the ride and credits the driver the order price.
//
// The status change commits first and is the durable record that payment is
// owed. The credit is idempotent per order and is retried with backoff; if
// retries run out the settlement sweeper finishes it later. Completing an
// order that this driver already completed only ensures the credit.
func (uc *CoordinatorUseCase) CompleteOrder(ctx context.Context, orderID, driverID string) (*OrderResult, error) {
	defer uc.timed("complete_order")()

	order, err := uc.transition(ctx, TransitionInput{
		OrderID: orderID,
		From:    domain.OrderStatusInProgress,
		To:      domain.OrderStatusCompleted,
		ActorID: driverID,
	})
	if errors.Is(err, domain.ErrConflict) {
		current, getErr := uc.orders.Get(ctx, orderID)
		if getErr != nil || current.Status != domain.OrderStatusCompleted || current.DriverID != driverID {
			return nil, err
		}
		order = current
	} else if err != nil {
		return nil, err
	}

	entry, err := uc.creditEarning(ctx, order)
	if err != nil {
		return &OrderResult{Order: order}, err
	}

	return &OrderResult{Order: order, Entry: entry}, nil
}

// CancelOrder cancels a pending order and refunds the passenger in one
// transaction. Repeating it returns the existing refund.
func (uc *CoordinatorUseCase) CancelOrder(ctx context.Context, orderID, passengerID string) (*OrderResult, error) {
	defer uc.timed("cancel_order")()

	var result OrderResult
	var created bool
	err := retry(ctx, uc.retrier, func() error {
		return runInTx(ctx, uc.txManager, func(ctx context.Context, tx Transaction) error {
			order, err := uc.orders.TransitionTx(ctx, tx, TransitionInput{
				OrderID: orderID,
				From:    domain.OrderStatusPending,
				To:      domain.OrderStatusCancelled,
				ActorID: passengerID,
			})
			if errors.Is(err, domain.ErrConflict) {
				current, getErr := uc.orders.orderRepo.GetByIDTx(ctx, tx, orderID)
				if getErr != nil || current.Status != domain.OrderStatusCancelled || current.PassengerID != passengerID {
					return err
				}
				order = current
			} else if err != nil {
				return err
			}

			entry, isNew, err := uc.wallet.applyEntryTx(ctx, tx, ApplyEntryInput{
				AccountID: order.PassengerID,
				Kind:      domain.EntryKindRefund,
				Amount:    order.Price,
				OrderID:   order.ID,
			})
			if err != nil {
				return err
			}

			result = OrderResult{Order: order, Entry: entry}
			created = isNew
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	uc.wallet.observe(result.Entry, created)
	if created && uc.metrics != nil {
		uc.metrics.OrderTransitions.WithLabelValues(string(domain.OrderStatusCancelled)).Inc()
	}

	return &result, nil
}

// creditEarning applies the driver's earning for a completed order,
// retrying transient failures. It never reverts the order.
func (uc *CoordinatorUseCase) creditEarning(ctx context.Context, order *domain.Order) (*domain.LedgerEntry, error) {
	input := ApplyEntryInput{
		AccountID: order.DriverID,
		Kind:      domain.EntryKindEarning,
		Amount:    order.Price,
		OrderID:   order.ID,
	}

	creditCtx := context.WithoutCancel(ctx)
	attempt := 0

	var entry *domain.LedgerEntry
	err := retry(creditCtx, uc.retrier, func() error {
		attempt++
		if attempt > 1 && uc.metrics != nil {
			uc.metrics.CreditRetries.Inc()
		}

		var err error
		entry, err = uc.wallet.ApplyEntry(creditCtx, input)
		return err
	})
	if err != nil {
		uc.logger.Error().
			Err(err).
			Str("order_id", order.ID).
			Str("driver_id", order.DriverID).
			Int("attempts", attempt).
			Msg("earning credit failed; left for settlement")
		if uc.metrics != nil {
			uc.metrics.CreditFailures.Inc()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSettlementFailed, err)
	}

	return entry, nil
}

// transition retries transient storage failures. Conflicts are returned
// as they are, since the caller's intent may no longer hold.
func (uc *CoordinatorUseCase) transition(ctx context.Context, input TransitionInput) (*domain.Order, error) {
	var order *domain.Order
	err := retry(ctx, uc.retrier, func() error {
		var err error
		order, err = uc.orders.Transition(ctx, input)
		return err
	})
	return order, err
}

func (uc *CoordinatorUseCase) requireDriver(ctx context.Context, driverID string) error {
	if err := domain.ValidateID(driverID); err != nil {
		return err
	}

	account, err := uc.accounts.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	if !account.Role.CanDrive() {
		return domain.ErrRoleMismatch
	}
	return nil
}

// fillDistance asks the estimator for a distance when the client sent none.
// Estimation is best effort.
func (uc *CoordinatorUseCase) fillDistance(ctx context.Context, input *PlaceOrderInput) {
	if uc.estimator == nil || !input.Distance.IsZero() {
		return
	}

	estimateCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	distance, err := uc.estimator.EstimateDistance(estimateCtx, input.Origin, input.Destination)
	if err != nil {
		uc.logger.Warn().Err(err).
			Str("origin", input.Origin.Name).
			Str("destination", input.Destination.Name).
			Msg("distance estimate failed")
		return
	}

	input.Distance = distance.Round(2)
	if input.Distance.IsNegative() {
		input.Distance = decimal.Zero
	}
}

func (uc *CoordinatorUseCase) timed(operation string) func() {
	if uc.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		uc.metrics.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
