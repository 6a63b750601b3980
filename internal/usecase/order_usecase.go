package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/metrics"
)

// CreateOrderInput is a ride request as entered by the passenger.
type CreateOrderInput struct {
	// OrderID is generated when empty.
	OrderID     string
	PassengerID string
	Origin      domain.Place
	Destination domain.Place
	Distance    decimal.Decimal
	Price       decimal.Decimal
}

// Validate checks the request and normalises place names.
func (in *CreateOrderInput) Validate() error {
	in.Origin = domain.NormalizePlace(in.Origin)
	in.Destination = domain.NormalizePlace(in.Destination)

	if err := domain.ValidateID(in.PassengerID); err != nil {
		return err
	}
	if in.OrderID != "" {
		if err := domain.ValidateID(in.OrderID); err != nil {
			return fmt.Errorf("order id: %w", err)
		}
	}
	if err := domain.ValidatePlace(in.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := domain.ValidatePlace(in.Destination); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if err := domain.ValidateDistance(in.Distance); err != nil {
		return err
	}
	return domain.ValidateAmount(in.Price)
}

// TransitionInput is a compare-and-swap request on an order's status.
type TransitionInput struct {
	OrderID string
	From    domain.OrderStatus
	To      domain.OrderStatus
	ActorID string
}

// OrderUseCase owns order records and the ride state machine.
type OrderUseCase struct {
	txManager  TransactionManager
	orderRepo  OrderRepository
	outboxRepo OutboxRepository
	idGen      IDGenerator
	metrics    *metrics.Metrics
}

func NewOrderUseCase(
	txManager TransactionManager,
	orderRepo OrderRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *OrderUseCase {
	return &OrderUseCase{
		txManager:  txManager,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		idGen:      idGen,
		metrics:    metrics,
	}
}

// Create stores a new pending order.
func (uc *OrderUseCase) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	var order *domain.Order
	err := runInTx(ctx, uc.txManager, func(ctx context.Context, tx Transaction) error {
		var err error
		order, err = uc.CreateTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CreateTx stores a new pending order inside tx.
func (uc *OrderUseCase) CreateTx(ctx context.Context, tx Transaction, input CreateOrderInput) (*domain.Order, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	id := input.OrderID
	if id == "" {
		id = uc.idGen.Generate()
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:          id,
		PassengerID: input.PassengerID,
		Origin:      input.Origin,
		Destination: input.Destination,
		Distance:    input.Distance,
		Price:       input.Price,
		Status:      domain.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := uc.outboxRepo.Create(ctx, tx, domain.NewOrderEvent(uc.idGen.Generate(), order, "")); err != nil {
		return nil, err
	}

	return order, nil
}

// Transition moves an order from one status to the next in its own transaction.
func (uc *OrderUseCase) Transition(ctx context.Context, input TransitionInput) (*domain.Order, error) {
	var order *domain.Order
	err := runInTx(ctx, uc.txManager, func(ctx context.Context, tx Transaction) error {
		var err error
		order, err = uc.TransitionTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.OrderTransitions.WithLabelValues(string(order.Status)).Inc()
	}

	return order, nil
}

// TransitionTx validates the requested edge, checks the stored status and the
// actor, then writes the change with a compare-and-swap on the status.
func (uc *OrderUseCase) TransitionTx(ctx context.Context, tx Transaction, input TransitionInput) (*domain.Order, error) {
	if !domain.CanTransition(input.From, input.To) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, input.From, input.To)
	}
	if err := domain.ValidateID(input.ActorID); err != nil {
		return nil, err
	}

	order, err := uc.orderRepo.GetByIDTx(ctx, tx, input.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Status != input.From {
		uc.conflict(input.To)
		return nil, fmt.Errorf("%w: expected %s, found %s", domain.ErrStatusChanged, input.From, order.Status)
	}

	if err := order.Advance(input.To, input.ActorID, time.Now().UTC()); err != nil {
		return nil, err
	}

	swapped, err := uc.orderRepo.UpdateStatus(ctx, tx, order, input.From)
	if err != nil {
		return nil, err
	}
	if !swapped {
		uc.conflict(input.To)
		return nil, fmt.Errorf("%w: lost race moving to %s", domain.ErrStatusChanged, input.To)
	}

	if err := uc.outboxRepo.Create(ctx, tx, domain.NewOrderEvent(uc.idGen.Generate(), order, input.From)); err != nil {
		return nil, err
	}

	return order, nil
}

// Get returns a snapshot of an order.
func (uc *OrderUseCase) Get(ctx context.Context, id string) (*domain.Order, error) {
	return uc.orderRepo.GetByID(ctx, id)
}

// ListByStatus returns a snapshot of orders in a status, oldest first.
func (uc *OrderUseCase) ListByStatus(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]*domain.Order, error) {
	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.orderRepo.ListByStatus(ctx, status, filter)
}

// ListByAccount returns orders where the account is passenger or driver, newest first.
func (uc *OrderUseCase) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Order, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return uc.orderRepo.ListByAccount(ctx, accountID, limit, offset)
}

func (uc *OrderUseCase) conflict(to domain.OrderStatus) {
	if uc.metrics != nil {
		uc.metrics.OrderConflicts.WithLabelValues(string(to)).Inc()
	}
}
