package postgres

import (
	"context"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/postgres/generated"
	"github.com/iho/rideledger/internal/usecase"
)

// OrderRepository implements usecase.OrderRepository.
type OrderRepository struct {
	queries *generated.Queries
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db generated.DBTX) *OrderRepository {
	return &OrderRepository{queries: generated.New(db)}
}

// Create inserts a new order within a transaction.
func (r *OrderRepository) Create(ctx context.Context, tx usecase.Transaction, order *domain.Order) error {
	err := txQueries(tx).CreateOrder(ctx, generated.CreateOrderParams{
		ID:                 order.ID,
		PassengerID:        order.PassengerID,
		DriverID:           optionalText(order.DriverID),
		OriginName:         order.Origin.Name,
		OriginAddress:      order.Origin.Address,
		OriginLat:          order.Origin.Lat,
		OriginLng:          order.Origin.Lng,
		DestinationName:    order.Destination.Name,
		DestinationAddress: order.Destination.Address,
		DestinationLat:     order.Destination.Lat,
		DestinationLng:     order.Destination.Lng,
		Distance:           decimalToNumeric(order.Distance),
		Price:              decimalToNumeric(order.Price),
		Status:             string(order.Status),
		Version:            order.Version,
		CreatedAt:          timeToPgTimestamptz(order.CreatedAt),
		UpdatedAt:          timeToPgTimestamptz(order.UpdatedAt),
	})

	return mapError(err, domain.ErrOrderNotFound)
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row, err := r.queries.GetOrderByID(ctx, id)
	if err != nil {
		return nil, mapError(err, domain.ErrOrderNotFound)
	}

	return rowToOrder(row), nil
}

// GetByIDTx retrieves an order by ID with a FOR UPDATE lock.
func (r *OrderRepository) GetByIDTx(ctx context.Context, tx usecase.Transaction, id string) (*domain.Order, error) {
	row, err := txQueries(tx).GetOrderByIDForUpdate(ctx, id)
	if err != nil {
		return nil, mapError(err, domain.ErrOrderNotFound)
	}

	return rowToOrder(row), nil
}

// UpdateStatus writes order guarded by the stored status. It reports false
// when no row still had the expected status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, order *domain.Order, expected domain.OrderStatus) (bool, error) {
	n, err := txQueries(tx).UpdateOrderStatus(ctx, generated.UpdateOrderStatusParams{
		Status:         string(order.Status),
		DriverID:       optionalText(order.DriverID),
		Version:        order.Version,
		UpdatedAt:      timeToPgTimestamptz(order.UpdatedAt),
		AcceptedAt:     optionalTime(order.AcceptedAt),
		PickedUpAt:     optionalTime(order.PickedUpAt),
		CompletedAt:    optionalTime(order.CompletedAt),
		CancelledAt:    optionalTime(order.CancelledAt),
		ID:             order.ID,
		ExpectedStatus: string(expected),
	})
	if err != nil {
		return false, mapError(err, domain.ErrOrderNotFound)
	}

	return n == 1, nil
}

// ListByStatus returns orders in status, oldest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]*domain.Order, error) {
	rows, err := r.queries.ListOrdersByStatus(ctx, generated.ListOrdersByStatusParams{
		Status:      string(status),
		PassengerID: optionalText(filter.PassengerID),
		DriverID:    optionalText(filter.DriverID),
		RowLimit:    rowLimit(filter.Limit),
		RowOffset:   int32(filter.Offset),
	})
	if err != nil {
		return nil, mapError(err, domain.ErrOrderNotFound)
	}

	return rowsToOrders(rows), nil
}

// ListByAccount returns orders the account rode or drove, newest first.
func (r *OrderRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Order, error) {
	rows, err := r.queries.ListOrdersByAccount(ctx, generated.ListOrdersByAccountParams{
		PassengerID: accountID,
		Limit:       rowLimit(limit),
		Offset:      int32(offset),
	})
	if err != nil {
		return nil, mapError(err, domain.ErrOrderNotFound)
	}

	return rowsToOrders(rows), nil
}

// CountByAccountAndStatus counts the account's orders in status.
func (r *OrderRepository) CountByAccountAndStatus(ctx context.Context, accountID string, status domain.OrderStatus) (int64, error) {
	n, err := r.queries.CountOrdersByAccountAndStatus(ctx, generated.CountOrdersByAccountAndStatusParams{
		PassengerID: accountID,
		Status:      string(status),
	})
	if err != nil {
		return 0, mapError(err, domain.ErrOrderNotFound)
	}

	return n, nil
}

// ListUnsettled returns completed orders that have no earning entry.
func (r *OrderRepository) ListUnsettled(ctx context.Context, limit int) ([]*domain.Order, error) {
	rows, err := r.queries.ListUnsettledOrders(ctx, rowLimit(limit))
	if err != nil {
		return nil, mapError(err, domain.ErrOrderNotFound)
	}

	return rowsToOrders(rows), nil
}

func rowsToOrders(rows []generated.Order) []*domain.Order {
	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, rowToOrder(row))
	}
	return orders
}

func rowToOrder(row generated.Order) *domain.Order {
	return &domain.Order{
		ID:          row.ID,
		PassengerID: row.PassengerID,
		DriverID:    row.DriverID.String,
		Origin: domain.Place{
			Name:    row.OriginName,
			Address: row.OriginAddress,
			Lat:     row.OriginLat,
			Lng:     row.OriginLng,
		},
		Destination: domain.Place{
			Name:    row.DestinationName,
			Address: row.DestinationAddress,
			Lat:     row.DestinationLat,
			Lng:     row.DestinationLng,
		},
		Distance:    numericToDecimal(row.Distance),
		Price:       numericToDecimal(row.Price),
		Status:      domain.OrderStatus(row.Status),
		Version:     row.Version,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
		AcceptedAt:  timePtr(row.AcceptedAt),
		PickedUpAt:  timePtr(row.PickedUpAt),
		CompletedAt: timePtr(row.CompletedAt),
		CancelledAt: timePtr(row.CancelledAt),
	}
}
