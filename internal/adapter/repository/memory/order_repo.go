package memory

import (
	"context"
	"sort"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
)

// OrderRepository implements usecase.OrderRepository.
type OrderRepository struct {
	store *Store
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

// Create stages a new order.
func (r *OrderRepository) Create(ctx context.Context, tx usecase.Transaction, order *domain.Order) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := r.store.lock(ctx, t, orderKey(order.ID)); err != nil {
		return err
	}

	if _, ok := r.current(t, order.ID); ok {
		return domain.ErrConflict
	}

	t.orders[order.ID] = order.Clone()
	return nil
}

// GetByID returns the committed order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// GetByIDTx locks the order for the rest of the transaction and returns it.
func (r *OrderRepository) GetByIDTx(ctx context.Context, tx usecase.Transaction, id string) (*domain.Order, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := r.store.lock(ctx, t, orderKey(id)); err != nil {
		return nil, err
	}

	o, ok := r.current(t, id)
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// UpdateStatus stages order if the status seen by tx still equals expected.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, order *domain.Order, expected domain.OrderStatus) (bool, error) {
	t, err := asTx(tx)
	if err != nil {
		return false, err
	}
	if err := r.store.lock(ctx, t, orderKey(order.ID)); err != nil {
		return false, err
	}

	current, ok := r.current(t, order.ID)
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if current.Status != expected {
		return false, nil
	}

	t.orders[order.ID] = order.Clone()
	return true, nil
}

// ListByStatus returns committed orders in status, oldest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]*domain.Order, error) {
	orders := r.collect(func(o *domain.Order) bool {
		return o.Status == status && filter.Matches(o)
	})
	sortOrders(orders, false)
	return page(orders, filter.Limit, filter.Offset), nil
}

// ListByAccount returns orders the account rode in or drove, newest first.
func (r *OrderRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Order, error) {
	orders := r.collect(func(o *domain.Order) bool {
		return o.PassengerID == accountID || o.DriverID == accountID
	})
	sortOrders(orders, true)
	return page(orders, limit, offset), nil
}

// CountByAccountAndStatus counts orders in status the account took part in.
func (r *OrderRepository) CountByAccountAndStatus(ctx context.Context, accountID string, status domain.OrderStatus) (int64, error) {
	orders := r.collect(func(o *domain.Order) bool {
		return o.Status == status && (o.PassengerID == accountID || o.DriverID == accountID)
	})
	return int64(len(orders)), nil
}

// ListUnsettled returns completed orders with no earning entry, oldest first.
func (r *OrderRepository) ListUnsettled(ctx context.Context, limit int) ([]*domain.Order, error) {
	r.store.mu.Lock()
	earned := make(map[string]bool)
	for _, e := range r.store.entries {
		if e.Kind == domain.EntryKindEarning && e.OrderID != "" {
			earned[e.OrderID] = true
		}
	}
	orders := []*domain.Order{}
	for _, o := range r.store.orders {
		if o.Status == domain.OrderStatusCompleted && !earned[o.ID] {
			orders = append(orders, o.Clone())
		}
	}
	r.store.mu.Unlock()

	sortOrders(orders, false)
	return page(orders, limit, 0), nil
}

func (r *OrderRepository) collect(match func(*domain.Order) bool) []*domain.Order {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	orders := []*domain.Order{}
	for _, o := range r.store.orders {
		if match(o) {
			orders = append(orders, o.Clone())
		}
	}
	return orders
}

func (r *OrderRepository) current(t *Tx, id string) (*domain.Order, bool) {
	if o, ok := t.orders[id]; ok {
		return o, true
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	return o, ok
}

func sortOrders(orders []*domain.Order, newestFirst bool) {
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if newestFirst {
			a, b = b, a
		}
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
