package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/rideledger/internal/adapter/http/dto"
	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
)

// Coordinator runs the order operations that move money.
type Coordinator interface {
	PlaceOrder(ctx context.Context, input usecase.PlaceOrderInput) (*usecase.OrderResult, error)
	AcceptOrder(ctx context.Context, orderID, driverID string) (*domain.Order, error)
	Pickup(ctx context.Context, orderID, driverID string) (*domain.Order, error)
	CompleteOrder(ctx context.Context, orderID, driverID string) (*usecase.OrderResult, error)
	CancelOrder(ctx context.Context, orderID, passengerID string) (*usecase.OrderResult, error)
}

// OrderQueries reads orders.
type OrderQueries interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]*domain.Order, error)
}

// OrderHandler handles ride order requests.
type OrderHandler struct {
	coordinator Coordinator
	orders      OrderQueries
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(coordinator Coordinator, orders OrderQueries) *OrderHandler {
	return &OrderHandler{coordinator: coordinator, orders: orders}
}

// Place creates an order for the caller and debits its price.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.PlaceOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	input, err := req.ToUseCaseInput(p.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.coordinator.PlaceOrder(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.OrderResultFromUseCase(result))
}

// Get returns one order.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// List returns orders in a status, pending by default, oldest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	status, filter, err := parseBoardQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	orders, err := h.orders.ListByStatus(r.Context(), status, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListOrdersResponse{
		Orders: dto.OrdersFromDomain(orders),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Accept binds the calling driver to a pending order.
func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.driverTransition(w, r, h.coordinator.AcceptOrder)
}

// Pickup starts the ride.
func (h *OrderHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	h.driverTransition(w, r, h.coordinator.Pickup)
}

// Complete finishes the ride and credits the driver. When the credit is
// deferred the order is still returned, with 202 Accepted.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.coordinator.CompleteOrder(r.Context(), chi.URLParam(r, "id"), p.AccountID)
	if errors.Is(err, domain.ErrSettlementFailed) && result != nil && result.Order != nil {
		resp := dto.OrderResultFromUseCase(result)
		resp.SettlementPending = true
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderResultFromUseCase(result))
}

// Cancel cancels the caller's pending order and refunds the price.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.coordinator.CancelOrder(r.Context(), chi.URLParam(r, "id"), p.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderResultFromUseCase(result))
}

func (h *OrderHandler) driverTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, orderID, driverID string) (*domain.Order, error)) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := op(r.Context(), chi.URLParam(r, "id"), p.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// parseBoardQuery reads status, passenger_id, driver_id, limit and offset.
func parseBoardQuery(r *http.Request) (domain.OrderStatus, domain.OrderFilter, error) {
	q := r.URL.Query()

	status := domain.OrderStatusPending
	if s := q.Get("status"); s != "" {
		parsed, err := domain.ParseOrderStatus(s)
		if err != nil {
			return "", domain.OrderFilter{}, err
		}
		status = parsed
	}

	limit, offset, err := domain.ValidatePagination(parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		return "", domain.OrderFilter{}, err
	}

	return status, domain.OrderFilter{
		PassengerID: q.Get("passenger_id"),
		DriverID:    q.Get("driver_id"),
		Limit:       limit,
		Offset:      offset,
	}, nil
}
