package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is a state of the ride state machine.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusAccepted, OrderStatusCancelled},
	OrderStatusAccepted:   {OrderStatusInProgress},
	OrderStatusInProgress: {OrderStatusCompleted},
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Place is an origin or destination as supplied by the mapping service.
type Place struct {
	Name    string
	Address string
	Lat     float64
	Lng     float64
}

// IsZero reports whether the place carries no name.
func (p Place) IsZero() bool {
	return strings.TrimSpace(p.Name) == ""
}

// Order is one ride request.
type Order struct {
	ID          string
	PassengerID string
	DriverID    string
	Origin      Place
	Destination Place
	Distance    decimal.Decimal
	Price       decimal.Decimal
	Status      OrderStatus
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// HasDriver reports whether a driver is bound to the order.
func (o *Order) HasDriver() bool {
	return o.DriverID != ""
}

// Authorize checks that actorID may move the order to next.
func (o *Order) Authorize(next OrderStatus, actorID string) error {
	switch next {
	case OrderStatusAccepted:
		if o.HasDriver() {
			return ErrDriverAssigned
		}
	case OrderStatusInProgress, OrderStatusCompleted:
		if o.DriverID != actorID {
			return ErrNotOrderDriver
		}
	case OrderStatusCancelled:
		if o.PassengerID != actorID {
			return ErrNotOrderOwner
		}
	}
	return nil
}

// Advance moves the order to next, binding the driver on acceptance.
// The caller is responsible for the compare-and-swap against storage.
func (o *Order) Advance(next OrderStatus, actorID string, now time.Time) error {
	if !CanTransition(o.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	if err := o.Authorize(next, actorID); err != nil {
		return err
	}

	switch next {
	case OrderStatusAccepted:
		o.DriverID = actorID
		o.AcceptedAt = &now
	case OrderStatusInProgress:
		o.PickedUpAt = &now
	case OrderStatusCompleted:
		o.CompletedAt = &now
	case OrderStatusCancelled:
		o.CancelledAt = &now
	}

	o.Status = next
	o.Version++
	o.UpdatedAt = now

	return nil
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.AcceptedAt = cloneTime(o.AcceptedAt)
	c.PickedUpAt = cloneTime(o.PickedUpAt)
	c.CompletedAt = cloneTime(o.CompletedAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// OrderFilter narrows order list reads.
type OrderFilter struct {
	PassengerID string
	DriverID    string
	Limit       int
	Offset      int
}

// Matches reports whether o passes the filter's account constraints.
func (f OrderFilter) Matches(o *Order) bool {
	if f.PassengerID != "" && o.PassengerID != f.PassengerID {
		return false
	}
	if f.DriverID != "" && o.DriverID != f.DriverID {
		return false
	}
	return true
}
