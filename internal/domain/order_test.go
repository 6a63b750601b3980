package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newPendingOrder() *Order {
	return &Order{
		ID:          "ord-1",
		PassengerID: "pax-1",
		Origin:      Place{Name: "Library"},
		Destination: Place{Name: "Hostel"},
		Price:       decimal.NewFromInt(20),
		Status:      OrderStatusPending,
	}
}

func TestCanTransition(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending, OrderStatusAccepted, OrderStatusInProgress,
		OrderStatusCompleted, OrderStatusCancelled,
	}
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusAccepted}:      true,
		{OrderStatusPending, OrderStatusCancelled}:     true,
		{OrderStatusAccepted, OrderStatusInProgress}:   true,
		{OrderStatusInProgress, OrderStatusCompleted}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]OrderStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestOrder_AdvanceLifecycle(t *testing.T) {
	o := newPendingOrder()
	now := time.Now().UTC()

	if err := o.Advance(OrderStatusAccepted, "drv-1", now); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if o.DriverID != "drv-1" || o.AcceptedAt == nil || o.Version != 1 {
		t.Fatalf("unexpected order after accept: %+v", o)
	}

	if err := o.Advance(OrderStatusInProgress, "drv-2", now); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden pickup by other driver, got %v", err)
	}
	if err := o.Advance(OrderStatusInProgress, "drv-1", now); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if err := o.Advance(OrderStatusCompleted, "drv-1", now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if o.Status != OrderStatusCompleted || o.CompletedAt == nil || o.Version != 3 {
		t.Fatalf("unexpected order after complete: %+v", o)
	}
	if !o.Price.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("price changed: %s", o.Price)
	}

	if err := o.Advance(OrderStatusCancelled, "pax-1", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from completed, got %v", err)
	}
}

func TestOrder_AdvanceRejectsSkips(t *testing.T) {
	o := newPendingOrder()
	err := o.Advance(OrderStatusCompleted, "drv-1", time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if o.Status != OrderStatusPending || o.Version != 0 {
		t.Fatalf("order mutated on failed transition: %+v", o)
	}
}

func TestOrder_Authorize(t *testing.T) {
	o := newPendingOrder()
	o.DriverID = "drv-1"
	if err := o.Authorize(OrderStatusAccepted, "drv-2"); !errors.Is(err, ErrDriverAssigned) {
		t.Fatalf("expected ErrDriverAssigned, got %v", err)
	}

	o = newPendingOrder()
	if err := o.Authorize(OrderStatusCancelled, "someone"); !errors.Is(err, ErrNotOrderOwner) {
		t.Fatalf("expected ErrNotOrderOwner, got %v", err)
	}
	if err := o.Authorize(OrderStatusCancelled, "pax-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrder_Clone(t *testing.T) {
	o := newPendingOrder()
	now := time.Now()
	o.AcceptedAt = &now

	c := o.Clone()
	*c.AcceptedAt = now.Add(time.Hour)
	c.Status = OrderStatusAccepted

	if !o.AcceptedAt.Equal(now) || o.Status != OrderStatusPending {
		t.Fatal("clone shares state with original")
	}
}

func TestParseOrderStatus(t *testing.T) {
	if s, err := ParseOrderStatus(" In_Progress "); err != nil || s != OrderStatusInProgress {
		t.Fatalf("expected in_progress, got %q %v", s, err)
	}
	if _, err := ParseOrderStatus("driving"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !OrderStatusCancelled.IsTerminal() || OrderStatusAccepted.IsTerminal() {
		t.Fatal("terminal states wrong")
	}
}

func TestOrderFilter_Matches(t *testing.T) {
	o := newPendingOrder()
	if !(OrderFilter{}).Matches(o) {
		t.Error("empty filter should match")
	}
	if (OrderFilter{PassengerID: "pax-2"}).Matches(o) {
		t.Error("passenger filter should not match")
	}
	if (OrderFilter{DriverID: "drv-1"}).Matches(o) {
		t.Error("driver filter should not match an unassigned order")
	}
}
