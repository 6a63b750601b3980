package domain

import "time"

// Event types
const (
	EventTypeOrderPlaced    = "order.placed"
	EventTypeOrderAccepted  = "order.accepted"
	EventTypeOrderPickedUp  = "order.picked_up"
	EventTypeOrderCompleted = "order.completed"
	EventTypeOrderCancelled = "order.cancelled"
	EventTypeEntryApplied   = "wallet.entry_applied"
	EventTypeAccountCreated = "account.created"
)

// Aggregate types
const (
	AggregateTypeOrder   = "order"
	AggregateTypeAccount = "account"
)

// OrderEventType returns the event emitted when an order enters status.
func OrderEventType(status OrderStatus) string {
	switch status {
	case OrderStatusAccepted:
		return EventTypeOrderAccepted
	case OrderStatusInProgress:
		return EventTypeOrderPickedUp
	case OrderStatusCompleted:
		return EventTypeOrderCompleted
	case OrderStatusCancelled:
		return EventTypeOrderCancelled
	default:
		return EventTypeOrderPlaced
	}
}

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// NewOrderEvent builds the outbox event for an order state change.
func NewOrderEvent(id string, order *Order, previous OrderStatus) *OutboxEvent {
	payload := map[string]any{
		"order_id":     order.ID,
		"passenger_id": order.PassengerID,
		"status":       string(order.Status),
		"version":      order.Version,
		"price":        order.Price.StringFixed(2),
	}
	if previous != "" {
		payload["previous_status"] = string(previous)
	}
	if order.HasDriver() {
		payload["driver_id"] = order.DriverID
	}

	return &OutboxEvent{
		ID:            id,
		AggregateID:   order.ID,
		AggregateType: AggregateTypeOrder,
		EventType:     OrderEventType(order.Status),
		Payload:       payload,
		CreatedAt:     order.UpdatedAt,
	}
}

// NewEntryEvent builds the outbox event for an applied ledger entry.
func NewEntryEvent(id string, entry *LedgerEntry) *OutboxEvent {
	payload := map[string]any{
		"entry_id":      entry.ID,
		"account_id":    entry.AccountID,
		"kind":          string(entry.Kind),
		"amount":        entry.Amount.StringFixed(2),
		"balance_after": entry.BalanceAfter.StringFixed(2),
	}
	if entry.OrderID != "" {
		payload["order_id"] = entry.OrderID
	}

	return &OutboxEvent{
		ID:            id,
		AggregateID:   entry.AccountID,
		AggregateType: AggregateTypeAccount,
		EventType:     EventTypeEntryApplied,
		Payload:       payload,
		CreatedAt:     entry.CreatedAt,
	}
}

// Change-feed channels. Watchers subscribe, the outbox publisher notifies.
const (
	OrderBoardChannel  = "orders:board"
	orderChannelPrefix = "orders:"
)

// OrderChannel is the change-feed channel for a single order.
func OrderChannel(orderID string) string {
	return orderChannelPrefix + orderID
}

// Channels returns the change-feed channels to notify for e.
func (e *OutboxEvent) Channels() []string {
	if e.AggregateType != AggregateTypeOrder {
		return nil
	}
	return []string{OrderChannel(e.AggregateID), OrderBoardChannel}
}
