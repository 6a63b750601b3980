package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// AccountResponse represents a wallet in API responses.
type AccountResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Balance   string    `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Role:      string(a.Role),
		Balance:   money(a.Balance),
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// BalanceResponse is the current balance of a wallet.
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	Kind            string    `json:"kind"`
	OrderID         string    `json:"order_id,omitempty"`
	Reference       string    `json:"reference,omitempty"`
	Amount          string    `json:"amount"`
	PreviousBalance string    `json:"previous_balance"`
	BalanceAfter    string    `json:"balance_after"`
	CreatedAt       time.Time `json:"created_at"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	if e == nil {
		return nil
	}
	return &EntryResponse{
		ID:              e.ID,
		AccountID:       e.AccountID,
		Kind:            string(e.Kind),
		OrderID:         e.OrderID,
		Reference:       e.Reference,
		Amount:          money(e.Amount),
		PreviousBalance: money(e.PreviousBalance),
		BalanceAfter:    money(e.BalanceAfter),
		CreatedAt:       e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// ListEntriesResponse is one page of an account's ledger, newest first.
type ListEntriesResponse struct {
	Entries []*EntryResponse `json:"entries"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// PlaceResponse is an origin or destination.
type PlaceResponse struct {
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

func placeFromDomain(p domain.Place) PlaceResponse {
	return PlaceResponse{Name: p.Name, Address: p.Address, Lat: p.Lat, Lng: p.Lng}
}

// OrderResponse represents a ride order in API responses.
type OrderResponse struct {
	ID          string        `json:"id"`
	PassengerID string        `json:"passenger_id"`
	DriverID    string        `json:"driver_id,omitempty"`
	Origin      PlaceResponse `json:"origin"`
	Destination PlaceResponse `json:"destination"`
	Distance    string        `json:"distance"`
	Price       string        `json:"price"`
	Status      string        `json:"status"`
	Version     int64         `json:"version"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	AcceptedAt  *time.Time    `json:"accepted_at,omitempty"`
	PickedUpAt  *time.Time    `json:"picked_up_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
}

// OrderFromDomain converts domain order to response.
func OrderFromDomain(o *domain.Order) *OrderResponse {
	return &OrderResponse{
		ID:          o.ID,
		PassengerID: o.PassengerID,
		DriverID:    o.DriverID,
		Origin:      placeFromDomain(o.Origin),
		Destination: placeFromDomain(o.Destination),
		Distance:    o.Distance.String(),
		Price:       money(o.Price),
		Status:      string(o.Status),
		Version:     o.Version,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		AcceptedAt:  o.AcceptedAt,
		PickedUpAt:  o.PickedUpAt,
		CompletedAt: o.CompletedAt,
		CancelledAt: o.CancelledAt,
	}
}

// OrdersFromDomain converts domain orders to responses.
func OrdersFromDomain(orders []*domain.Order) []*OrderResponse {
	result := make([]*OrderResponse, len(orders))
	for i, o := range orders {
		result[i] = OrderFromDomain(o)
	}
	return result
}

// ListOrdersResponse is a page of orders.
type ListOrdersResponse struct {
	Orders []*OrderResponse `json:"orders"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// OrderResultResponse is an order with the ledger entry the operation
// produced. SettlementPending is set when a completed order's earning credit
// has been deferred to the settlement sweeper.
type OrderResultResponse struct {
	Order             *OrderResponse `json:"order"`
	Entry             *EntryResponse `json:"entry,omitempty"`
	SettlementPending bool           `json:"settlement_pending,omitempty"`
}

// OrderResultFromUseCase converts a coordinator result to response.
func OrderResultFromUseCase(r *usecase.OrderResult) *OrderResultResponse {
	return &OrderResultResponse{
		Order: OrderFromDomain(r.Order),
		Entry: EntryFromDomain(r.Entry),
	}
}

// PeriodResponse is one analytics bucket.
type PeriodResponse struct {
	PeriodStart time.Time `json:"period_start"`
	Label       string    `json:"label"`
	Total       string    `json:"total"`
	Count       int64     `json:"count"`
}

// AnalyticsResponse is a spend or earnings summary.
type AnalyticsResponse struct {
	AccountID      string           `json:"account_id"`
	Role           string           `json:"role"`
	Kind           string           `json:"kind"`
	Granularity    string           `json:"granularity"`
	Periods        []PeriodResponse `json:"periods"`
	Total          string           `json:"total"`
	CompletedTrips int64            `json:"completed_trips"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// AnalyticsFromDomain converts an analytics summary to response.
func AnalyticsFromDomain(s *domain.AnalyticsSummary) *AnalyticsResponse {
	periods := make([]PeriodResponse, len(s.Periods))
	for i, p := range s.Periods {
		periods[i] = PeriodResponse{
			PeriodStart: p.PeriodStart,
			Label:       s.Granularity.Label(p.PeriodStart),
			Total:       money(p.Total),
			Count:       p.Count,
		}
	}

	return &AnalyticsResponse{
		AccountID:      s.AccountID,
		Role:           string(s.Role),
		Kind:           string(s.Kind),
		Granularity:    string(s.Granularity),
		Periods:        periods,
		Total:          money(s.Total),
		CompletedTrips: s.CompletedTrips,
		GeneratedAt:    s.GeneratedAt,
	}
}

// DiscrepancyResponse is an account whose balance does not match its ledger.
type DiscrepancyResponse struct {
	AccountID         string `json:"account_id"`
	RecordedBalance   string `json:"recorded_balance"`
	CalculatedBalance string `json:"calculated_balance"`
	Difference        string `json:"difference"`
	EntryCount        int    `json:"entry_count"`
	ChainBroken       bool   `json:"chain_broken"`
}

// ReconciliationReportResponse is the ledger-wide reconciliation outcome.
type ReconciliationReportResponse struct {
	TotalAccounts      int                   `json:"total_accounts"`
	ReconciledAccounts int                   `json:"reconciled_accounts"`
	LedgerConsistent   bool                  `json:"ledger_consistent"`
	Discrepancies      []DiscrepancyResponse `json:"discrepancies"`
	CheckedAt          time.Time             `json:"checked_at"`
}

// ReconciliationReportFromUseCase converts a reconciliation report to response.
func ReconciliationReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]DiscrepancyResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = DiscrepancyResponse{
			AccountID:         d.AccountID,
			RecordedBalance:   money(d.RecordedBalance),
			CalculatedBalance: money(d.CalculatedBalance),
			Difference:        money(d.Difference),
			EntryCount:        d.EntryCount,
			ChainBroken:       d.ChainBroken,
		}
	}

	return &ReconciliationReportResponse{
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		LedgerConsistent:   r.LedgerConsistent,
		Discrepancies:      discrepancies,
		CheckedAt:          r.CheckedAt,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind"`
	Action  string `json:"action,omitempty"`
}
