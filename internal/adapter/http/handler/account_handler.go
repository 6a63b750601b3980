package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/adapter/http/dto"
	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
)

// WalletService defines the wallet behaviour needed by the handlers.
type WalletService interface {
	CreateAccount(ctx context.Context, id string, role domain.Role) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetBalance(ctx context.Context, id string) (decimal.Decimal, error)
	ListEntries(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error)
	TopUp(ctx context.Context, accountID string, amount decimal.Decimal, token string) (*domain.LedgerEntry, error)
	Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*domain.LedgerEntry, error)
}

// OrderHistory lists orders an account took part in.
type OrderHistory interface {
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Order, error)
}

// AnalyticsService summarises spend or earnings.
type AnalyticsService interface {
	Summary(ctx context.Context, input usecase.AnalyticsInput) (*domain.AnalyticsSummary, error)
}

// AccountHandler serves the caller's own wallet, history and analytics.
type AccountHandler struct {
	wallet    WalletService
	history   OrderHistory
	analytics AnalyticsService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(wallet WalletService, history OrderHistory, analytics AnalyticsService) *AccountHandler {
	return &AccountHandler{wallet: wallet, history: history, analytics: analytics}
}

// Create registers a wallet for the caller.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	role := domain.Role(req.Role)
	switch {
	case role == "":
		role = p.Role
	case p.Role != "" && role != p.Role:
		writeError(w, fmt.Errorf("%w: identity role is %s", domain.ErrRoleMismatch, p.Role))
		return
	}

	account, err := h.wallet.CreateAccount(r.Context(), p.AccountID, role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Get returns the caller's wallet.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.wallet.GetAccount(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Balance returns the caller's current balance.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	balance, err := h.wallet.GetBalance(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		AccountID: p.AccountID,
		Balance:   balance.StringFixed(2),
	})
}

// Entries lists the caller's ledger, newest first.
func (h *AccountHandler) Entries(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, offset, err := domain.ValidatePagination(parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.wallet.ListEntries(r.Context(), p.AccountID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListEntriesResponse{
		Entries: dto.EntriesFromDomain(entries),
		Limit:   limit,
		Offset:  offset,
	})
}

// Orders lists orders where the caller is passenger or driver.
func (h *AccountHandler) Orders(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, offset, err := domain.ValidatePagination(parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeError(w, err)
		return
	}

	orders, err := h.history.ListByAccount(r.Context(), p.AccountID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListOrdersResponse{
		Orders: dto.OrdersFromDomain(orders),
		Limit:  limit,
		Offset: offset,
	})
}

// Analytics returns the caller's spend (passengers) or earnings (drivers).
func (h *AccountHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	granularity, err := domain.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.analytics.Summary(r.Context(), usecase.AnalyticsInput{
		AccountID:   p.AccountID,
		Granularity: granularity,
		Periods:     parseIntQuery(r, "limit", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AnalyticsFromDomain(summary))
}
