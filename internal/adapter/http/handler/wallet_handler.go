package handler

import (
	"net/http"

	"github.com/iho/rideledger/internal/adapter/http/dto"
)

// WalletHandler moves money into and out of the caller's wallet.
type WalletHandler struct {
	wallet WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallet WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// TopUp credits a confirmed payment. Repeating a token returns the original
// entry.
func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.TopUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := dto.ParseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.wallet.TopUp(r.Context(), p.AccountID, amount, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Withdraw debits the caller's wallet.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.WithdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := dto.ParseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.wallet.Withdraw(r.Context(), p.AccountID, amount, req.Reference)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}
