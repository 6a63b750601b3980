package handler

import (
	"context"
	"net/http"

	"github.com/iho/rideledger/internal/adapter/http/dto"
	"github.com/iho/rideledger/internal/usecase"
)

// Reconciler checks every balance against its ledger.
type Reconciler interface {
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	reconciler Reconciler
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(reconciler Reconciler) *LedgerHandler {
	return &LedgerHandler{reconciler: reconciler}
}

// Reconcile reports accounts whose balance differs from the fold of their
// entries. An inconsistent ledger is reported with 409.
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if !report.LedgerConsistent {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto.ReconciliationReportFromUseCase(report))
}
