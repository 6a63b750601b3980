package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core wraps exactly one of these.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrForbidden         = errors.New("forbidden")
	ErrUnavailable       = errors.New("unavailable")
)

var (
	// Account errors
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)
	ErrAccountExists   = fmt.Errorf("account already exists: %w", ErrConflict)
	ErrInvalidRole     = fmt.Errorf("%w: role must be passenger or driver", ErrInvalidInput)
	ErrRoleMismatch    = fmt.Errorf("%w: account role does not allow this operation", ErrForbidden)

	// Ledger errors
	ErrEntryNotFound     = fmt.Errorf("ledger entry %w", ErrNotFound)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	ErrInvalidEntryKind  = fmt.Errorf("%w: unknown entry kind", ErrInvalidInput)
	ErrMissingToken      = fmt.Errorf("%w: confirmation token is required", ErrInvalidInput)
	ErrReferenceMismatch = fmt.Errorf("reference already used for a different entry: %w", ErrConflict)

	// Order errors
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrMissingPlace     = fmt.Errorf("%w: origin and destination are required", ErrInvalidInput)
	ErrInvalidStatus    = fmt.Errorf("%w: unknown order status", ErrInvalidInput)
	ErrStatusChanged    = fmt.Errorf("order status changed: %w", ErrConflict)
	ErrDriverAssigned   = fmt.Errorf("%w: order already has a driver", ErrForbidden)
	ErrNotOrderDriver   = fmt.Errorf("%w: actor is not the order's driver", ErrForbidden)
	ErrNotOrderOwner    = fmt.Errorf("%w: actor is not the order's passenger", ErrForbidden)
	ErrSettlementFailed = fmt.Errorf("order completed but earning credit is pending: %w", ErrUnavailable)
)

// ErrorKind names an error category for callers outside the core.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindConflict          ErrorKind = "conflict"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindForbidden         ErrorKind = "forbidden"
	KindUnavailable       ErrorKind = "unavailable"
	KindInternal          ErrorKind = "internal"
)

var kinds = []struct {
	err     error
	kind    ErrorKind
	message string
	action  string
}{
	{ErrNotFound, KindNotFound, "The requested record does not exist.", ""},
	{ErrInvalidInput, KindInvalidInput, "Please check the details you entered.", ""},
	{ErrInsufficientFunds, KindInsufficientFunds, "Your wallet balance is too low. Top up to continue.", "topup"},
	{ErrConflict, KindConflict, "This was just changed by someone else. Refresh and try again.", "refresh"},
	{ErrInvalidTransition, KindInvalidTransition, "This action is not possible at the order's current stage.", ""},
	{ErrForbidden, KindForbidden, "You are not allowed to do this.", ""},
	{ErrUnavailable, KindUnavailable, "The service is temporarily unavailable. Please retry shortly.", "retry"},
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// UserMessage returns the user-facing text for err's kind.
func UserMessage(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.message
		}
	}
	return "Something went wrong."
}

// SuggestedAction returns the client flow to prompt for err, if any.
func SuggestedAction(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.action
		}
	}
	return ""
}
