package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryKindTopUp      EntryKind = "topup"
	EntryKindWithdrawal EntryKind = "withdrawal"
	EntryKindSpend      EntryKind = "spend"
	EntryKindEarning    EntryKind = "earning"
	EntryKindRefund     EntryKind = "refund"
)

// IsDebit reports whether the kind decreases the balance.
func (k EntryKind) IsDebit() bool {
	return k == EntryKindWithdrawal || k == EntryKindSpend
}

// IsCredit reports whether the kind increases the balance.
func (k EntryKind) IsCredit() bool {
	return k == EntryKindTopUp || k == EntryKindEarning || k == EntryKindRefund
}

// IsValid reports whether k is a known kind.
func (k EntryKind) IsValid() bool {
	return k.IsDebit() || k.IsCredit()
}

// Signed returns amount with the sign the kind applies to a balance.
func (k EntryKind) Signed(amount decimal.Decimal) decimal.Decimal {
	if k.IsDebit() {
		return amount.Neg()
	}
	return amount
}

// LedgerEntry is one immutable balance change.
type LedgerEntry struct {
	CreatedAt       time.Time
	ID              string
	AccountID       string
	Kind            EntryKind
	OrderID         string // correlated order, empty when none
	Reference       string // caller idempotency token, empty when none
	Amount          decimal.Decimal
	PreviousBalance decimal.Decimal
	BalanceAfter    decimal.Decimal
	AccountVersion  int64
}

// FoldEntries replays entries, which must be in ledger order, from zero.
func FoldEntries(entries []*LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Kind.Signed(e.Amount))
	}
	return balance
}
