package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the part an account plays in a ride.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RolePassenger || r == RoleDriver
}

// CanPlaceOrders reports whether r may request rides.
func (r Role) CanPlaceOrders() bool {
	return r == RolePassenger
}

// CanDrive reports whether r may accept and fulfil rides.
func (r Role) CanDrive() bool {
	return r == RoleDriver
}

// Account is a passenger's or driver's wallet.
type Account struct {
	ID        string
	Role      Role
	Balance   decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount returns an empty wallet for id.
func NewAccount(id string, role Role, now time.Time) (*Account, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	return &Account{
		ID:        id,
		Role:      role,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if amount.GreaterThan(a.Balance) {
		return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, a.Balance.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

// Apply returns the balance after an entry of kind and amount.
func (a *Account) Apply(kind EntryKind, amount decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case kind.IsDebit():
		if err := a.ValidateDebit(amount); err != nil {
			return decimal.Zero, err
		}
		return a.Balance.Sub(amount), nil
	case kind.IsCredit():
		return a.Balance.Add(amount), nil
	default:
		return decimal.Zero, ErrInvalidEntryKind
	}
}
