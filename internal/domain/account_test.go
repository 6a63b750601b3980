package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAccount_ValidateDebit(t *testing.T) {
	tests := []struct {
		name        string
		balance     decimal.Decimal
		debitAmount decimal.Decimal
		expectError bool
	}{
		{
			name:        "debit more than balance",
			balance:     decimal.NewFromInt(10),
			debitAmount: decimal.NewFromInt(15),
			expectError: true,
		},
		{
			name:        "debit exact balance",
			balance:     decimal.NewFromInt(100),
			debitAmount: decimal.NewFromInt(100),
			expectError: false,
		},
		{
			name:        "debit less than balance",
			balance:     decimal.NewFromInt(100),
			debitAmount: decimal.NewFromInt(50),
			expectError: false,
		},
		{
			name:        "debit from empty wallet",
			balance:     decimal.Zero,
			debitAmount: decimal.RequireFromString("0.01"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{Balance: tt.balance}
			err := acc.ValidateDebit(tt.debitAmount)
			if tt.expectError {
				if !errors.Is(err, ErrInsufficientFunds) {
					t.Errorf("expected ErrInsufficientFunds, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAccount_Apply(t *testing.T) {
	acc := &Account{Balance: decimal.NewFromInt(50)}

	tests := []struct {
		kind    EntryKind
		amount  int64
		want    int64
		wantErr error
	}{
		{EntryKindTopUp, 10, 60, nil},
		{EntryKindEarning, 20, 70, nil},
		{EntryKindRefund, 5, 55, nil},
		{EntryKindSpend, 20, 30, nil},
		{EntryKindWithdrawal, 50, 0, nil},
		{EntryKindSpend, 51, 0, ErrInsufficientFunds},
		{EntryKind("bogus"), 1, 0, ErrInvalidEntryKind},
	}

	for _, tt := range tests {
		got, err := acc.Apply(tt.kind, decimal.NewFromInt(tt.amount))
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s %d: expected %v, got %v", tt.kind, tt.amount, tt.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s %d: unexpected error %v", tt.kind, tt.amount, err)
			continue
		}
		if !got.Equal(decimal.NewFromInt(tt.want)) {
			t.Errorf("%s %d: expected balance %d, got %s", tt.kind, tt.amount, tt.want, got)
		}
	}
}

func TestNewAccount(t *testing.T) {
	now := time.Now().UTC()

	acc, err := NewAccount("uid-1", RoleDriver, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acc.Balance.IsZero() || acc.Role != RoleDriver || acc.Version != 0 {
		t.Fatalf("unexpected account: %+v", acc)
	}

	if _, err := NewAccount("uid-1", Role("admin"), now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}
	if _, err := NewAccount("", RolePassenger, now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty id, got %v", err)
	}
}

func TestRole_Capabilities(t *testing.T) {
	if !RolePassenger.CanPlaceOrders() || RolePassenger.CanDrive() {
		t.Error("passenger capabilities wrong")
	}
	if !RoleDriver.CanDrive() || RoleDriver.CanPlaceOrders() {
		t.Error("driver capabilities wrong")
	}
	if Role("viewer").IsValid() {
		t.Error("unexpected valid role")
	}
}
