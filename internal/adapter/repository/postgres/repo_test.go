package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
)

var accountColumns = []string{"id", "role", "balance", "version", "created_at", "updated_at"}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrOrderNotFound},
		{"unique violation", &pgconn.PgError{Code: pgErrUniqueViolation}, domain.ErrConflict},
		{"check violation", &pgconn.PgError{Code: pgErrCheckViolation}, domain.ErrInvalidInput},
		{"serialization failure", &pgconn.PgError{Code: pgErrSerializationFailure}, domain.ErrUnavailable},
		{"connection failure", &pgconn.PgError{Code: "08006"}, domain.ErrUnavailable},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), domain.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapError(tt.err, domain.ErrOrderNotFound); !errors.Is(got, tt.want) {
				t.Fatalf("mapError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	if mapError(nil, domain.ErrOrderNotFound) != nil {
		t.Fatalf("nil must map to nil")
	}

	other := errors.New("syntax")
	if got := mapError(other, domain.ErrOrderNotFound); got != other {
		t.Fatalf("unclassified errors pass through, got %v", got)
	}
}

func TestAccountRepositoryGetByID(t *testing.T) {
	mockPool := newMockPool(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery(`FROM accounts WHERE id = \$1`).
		WithArgs("pax-1").
		WillReturnRows(pgxmock.NewRows(accountColumns).
			AddRow("pax-1", "passenger", "42.50", int64(3), now, now))

	repo := NewAccountRepository(mockPool)
	acc, err := repo.GetByID(context.Background(), "pax-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if acc.Role != domain.RolePassenger || acc.Version != 3 {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if !acc.Balance.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("expected balance 42.50, got %s", acc.Balance)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryGetByIDNotFound(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectQuery(`FROM accounts WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	repo := NewAccountRepository(mockPool)
	if _, err := repo.GetByID(context.Background(), "ghost"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryCreateDuplicate(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "accounts_pkey"})
	mockPool.ExpectRollback()

	ctx := context.Background()
	tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	acc, _ := domain.NewAccount("pax-1", domain.RolePassenger, time.Now())
	err = NewAccountRepository(mockPool).Create(ctx, tx, acc)
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected account exists, got %v", err)
	}

	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	assertExpectations(t, mockPool)
}

func TestAccountRepositoryUpdateBalanceMissingRow(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectExec(`UPDATE accounts`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ctx := context.Background()
	tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	err = NewAccountRepository(mockPool).UpdateBalance(ctx, tx, "ghost", decimal.NewFromInt(10), 2, time.Now())
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestOrderRepositoryUpdateStatusCompareAndSwap(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"won", 1, true},
		{"lost", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPool := newMockPool(t)
			mockPool.ExpectBegin()
			mockPool.ExpectExec(`UPDATE orders`).
				WithArgs(
					"accepted", pgxmock.AnyArg(), int64(1), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					"ord-1", "pending",
				).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			ctx := context.Background()
			tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
			if err != nil {
				t.Fatalf("begin: %v", err)
			}

			now := time.Now()
			order := &domain.Order{
				ID:          "ord-1",
				PassengerID: "pax-1",
				DriverID:    "drv-1",
				Status:      domain.OrderStatusAccepted,
				Version:     1,
				UpdatedAt:   now,
				AcceptedAt:  &now,
			}

			ok, err := NewOrderRepository(mockPool).UpdateStatus(ctx, tx, order, domain.OrderStatusPending)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, ok)
			}

			assertExpectations(t, mockPool)
		})
	}
}

func TestOrderRepositoryGetByIDNotFound(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectQuery(`FROM orders WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := NewOrderRepository(mockPool).GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestEntryRepositorySumByPeriod(t *testing.T) {
	mockPool := newMockPool(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery(`date_trunc`).
		WithArgs("day", "pax-1", "spend", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"period_start", "total", "entry_count"}).
			AddRow(day, "30.00", int64(2)).
			AddRow(day.AddDate(0, 0, 1), "12.50", int64(1)))

	totals, err := NewEntryRepository(mockPool).SumByPeriod(context.Background(), "pax-1", domain.EntryKindSpend, domain.GranularityDay, day.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(totals) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(totals))
	}
	if !totals[0].PeriodStart.Equal(day) || totals[0].Count != 2 || !totals[0].Total.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected first bucket: %+v", totals[0])
	}
	if !totals[1].Total.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected second bucket: %+v", totals[1])
	}

	assertExpectations(t, mockPool)
}

func TestEntryRepositoryCreateConflict(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectExec(`INSERT INTO ledger_entries`).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "ledger_entries_order_kind_key"})

	ctx := context.Background()
	tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	err = NewEntryRepository(mockPool).Create(ctx, tx, &domain.LedgerEntry{
		ID:        "entry-1",
		AccountID: "drv-1",
		Kind:      domain.EntryKindEarning,
		OrderID:   "ord-1",
		Amount:    decimal.NewFromInt(10),
		CreatedAt: time.Now(),
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestOutboxRepositoryCreateMarshalsPayload(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectExec(`INSERT INTO outbox_events`).
		WithArgs("evt-1", "ord-1", domain.AggregateTypeOrder, domain.EventTypeOrderPlaced,
			[]byte(`{"order_id":"ord-1"}`), pgxmock.AnyArg(), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := context.Background()
	tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	err = NewOutboxRepository(mockPool).Create(ctx, tx, &domain.OutboxEvent{
		ID:            "evt-1",
		AggregateID:   "ord-1",
		AggregateType: domain.AggregateTypeOrder,
		EventType:     domain.EventTypeOrderPlaced,
		Payload:       map[string]any{"order_id": "ord-1"},
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "12.34", "1000000.01", "0.05"} {
		d := decimal.RequireFromString(s)
		if got := numericToDecimal(decimalToNumeric(d)); !got.Equal(d) {
			t.Fatalf("round trip of %s gave %s", s, got)
		}
	}
}
