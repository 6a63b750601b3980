package postgres

import (
	"context"
	"time"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/postgres/generated"
	"github.com/iho/rideledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{queries: generated.New(db)}
}

// Create appends an entry within a transaction. Unique indexes reject a
// second entry for the same (order, kind) or (account, reference).
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	err := txQueries(tx).CreateLedgerEntry(ctx, generated.CreateLedgerEntryParams{
		ID:              entry.ID,
		AccountID:       entry.AccountID,
		Kind:            string(entry.Kind),
		OrderID:         optionalText(entry.OrderID),
		Reference:       optionalText(entry.Reference),
		Amount:          decimalToNumeric(entry.Amount),
		PreviousBalance: decimalToNumeric(entry.PreviousBalance),
		BalanceAfter:    decimalToNumeric(entry.BalanceAfter),
		AccountVersion:  entry.AccountVersion,
		CreatedAt:       timeToPgTimestamptz(entry.CreatedAt),
	})

	return mapError(err, domain.ErrEntryNotFound)
}

// GetByOrderAndKind finds the entry an order produced. A nil tx reads
// committed state.
func (r *EntryRepository) GetByOrderAndKind(ctx context.Context, tx usecase.Transaction, orderID string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	row, err := r.pick(tx).GetLedgerEntryByOrderAndKind(ctx, generated.GetLedgerEntryByOrderAndKindParams{
		OrderID: optionalText(orderID),
		Kind:    string(kind),
	})
	if err != nil {
		return nil, mapError(err, domain.ErrEntryNotFound)
	}

	return rowToEntry(row), nil
}

// GetByReference finds the entry recorded under a caller token.
func (r *EntryRepository) GetByReference(ctx context.Context, tx usecase.Transaction, accountID, reference string) (*domain.LedgerEntry, error) {
	row, err := r.pick(tx).GetLedgerEntryByReference(ctx, generated.GetLedgerEntryByReferenceParams{
		AccountID: accountID,
		Reference: optionalText(reference),
	})
	if err != nil {
		return nil, mapError(err, domain.ErrEntryNotFound)
	}

	return rowToEntry(row), nil
}

// ListByAccount returns an account's entries, newest first.
func (r *EntryRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.queries.ListLedgerEntriesByAccount(ctx, generated.ListLedgerEntriesByAccountParams{
		AccountID: accountID,
		Limit:     rowLimit(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		return nil, mapError(err, domain.ErrEntryNotFound)
	}

	return rowsToEntries(rows), nil
}

// ListByAccountAscending returns an account's entries in ledger order.
func (r *EntryRepository) ListByAccountAscending(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error) {
	rows, err := r.queries.ListLedgerEntriesByAccountAscending(ctx, accountID)
	if err != nil {
		return nil, mapError(err, domain.ErrEntryNotFound)
	}

	return rowsToEntries(rows), nil
}

// SumByPeriod totals entries of kind per bucket since the given time.
// Buckets without entries are omitted.
func (r *EntryRepository) SumByPeriod(ctx context.Context, accountID string, kind domain.EntryKind, granularity domain.Granularity, since time.Time) ([]domain.PeriodTotal, error) {
	rows, err := r.queries.SumLedgerEntriesByPeriod(ctx, generated.SumLedgerEntriesByPeriodParams{
		Granularity: string(granularity),
		AccountID:   accountID,
		Kind:        string(kind),
		Since:       timeToPgTimestamptz(since),
	})
	if err != nil {
		return nil, mapError(err, domain.ErrEntryNotFound)
	}

	totals := make([]domain.PeriodTotal, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, domain.PeriodTotal{
			PeriodStart: granularity.Truncate(row.PeriodStart.Time),
			Total:       numericToDecimal(row.Total),
			Count:       row.EntryCount,
		})
	}

	return totals, nil
}

func (r *EntryRepository) pick(tx usecase.Transaction) *generated.Queries {
	if tx == nil {
		return r.queries
	}
	return txQueries(tx)
}

func rowsToEntries(rows []generated.LedgerEntry) []*domain.LedgerEntry {
	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToEntry(row))
	}
	return entries
}

func rowToEntry(row generated.LedgerEntry) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:              row.ID,
		AccountID:       row.AccountID,
		Kind:            domain.EntryKind(row.Kind),
		OrderID:         row.OrderID.String,
		Reference:       row.Reference.String,
		Amount:          numericToDecimal(row.Amount),
		PreviousBalance: numericToDecimal(row.PreviousBalance),
		BalanceAfter:    numericToDecimal(row.BalanceAfter),
		AccountVersion:  row.AccountVersion,
		CreatedAt:       row.CreatedAt.Time,
	}
}
