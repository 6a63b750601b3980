package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	store *Store
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(store *Store) *EntryRepository {
	return &EntryRepository{store: store}
}

// Create stages an entry, enforcing the (order, kind) and (account,
// reference) uniqueness the Postgres schema enforces with indexes.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	for _, e := range r.visible(t) {
		if entry.OrderID != "" && e.OrderID == entry.OrderID && e.Kind == entry.Kind {
			return fmt.Errorf("%w: %s entry for order %s exists", domain.ErrConflict, entry.Kind, entry.OrderID)
		}
		if entry.Reference != "" && e.AccountID == entry.AccountID && e.Reference == entry.Reference {
			return fmt.Errorf("%w: reference %q already used", domain.ErrConflict, entry.Reference)
		}
	}

	t.entries = append(t.entries, cloneEntry(entry))
	return nil
}

// GetByOrderAndKind finds the entry of a kind written for an order.
func (r *EntryRepository) GetByOrderAndKind(ctx context.Context, tx usecase.Transaction, orderID string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	return r.find(tx, func(e *domain.LedgerEntry) bool {
		return e.OrderID == orderID && e.Kind == kind
	})
}

// GetByReference finds an account's entry carrying reference.
func (r *EntryRepository) GetByReference(ctx context.Context, tx usecase.Transaction, accountID, reference string) (*domain.LedgerEntry, error) {
	return r.find(tx, func(e *domain.LedgerEntry) bool {
		return e.AccountID == accountID && e.Reference == reference
	})
}

// ListByAccount returns committed entries, newest first.
func (r *EntryRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	entries := r.committed(accountID)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return page(entries, limit, offset), nil
}

// ListByAccountAscending returns all committed entries in ledger order.
func (r *EntryRepository) ListByAccountAscending(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error) {
	return r.committed(accountID), nil
}

// SumByPeriod totals an account's entries of kind per bucket since the given
// time, oldest bucket first. Empty buckets are omitted.
func (r *EntryRepository) SumByPeriod(ctx context.Context, accountID string, kind domain.EntryKind, granularity domain.Granularity, since time.Time) ([]domain.PeriodTotal, error) {
	buckets := make(map[time.Time]*domain.PeriodTotal)
	for _, e := range r.committed(accountID) {
		if e.Kind != kind || e.CreatedAt.Before(since) {
			continue
		}
		start := granularity.Truncate(e.CreatedAt)
		b, ok := buckets[start]
		if !ok {
			b = &domain.PeriodTotal{PeriodStart: start, Total: decimal.Zero}
			buckets[start] = b
		}
		b.Total = b.Total.Add(e.Amount)
		b.Count++
	}

	totals := make([]domain.PeriodTotal, 0, len(buckets))
	for _, b := range buckets {
		totals = append(totals, *b)
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].PeriodStart.Before(totals[j].PeriodStart)
	})
	return totals, nil
}

// committed returns copies of an account's committed entries in append order,
// which is account version order.
func (r *EntryRepository) committed(accountID string) []*domain.LedgerEntry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entries := []*domain.LedgerEntry{}
	for _, e := range r.store.entries {
		if e.AccountID == accountID {
			entries = append(entries, cloneEntry(e))
		}
	}
	return entries
}

// visible returns the committed entries plus those staged in t.
func (r *EntryRepository) visible(t *Tx) []*domain.LedgerEntry {
	r.store.mu.Lock()
	entries := make([]*domain.LedgerEntry, 0, len(r.store.entries)+len(t.entries))
	entries = append(entries, r.store.entries...)
	r.store.mu.Unlock()

	return append(entries, t.entries...)
}

func (r *EntryRepository) find(tx usecase.Transaction, match func(*domain.LedgerEntry) bool) (*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	if tx == nil {
		r.store.mu.Lock()
		entries = append(entries, r.store.entries...)
		r.store.mu.Unlock()
	} else {
		t, err := asTx(tx)
		if err != nil {
			return nil, err
		}
		entries = r.visible(t)
	}

	for _, e := range entries {
		if match(e) {
			return cloneEntry(e), nil
		}
	}
	return nil, domain.ErrEntryNotFound
}
