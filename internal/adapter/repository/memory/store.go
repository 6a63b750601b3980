// Package memory is an in-process implementation of the storage ports.
//
// It mirrors the Postgres adapter's semantics: rows read for update stay
// locked until the transaction ends, writes are staged and become visible to
// other readers only on commit, and order status writes are compare-and-swap.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
)

// ErrTxClosed is returned when a committed or rolled back transaction is used.
var ErrTxClosed = errors.New("memory: transaction is closed")

// Store holds committed state and the row locks.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	orders   map[string]*domain.Order
	entries  []*domain.LedgerEntry
	outbox   []*domain.OutboxEvent
	locks    map[string]*rowLock
}

type rowLock struct {
	owner    *Tx
	released chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
		orders:   make(map[string]*domain.Order),
		locks:    make(map[string]*rowLock),
	}
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return &Tx{
		store:    m.store,
		accounts: make(map[string]*domain.Account),
		orders:   make(map[string]*domain.Order),
	}, nil
}

// Tx stages writes until Commit.
type Tx struct {
	store    *Store
	held     []string
	accounts map[string]*domain.Account
	orders   map[string]*domain.Order
	entries  []*domain.LedgerEntry
	outbox   []*domain.OutboxEvent
	closed   bool
}

// Commit applies the staged writes atomically and releases the row locks.
func (t *Tx) Commit(ctx context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.closed {
		return ErrTxClosed
	}
	t.closed = true

	for id, a := range t.accounts {
		s.accounts[id] = a
	}
	for id, o := range t.orders {
		s.orders[id] = o
	}
	s.entries = append(s.entries, t.entries...)
	s.outbox = append(s.outbox, t.outbox...)

	s.releaseLocked(t)
	return nil
}

// Rollback discards the staged writes. It is a no-op on a closed transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	s.releaseLocked(t)
	return nil
}

// lock takes the row lock for key on behalf of t. Locks are reentrant for
// the owning transaction and are waited for until ctx is done.
func (s *Store) lock(ctx context.Context, t *Tx, key string) error {
	for {
		s.mu.Lock()
		if t.closed {
			s.mu.Unlock()
			return ErrTxClosed
		}
		l, ok := s.locks[key]
		if !ok {
			s.locks[key] = &rowLock{owner: t, released: make(chan struct{})}
			t.held = append(t.held, key)
			s.mu.Unlock()
			return nil
		}
		if l.owner == t {
			s.mu.Unlock()
			return nil
		}
		released := l.released
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for lock on %s: %v", domain.ErrUnavailable, key, ctx.Err())
		case <-released:
		}
	}
}

func (s *Store) releaseLocked(t *Tx) {
	for _, key := range t.held {
		if l, ok := s.locks[key]; ok && l.owner == t {
			delete(s.locks, key)
			close(l.released)
		}
	}
	t.held = nil
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, fmt.Errorf("memory: unexpected transaction type %T", tx)
	}
	return t, nil
}

func accountKey(id string) string { return "account:" + id }

func orderKey(id string) string { return "order:" + id }

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func cloneEntry(e *domain.LedgerEntry) *domain.LedgerEntry {
	c := *e
	return &c
}

func cloneEvent(e *domain.OutboxEvent) *domain.OutboxEvent {
	c := *e
	if e.Payload != nil {
		c.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			c.Payload[k] = v
		}
	}
	if e.PublishedAt != nil {
		at := *e.PublishedAt
		c.PublishedAt = &at
	}
	return &c
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
