package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create stages a new account. The ID stays locked until the transaction ends.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := r.store.lock(ctx, t, accountKey(account.ID)); err != nil {
		return err
	}

	if _, ok := r.current(t, account.ID); ok {
		return domain.ErrAccountExists
	}

	t.accounts[account.ID] = cloneAccount(account)
	return nil
}

// GetByID retrieves a committed account.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

// GetByIDForUpdate locks the account for the rest of the transaction and
// returns its latest state as seen by tx.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := r.store.lock(ctx, t, accountKey(id)); err != nil {
		return nil, err
	}

	a, ok := r.current(t, id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

// UpdateBalance stages a new balance and version.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := r.store.lock(ctx, t, accountKey(id)); err != nil {
		return err
	}

	a, ok := r.current(t, id)
	if !ok {
		return domain.ErrAccountNotFound
	}

	updated := cloneAccount(a)
	updated.Balance = balance
	updated.Version = version
	updated.UpdatedAt = updatedAt
	t.accounts[id] = updated
	return nil
}

// List returns committed accounts ordered by creation time.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	r.store.mu.Lock()
	accounts := make([]*domain.Account, 0, len(r.store.accounts))
	for _, a := range r.store.accounts {
		accounts = append(accounts, cloneAccount(a))
	}
	r.store.mu.Unlock()

	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})

	return page(accounts, limit, offset), nil
}

// current returns the account as seen by t: staged if written, else committed.
func (r *AccountRepository) current(t *Tx, id string) (*domain.Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.accounts[id]
	return a, ok
}
