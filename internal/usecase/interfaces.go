package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
)

// AccountRepository defines data access for wallets.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	GetByOrderAndKind(ctx context.Context, tx Transaction, orderID string, kind domain.EntryKind) (*domain.LedgerEntry, error)
	GetByReference(ctx context.Context, tx Transaction, accountID, reference string) (*domain.LedgerEntry, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error)
	// ListByAccountAscending returns entries in ledger order for folding.
	ListByAccountAscending(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error)
	SumByPeriod(ctx context.Context, accountID string, kind domain.EntryKind, granularity domain.Granularity, since time.Time) ([]domain.PeriodTotal, error)
}

// OrderRepository defines data access for orders.
type OrderRepository interface {
	Create(ctx context.Context, tx Transaction, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDTx(ctx context.Context, tx Transaction, id string) (*domain.Order, error)
	// UpdateStatus writes order if the stored status still equals expected.
	// It reports false when the compare-and-swap lost.
	UpdateStatus(ctx context.Context, tx Transaction, order *domain.Order, expected domain.OrderStatus) (bool, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]*domain.Order, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Order, error)
	CountByAccountAndStatus(ctx context.Context, accountID string, status domain.OrderStatus) (int64, error)
	// ListUnsettled returns completed orders that have no earning entry.
	ListUnsettled(ctx context.Context, limit int) ([]*domain.Order, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation with backoff while it fails with a retryable error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// ChangeFeed wakes watchers when something on a channel may have changed.
// Wake-ups carry no data; watchers re-read the source of truth. The wake
// channel is never closed; the returned func ends the subscription.
type ChangeFeed interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan struct{}, func(), error)
}

// RouteEstimator estimates the driving distance between two places, in km.
type RouteEstimator interface {
	EstimateDistance(ctx context.Context, origin, destination domain.Place) (decimal.Decimal, error)
}
