package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultWatchInterval is the poll period of watch streams without a change feed wake-up.
	DefaultWatchInterval = 2 * time.Second

	// DefaultAnalyticsCacheTTL bounds analytics staleness.
	DefaultAnalyticsCacheTTL = 30 * time.Second

	// DefaultSettlementBatch is how many unsettled orders one sweep credits.
	DefaultSettlementBatch = 100
)
