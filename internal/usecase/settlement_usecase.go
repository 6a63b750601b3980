package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/metrics"
)

// SettlementUseCase credits drivers for completed orders whose earning
// credit did not land, so the ledger converges after partial failures.
type SettlementUseCase struct {
	orderRepo OrderRepository
	wallet    *WalletUseCase
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

func NewSettlementUseCase(orderRepo OrderRepository, wallet *WalletUseCase, logger zerolog.Logger, metrics *metrics.Metrics) *SettlementUseCase {
	return &SettlementUseCase{
		orderRepo: orderRepo,
		wallet:    wallet,
		logger:    logger.With().Str("component", "settlement").Logger(),
		metrics:   metrics,
	}
}

// SettleResult summarises one sweep.
type SettleResult struct {
	Scanned int
	Settled int
	Failed  int
}

// SettleCompleted applies missing earning entries for up to limit orders.
// Each credit is idempotent, so overlapping sweeps and late coordinator
// retries are harmless.
func (uc *SettlementUseCase) SettleCompleted(ctx context.Context, limit int) (*SettleResult, error) {
	if limit <= 0 {
		limit = DefaultSettlementBatch
	}

	orders, err := uc.orderRepo.ListUnsettled(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := &SettleResult{Scanned: len(orders)}
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}

		_, err := uc.wallet.ApplyEntry(ctx, ApplyEntryInput{
			AccountID: order.DriverID,
			Kind:      domain.EntryKindEarning,
			Amount:    order.Price,
			OrderID:   order.ID,
		})
		if err != nil {
			result.Failed++
			uc.logger.Error().Err(err).Str("order_id", order.ID).Msg("settlement credit failed")
			continue
		}

		result.Settled++
		if uc.metrics != nil {
			uc.metrics.SettlementCredits.Inc()
		}
	}

	if result.Settled > 0 || result.Failed > 0 {
		uc.logger.Info().
			Int("scanned", result.Scanned).
			Int("settled", result.Settled).
			Int("failed", result.Failed).
			Msg("settlement sweep finished")
	}

	return result, nil
}

// Run sweeps every interval until ctx is cancelled.
func (uc *SettlementUseCase) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := uc.SettleCompleted(ctx, DefaultSettlementBatch); err != nil && ctx.Err() == nil {
			uc.logger.Error().Err(err).Msg("settlement sweep failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
