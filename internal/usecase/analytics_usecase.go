package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
)

// AnalyticsInput selects an analytics series.
type AnalyticsInput struct {
	AccountID   string
	Granularity domain.Granularity
	Periods     int
}

// AnalyticsUseCase summarises what passengers spent and drivers earned.
type AnalyticsUseCase struct {
	accountRepo AccountRepository
	entryRepo   EntryRepository
	orderRepo   OrderRepository
	cache       Cache
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewAnalyticsUseCase creates the use case. cache may be nil.
func NewAnalyticsUseCase(accountRepo AccountRepository, entryRepo EntryRepository, orderRepo OrderRepository, cache Cache, cacheTTL time.Duration) *AnalyticsUseCase {
	if cacheTTL <= 0 {
		cacheTTL = DefaultAnalyticsCacheTTL
	}
	return &AnalyticsUseCase{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		orderRepo:   orderRepo,
		cache:       cache,
		cacheTTL:    cacheTTL,
		now:         time.Now,
	}
}

// Summary returns spend (passengers) or earnings (drivers) per period, most
// recent period last, with empty periods filled with zero.
func (uc *AnalyticsUseCase) Summary(ctx context.Context, input AnalyticsInput) (*domain.AnalyticsSummary, error) {
	if input.Granularity == "" {
		input.Granularity = domain.GranularityDay
	}
	if input.Periods <= 0 {
		input.Periods = defaultPeriods(input.Granularity)
	}
	if input.Periods > 366 {
		input.Periods = 366
	}

	key := fmt.Sprintf("analytics:%s:%s:%d", input.AccountID, input.Granularity, input.Periods)
	if cached, ok := uc.fromCache(ctx, key); ok {
		return cached, nil
	}

	account, err := uc.accountRepo.GetByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	kind := domain.EntryKindSpend
	if account.Role == domain.RoleDriver {
		kind = domain.EntryKindEarning
	}

	now := uc.now().UTC()
	current := input.Granularity.Truncate(now)
	since := input.Granularity.Step(current, input.Periods-1)

	totals, err := uc.entryRepo.SumByPeriod(ctx, account.ID, kind, input.Granularity, since)
	if err != nil {
		return nil, err
	}

	trips, err := uc.orderRepo.CountByAccountAndStatus(ctx, account.ID, domain.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}

	byStart := make(map[time.Time]domain.PeriodTotal, len(totals))
	for _, t := range totals {
		byStart[input.Granularity.Truncate(t.PeriodStart)] = t
	}

	summary := &domain.AnalyticsSummary{
		AccountID:      account.ID,
		Role:           account.Role,
		Kind:           kind,
		Granularity:    input.Granularity,
		Periods:        make([]domain.PeriodTotal, 0, input.Periods),
		Total:          decimal.Zero,
		CompletedTrips: trips,
		GeneratedAt:    now,
	}
	for i := input.Periods - 1; i >= 0; i-- {
		start := input.Granularity.Step(current, i)
		period, ok := byStart[start]
		if !ok {
			period = domain.PeriodTotal{PeriodStart: start, Total: decimal.Zero}
		}
		period.PeriodStart = start
		summary.Periods = append(summary.Periods, period)
		summary.Total = summary.Total.Add(period.Total)
	}

	uc.toCache(ctx, key, summary)

	return summary, nil
}

func defaultPeriods(g domain.Granularity) int {
	if g == domain.GranularityMonth {
		return 12
	}
	return 5
}

func (uc *AnalyticsUseCase) fromCache(ctx context.Context, key string) (*domain.AnalyticsSummary, bool) {
	if uc.cache == nil {
		return nil, false
	}

	data, err := uc.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var summary domain.AnalyticsSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, false
	}
	return &summary, true
}

func (uc *AnalyticsUseCase) toCache(ctx context.Context, key string, summary *domain.AnalyticsSummary) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	// Cache failures only cost a recomputation.
	_ = uc.cache.Set(ctx, key, data, uc.cacheTTL)
}
