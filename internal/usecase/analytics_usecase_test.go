package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
	"github.com/iho/rideledger/internal/usecase/mocks"
)

func completeRide(t *testing.T, h *harness, passenger, driver string, price int64) {
	t.Helper()

	ctx := context.Background()
	order := h.place(t, passenger, price)
	if _, err := h.coord.AcceptOrder(ctx, order.ID, driver); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.coord.Pickup(ctx, order.ID, driver); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if _, err := h.coord.CompleteOrder(ctx, order.ID, driver); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestAnalyticsUseCase_SpendAndEarnings(t *testing.T) {
	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.account(t, "drv", domain.RoleDriver, 0)

	completeRide(t, h, "pax", "drv", 30)
	h.place(t, "pax", 20)

	uc := usecase.NewAnalyticsUseCase(h.accounts, h.entries, h.orders, nil, 0)
	ctx := context.Background()

	spend, err := uc.Summary(ctx, usecase.AnalyticsInput{AccountID: "pax"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if spend.Kind != domain.EntryKindSpend || spend.Granularity != domain.GranularityDay {
		t.Fatalf("unexpected summary header: %+v", spend)
	}
	if len(spend.Periods) != 5 {
		t.Fatalf("expected 5 daily periods, got %d", len(spend.Periods))
	}
	if !spend.Total.Equal(dec("50")) {
		t.Fatalf("expected spend 50, got %s", spend.Total)
	}
	if spend.CompletedTrips != 1 {
		t.Fatalf("expected 1 completed trip, got %d", spend.CompletedTrips)
	}
	for i := 1; i < len(spend.Periods); i++ {
		if !spend.Periods[i].PeriodStart.After(spend.Periods[i-1].PeriodStart) {
			t.Fatalf("periods must be oldest first")
		}
	}

	earnings, err := uc.Summary(ctx, usecase.AnalyticsInput{AccountID: "drv", Granularity: domain.GranularityMonth})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if earnings.Kind != domain.EntryKindEarning || len(earnings.Periods) != 12 {
		t.Fatalf("unexpected earnings summary: kind %s, %d periods", earnings.Kind, len(earnings.Periods))
	}
	if !earnings.Total.Equal(dec("30")) {
		t.Fatalf("expected earnings 30, got %s", earnings.Total)
	}
	last := earnings.Periods[len(earnings.Periods)-1]
	if !last.Total.Equal(dec("30")) || last.Count != 1 {
		t.Fatalf("expected this month's bucket to hold the ride, got %+v", last)
	}
}

func TestAnalyticsUseCase_UnknownAccount(t *testing.T) {
	h := newHarness(t)
	uc := usecase.NewAnalyticsUseCase(h.accounts, h.entries, h.orders, nil, 0)

	_, err := uc.Summary(context.Background(), usecase.AnalyticsInput{AccountID: "ghost"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAnalyticsUseCase_ServesFromCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.place(t, "pax", 10)

	cache := mocks.NewMockCache(ctrl)
	const key = "analytics:pax:day:5"
	var stored []byte

	gomock.InOrder(
		cache.EXPECT().Get(gomock.Any(), key).Return(nil, usecase.ErrCacheMiss),
		cache.EXPECT().Set(gomock.Any(), key, gomock.Any(), time.Minute).
			DoAndReturn(func(_ context.Context, _ string, value []byte, _ time.Duration) error {
				stored = value
				return nil
			}),
		cache.EXPECT().Get(gomock.Any(), key).DoAndReturn(func(context.Context, string) ([]byte, error) {
			return stored, nil
		}),
	)

	uc := usecase.NewAnalyticsUseCase(h.accounts, h.entries, h.orders, cache, time.Minute)
	ctx := context.Background()

	first, err := uc.Summary(ctx, usecase.AnalyticsInput{AccountID: "pax"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	h.place(t, "pax", 15)

	second, err := uc.Summary(ctx, usecase.AnalyticsInput{AccountID: "pax"})
	if err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if !second.Total.Equal(first.Total) || !second.Total.Equal(dec("10")) {
		t.Fatalf("expected the cached total 10, got %s", second.Total)
	}
}

func TestAnalyticsUseCase_CacheFailureFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t)
	h.account(t, "pax", domain.RolePassenger, 100)
	h.place(t, "pax", 10)

	cache := mocks.NewMockCache(ctrl)
	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	uc := usecase.NewAnalyticsUseCase(h.accounts, h.entries, h.orders, cache, 0)

	summary, err := uc.Summary(context.Background(), usecase.AnalyticsInput{AccountID: "pax"})
	if err != nil {
		t.Fatalf("cache errors must not fail the summary: %v", err)
	}
	if !summary.Total.Equal(dec("10")) {
		t.Fatalf("expected total 10, got %s", summary.Total)
	}
}
