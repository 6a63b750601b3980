package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
)

func TestAccountFromDomain(t *testing.T) {
	now := time.Now()
	account := &domain.Account{
		ID:        "acc-1",
		Role:      domain.RolePassenger,
		Balance:   decimal.RequireFromString("123.4"),
		Version:   2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	resp := AccountFromDomain(account)
	if resp.ID != account.ID || resp.Balance != "123.40" || resp.Version != 2 || resp.Role != "passenger" {
		t.Fatalf("unexpected account response: %+v", resp)
	}
}

func TestOrderResultFromUseCase(t *testing.T) {
	order := &domain.Order{
		ID:          "ord-1",
		PassengerID: "pax",
		Origin:      domain.Place{Name: "Home"},
		Destination: domain.Place{Name: "Work"},
		Distance:    decimal.RequireFromString("7.25"),
		Price:       decimal.NewFromInt(20),
		Status:      domain.OrderStatusPending,
		Version:     1,
	}

	resp := OrderResultFromUseCase(&usecase.OrderResult{Order: order})
	if resp.Entry != nil {
		t.Fatalf("expected no entry, got %+v", resp.Entry)
	}
	if resp.Order.Price != "20.00" || resp.Order.Distance != "7.25" || resp.Order.Status != "pending" {
		t.Fatalf("unexpected order response: %+v", resp.Order)
	}

	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(body), `"entry"`) || strings.Contains(string(body), "driver_id") {
		t.Fatalf("empty fields must be omitted: %s", body)
	}
}

func TestAnalyticsFromDomain(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	summary := &domain.AnalyticsSummary{
		AccountID:   "drv",
		Role:        domain.RoleDriver,
		Kind:        domain.EntryKindEarning,
		Granularity: domain.GranularityMonth,
		Periods: []domain.PeriodTotal{
			{PeriodStart: start, Total: decimal.NewFromInt(45), Count: 2},
		},
		Total:          decimal.NewFromInt(45),
		CompletedTrips: 2,
	}

	resp := AnalyticsFromDomain(summary)
	if len(resp.Periods) != 1 || resp.Periods[0].Total != "45.00" || resp.Periods[0].Label == "" {
		t.Fatalf("unexpected periods: %+v", resp.Periods)
	}
	if resp.Kind != "earning" || resp.CompletedTrips != 2 {
		t.Fatalf("unexpected summary: %+v", resp)
	}
}

func TestReconciliationReportFromUseCase(t *testing.T) {
	report := &usecase.ReconciliationReport{
		TotalAccounts:      2,
		ReconciledAccounts: 1,
		Discrepancies: []*usecase.ReconciliationResult{{
			AccountID:         "drv",
			RecordedBalance:   decimal.NewFromInt(100),
			CalculatedBalance: decimal.NewFromInt(40),
			Difference:        decimal.NewFromInt(60),
			EntryCount:        1,
		}},
	}

	resp := ReconciliationReportFromUseCase(report)
	if resp.LedgerConsistent || len(resp.Discrepancies) != 1 || resp.Discrepancies[0].Difference != "60.00" {
		t.Fatalf("unexpected report response: %+v", resp)
	}
}
