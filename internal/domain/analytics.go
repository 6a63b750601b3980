package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Granularity is the bucket width of an analytics series.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// ParseGranularity validates a granularity string, defaulting to day.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", GranularityDay:
		return GranularityDay, nil
	case GranularityMonth:
		return GranularityMonth, nil
	}
	return "", fmt.Errorf("%w: granularity must be day or month", ErrInvalidInput)
}

// Truncate returns the start of the bucket containing t, in UTC.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if g == GranularityMonth {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Step returns the start of the n-th bucket before start.
func (g Granularity) Step(start time.Time, n int) time.Time {
	if g == GranularityMonth {
		return start.AddDate(0, -n, 0)
	}
	return start.AddDate(0, 0, -n)
}

// Label formats a bucket start for display.
func (g Granularity) Label(t time.Time) string {
	if g == GranularityMonth {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// PeriodTotal is the sum of one entry kind within a bucket.
type PeriodTotal struct {
	PeriodStart time.Time
	Total       decimal.Decimal
	Count       int64
}

// AnalyticsSummary is an account's spend or earnings history.
type AnalyticsSummary struct {
	AccountID      string
	Role           Role
	Kind           EntryKind
	Granularity    Granularity
	Periods        []PeriodTotal
	Total          decimal.Decimal
	CompletedTrips int64
	GeneratedAt    time.Time
}
