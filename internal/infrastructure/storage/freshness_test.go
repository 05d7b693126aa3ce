package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"EconomicPulse/internal/domain"
	"EconomicPulse/internal/ports"
)

func TestCheckReportsLatestObservation(t *testing.T) {
	t.Parallel()

	latest := domain.NewDate(2024, time.February, 28)
	db := &fakeQuerier{rows: []fakeRow{
		{values: []any{int64(12), &latest}},
		{values: []any{5.25}},
	}}

	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	report, err := NewFreshnessValidator(db, 120*time.Hour).Check(context.Background(), "IUMABEDR", now)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if report.Rows != 12 || report.LatestDate == nil || !report.LatestDate.Equal(latest) {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.LatestValue == nil || *report.LatestValue != 5.25 {
		t.Fatalf("expected latest value 5.25, got %v", report.LatestValue)
	}
	if len(db.queries) != 2 || !strings.Contains(db.queries[1], "ORDER BY date_id DESC") {
		t.Fatalf("unexpected queries %v", db.queries)
	}
}

func TestCheckNoData(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{rows: []fakeRow{{values: []any{int64(0), (*time.Time)(nil)}}}}
	_, err := NewFreshnessValidator(db, 0).Check(context.Background(), "IUMABEDR", time.Now())
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if len(db.queries) != 1 {
		t.Fatalf("latest value must not be queried for an empty series")
	}
}

func TestEvaluateFreshness(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)
	date := func(y int, m time.Month, d int) *time.Time {
		v := domain.NewDate(y, m, d)
		return &v
	}

	cases := []struct {
		name      string
		rows      int64
		latest    *time.Time
		staleness time.Duration
		want      error
	}{
		{name: "empty", rows: 0, want: domain.ErrNoData},
		{name: "fresh", rows: 3, latest: date(2024, time.March, 9), staleness: 48 * time.Hour},
		{name: "on cutoff", rows: 3, latest: date(2024, time.March, 8), staleness: 48 * time.Hour},
		{name: "stale", rows: 3, latest: date(2024, time.March, 7), staleness: 48 * time.Hour, want: domain.ErrStaleData},
		{name: "staleness disabled", rows: 3, latest: date(1990, time.January, 2)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := evaluateFreshness(reportFor(tc.rows, tc.latest), now, tc.staleness)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected fresh, got %v", err)
				}
				return
			}
			var freshErr *domain.FreshnessError
			if !errors.As(err, &freshErr) || !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if freshErr.SeriesID != "IUMABEDR" {
				t.Fatalf("expected series in error, got %q", freshErr.SeriesID)
			}
		})
	}
}

func reportFor(rows int64, latest *time.Time) ports.FreshnessReport {
	return ports.FreshnessReport{SeriesID: "IUMABEDR", Rows: rows, LatestDate: latest}
}
