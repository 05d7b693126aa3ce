package ports

import (
	"context"
	"time"

	"EconomicPulse/internal/domain"
)

// FetchRequest names the series and the date window to pull in one call.
type FetchRequest struct {
	Series   []string
	DateFrom string
	DateTo   string
}

// PayloadSource pulls the raw statistics payload from upstream providers.
type PayloadSource interface {
	Fetch(ctx context.Context, req FetchRequest) (domain.RawPayload, error)
}

// ObservationSink persists observations and their date dimension rows.
type ObservationSink interface {
	Upsert(ctx context.Context, records []domain.ObservationRecord) (int, error)
}

// SQLExecutor applies SQL files against the warehouse.
type SQLExecutor interface {
	RunFiles(ctx context.Context, paths ...string) error
}

// FreshnessReport is what the freshness check observed for one series.
type FreshnessReport struct {
	SeriesID    string
	Rows        int64
	LatestDate  *time.Time
	LatestValue *float64
}

// FreshnessChecker verifies the warehouse holds recent data for a series.
type FreshnessChecker interface {
	Check(ctx context.Context, seriesID string, now time.Time) (FreshnessReport, error)
}

// Notifier streams run summaries to Telegram or other channels.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}

// RunRecorder collects per-run counters.
type RunRecorder interface {
	FetchAttempt(outcome string)
	Parsed(kept, dropped int)
	Upserted(n int)
	Finished(duration time.Duration, success bool, at time.Time)
}
