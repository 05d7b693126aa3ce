package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"EconomicPulse/internal/domain"
	"EconomicPulse/internal/ports"
)

// FreshnessValidator checks that a series has been loaded recently.
type FreshnessValidator struct {
	db           Querier
	maxStaleness time.Duration
}

var _ ports.FreshnessChecker = (*FreshnessValidator)(nil)

// NewFreshnessValidator fails series whose newest date is older than maxStaleness.
// A non-positive maxStaleness only checks that rows exist.
func NewFreshnessValidator(db Querier, maxStaleness time.Duration) *FreshnessValidator {
	return &FreshnessValidator{db: db, maxStaleness: maxStaleness}
}

// Check reports row count, latest date and latest value for seriesID.
// The report is filled even when the returned error is a FreshnessError.
func (v *FreshnessValidator) Check(ctx context.Context, seriesID string, now time.Time) (ports.FreshnessReport, error) {
	report := ports.FreshnessReport{SeriesID: seriesID}
	if v.db == nil {
		return report, fmt.Errorf("freshness validator has no database")
	}

	query, args, err := psql.Select("COUNT(*)", "MAX(date_id)").
		From(factTable).
		Where(sq.Eq{"series_id": seriesID}).
		ToSql()
	if err != nil {
		return report, fmt.Errorf("build freshness query: %w", err)
	}

	var latest *time.Time
	if err := v.db.QueryRow(ctx, query, args...).Scan(&report.Rows, &latest); err != nil {
		return report, fmt.Errorf("query freshness: %w", err)
	}
	report.LatestDate = latest

	if report.Rows > 0 {
		value, err := v.latestValue(ctx, seriesID)
		if err != nil {
			return report, err
		}
		report.LatestValue = value
	}

	return report, evaluateFreshness(report, now, v.maxStaleness)
}

func (v *FreshnessValidator) latestValue(ctx context.Context, seriesID string) (*float64, error) {
	query, args, err := psql.Select("value").
		From(factTable).
		Where(sq.Eq{"series_id": seriesID}).
		OrderBy("date_id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest value query: %w", err)
	}

	var value float64
	if err := v.db.QueryRow(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest value: %w", err)
	}
	return &value, nil
}

func evaluateFreshness(report ports.FreshnessReport, now time.Time, maxStaleness time.Duration) error {
	if report.Rows == 0 || report.LatestDate == nil {
		return &domain.FreshnessError{Kind: domain.ErrNoData, SeriesID: report.SeriesID}
	}
	if maxStaleness <= 0 {
		return nil
	}

	cutoff := domain.DateOf(now).Add(-maxStaleness)
	latest := domain.DateOf(*report.LatestDate)
	if latest.Before(cutoff) {
		return &domain.FreshnessError{
			Kind:     domain.ErrStaleData,
			SeriesID: report.SeriesID,
			Msg: fmt.Sprintf("latest %s is older than %s",
				latest.Format(domain.DateLayout), cutoff.Format(domain.DateLayout)),
		}
	}
	return nil
}
