package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"EconomicPulse/internal/domain"
	"EconomicPulse/internal/ports"
)

const (
	dateDimensionTable = "dim_date"
	factTable          = "fact_observation"
	defaultBatchSize   = 1000
)

const factConflictClause = `ON CONFLICT (series_id, date_id) DO UPDATE
              SET value = EXCLUDED.value,
                  release_date = EXCLUDED.release_date,
                  fetched_at = EXCLUDED.fetched_at`

// PostgresRepository persists observations into the date dimension and the
// observation fact table.
type PostgresRepository struct {
	db        TxBeginner
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

var _ ports.ObservationSink = (*PostgresRepository)(nil)

// NewPostgresRepository wires a transaction source; batchSize caps rows per statement.
func NewPostgresRepository(db TxBeginner, batchSize int, log *slog.Logger) *PostgresRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &PostgresRepository{db: db, batchSize: batchSize, now: time.Now, logger: log}
}

// Upsert writes the date dimension rows implied by records, then the fact
// rows, in one transaction. Dates never change once written; facts take the
// latest value. It returns the number of records attempted.
func (r *PostgresRepository) Upsert(ctx context.Context, records []domain.ObservationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	cleaned, err := validateRecords(records)
	if err != nil {
		return 0, err
	}
	if r.db == nil {
		return 0, fmt.Errorf("observation sink has no database")
	}

	dates := domain.DateDimensions(cleaned)
	facts := latestPerKey(cleaned)
	fetchedAt := r.now().UTC()

	err = runInTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, batch := range chunk(dates, r.batchSize) {
			query, args, err := dateDimensionInsert(batch)
			if err != nil {
				return fmt.Errorf("build %s upsert: %w", dateDimensionTable, err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert %s: %w", dateDimensionTable, err)
			}
		}

		for _, batch := range chunk(facts, r.batchSize) {
			query, args, err := factInsert(factRows(batch, fetchedAt))
			if err != nil {
				return fmt.Errorf("build %s upsert: %w", factTable, err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert %s: %w", factTable, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.debug("observations upserted", "records", len(records), "distinct_facts", len(facts), "dates", len(dates))
	return len(records), nil
}

// validateRecords rejects the whole batch when any record lacks a required field.
func validateRecords(records []domain.ObservationRecord) ([]domain.ObservationRecord, error) {
	cleaned := make([]domain.ObservationRecord, len(records))
	for i, rec := range records {
		rec.SeriesID = strings.TrimSpace(rec.SeriesID)
		switch {
		case rec.SeriesID == "":
			return nil, &domain.SchemaError{Index: i, Field: "series_id", Reason: "is empty"}
		case rec.DateID.IsZero():
			return nil, &domain.SchemaError{Index: i, Field: "date_id", Reason: "is missing"}
		case math.IsNaN(rec.Value) || math.IsInf(rec.Value, 0):
			return nil, &domain.SchemaError{Index: i, Field: "value", Reason: "is not finite"}
		case rec.ReleaseDate != nil && rec.ReleaseDate.IsZero():
			return nil, &domain.SchemaError{Index: i, Field: "release_date", Reason: "is set but empty"}
		}

		rec.DateID = domain.DateOf(rec.DateID)
		if rec.ReleaseDate != nil {
			release := domain.DateOf(*rec.ReleaseDate)
			rec.ReleaseDate = &release
		}
		cleaned[i] = rec
	}
	return cleaned, nil
}

// latestPerKey keeps the last record for each (series_id, date_id); a single
// INSERT cannot touch the same conflict target twice.
func latestPerKey(records []domain.ObservationRecord) []domain.ObservationRecord {
	type key struct {
		series string
		date   time.Time
	}

	index := make(map[key]int, len(records))
	out := make([]domain.ObservationRecord, 0, len(records))
	for _, rec := range records {
		k := key{series: rec.SeriesID, date: rec.DateID}
		if i, ok := index[k]; ok {
			out[i] = rec
			continue
		}
		index[k] = len(out)
		out = append(out, rec)
	}
	return out
}

func dateDimensionInsert(rows []domain.DateDimensionRow) (string, []any, error) {
	builder := psql.Insert(dateDimensionTable).
		Columns("date_id", "year", "quarter", "month")
	for _, row := range rows {
		builder = builder.Values(row.DateID, row.Year, row.Quarter, row.Month)
	}
	return builder.Suffix("ON CONFLICT (date_id) DO NOTHING").ToSql()
}

// factRows stamps every record with the same fetch time.
func factRows(records []domain.ObservationRecord, fetchedAt time.Time) []domain.FactObservationRow {
	rows := make([]domain.FactObservationRow, len(records))
	for i, rec := range records {
		rows[i] = domain.FactObservationRow{ObservationRecord: rec, FetchedAt: fetchedAt}
	}
	return rows
}

func factInsert(rows []domain.FactObservationRow) (string, []any, error) {
	builder := psql.Insert(factTable).
		Columns("series_id", "date_id", "value", "release_date", "fetched_at")
	for _, row := range rows {
		builder = builder.Values(row.SeriesID, row.DateID, row.Value, row.ReleaseDate, row.FetchedAt)
	}
	return builder.Suffix(factConflictClause).ToSql()
}

func chunk[T any](items []T, size int) [][]T {
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func (r *PostgresRepository) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
