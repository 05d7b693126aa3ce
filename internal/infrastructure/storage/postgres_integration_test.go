package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"EconomicPulse/internal/domain"
)

const testDatabaseEnv = "PULSE_TEST_DATABASE_URL"

// openTestPool connects to the database named by PULSE_TEST_DATABASE_URL inside
// a throwaway schema holding a freshly applied warehouse schema.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}

	ctx := context.Background()
	schema := fmt.Sprintf("pulse_test_%d", time.Now().UnixNano())

	admin, err := pgx.Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(context.Background())
	})

	if err := NewSQLExecutor(pool, nil).RunFile(ctx, "../../../sql/01_schema.sql"); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestPostgresUpsertIsIdempotent(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	repo := NewPostgresRepository(pool, 2, nil)

	records := []domain.ObservationRecord{
		observation("IUMABEDR", 1990, time.January, 2, 14.875),
		observation("IUMABEDR", 1990, time.January, 3, 14.875),
		observation("IUMABEDR", 1990, time.January, 4, 14.75),
	}

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return first }
	if _, err := repo.Upsert(ctx, records); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := first.Add(24 * time.Hour)
	repo.now = func() time.Time { return second }
	n, err := repo.Upsert(ctx, records)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}

	if got := countRows(t, pool, "fact_observation"); got != 3 {
		t.Fatalf("expected 3 facts after repeat, got %d", got)
	}
	if got := countRows(t, pool, "dim_date"); got != 3 {
		t.Fatalf("expected 3 dates after repeat, got %d", got)
	}

	var fetchedAt time.Time
	if err := pool.QueryRow(ctx, "SELECT MIN(fetched_at) FROM fact_observation").Scan(&fetchedAt); err != nil {
		t.Fatalf("query fetched_at: %v", err)
	}
	if !fetchedAt.Equal(second) {
		t.Fatalf("expected fetched_at refreshed to %v, got %v", second, fetchedAt)
	}
}

func TestPostgresUpsertLastWriteWins(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	repo := NewPostgresRepository(pool, 0, nil)

	if _, err := repo.Upsert(ctx, []domain.ObservationRecord{observation("IUMABEDR", 2024, time.January, 2, 1.0)}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := repo.Upsert(ctx, []domain.ObservationRecord{observation("IUMABEDR", 2024, time.January, 2, 2.0)}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var value float64
	if err := pool.QueryRow(ctx, "SELECT value FROM fact_observation WHERE series_id = 'IUMABEDR'").Scan(&value); err != nil {
		t.Fatalf("query value: %v", err)
	}
	if value != 2.0 {
		t.Fatalf("expected 2.0, got %v", value)
	}
	if got := countRows(t, pool, "fact_observation"); got != 1 {
		t.Fatalf("expected a single row, got %d", got)
	}
}

func TestPostgresDateDimensionIsNeverRewritten(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	if _, err := pool.Exec(ctx, "INSERT INTO dim_date (date_id, year, quarter, month) VALUES ('2024-05-01', 1999, 4, 12)"); err != nil {
		t.Fatalf("seed dim_date: %v", err)
	}

	repo := NewPostgresRepository(pool, 0, nil)
	if _, err := repo.Upsert(ctx, []domain.ObservationRecord{observation("IUMABEDR", 2024, time.May, 1, 5.25)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var year, quarter, month int
	if err := pool.QueryRow(ctx, "SELECT year, quarter, month FROM dim_date WHERE date_id = '2024-05-01'").Scan(&year, &quarter, &month); err != nil {
		t.Fatalf("query dim_date: %v", err)
	}
	if year != 1999 || quarter != 4 || month != 12 {
		t.Fatalf("existing dimension row changed: %d/%d/%d", year, quarter, month)
	}
}

func TestPostgresFreshness(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	validator := NewFreshnessValidator(pool, 120*24*time.Hour)
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	if _, err := validator.Check(ctx, "IUMABEDR", now); !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("expected ErrNoData on empty table, got %v", err)
	}

	repo := NewPostgresRepository(pool, 0, nil)
	records := []domain.ObservationRecord{
		observation("IUMABEDR", 2024, time.May, 30, 5.25),
		observation("IUMABEDR", 2024, time.May, 31, 5.0),
	}
	if _, err := repo.Upsert(ctx, records); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	report, err := validator.Check(ctx, "IUMABEDR", now)
	if err != nil {
		t.Fatalf("expected fresh series, got %v", err)
	}
	if report.Rows != 2 || report.LatestValue == nil || *report.LatestValue != 5.0 {
		t.Fatalf("unexpected report %+v", report)
	}

	later := now.AddDate(1, 0, 0)
	if _, err := validator.Check(ctx, "IUMABEDR", later); !errors.Is(err, domain.ErrStaleData) {
		t.Fatalf("expected ErrStaleData a year later, got %v", err)
	}
}
