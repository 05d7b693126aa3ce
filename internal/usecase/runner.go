package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"EconomicPulse/internal/domain"
	"EconomicPulse/internal/ports"
)

// RunPlan is everything one scheduled run needs to know.
type RunPlan struct {
	Request        ports.FetchRequest
	Before         []string
	After          []string
	ValidateSeries string
}

// RunReport is what a run achieved, filled as far as the run got.
type RunReport struct {
	Ingest    IngestResult
	Freshness *ports.FreshnessReport
	Duration  time.Duration
}

// RunnerDeps wires the full job.
type RunnerDeps struct {
	Pipeline  *Pipeline
	SQL       ports.SQLExecutor
	Freshness ports.FreshnessChecker
	Notifier  ports.Notifier
	Recorder  ports.RunRecorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Runner executes staging SQL, ingest, reporting SQL and validation in order.
type Runner struct {
	pipeline  *Pipeline
	sql       ports.SQLExecutor
	freshness ports.FreshnessChecker
	notifier  ports.Notifier
	recorder  ports.RunRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner constructs the job runner.
func NewRunner(deps RunnerDeps) *Runner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		pipeline:  deps.Pipeline,
		sql:       deps.SQL,
		freshness: deps.Freshness,
		notifier:  deps.Notifier,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
		now:       now,
	}
}

// Run performs one complete job. A run that upserts nothing still finishes
// its SQL and validation steps; any error aborts the remaining steps.
func (r *Runner) Run(ctx context.Context, plan RunPlan) (report RunReport, err error) {
	if r.pipeline == nil {
		return report, fmt.Errorf("runner has no pipeline")
	}

	started := r.now()
	defer func() {
		finished := r.now()
		report.Duration = finished.Sub(started)
		if r.recorder != nil {
			r.recorder.Finished(report.Duration, err == nil, finished)
		}
		r.notify(ctx, plan, report, err)
	}()

	if err = r.runSQL(ctx, "before", plan.Before); err != nil {
		return report, err
	}

	report.Ingest, err = r.pipeline.Ingest(ctx, plan.Request)
	if err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}
	if report.Ingest.Upserted == 0 {
		r.log(slog.LevelWarn, "no observations upserted, continuing",
			"series", strings.Join(plan.Request.Series, ","))
	} else {
		r.log(slog.LevelInfo, "observations upserted", "count", report.Ingest.Upserted)
	}

	if err = r.runSQL(ctx, "after", plan.After); err != nil {
		return report, err
	}

	if plan.ValidateSeries == "" || r.freshness == nil {
		return report, nil
	}

	fresh, checkErr := r.freshness.Check(ctx, plan.ValidateSeries, r.now())
	report.Freshness = &fresh
	r.log(slog.LevelInfo, "validation",
		"series", fresh.SeriesID,
		"rows", fresh.Rows,
		"latest_date", formatDate(fresh.LatestDate))
	if checkErr != nil {
		return report, fmt.Errorf("validate: %w", checkErr)
	}

	return report, nil
}

func (r *Runner) runSQL(ctx context.Context, stage string, paths []string) error {
	if len(paths) == 0 || r.sql == nil {
		return nil
	}
	if err := r.sql.RunFiles(ctx, paths...); err != nil {
		return fmt.Errorf("%s sql: %w", stage, err)
	}
	return nil
}

func (r *Runner) notify(ctx context.Context, plan RunPlan, report RunReport, runErr error) {
	if r.notifier == nil {
		return
	}
	// The run context may already be cancelled; the summary still goes out.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := r.notifier.PublishSummary(sendCtx, BuildSummary(plan, report, runErr)); err != nil {
		r.log(slog.LevelWarn, "publish summary failed", "err", err)
	}
}

// BuildSummary renders a short human readable run report.
func BuildSummary(plan RunPlan, report RunReport, runErr error) string {
	var b strings.Builder

	status := "ok"
	if runErr != nil {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "Economic pulse run %s (%s)\n", status, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Series: %s\n", strings.Join(plan.Request.Series, ", "))

	stats := report.Ingest.Stats
	if report.Ingest.Endpoint != "" {
		fmt.Fprintf(&b, "Source: %s (attempt %d)\n", report.Ingest.Endpoint, report.Ingest.Attempt)
	}
	fmt.Fprintf(&b, "Rows: %d parsed, %d dropped, %d upserted\n", stats.Kept, stats.Dropped(), report.Ingest.Upserted)

	if fresh := report.Freshness; fresh != nil {
		fmt.Fprintf(&b, "Latest %s: %s", fresh.SeriesID, formatDate(fresh.LatestDate))
		if fresh.LatestValue != nil {
			fmt.Fprintf(&b, " = %g", *fresh.LatestValue)
		}
		b.WriteString("\n")
	}

	if runErr != nil {
		fmt.Fprintf(&b, "Error: %s\n", describeError(runErr))
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeError(err error) string {
	var fetchErr *domain.FetchFailure
	var shapeErr *domain.ShapeError
	var schemaErr *domain.SchemaError
	var freshErr *domain.FreshnessError

	switch {
	case errors.As(err, &fetchErr):
		return "upstream unavailable: " + fetchErr.Error()
	case errors.As(err, &shapeErr):
		return "unexpected payload: " + shapeErr.Error()
	case errors.As(err, &schemaErr):
		return "invalid batch: " + schemaErr.Error()
	case errors.As(err, &freshErr):
		return freshErr.Error()
	default:
		return err.Error()
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(domain.DateLayout)
}

func (r *Runner) log(level slog.Level, msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Log(context.Background(), level, msg, args...)
	}
}
