package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"EconomicPulse/internal/config"
	"EconomicPulse/internal/infrastructure/iadb"
	"EconomicPulse/internal/infrastructure/metrics"
	"EconomicPulse/internal/infrastructure/storage"
	"EconomicPulse/internal/infrastructure/telegram"
	"EconomicPulse/internal/logging"
	"EconomicPulse/internal/ports"
	"EconomicPulse/internal/source"
	"EconomicPulse/internal/usecase"
)

// Application wires configs to use cases and owns the warehouse pool.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	recorder  *metrics.Recorder
	sql       *storage.SQLExecutor
	freshness *storage.FreshnessValidator
	pipeline  *usecase.Pipeline
	runner    *usecase.Runner
}

// New validates cfg, connects to the warehouse and builds every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := storage.OpenPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()

	registry := source.NewRegistry()
	registry.Register(iadb.NewFetcher(iadb.Options{
		Endpoints:          cfg.Upstream.Endpoints,
		RetriesPerEndpoint: cfg.Upstream.RetriesPerEndpoint,
		RetryInterval:      cfg.Upstream.RetryInterval,
		RequestTimeout:     cfg.Upstream.RequestTimeout,
		UserAgent:          cfg.Upstream.UserAgent,
		Referer:            cfg.Upstream.Referer,
		MaxBodyBytes:       cfg.Upstream.MaxBodyBytes,
		Logger:             baseLogger.With("component", "fetcher.iadb"),
		Recorder:           recorder,
	}))
	src := source.NewStrategySource(registry, cfg.Upstream.Provider, baseLogger.With("component", "source"))

	sink := storage.NewPostgresRepository(pool, cfg.Ingest.BatchSize, baseLogger.With("component", "sink"))
	sqlExec := storage.NewSQLExecutor(pool, baseLogger.With("component", "sql"))
	freshness := storage.NewFreshnessValidator(pool, cfg.Validation.MaxStaleness)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:   src,
		Sink:     sink,
		Recorder: recorder,
		Logger:   baseLogger.With("component", "pipeline"),
	})
	runner := usecase.NewRunner(usecase.RunnerDeps{
		Pipeline:  pipeline,
		SQL:       sqlExec,
		Freshness: freshness,
		Notifier:  notifier,
		Recorder:  recorder,
		Logger:    baseLogger.With("component", "runner"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pool:      pool,
		recorder:  recorder,
		sql:       sqlExec,
		freshness: freshness,
		pipeline:  pipeline,
		runner:    runner,
	}, nil
}

// Close releases the warehouse pool.
func (a *Application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// Request builds a fetch request; empty arguments fall back to the config.
// Series codes are trimmed and blanks dropped.
func (a *Application) Request(series []string, from, to string) ports.FetchRequest {
	req := ports.FetchRequest{
		Series:   a.cfg.Ingest.Series,
		DateFrom: a.cfg.Ingest.DateFrom,
		DateTo:   a.cfg.Ingest.DateTo,
	}
	if cleaned := config.CleanSeries(series); len(cleaned) > 0 {
		req.Series = cleaned
	}
	if from != "" {
		req.DateFrom = from
	}
	if to != "" {
		req.DateTo = to
	}
	return req
}

// Run performs the full job and writes the metrics textfile whatever the outcome.
func (a *Application) Run(ctx context.Context) (usecase.RunReport, error) {
	plan := usecase.RunPlan{
		Request:        a.Request(nil, "", ""),
		Before:         a.cfg.SQL.Before,
		After:          a.cfg.SQL.After,
		ValidateSeries: a.cfg.Validation.SeriesID,
	}

	report, err := a.runner.Run(ctx, plan)
	a.writeMetrics()
	return report, err
}

// Ingest fetches and upserts without running any SQL files or validation.
func (a *Application) Ingest(ctx context.Context, req ports.FetchRequest) (usecase.IngestResult, error) {
	started := time.Now()
	result, err := a.pipeline.Ingest(ctx, req)
	a.recorder.Finished(time.Since(started), err == nil, time.Now())
	a.writeMetrics()
	return result, err
}

// InitDB applies the warehouse schema file.
func (a *Application) InitDB(ctx context.Context) error {
	if a.cfg.SQL.Schema == "" {
		return fmt.Errorf("no schema file configured")
	}
	return a.sql.RunFile(ctx, a.cfg.SQL.Schema)
}

// RunSQL applies arbitrary SQL files in order.
func (a *Application) RunSQL(ctx context.Context, paths ...string) error {
	return a.sql.RunFiles(ctx, paths...)
}

// Validate runs the freshness check; zero arguments fall back to the config.
func (a *Application) Validate(ctx context.Context, seriesID string, maxStaleness time.Duration) (ports.FreshnessReport, error) {
	if seriesID == "" {
		seriesID = a.cfg.Validation.SeriesID
	}
	checker := a.freshness
	if maxStaleness > 0 {
		checker = storage.NewFreshnessValidator(a.pool, maxStaleness)
	}
	return checker.Check(ctx, seriesID, time.Now())
}

func (a *Application) writeMetrics() {
	if err := a.recorder.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("metrics textfile not written", "path", a.cfg.Metrics.Textfile, "err", err)
	}
}
