package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"EconomicPulse/internal/normalize"
	"EconomicPulse/internal/ports"
)

// PipelineDeps wires the driven adapters into the ingest pipeline.
type PipelineDeps struct {
	Source   ports.PayloadSource
	Sink     ports.ObservationSink
	Recorder ports.RunRecorder
	Logger   *slog.Logger
}

// Pipeline implements fetch, extract, parse and upsert for one request.
type Pipeline struct {
	source   ports.PayloadSource
	sink     ports.ObservationSink
	recorder ports.RunRecorder
	logger   *slog.Logger
}

// IngestResult describes one completed ingest.
type IngestResult struct {
	Endpoint string
	Attempt  int
	Stats    normalize.ParseStats
	Upserted int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:   deps.Source,
		sink:     deps.Sink,
		recorder: deps.Recorder,
		logger:   deps.Logger,
	}
}

// Ingest pulls the payload for req and upserts every observation it yields.
// Dropped rows are logged, never fatal.
func (p *Pipeline) Ingest(ctx context.Context, req ports.FetchRequest) (IngestResult, error) {
	var result IngestResult
	if p.source == nil || p.sink == nil {
		return result, fmt.Errorf("pipeline is not wired")
	}

	payload, err := p.source.Fetch(ctx, req)
	if err != nil {
		return result, fmt.Errorf("fetch payload: %w", err)
	}
	result.Endpoint = payload.Endpoint
	result.Attempt = payload.Attempt

	table := normalize.ExtractTable(payload.Body)
	records, stats, err := normalize.Parse(table)
	result.Stats = stats
	if err != nil {
		return result, fmt.Errorf("parse payload from %s: %w", payload.Endpoint, err)
	}
	if p.recorder != nil {
		p.recorder.Parsed(stats.Kept, stats.Dropped())
	}

	p.log(slog.LevelInfo, "payload parsed",
		"series", strings.Join(req.Series, ","),
		"endpoint", payload.Endpoint,
		"rows", stats.Rows,
		"kept", stats.Kept,
		"dropped", stats.Dropped())
	if stats.Dropped() > 0 {
		p.log(slog.LevelDebug, "rows dropped",
			"malformed", stats.Malformed,
			"missing_series", stats.MissingSeries,
			"bad_date", stats.BadDate,
			"bad_value", stats.BadValue)
	}
	if stats.LenientDates {
		p.log(slog.LevelWarn, "strict date format matched nothing, used lenient parsing")
	}

	n, err := p.sink.Upsert(ctx, records)
	if err != nil {
		return result, fmt.Errorf("upsert observations: %w", err)
	}
	result.Upserted = n
	if p.recorder != nil {
		p.recorder.Upserted(n)
	}

	return result, nil
}

func (p *Pipeline) log(level slog.Level, msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Log(context.Background(), level, msg, args...)
	}
}
