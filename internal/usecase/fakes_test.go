package usecase

import (
	"context"
	"time"

	"EconomicPulse/internal/domain"
	"EconomicPulse/internal/ports"
)

type stubSource struct {
	payload domain.RawPayload
	err     error
	calls   int
}

func (s *stubSource) Fetch(context.Context, ports.FetchRequest) (domain.RawPayload, error) {
	s.calls++
	return s.payload, s.err
}

type recordingSink struct {
	journal *[]string
	got     []domain.ObservationRecord
	err     error
}

func (s *recordingSink) Upsert(_ context.Context, records []domain.ObservationRecord) (int, error) {
	if s.journal != nil {
		*s.journal = append(*s.journal, "upsert")
	}
	if s.err != nil {
		return 0, s.err
	}
	s.got = append(s.got, records...)
	return len(records), nil
}

type recordingSQL struct {
	journal *[]string
	failOn  string
}

func (s *recordingSQL) RunFiles(_ context.Context, paths ...string) error {
	for _, p := range paths {
		*s.journal = append(*s.journal, "sql:"+p)
		if p == s.failOn {
			return context.DeadlineExceeded
		}
	}
	return nil
}

type stubChecker struct {
	journal *[]string
	report  ports.FreshnessReport
	err     error
}

func (c *stubChecker) Check(_ context.Context, seriesID string, _ time.Time) (ports.FreshnessReport, error) {
	*c.journal = append(*c.journal, "check:"+seriesID)
	c.report.SeriesID = seriesID
	return c.report, c.err
}

type capturingNotifier struct {
	messages []string
	err      error
}

func (n *capturingNotifier) PublishSummary(_ context.Context, summary string) error {
	n.messages = append(n.messages, summary)
	return n.err
}

type countingRecorder struct {
	kept, dropped, upserted int
	finished                int
	success                 bool
}

func (r *countingRecorder) FetchAttempt(string) {}

func (r *countingRecorder) Parsed(kept, dropped int) {
	r.kept += kept
	r.dropped += dropped
}

func (r *countingRecorder) Upserted(n int) { r.upserted += n }

func (r *countingRecorder) Finished(_ time.Duration, success bool, _ time.Time) {
	r.finished++
	r.success = success
}

const samplePayload = "Bank of England Database\n\n" +
	"DATE,SERIES,VALUE\n" +
	"02 Jan 1990,IUMABEDR,14.875\n" +
	"03 Jan 1990,IUMABEDR,n/a\n" +
	"04 Jan 1990,IUMABEDR,14.75\n"
