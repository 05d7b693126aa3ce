package iadb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"EconomicPulse/internal/domain"
	"EconomicPulse/internal/ports"
)

const (
	providerName          = "iadb"
	defaultTimeout        = 60 * time.Second
	defaultMaxBodyBytes   = 32 << 20
	errorBodyPreviewBytes = 256
)

// ErrPayloadTooLarge marks a body longer than MaxBodyBytes.
var ErrPayloadTooLarge = errors.New("payload exceeds size limit")

// Attempt outcomes reported to the run recorder.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeHTML  = "html"
)

// Options configures a Fetcher.
type Options struct {
	Endpoints          []string
	RetriesPerEndpoint int
	RetryInterval      time.Duration
	RequestTimeout     time.Duration
	UserAgent          string
	Referer            string
	MaxBodyBytes       int64
	Client             *http.Client
	Logger             *slog.Logger
	Recorder           ports.RunRecorder
}

// Fetcher downloads CSV exports from the statistics database, walking a
// prioritised list of equivalent endpoints with per-endpoint retries.
type Fetcher struct {
	client    *http.Client
	endpoints []string
	retries   int
	interval  time.Duration
	timeout   time.Duration
	userAgent string
	referer   string
	maxBody   int64
	logger    *slog.Logger
	recorder  ports.RunRecorder
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewFetcher wires an HTTP client; a nil client gets one with the request timeout.
func NewFetcher(opts Options) *Fetcher {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	retries := opts.RetriesPerEndpoint
	if retries < 0 {
		retries = 0
	}

	return &Fetcher{
		client:    client,
		endpoints: append([]string(nil), opts.Endpoints...),
		retries:   retries,
		interval:  opts.RetryInterval,
		timeout:   timeout,
		userAgent: opts.UserAgent,
		referer:   opts.Referer,
		maxBody:   maxBody,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		sleep:     sleepContext,
	}
}

// Name identifies the provider inside the registry.
func (f *Fetcher) Name() string {
	return providerName
}

// Fetch requests every series in one call. The first attempt that returns a
// non-HTML body wins; when all endpoints are exhausted a *domain.FetchFailure
// carrying the last error is returned.
func (f *Fetcher) Fetch(ctx context.Context, req ports.FetchRequest) (domain.RawPayload, error) {
	if len(req.Series) == 0 {
		return domain.RawPayload{}, fmt.Errorf("no series codes provided")
	}
	if len(f.endpoints) == 0 {
		return domain.RawPayload{}, fmt.Errorf("no endpoints configured")
	}

	var (
		attempts int
		lastErr  error
		preview  string
	)

	for _, endpoint := range f.endpoints {
		requestURL, err := buildRequestURL(endpoint, req)
		if err != nil {
			lastErr = err
			continue
		}

		for attempt := 1; attempt <= f.retries+1; attempt++ {
			if err := f.sleep(ctx, f.interval*time.Duration(attempt)); err != nil {
				return domain.RawPayload{}, fmt.Errorf("wait before attempt: %w", err)
			}
			attempts++

			body, err := f.download(ctx, requestURL)
			if err == nil && IsHTML(body) {
				preview = HTMLPreview(body)
				err = ErrHTMLPayload
			}
			if err != nil {
				lastErr = fmt.Errorf("%s attempt %d: %w", endpoint, attempt, err)
				f.record(outcomeOf(err))
				f.warn("fetch attempt failed", "endpoint", endpoint, "attempt", attempt, "error", err)
				continue
			}

			f.record(OutcomeOK)
			return domain.RawPayload{Body: body, Endpoint: endpoint, Attempt: attempt}, nil
		}
	}

	return domain.RawPayload{}, &domain.FetchFailure{
		Endpoints: append([]string(nil), f.endpoints...),
		Attempts:  attempts,
		LastErr:   lastErr,
		Preview:   preview,
	}
}

func (f *Fetcher) download(ctx context.Context, requestURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv,text/plain,*/*")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreviewBytes))
		return "", fmt.Errorf("upstream returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return "", fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, f.maxBody)
	}

	return string(body), nil
}

// buildRequestURL adds the CSV export parameters to an endpoint.
func buildRequestURL(base string, req ports.FetchRequest) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("csv.x", "yes")
	query.Set("Datefrom", req.DateFrom)
	query.Set("Dateto", req.DateTo)
	query.Set("SeriesCodes", strings.Join(req.Series, ","))
	query.Set("UsingCodes", "Y")
	query.Set("CSVF", "CN")
	query.Set("VPD", "Y")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func outcomeOf(err error) string {
	if errors.Is(err, ErrHTMLPayload) {
		return OutcomeHTML
	}
	return OutcomeError
}

func (f *Fetcher) record(outcome string) {
	if f.recorder != nil {
		f.recorder.FetchAttempt(outcome)
	}
}

func (f *Fetcher) warn(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
