package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseURLEnv, "")
	t.Setenv(validateSeriesEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(cfg.Upstream.Endpoints) != 2 {
		t.Fatalf("expected 2 default endpoints, got %d", len(cfg.Upstream.Endpoints))
	}
	if cfg.Upstream.RetryInterval != 400*time.Millisecond {
		t.Fatalf("unexpected retry interval: %s", cfg.Upstream.RetryInterval)
	}
	if cfg.Validation.SeriesID != "IUMABEDR" {
		t.Fatalf("validation series should default to first ingest series, got %q", cfg.Validation.SeriesID)
	}
	if cfg.Validation.MaxStaleness != 120*24*time.Hour {
		t.Fatalf("unexpected staleness: %s", cfg.Validation.MaxStaleness)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "database url") {
		t.Fatalf("expected missing database url error, got %v", err)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	content := `
database:
  url: postgres://file/db
upstream:
  endpoints: ["http://mirror.invalid/a"]
  retriesPerEndpoint: 4
  retryInterval: 1s
  requestTimeout: 5s
ingest:
  series: [" IUMABEDR ", "", "XUDLUSS"]
  batchSize: 250
validation:
  maxStaleness: 720h
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, "")
	t.Setenv(databaseURLEnv, "postgres://env/db")
	t.Setenv(validateSeriesEnv, "XUDLUSS")
	t.Setenv(telegramTokenEnv, "token")
	t.Setenv(telegramChatIDEnv, "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Database.URL != "postgres://env/db" {
		t.Fatalf("env should override database url, got %q", cfg.Database.URL)
	}
	if got := strings.Join(cfg.Ingest.Series, ","); got != "IUMABEDR,XUDLUSS" {
		t.Fatalf("unexpected series: %q", got)
	}
	if cfg.Upstream.RetriesPerEndpoint != 4 || cfg.Upstream.RetryInterval != time.Second {
		t.Fatalf("unexpected upstream: %+v", cfg.Upstream)
	}
	if cfg.Upstream.UserAgent == "" {
		t.Fatalf("defaults not kept for unspecified fields")
	}
	if cfg.Ingest.BatchSize != 250 || cfg.Validation.MaxStaleness != 30*24*time.Hour {
		t.Fatalf("unexpected ingest/validation: %+v %+v", cfg.Ingest, cfg.Validation)
	}
	if cfg.Validation.SeriesID != "XUDLUSS" {
		t.Fatalf("unexpected validation series %q", cfg.Validation.SeriesID)
	}
	if !cfg.Notifications.Telegram.Enabled() {
		t.Fatalf("telegram should be enabled from env")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	t.Parallel()

	cfg := Config{Upstream: UpstreamConfig{RetriesPerEndpoint: -1}}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"database url", "no series", "no upstream endpoints", "retriesPerEndpoint", "requestTimeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestCleanSeries(t *testing.T) {
	t.Parallel()

	got := CleanSeries([]string{" IUMABEDR", "", "  ", "XUDLUSS "})
	if strings.Join(got, "|") != "IUMABEDR|XUDLUSS" {
		t.Fatalf("unexpected series %q", got)
	}
	if got := CleanSeries(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %q", got)
	}
}
