package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "PULSE_CONFIG"
	databaseURLEnv      = "DATABASE_URL"
	validateSeriesEnv   = "VALIDATE_SERIES_ID"
	logLevelEnv         = "LOG_LEVEL"
	logFormatEnv        = "LOG_FORMAT"
	metricsTextfileEnv  = "METRICS_TEXTFILE"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	defaultMaxStaleness = 120 * 24 * time.Hour
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Upstream      UpstreamConfig     `yaml:"upstream"`
	Ingest        IngestConfig       `yaml:"ingest"`
	SQL           SQLConfig          `yaml:"sql"`
	Validation    ValidationConfig   `yaml:"validation"`
	Logging       LoggingConfig      `yaml:"logging"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// DatabaseConfig describes the warehouse connection.
type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConns       int    `yaml:"maxConns"`
	SimpleProtocol bool   `yaml:"simpleProtocol"`
}

// UpstreamConfig lists the equivalent endpoints of the statistics API and
// how hard to try each one.
type UpstreamConfig struct {
	Provider           string        `yaml:"provider"`
	Endpoints          []string      `yaml:"endpoints"`
	RetriesPerEndpoint int           `yaml:"retriesPerEndpoint"`
	RetryInterval      time.Duration `yaml:"retryInterval"`
	RequestTimeout     time.Duration `yaml:"requestTimeout"`
	UserAgent          string        `yaml:"userAgent"`
	Referer            string        `yaml:"referer"`
	MaxBodyBytes       int64         `yaml:"maxBodyBytes"`
}

// IngestConfig selects what to pull on each run.
type IngestConfig struct {
	Series    []string `yaml:"series"`
	DateFrom  string   `yaml:"dateFrom"`
	DateTo    string   `yaml:"dateTo"`
	BatchSize int      `yaml:"batchSize"`
}

// SQLConfig points at the schema and the files applied around ingestion.
type SQLConfig struct {
	Schema string   `yaml:"schema"`
	Before []string `yaml:"before"`
	After  []string `yaml:"after"`
}

// ValidationConfig drives the post-run freshness check.
type ValidationConfig struct {
	SeriesID     string        `yaml:"seriesId"`
	MaxStaleness time.Duration `yaml:"maxStaleness"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the Prometheus textfile written at the end of a run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present), the .env file and applies
// environment overrides. An empty path falls back to PULSE_CONFIG.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseURLEnv); v != "" {
		c.Database.URL = v
	}

	if v := os.Getenv(validateSeriesEnv); v != "" {
		c.Validation.SeriesID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(metricsTextfileEnv); v != "" {
		c.Metrics.Textfile = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) normalize() {
	series := CleanSeries(c.Ingest.Series)
	c.Ingest.Series = series

	if c.Validation.SeriesID == "" && len(series) > 0 {
		c.Validation.SeriesID = series[0]
	}
	if c.Validation.MaxStaleness <= 0 {
		c.Validation.MaxStaleness = defaultMaxStaleness
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = defaultConfig().Ingest.BatchSize
	}
}

// CleanSeries trims series codes and drops empty ones, keeping order.
func CleanSeries(codes []string) []string {
	series := make([]string, 0, len(codes))
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			series = append(series, code)
		}
	}
	return series
}

// Validate rejects configurations the ingestion job cannot run with.
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Database.URL) == "" {
		problems = append(problems, "database url is empty")
	}
	if len(c.Ingest.Series) == 0 {
		problems = append(problems, "no series configured")
	}
	if len(c.Upstream.Endpoints) == 0 {
		problems = append(problems, "no upstream endpoints configured")
	}
	if c.Upstream.RetriesPerEndpoint < 0 {
		problems = append(problems, "retriesPerEndpoint must not be negative")
	}
	if c.Upstream.RequestTimeout <= 0 {
		problems = append(problems, "requestTimeout must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{URL: "", MaxConns: 2},
		Upstream: UpstreamConfig{
			Provider: "iadb",
			Endpoints: []string{
				"https://www.bankofengland.co.uk/boeapps/database/_iadb-fromshowcolumns.asp",
				"https://www.bankofengland.co.uk/boeapps/iadb/fromshowcolumns.asp",
			},
			RetriesPerEndpoint: 2,
			RetryInterval:      400 * time.Millisecond,
			RequestTimeout:     60 * time.Second,
			UserAgent:          "economic-pulse/1.0",
			Referer:            "https://www.bankofengland.co.uk/",
			MaxBodyBytes:       32 << 20,
		},
		Ingest: IngestConfig{
			Series:    []string{"IUMABEDR"},
			DateFrom:  "01/Jan/1990",
			DateTo:    "now",
			BatchSize: 1000,
		},
		SQL: SQLConfig{
			Schema: "sql/01_schema.sql",
			Before: []string{"sql/02_staging.sql"},
			After:  []string{"sql/03_views_reporting.sql"},
		},
		Validation: ValidationConfig{MaxStaleness: defaultMaxStaleness},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}
