package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"EconomicPulse/internal/app"
	"EconomicPulse/internal/config"
	"EconomicPulse/internal/domain"
	"EconomicPulse/internal/logging"
)

type cli struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "economicpulse",
		Short:         "Load central bank statistics series into the reporting warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to YAML config (default $PULSE_CONFIG)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		c.runCommand(),
		c.ingestCommand(),
		c.initDBCommand(),
		c.sqlCommand(),
		c.validateCommand(),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

func (c *cli) withApp(ctx context.Context, fn func(*app.Application) error) error {
	application, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer application.Close()
	return fn(application)
}

func (c *cli) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Staging SQL, ingest, reporting SQL and validation in one go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				report, err := a.Run(cmd.Context())
				if err != nil {
					c.logger.Error("run failed", "err", err, "duration", report.Duration)
					return err
				}
				c.logger.Info("run finished",
					"upserted", report.Ingest.Upserted,
					"dropped", report.Ingest.Stats.Dropped(),
					"duration", report.Duration)
				return nil
			})
		},
	}
}

func (c *cli) ingestCommand() *cobra.Command {
	var (
		series   []string
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch series and upsert their observations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				req := a.Request(series, from, to)
				result, err := a.Ingest(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "upserted %d observations for %s (%d rows dropped)\n",
					result.Upserted, strings.Join(req.Series, ","), result.Stats.Dropped())
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&series, "series", nil, "series codes, comma separated (default from config)")
	cmd.Flags().StringVar(&from, "from", "", "first date, e.g. 01/Jan/1990")
	cmd.Flags().StringVar(&to, "to", "", "last date or \"now\"")
	return cmd
}

func (c *cli) initDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Apply the warehouse schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				if err := a.InitDB(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}

func (c *cli) sqlCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sql FILE...",
		Short: "Run SQL files, each in its own transaction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				return a.RunSQL(cmd.Context(), args...)
			})
		},
	}
}

func (c *cli) validateCommand() *cobra.Command {
	var (
		series       string
		maxStaleness time.Duration
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that a series has recent rows in the warehouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.Application) error {
				report, err := a.Validate(cmd.Context(), series, maxStaleness)
				latest := "none"
				if report.LatestDate != nil {
					latest = report.LatestDate.Format(domain.DateLayout)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "series=%s rows=%d latest_date=%s\n", report.SeriesID, report.Rows, latest)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "validation passed")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&series, "series", "", "series to check (default validation.seriesId)")
	cmd.Flags().DurationVar(&maxStaleness, "max-staleness", 0, "fail when the latest date is older than this")
	return cmd
}
