package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"

	"EconomicPulse/internal/ports"
)

// SQLExecutor runs whole SQL files, each inside its own transaction.
type SQLExecutor struct {
	db     TxBeginner
	logger *slog.Logger
}

var _ ports.SQLExecutor = (*SQLExecutor)(nil)

// NewSQLExecutor wires a transaction source.
func NewSQLExecutor(db TxBeginner, log *slog.Logger) *SQLExecutor {
	return &SQLExecutor{db: db, logger: log}
}

// RunFile executes every statement in path. Empty files are skipped.
func (e *SQLExecutor) RunFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sql file %s: %w", path, err)
	}

	script := strings.TrimSpace(string(raw))
	if script == "" {
		e.log(slog.LevelWarn, "sql file is empty, skipping", "path", path)
		return nil
	}

	// Exec without arguments goes over the simple protocol, which accepts
	// multiple statements in one round trip.
	err = runInTx(ctx, e.db, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, script)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("run sql file %s: %w", path, err)
	}

	e.log(slog.LevelInfo, "sql file applied", "path", path)
	return nil
}

// RunFiles applies paths in order and stops at the first failure.
func (e *SQLExecutor) RunFiles(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := e.RunFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (e *SQLExecutor) log(level slog.Level, msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Log(context.Background(), level, msg, args...)
	}
}
