// Package repository persists the scan-history audit log. Session
// state itself is never persisted; history is written after a payload
// has been fully processed.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN         string
	DialTimeout time.Duration
}

// Open connects to the history store. Postgres DSNs go through pgx;
// anything else is treated as a SQLite path. The driver name is
// returned so query placeholders can be adapted.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := "sqlite"
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		driver = "pgx"
	}

	logger.Info("connecting to history store", "driver", driver)
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		logger.Error("failed to open history store", "error", err)
		return nil, driver, err
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		logger.Error("failed to reach history store", "error", err)
		return nil, driver, fmt.Errorf("ping history store: %w", err)
	}

	logger.Info("history store connected")
	return db, driver, nil
}

// Close closes the history store gracefully.
func Close(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Close(); err != nil {
		logger.Error("failed to close history store", "error", err)
		return
	}
	logger.Info("history store closed")
}

// HealthCheck pings the store to catch DSN issues early.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.Debug("pinging history store")
	return db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for the pgx driver.
func rebind(driver, query string) string {
	if driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
