package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"helix-qms/config"
	"helix-qms/core/utils"
)

// ErrConflict marks uniqueness and state violations the caller must resolve
// by changing input (duplicate tag, duplicate active schedule, stale state).
var ErrConflict = errors.New("conflict")

func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	driver, dsn := resolveDriver(cfg)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if logger != nil {
		logger.Printf("database ready driver=%s", driver)
	}
	return db, nil
}

func resolveDriver(cfg *config.AppConfig) (string, string) {
	if cfg == nil {
		return "sqlite", ":memory:"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.DBDriver)) {
	case "sqlite", "sqlite3":
		return "sqlite", cfg.DBURL
	case "", "postgres", "pgx":
		return "pgx", cfg.DBURL
	default:
		return cfg.DBDriver, cfg.DBURL
	}
}

// isUniqueViolation recognizes unique-index errors from both drivers. It is
// the backstop behind check-then-insert paths: a concurrent create can slip
// past the pre-check and land on the index instead.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func isPostgresDB(ctx context.Context, db *sql.DB) (bool, error) {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err == nil {
		return false, nil
	}
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return false, err
	}
	return strings.HasPrefix(version, "PostgreSQL"), nil
}
