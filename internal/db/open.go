package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const DefaultPath = "./data/facegate.db"

type Config struct {
	Path string // e.g. "./data/facegate.db"
}

// Open opens (creating if needed) the SQLite file at cfg.Path and applies
// pending migrations.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*sql.DB, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", DSN("file:"+cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	configurePool(db)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	applied, err := Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(applied) > 0 {
		logger.Info("database migrated", zap.String("path", cfg.Path), zap.Ints("versions", applied))
	}

	return db, nil
}

// DSN appends the per-connection PRAGMAs to a modernc sqlite URI.
// base may already carry query parameters.
func DSN(base string) string {
	const pragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	sep := "?"
	for _, r := range base {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return base + sep + pragmas
}

// configurePool pins the pool to one connection; all writes also go
// through Worker.
func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}
