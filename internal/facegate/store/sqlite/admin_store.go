package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/facegate/internal/apperrors"
	dbpkg "github.com/BrandonDHaskell/facegate/internal/db"
	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
)

type AdminStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAdminStore(db *sql.DB, writer *dbpkg.Worker) *AdminStore {
	return &AdminStore{db: db, writer: writer}
}

var _ store.AdminStore = (*AdminStore)(nil)

func (s *AdminStore) CreateAdmin(ctx context.Context, username, passwordHash string, createdAt time.Time) error {
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		exists, err := rowExists(ctx, tx, `SELECT 1 FROM admins WHERE username = ?;`, username)
		if err != nil {
			return fmt.Errorf("CreateAdmin lookup: %w", err)
		}
		if exists {
			return fmt.Errorf("admin %s: %w", username, apperrors.ErrConflict)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO admins(username, password_hash, created_at_ms) VALUES (?, ?, ?);
`, username, passwordHash, createdAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("CreateAdmin insert: %w", err)
		}
		return nil
	})
}

func (s *AdminStore) GetAdminHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM admins WHERE username = ?;`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("admin %s: %w", username, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("GetAdminHash: %w", err)
	}
	return hash, nil
}

func (s *AdminStore) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountAdmins: %w", err)
	}
	return n, nil
}
