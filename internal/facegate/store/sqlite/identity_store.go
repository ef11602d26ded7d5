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
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

type IdentityStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewIdentityStore(db *sql.DB, writer *dbpkg.Worker) *IdentityStore {
	return &IdentityStore{db: db, writer: writer}
}

var _ store.IdentityStore = (*IdentityStore)(nil)

const identityColumns = `identity_key, name, status, created_at_ms, last_access_at_ms`

func (s *IdentityStore) CreateIdentity(ctx context.Context, ident types.Identity) error {
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now().UTC()
	}
	if ident.Status == "" {
		ident.Status = types.StatusActive
	}

	var lastAccess any
	if ident.LastAccessAt != nil {
		lastAccess = ident.LastAccessAt.UTC().UnixMilli()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		exists, err := rowExists(ctx, tx, `SELECT 1 FROM identities WHERE identity_key = ?;`, ident.Key)
		if err != nil {
			return fmt.Errorf("CreateIdentity lookup: %w", err)
		}
		if exists {
			return fmt.Errorf("identity %s: %w", ident.Key, apperrors.ErrConflict)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO identities(identity_key, name, status, created_at_ms, last_access_at_ms)
VALUES (?, ?, ?, ?, ?);
`, ident.Key, ident.Name, string(ident.Status), ident.CreatedAt.UTC().UnixMilli(), lastAccess); err != nil {
			return fmt.Errorf("CreateIdentity insert: %w", err)
		}
		return nil
	})
}

func (s *IdentityStore) GetIdentity(ctx context.Context, key string) (types.Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE identity_key = ?;`, key)
	ident, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Identity{}, fmt.Errorf("identity %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return types.Identity{}, fmt.Errorf("GetIdentity: %w", err)
	}
	return ident, nil
}

func (s *IdentityStore) ListIdentities(ctx context.Context) ([]types.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY name, identity_key;`)
	if err != nil {
		return nil, fmt.Errorf("ListIdentities: %w", err)
	}
	defer rows.Close()

	var out []types.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("ListIdentities scan: %w", err)
		}
		out = append(out, ident)
	}
	return out, rows.Err()
}

func (s *IdentityStore) UpdateIdentity(ctx context.Context, key string, upd store.IdentityUpdate) (types.Identity, error) {
	var updated types.Identity
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if upd.Name != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE identities SET name = ? WHERE identity_key = ?;`, *upd.Name, key); err != nil {
				return fmt.Errorf("UpdateIdentity name: %w", err)
			}
		}
		if upd.Status != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE identities SET status = ? WHERE identity_key = ?;`, string(*upd.Status), key); err != nil {
				return fmt.Errorf("UpdateIdentity status: %w", err)
			}
		}

		row := tx.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE identity_key = ?;`, key)
		ident, err := scanIdentity(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("identity %s: %w", key, apperrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("UpdateIdentity reload: %w", err)
		}
		updated = ident
		return nil
	})
	return updated, err
}

func (s *IdentityStore) DeleteIdentity(ctx context.Context, key string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM identities WHERE identity_key = ?;`, key)
		if err != nil {
			return fmt.Errorf("DeleteIdentity: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("identity %s: %w", key, apperrors.ErrNotFound)
		}
		return nil
	})
}

func (s *IdentityStore) CountIdentities(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountIdentities: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(sc scanner) (types.Identity, error) {
	var (
		ident      types.Identity
		status     string
		createdMs  int64
		lastAccess sql.NullInt64
	)
	if err := sc.Scan(&ident.Key, &ident.Name, &status, &createdMs, &lastAccess); err != nil {
		return types.Identity{}, err
	}
	ident.Status = types.Status(status)
	ident.CreatedAt = time.UnixMilli(createdMs).UTC()
	if lastAccess.Valid {
		t := time.UnixMilli(lastAccess.Int64).UTC()
		ident.LastAccessAt = &t
	}
	return ident, nil
}

func rowExists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
