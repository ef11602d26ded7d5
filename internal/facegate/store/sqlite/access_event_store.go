package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/facegate/internal/db"
	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

var _ store.AccessEventStore = (*AccessEventStore)(nil)

// RecordEvent appends the event and, for a grant, stamps the identity's
// last_access_at_ms in the same transaction.
func (s *AccessEventStore) RecordEvent(ctx context.Context, rec store.AccessEventRecord) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	occurredMs := rec.OccurredAt.UTC().UnixMilli()

	var granted int
	if rec.Granted {
		granted = 1
	}

	var sessionID any
	if rec.SessionID != "" {
		sessionID = rec.SessionID
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_events(identity_key, granted, occurred_at_ms, session_id)
VALUES (?, ?, ?, ?);
`, rec.IdentityKey, granted, occurredMs, sessionID); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}

		if rec.Granted {
			// No row for the key is fine: the identity may have been removed
			// while its embedding was still in the gallery.
			if _, err := tx.ExecContext(ctx, `
UPDATE identities SET last_access_at_ms = ? WHERE identity_key = ?;
`, occurredMs, rec.IdentityKey); err != nil {
				return fmt.Errorf("RecordEvent update last access: %w", err)
			}
		}
		return nil
	})
}

// ListEvents returns events newest first with the identity name joined in.
func (s *AccessEventStore) ListEvents(ctx context.Context, limit int) ([]types.AccessEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT e.id, e.identity_key, COALESCE(i.name, ''), e.granted, e.occurred_at_ms, COALESCE(e.session_id, '')
FROM access_events e
LEFT JOIN identities i ON i.identity_key = e.identity_key
ORDER BY e.occurred_at_ms DESC, e.id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListEvents: %w", err)
	}
	defer rows.Close()

	var out []types.AccessEvent
	for rows.Next() {
		var (
			ev         types.AccessEvent
			granted    int
			occurredMs int64
		)
		if err := rows.Scan(&ev.ID, &ev.IdentityKey, &ev.Name, &granted, &occurredMs, &ev.SessionID); err != nil {
			return nil, fmt.Errorf("ListEvents scan: %w", err)
		}
		ev.Granted = granted == 1
		ev.OccurredAt = time.UnixMilli(occurredMs).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *AccessEventStore) ClearEvents(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM access_events;`)
		if err != nil {
			return fmt.Errorf("ClearEvents: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

// PruneOlderThan deletes events with occurred_at_ms before cutoff and returns
// the number removed. Uses idx_access_events_occurred_at.
func (s *AccessEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM access_events
WHERE occurred_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func (s *AccessEventStore) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_events;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountEvents: %w", err)
	}
	return n, nil
}
