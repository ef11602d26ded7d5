// Package memory holds map-backed stores for tests and dev runs without a
// database file.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/facegate/internal/apperrors"
	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

// Store implements every store interface over shared maps, so recording a
// granted event can update the identity it names.
type Store struct {
	mu         sync.RWMutex
	identities map[string]types.Identity
	admins     map[string]adminRow
	events     []types.AccessEvent
	nextID     int64
}

type adminRow struct {
	hash      string
	createdAt time.Time
}

func New() *Store {
	return &Store{
		identities: make(map[string]types.Identity),
		admins:     make(map[string]adminRow),
	}
}

var (
	_ store.IdentityStore    = (*Store)(nil)
	_ store.AccessEventStore = (*Store)(nil)
	_ store.AdminStore       = (*Store)(nil)
)

// ── identities ──────────────────────────────────────────────────────────────

func (s *Store) CreateIdentity(_ context.Context, ident types.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[ident.Key]; ok {
		return fmt.Errorf("identity %s: %w", ident.Key, apperrors.ErrConflict)
	}
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now().UTC()
	}
	if ident.Status == "" {
		ident.Status = types.StatusActive
	}
	s.identities[ident.Key] = ident
	return nil
}

func (s *Store) GetIdentity(_ context.Context, key string) (types.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identities[key]
	if !ok {
		return types.Identity{}, fmt.Errorf("identity %s: %w", key, apperrors.ErrNotFound)
	}
	return ident, nil
}

// ListIdentities orders by name, then key.
func (s *Store) ListIdentities(_ context.Context) ([]types.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Identity, 0, len(s.identities))
	for _, ident := range s.identities {
		out = append(out, ident)
	}
	slices.SortFunc(out, func(a, b types.Identity) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out, nil
}

func (s *Store) UpdateIdentity(_ context.Context, key string, upd store.IdentityUpdate) (types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[key]
	if !ok {
		return types.Identity{}, fmt.Errorf("identity %s: %w", key, apperrors.ErrNotFound)
	}
	if upd.Name != nil {
		ident.Name = *upd.Name
	}
	if upd.Status != nil {
		ident.Status = *upd.Status
	}
	s.identities[key] = ident
	return ident, nil
}

func (s *Store) DeleteIdentity(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[key]; !ok {
		return fmt.Errorf("identity %s: %w", key, apperrors.ErrNotFound)
	}
	delete(s.identities, key)
	return nil
}

func (s *Store) CountIdentities(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), nil
}

// ── access events ───────────────────────────────────────────────────────────

func (s *Store) RecordEvent(_ context.Context, rec store.AccessEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	s.nextID++
	s.events = append(s.events, types.AccessEvent{
		ID:          s.nextID,
		IdentityKey: rec.IdentityKey,
		Granted:     rec.Granted,
		OccurredAt:  rec.OccurredAt.UTC(),
		SessionID:   rec.SessionID,
	})

	if rec.Granted {
		if ident, ok := s.identities[rec.IdentityKey]; ok {
			t := rec.OccurredAt.UTC()
			ident.LastAccessAt = &t
			s.identities[rec.IdentityKey] = ident
		}
	}
	return nil
}

func (s *Store) ListEvents(_ context.Context, limit int) ([]types.AccessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.AccessEvent, 0, n)
	for i := len(s.events) - 1; i >= 0 && len(out) < n; i-- {
		ev := s.events[i]
		if ident, ok := s.identities[ev.IdentityKey]; ok {
			ev.Name = ident.Name
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) ClearEvents(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.events))
	s.events = nil
	return n, nil
}

func (s *Store) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}

func (s *Store) CountEvents(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// Events returns a copy of all recorded events, oldest first. Test-only helper.
func (s *Store) Events() []types.AccessEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.AccessEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ── admins ──────────────────────────────────────────────────────────────────

func (s *Store) CreateAdmin(_ context.Context, username, hash string, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[username]; ok {
		return fmt.Errorf("admin %s: %w", username, apperrors.ErrConflict)
	}
	s.admins[username] = adminRow{hash: hash, createdAt: createdAt}
	return nil
}

func (s *Store) GetAdminHash(_ context.Context, username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.admins[username]
	if !ok {
		return "", fmt.Errorf("admin %s: %w", username, apperrors.ErrNotFound)
	}
	return row.hash, nil
}

func (s *Store) CountAdmins(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.admins), nil
}
