// Package store defines the persistence contracts for identities, admins and
// the access audit log. Implementations live in the memory and sqlite
// subpackages. Missing rows are reported as apperrors.ErrNotFound and key
// collisions as apperrors.ErrConflict.
package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

// IdentityUpdate carries the fields to change; nil fields are left alone.
type IdentityUpdate struct {
	Name   *string
	Status *types.Status
}

type IdentityStore interface {
	CreateIdentity(ctx context.Context, ident types.Identity) error
	GetIdentity(ctx context.Context, key string) (types.Identity, error)
	ListIdentities(ctx context.Context) ([]types.Identity, error)
	UpdateIdentity(ctx context.Context, key string, upd IdentityUpdate) (types.Identity, error)
	DeleteIdentity(ctx context.Context, key string) error
	CountIdentities(ctx context.Context) (int, error)
}

// AccessEventRecord is one access attempt to append to the audit log.
type AccessEventRecord struct {
	IdentityKey string
	Granted     bool
	OccurredAt  time.Time
	SessionID   string
}

// AccessEventStore persists access attempts as an append-only log. Recording
// a granted event also stamps the identity's last access time.
type AccessEventStore interface {
	RecordEvent(ctx context.Context, rec AccessEventRecord) error
	// ListEvents returns the newest events first. limit <= 0 means all.
	ListEvents(ctx context.Context, limit int) ([]types.AccessEvent, error)
	ClearEvents(ctx context.Context) (int64, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CountEvents(ctx context.Context) (int, error)
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, username, passwordHash string, createdAt time.Time) error
	GetAdminHash(ctx context.Context, username string) (string, error)
	CountAdmins(ctx context.Context) (int, error)
}
