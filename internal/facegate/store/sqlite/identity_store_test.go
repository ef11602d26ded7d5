package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/facegate/internal/apperrors"
	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
	sqlitestore "github.com/BrandonDHaskell/facegate/internal/facegate/store/sqlite"
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// Create / Get
// ═══════════════════════════════════════════════════════════════════════════

func TestIdentityStore_CreateAndGet(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	is := sqlitestore.NewIdentityStore(conn, w)
	ctx := context.Background()

	created := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	err := is.CreateIdentity(ctx, types.Identity{
		Key:       "alice_smith",
		Name:      "Alice Smith",
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	got, err := is.GetIdentity(ctx, "alice_smith")
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if got.Name != "Alice Smith" {
		t.Errorf("expected name Alice Smith, got %q", got.Name)
	}
	if got.Status != types.StatusActive {
		t.Errorf("expected default status active, got %q", got.Status)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
	}
	if got.LastAccessAt != nil {
		t.Errorf("expected no last access, got %v", got.LastAccessAt)
	}
}

func TestIdentityStore_CreateDuplicateIsConflict(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	is := sqlitestore.NewIdentityStore(conn, w)
	ctx := context.Background()

	if err := is.CreateIdentity(ctx, types.Identity{Key: "bob", Name: "Bob"}); err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	err := is.CreateIdentity(ctx, types.Identity{Key: "bob", Name: "Other Bob"})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestIdentityStore_GetMissingIsNotFound(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	is := sqlitestore.NewIdentityStore(conn, w)

	_, err := is.GetIdentity(context.Background(), "nobody")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIdentityStore_StatusCheckConstraint(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	is := sqlitestore.NewIdentityStore(conn, w)

	err := is.CreateIdentity(context.Background(), types.Identity{Key: "x", Name: "X", Status: "suspended"})
	if err == nil {
		t.Fatal("expected CHECK constraint failure for unknown status")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// List / Update / Delete
// ═══════════════════════════════════════════════════════════════════════════

func TestIdentityStore_ListOrderedByName(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedIdentity(t, conn, "z1", "Zoe", types.StatusActive)
	seedIdentity(t, conn, "a1", "Adam", types.StatusInactive)
	is := sqlitestore.NewIdentityStore(conn, w)

	list, err := is.ListIdentities(context.Background())
	if err != nil {
		t.Fatalf("ListIdentities: %v", err)
	}
	if len(list) != 2 || list[0].Key != "a1" || list[1].Key != "z1" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[0].Status != types.StatusInactive {
		t.Errorf("expected a1 inactive, got %q", list[0].Status)
	}

	n, err := is.CountIdentities(context.Background())
	if err != nil || n != 2 {
		t.Errorf("CountIdentities = %d, %v", n, err)
	}
}

func TestIdentityStore_UpdatePartial(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedIdentity(t, conn, "carol", "Carol", types.StatusActive)
	is := sqlitestore.NewIdentityStore(conn, w)
	ctx := context.Background()

	inactive := types.StatusInactive
	got, err := is.UpdateIdentity(ctx, "carol", store.IdentityUpdate{Status: &inactive})
	if err != nil {
		t.Fatalf("UpdateIdentity status: %v", err)
	}
	if got.Status != types.StatusInactive || got.Name != "Carol" {
		t.Errorf("unexpected identity after status update: %+v", got)
	}

	name := "Carol King"
	got, err = is.UpdateIdentity(ctx, "carol", store.IdentityUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateIdentity name: %v", err)
	}
	if got.Name != "Carol King" || got.Status != types.StatusInactive {
		t.Errorf("unexpected identity after rename: %+v", got)
	}

	_, err = is.UpdateIdentity(ctx, "nobody", store.IdentityUpdate{Name: &name})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIdentityStore_Delete(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedIdentity(t, conn, "dave", "Dave", types.StatusActive)
	is := sqlitestore.NewIdentityStore(conn, w)
	ctx := context.Background()

	if err := is.DeleteIdentity(ctx, "dave"); err != nil {
		t.Fatalf("DeleteIdentity: %v", err)
	}
	if _, err := is.GetIdentity(ctx, "dave"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := is.DeleteIdentity(ctx, "dave"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Admins
// ═══════════════════════════════════════════════════════════════════════════

func TestAdminStore_CreateGetCount(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	as := sqlitestore.NewAdminStore(conn, w)
	ctx := context.Background()

	n, err := as.CountAdmins(ctx)
	if err != nil || n != 0 {
		t.Fatalf("CountAdmins on empty db = %d, %v", n, err)
	}

	if err := as.CreateAdmin(ctx, "admin", "$2a$hash", time.Time{}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if err := as.CreateAdmin(ctx, "admin", "$2a$other", time.Time{}); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	hash, err := as.GetAdminHash(ctx, "admin")
	if err != nil {
		t.Fatalf("GetAdminHash: %v", err)
	}
	if hash != "$2a$hash" {
		t.Errorf("expected stored hash, got %q", hash)
	}
	if _, err := as.GetAdminHash(ctx, "root"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
