package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

// DefaultEventLimit is how many access events ListEvents returns when the
// caller does not ask for a specific number.
const DefaultEventLimit = 100

// AccessService writes and reads the access audit log.
type AccessService struct {
	events store.AccessEventStore
	logger *zap.Logger
	now    func() time.Time
}

func NewAccessService(es store.AccessEventStore, logger *zap.Logger) *AccessService {
	return &AccessService{events: es, logger: logger, now: time.Now}
}

// RecordAccess persists one access attempt. Errors are logged and not
// returned: a failed audit write must not change what the camera loop does.
func (s *AccessService) RecordAccess(ctx context.Context, sessionID, identityKey string, granted bool) {
	rec := store.AccessEventRecord{
		IdentityKey: identityKey,
		Granted:     granted,
		OccurredAt:  s.now().UTC(),
		SessionID:   sessionID,
	}
	if err := s.events.RecordEvent(ctx, rec); err != nil {
		s.logger.Error("record access event failed",
			zap.String("identity", identityKey), zap.Bool("granted", granted), zap.Error(err))
		return
	}
	s.logger.Info("access event recorded",
		zap.String("identity", identityKey), zap.Bool("granted", granted), zap.String("session", sessionID))
}

// ListEvents returns the newest events first. limit <= 0 uses DefaultEventLimit.
func (s *AccessService) ListEvents(ctx context.Context, limit int) ([]types.AccessEvent, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	return s.events.ListEvents(ctx, limit)
}

func (s *AccessService) ClearEvents(ctx context.Context) (int64, error) {
	n, err := s.events.ClearEvents(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("access log cleared", zap.Int64("deleted", n))
	return n, nil
}

func (s *AccessService) CountEvents(ctx context.Context) (int, error) {
	return s.events.CountEvents(ctx)
}
