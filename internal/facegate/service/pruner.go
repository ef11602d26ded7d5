package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
)

// AccessLogPruner periodically deletes access events older than a retention
// period. A retention of 0 disables pruning.
type AccessLogPruner struct {
	store     store.AccessEventStore
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// PrunerConfig holds the parameters for NewAccessLogPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of access history to keep.
	// 0 keeps everything and the pruner does not start.
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

func NewAccessLogPruner(s store.AccessEventStore, cfg PrunerConfig, logger *zap.Logger) *AccessLogPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &AccessLogPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately, then on every interval until ctx is
// cancelled or Stop is called.
func (p *AccessLogPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("access log pruner disabled", zap.Int("retention_days", 0))
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("access log pruner started",
		zap.Int("retention_days", int(p.retention.Hours()/24)),
		zap.Duration("interval", p.interval))
}

// Stop signals the pruner to exit and waits for it.
func (p *AccessLogPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *AccessLogPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.PruneOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce deletes everything older than the retention period and returns
// the number of rows removed.
func (p *AccessLogPruner) PruneOnce(ctx context.Context) int64 {
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("access log prune failed", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		p.logger.Info("access log pruned",
			zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted
}
