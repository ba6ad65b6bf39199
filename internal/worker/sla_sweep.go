package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/config"
	"github.com/spec-kit/workorder-service/internal/persistence"
	"github.com/spec-kit/workorder-service/internal/service"
)

const sweepLockKey = "sla:sweep:lock"

// SLASweeper periodically re-evaluates all active SLA records. A redis lock
// keeps the sweep single-flight across replicas; the lock TTL should be below
// the interval so a crashed holder does not stall the next pass.
type SLASweeper struct {
	slaService *service.SLAService
	redis      *persistence.Redis
	cfg        config.SweepConfig
	logger     *zap.Logger
}

// NewSLASweeper builds the sweeper.
func NewSLASweeper(slaService *service.SLAService, redis *persistence.Redis, cfg config.SweepConfig, logger *zap.Logger) *SLASweeper {
	return &SLASweeper{
		slaService: slaService,
		redis:      redis,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled, sweeping at the configured interval.
func (w *SLASweeper) Run(ctx context.Context) {
	if !w.cfg.Enabled {
		w.logger.Info("sla sweep disabled")
		return
	}

	ticker := time.NewTicker(w.cfg.Interval())
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla sweep stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SLASweeper) sweep(ctx context.Context) {
	if !w.acquireLock(ctx) {
		w.logger.Debug("sla sweep skipped; another replica holds the lock")
		return
	}
	if _, err := w.slaService.SweepOnce(ctx); err != nil {
		w.logger.Error("sla sweep failed", zap.Error(err))
	}
}

// acquireLock is best-effort: when redis is down the sweep proceeds locally
// rather than letting SLA evaluation stall entirely.
func (w *SLASweeper) acquireLock(ctx context.Context) bool {
	if w.redis == nil || w.redis.Client == nil {
		return true
	}
	ok, err := w.redis.AcquireLock(ctx, sweepLockKey, w.cfg.LockTTL())
	if err != nil {
		w.logger.Warn("sla sweep lock unavailable", zap.Error(err))
		return true
	}
	return ok
}
