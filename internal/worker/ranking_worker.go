package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/observability"
	"github.com/oasis-community/opsbot/internal/persistence"
	"github.com/oasis-community/opsbot/internal/service"
)

const rankingLockKey = "opsbot:ranking:refresh"

// Refresher re-renders the live leaderboard.
type Refresher interface {
	Refresh(ctx context.Context) (service.RefreshOutcome, error)
}

// Locker provides a cross-process run-lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// RankingWorker refreshes the leaderboard on a fixed interval.
type RankingWorker struct {
	refresher Refresher
	locker    Locker
	interval  time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
	running   atomic.Bool
}

// NewRankingWorker builds the worker. locker may be nil for single-replica deployments.
func NewRankingWorker(refresher Refresher, locker Locker, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *RankingWorker {
	return &RankingWorker{
		refresher: refresher,
		locker:    locker,
		interval:  interval,
		metrics:   metrics,
		logger:    logger.Named("ranking_worker"),
	}
}

// Run ticks immediately and then every interval until ctx ends.
func (w *RankingWorker) Run(ctx context.Context) error {
	w.logger.Info("ranking worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ranking worker stopped")
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick performs one refresh. Overlapping ticks are skipped; failures and
// panics are logged and never escape.
func (w *RankingWorker) Tick(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Debug("previous refresh still running; tick skipped")
		return
	}
	defer w.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			w.metrics.RecordRankingRefresh("panic")
			w.logger.Error("ranking refresh panicked", zap.Any("panic", r))
		}
	}()

	tickCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	if w.locker != nil {
		release, err := w.locker.TryLock(tickCtx, rankingLockKey, w.interval)
		switch {
		case errors.Is(err, persistence.ErrLockHeld):
			w.logger.Debug("another replica holds the ranking lock; tick skipped")
			return
		case err != nil:
			w.logger.Warn("ranking lock unavailable; refreshing without it", zap.Error(err))
		default:
			defer func() {
				if err := release(context.Background()); err != nil {
					w.logger.Warn("ranking lock release failed", zap.Error(err))
				}
			}()
		}
	}

	outcome, err := w.refresher.Refresh(tickCtx)
	if err != nil {
		w.logger.Warn("ranking refresh failed", zap.String("outcome", string(outcome)), zap.Error(err))
		return
	}
	w.logger.Debug("ranking refresh done", zap.String("outcome", string(outcome)))
}
