package queue

import (
	"context"
	"time"

	"github.com/wolfdaybr/validapass/internal/pkg/logger"
)

const (
	// DefaultRecoveryInterval is how often the recovery pass scans the queue.
	DefaultRecoveryInterval = 2 * time.Minute

	// DefaultStaleSendingAge is how long an entry can sit in "sending"
	// before the worker that claimed it is presumed dead.
	DefaultStaleSendingAge = 10 * time.Minute
)

type recoveryStore interface {
	ReclaimStuckSending(ctx context.Context, staleAge time.Duration) (int64, error)
	FailExhausted(ctx context.Context) (int64, error)
}

// RecoveryWorker periodically repairs the queue: entries stuck in "sending"
// after a crash go back to pending at the cost of one retry, and entries
// with no budget left are terminally failed.
type RecoveryWorker struct {
	store    recoveryStore
	interval time.Duration
	staleAge time.Duration
}

func NewRecoveryWorker(store recoveryStore, interval, staleAge time.Duration) *RecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleSendingAge
	}
	return &RecoveryWorker{store: store, interval: interval, staleAge: staleAge}
}

// Start begins the recovery loop. It blocks until ctx is cancelled.
func (w *RecoveryWorker) Start(ctx context.Context) {
	logger.Info("queue recovery starting",
		"interval", w.interval.String(), "stale_age", w.staleAge.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("queue recovery stopping")
			return
		case <-ticker.C:
			w.recover(ctx)
		}
	}
}

func (w *RecoveryWorker) recover(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if n, err := w.store.ReclaimStuckSending(runCtx, w.staleAge); err != nil {
		logger.Error("reclaim stuck sending failed", "error", err.Error())
	} else if n > 0 {
		logger.Info("reclaimed stuck sending entries", "count", n)
	}

	if n, err := w.store.FailExhausted(runCtx); err != nil {
		logger.Error("fail exhausted failed", "error", err.Error())
	} else if n > 0 {
		logger.Info("exhausted entries terminally failed", "count", n)
	}
}
