package queue

import (
	"context"
	"time"

	"github.com/wolfdaybr/validapass/internal/pkg/logger"
)

// DefaultProcessInterval is how often the background worker drains due
// entries when no interval is configured.
const DefaultProcessInterval = 30 * time.Second

// Worker drives the Processor on a timer. The manual process endpoint and
// this loop share the processor's lock, so running both is safe.
type Worker struct {
	processor *Processor
	interval  time.Duration
}

func NewWorker(processor *Processor, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultProcessInterval
	}
	return &Worker{processor: processor, interval: interval}
}

// Start begins the processing loop. It blocks until ctx is cancelled. One
// pass runs immediately so a restart does not delay overdue emails by a
// full interval.
func (w *Worker) Start(ctx context.Context) {
	logger.Info("queue worker starting", "interval", w.interval.String())

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("queue worker stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if _, err := w.processor.ProcessBatch(ctx); err != nil {
		logger.Error("queue pass failed", "error", err.Error())
	}
}
