package app

import (
	"context"
	"time"

	"stockledger/internal/domain/outbox"
	"stockledger/internal/domain/registers/stock"
	"stockledger/pkg/logger"
)

// publishedRetention is how long delivered outbox rows are kept.
const publishedRetention = 7 * 24 * time.Hour

// Worker drains the outbox and runs periodic cleanup.
type Worker struct {
	relay           outbox.Relay
	app             *App
	pollInterval    time.Duration
	cleanupInterval time.Duration
	log             *logger.Logger
}

// NewWorker builds the background worker. sink may be nil to log alerts.
func (a *App) NewWorker(log *logger.Logger, sink stock.AlertSink) *Worker {
	poll := a.Config.Worker.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	cleanup := a.Config.Worker.CleanupInterval
	if cleanup <= 0 {
		cleanup = time.Hour
	}
	return &Worker{
		relay:           a.Storage.NewRelay(a.Config.Worker.BatchSize, a.EventRouter(sink)),
		app:             a,
		pollInterval:    poll,
		cleanupInterval: cleanup,
		log:             log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(w.cleanupInterval)
	defer cleanupTicker.Stop()

	w.log.Infow("worker started", "poll_interval", w.pollInterval, "cleanup_interval", w.cleanupInterval)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopping")
			return
		case <-ticker.C:
			w.Drain(ctx)
		case <-cleanupTicker.C:
			w.Cleanup(ctx)
		}
	}
}

// Drain processes outbox batches until one comes back empty or fails.
func (w *Worker) Drain(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			break
		}
		if n == 0 {
			break
		}
		total += n
		w.app.Metrics.OutboxProcessed(n)
	}
	if total > 0 {
		w.log.Debugw("outbox drained", "count", total)
	}
	return total
}

// Cleanup expires idempotency keys and, where supported, dead-letters failed
// messages and purges delivered ones.
func (w *Worker) Cleanup(ctx context.Context) {
	if n, err := w.app.Storage.Idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}

	m, ok := w.relay.(OutboxMaintainer)
	if !ok {
		return
	}
	if n, err := m.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("outbox dead-letter failed", "error", err)
	} else if n > 0 {
		w.log.Warnw("outbox messages moved to dead-letter queue", "count", n)
	}
	if n, err := m.PurgePublished(ctx, publishedRetention); err != nil {
		w.log.Errorw("outbox purge failed", "error", err)
	} else if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}
}
