package worker

import (
	"context"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

const defaultTickTimeout = 30 * time.Second

// Passes is the slice of the sync engine the worker drives. A zero limit
// means the engine's configured page size.
type Passes interface {
	ExportBatch(ctx context.Context, limit int) (*model.ExportResult, error)
	ImportBatch(ctx context.Context, limit int) (*model.ImportResult, error)
}

// SyncWorker runs one export pass and one import pass per tick. A large
// backlog drains across consecutive ticks, one page per direction each.
//
// Architecture assumptions:
// - Single server instance. Concurrent instances stay correct through the
//   offset compare-and-set but duplicate each other's work.
type SyncWorker struct {
	passes      Passes
	interval    time.Duration
	tickTimeout time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// Option configures a SyncWorker
type Option func(*SyncWorker)

// WithTickTimeout bounds how long one tick may spend on both passes
func WithTickTimeout(d time.Duration) Option {
	return func(w *SyncWorker) {
		if d > 0 {
			w.tickTimeout = d
		}
	}
}

// New creates a sync worker ticking at the given interval
func New(passes Passes, interval time.Duration, opts ...Option) *SyncWorker {
	w := &SyncWorker{
		passes:      passes,
		interval:    interval,
		tickTimeout: defaultTickTimeout,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background sync loop
// - The first tick runs immediately so a backlog left from downtime
//   starts draining without waiting one interval
// - Does not block server startup
func (w *SyncWorker) Start(ctx context.Context) error {
	logging.Default().Info("sync worker starting",
		"interval", w.interval.String(),
		"tick_timeout", w.tickTimeout.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for the current tick to finish
func (w *SyncWorker) Stop() {
	logging.Default().Info("sync worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("sync worker stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	consecutiveFailures := w.tick(ctx, 0)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			consecutiveFailures = w.tick(ctx, consecutiveFailures)

		case <-w.stopCh:
			logging.Default().Info("sync worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("sync worker context cancelled")
			return
		}
	}
}

// tick runs one export and one import pass under the tick timeout. Pass
// failures are logged and carried as a consecutive-failure count, never
// fatal; the engine already alerts the notifier per failed pass.
func (w *SyncWorker) tick(ctx context.Context, consecutiveFailures int) int {
	ctx, cancel := context.WithTimeout(ctx, w.tickTimeout)
	defer cancel()

	failed := false

	exported, err := w.passes.ExportBatch(ctx, 0)
	if err != nil {
		failed = true
		logging.Default().Error("export pass failed (will retry next tick)",
			"error", err.Error())
	} else if exported.Pushed > 0 {
		logging.Default().Info("export pass completed", "pushed", exported.Pushed)
	}

	imported, err := w.passes.ImportBatch(ctx, 0)
	if err != nil {
		failed = true
		logging.Default().Error("import pass failed (will retry next tick)",
			"error", err.Error())
	} else if imported.Applied > 0 || imported.Conflicts > 0 {
		logging.Default().Info("import pass completed",
			"applied", imported.Applied,
			"conflicts", imported.Conflicts)
	}

	if !failed {
		return 0
	}

	consecutiveFailures++
	if consecutiveFailures > 1 {
		logging.Default().Warn("sync passes keep failing",
			"consecutive_failures", consecutiveFailures)
	}
	return consecutiveFailures
}
