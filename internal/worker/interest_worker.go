package worker

import (
	"context"
	"sync"
	"time"

	"github.com/atlasbank/ledger/internal/observability"
	"github.com/atlasbank/ledger/internal/service"
	"go.uber.org/zap"
)

// InterestWorker periodically credits monthly interest to eligible accounts.
type InterestWorker struct {
	accounts      *service.AccountService
	interval      time.Duration
	olderThanDays int
	batchSize     int32
	actor         string
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewInterestWorker constructs a worker with a default daily interval and a
// thirty-day cutoff between interest runs per account.
func NewInterestWorker(accounts *service.AccountService, actor string) *InterestWorker {
	return &InterestWorker{
		accounts:      accounts,
		interval:      24 * time.Hour,
		olderThanDays: 30,
		batchSize:     100,
		actor:         actor,
		stopCh:        make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *InterestWorker) WithInterval(interval time.Duration) *InterestWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithBatchSize updates the per-run account limit.
func (w *InterestWorker) WithBatchSize(size int32) *InterestWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and applies interest at the configured interval.
func (w *InterestWorker) Start(ctx context.Context) {
	zap.L().Info("interest worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("interest worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("interest worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *InterestWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *InterestWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *InterestWorker) runOnce(ctx context.Context) {
	applied, err := w.accounts.ApplyDueInterest(ctx, w.olderThanDays, w.batchSize, w.actor)
	if err != nil {
		observability.IncrementWorkerRun("interest", "failed")
		zap.L().Error("interest run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("interest", "success")
	if applied > 0 {
		zap.L().Info("interest run complete", zap.Int("accounts", applied))
	}
}
