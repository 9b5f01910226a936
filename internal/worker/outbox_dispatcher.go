package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/atlasbank/ledger/internal/observability"
	"github.com/atlasbank/ledger/internal/service"
	"go.uber.org/zap"
)

// OutboxDispatcher polls the outbox table and publishes pending events.
// Safe for concurrent instances thanks to FOR UPDATE SKIP LOCKED.
type OutboxDispatcher struct {
	outboxService *service.OutboxService
	pollInterval  time.Duration
	batchSize     int32
	stopCh        chan struct{}
}

func NewOutboxDispatcher(outboxSvc *service.OutboxService) *OutboxDispatcher {
	return &OutboxDispatcher{
		outboxService: outboxSvc,
		pollInterval:  2 * time.Second,
		batchSize:     50,
		stopCh:        make(chan struct{}),
	}
}

// WithPollInterval sets the poll interval for the dispatcher.
func (w *OutboxDispatcher) WithPollInterval(interval time.Duration) *OutboxDispatcher {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

// WithBatchSize sets the batch size for the dispatcher.
func (w *OutboxDispatcher) WithBatchSize(size int32) *OutboxDispatcher {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and dispatches until Stop is called or the context is
// canceled.
func (w *OutboxDispatcher) Start(ctx context.Context) {
	zap.L().Info("outbox dispatcher starting",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int32("batch_size", w.batchSize))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("outbox dispatcher context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("outbox dispatcher stop signal received")
			return
		case <-ticker.C:
			w.dispatchBatch(ctx)
		}
	}
}

// Stop signals the dispatcher to stop.
func (w *OutboxDispatcher) Stop() {
	close(w.stopCh)
}

func (w *OutboxDispatcher) dispatchBatch(ctx context.Context) {
	if _, err := w.outboxService.DispatchPending(ctx, w.batchSize); err != nil {
		observability.IncrementWorkerRun("outbox_dispatcher", "failed")
		zap.L().Error("outbox dispatch failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("outbox_dispatcher", "success")
}

// DispatchOnce dispatches a single batch immediately. Useful for tests or
// manual triggering.
func (w *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	return w.outboxService.DispatchPending(ctx, w.batchSize)
}

// Run starts the dispatcher in a goroutine and returns a stop function.
func (w *OutboxDispatcher) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *OutboxDispatcher) String() string {
	return fmt.Sprintf("OutboxDispatcher(interval=%v, batch=%d)", w.pollInterval, w.batchSize)
}
