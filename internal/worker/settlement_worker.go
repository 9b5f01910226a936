package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/atlasbank/ledger/internal/observability"
	"github.com/atlasbank/ledger/internal/service"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SettlementWorker consumes transaction events off the Redis stream and
// drives settlement. It reads through a consumer group, so multiple instances
// share the stream; a message is only acknowledged once Settle returns
// without an infrastructure error, giving at-least-once processing on top of
// the service's idempotency. Entries left pending by a crashed consumer are
// reclaimed with XAUTOCLAIM once they go idle past minIdle.
type SettlementWorker struct {
	redis        redis.Cmdable
	settlement   *service.SettlementService
	stream       string
	group        string
	consumer     string
	blockTime    time.Duration
	batchSize    int64
	minIdle      time.Duration
	reclaimEvery time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewSettlementWorker(client redis.Cmdable, settlementSvc *service.SettlementService, stream, consumer string) *SettlementWorker {
	return &SettlementWorker{
		redis:        client,
		settlement:   settlementSvc,
		stream:       stream,
		group:        "settlement",
		consumer:     consumer,
		blockTime:    5 * time.Second,
		batchSize:    10,
		minIdle:      time.Minute,
		reclaimEvery: 30 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// Start blocks and consumes until Stop is called or the context is canceled.
func (w *SettlementWorker) Start(ctx context.Context) {
	zap.L().Info("settlement worker starting",
		zap.String("stream", w.stream),
		zap.String("group", w.group),
		zap.String("consumer", w.consumer))

	if err := w.ensureGroup(ctx); err != nil {
		zap.L().Error("settlement consumer group setup failed", zap.Error(err))
		return
	}

	// Reclaim immediately on startup to pick up entries a previous
	// incarnation of this consumer left pending, then on an interval.
	nextReclaim := time.Now()
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("settlement worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("settlement worker stop signal received")
			return
		default:
			if !time.Now().Before(nextReclaim) {
				w.reclaimPending(ctx)
				nextReclaim = time.Now().Add(w.reclaimEvery)
			}
			w.consumeBatch(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *SettlementWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SettlementWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *SettlementWorker) ensureGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, w.stream, w.group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return err
	}
	return nil
}

// reclaimPending takes over group entries whose consumer has been idle past
// minIdle (a crashed or stuck instance) and replays them. Settle tolerates
// the replay, so claiming another consumer's work is safe.
func (w *SettlementWorker) reclaimPending(ctx context.Context) {
	start := "0-0"
	for {
		msgs, next, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   w.stream,
			Group:    w.group,
			Consumer: w.consumer,
			MinIdle:  w.minIdle,
			Start:    start,
			Count:    w.batchSize,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				return
			}
			zap.L().Warn("settlement pending reclaim failed", zap.Error(err))
			return
		}
		for _, msg := range msgs {
			w.handleMessage(ctx, msg)
		}
		if len(msgs) == 0 || next == "0-0" {
			return
		}
		start = next
	}
}

func (w *SettlementWorker) consumeBatch(ctx context.Context) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.group,
		Consumer: w.consumer,
		Streams:  []string{w.stream, ">"},
		Count:    w.batchSize,
		Block:    w.blockTime,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return
		}
		zap.L().Warn("settlement stream read failed", zap.Error(err))
		time.Sleep(time.Second)
		return
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *SettlementWorker) handleMessage(ctx context.Context, msg redis.XMessage) {
	name, _ := msg.Values["event_name"].(string)
	if name != "transaction.created" {
		// Not ours; acknowledge so it does not sit pending forever.
		w.ack(ctx, msg.ID)
		return
	}

	payload, _ := msg.Values["payload"].(string)
	var ev struct {
		TransactionID uuid.UUID `json:"transaction_id"`
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.TransactionID == uuid.Nil {
		observability.IncrementWorkerRun("settlement", "bad_message")
		zap.L().Error("settlement message unreadable",
			zap.String("message_id", msg.ID), zap.Error(err))
		w.ack(ctx, msg.ID)
		return
	}

	if err := w.settlement.Settle(ctx, ev.TransactionID); err != nil {
		// Leave unacked; the pending entry is redelivered to this group.
		observability.IncrementWorkerRun("settlement", "failed")
		zap.L().Error("settlement failed",
			zap.String("transaction_id", ev.TransactionID.String()), zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("settlement", "success")
	w.ack(ctx, msg.ID)
}

func (w *SettlementWorker) ack(ctx context.Context, messageID string) {
	if err := w.redis.XAck(ctx, w.stream, w.group, messageID).Err(); err != nil {
		zap.L().Warn("settlement ack failed", zap.String("message_id", messageID), zap.Error(err))
	}
}

func isBusyGroup(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
