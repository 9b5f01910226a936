package service

import (
	"context"
	"fmt"

	"github.com/atlasbank/ledger/internal/bus"
	"github.com/atlasbank/ledger/internal/observability"
	"github.com/atlasbank/ledger/internal/repository"
	"go.uber.org/zap"
)

// OutboxService delivers persisted domain events to the bus. Claiming and
// marking run in one transaction; the row lock from FOR UPDATE SKIP LOCKED
// keeps concurrent dispatchers off the same batch. A publish that succeeds
// just before a failed commit is redelivered, which is fine: delivery is
// at-least-once and consumers deduplicate on the event id.
type OutboxService struct {
	store     QueryStore
	publisher bus.Publisher
}

func NewOutboxService(store QueryStore, publisher bus.Publisher) *OutboxService {
	return &OutboxService{store: store, publisher: publisher}
}

// DispatchPending publishes one batch of undispatched events. Returns the
// number delivered.
func (s *OutboxService) DispatchPending(ctx context.Context, batchSize int32) (int, error) {
	dispatched := 0
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		events, err := q.ClaimOutboxEvents(ctx, batchSize)
		if err != nil {
			return err
		}
		for _, ev := range events {
			msg := bus.Message{
				ID:        ev.ID.String(),
				Name:      ev.EventName,
				Payload:   ev.Payload,
				Aggregate: ev.AggregateID.String(),
			}
			if err := s.publisher.Publish(ctx, msg); err != nil {
				// Stop the batch; everything unmarked stays pending and is
				// picked up on the next poll.
				observability.IncrementOutboxDispatch("failed")
				zap.L().Warn("outbox publish failed",
					zap.String("event_id", msg.ID),
					zap.String("event_name", msg.Name),
					zap.Error(err))
				return nil
			}
			if err := q.MarkOutboxDispatched(ctx, ev.ID); err != nil {
				return err
			}
			observability.IncrementOutboxDispatch("delivered")
			dispatched++
		}
		return nil
	})
	if err != nil {
		return dispatched, fmt.Errorf("dispatch outbox batch: %w", err)
	}

	if backlog, err := s.store.Queries().CountPendingOutboxEvents(ctx); err == nil {
		observability.SetOutboxBacklog(backlog)
	}
	return dispatched, nil
}
