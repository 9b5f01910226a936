package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/google/uuid"
)

// OutboxEvent is a domain event persisted alongside its aggregate, waiting
// for the dispatcher to deliver it.
type OutboxEvent struct {
	ID           uuid.UUID
	AggregateID  uuid.UUID
	EventName    string
	Payload      []byte
	CreatedAt    time.Time
	DispatchedAt *time.Time
}

// insertOutboxEvents drains the aggregate's pending events into the outbox
// table. Runs inside the same transaction as the aggregate save, so state and
// events commit atomically; the buffer ends up empty either way the caller
// keeps using the instance.
func (q *Queries) insertOutboxEvents(ctx context.Context, aggregateID uuid.UUID, events []domain.Event) error {
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.EventName(), err)
		}
		meta := ev.EventMeta()
		_, err = q.db.Exec(ctx, `
			INSERT INTO outbox_events (id, aggregate_id, event_name, payload, created_at)
			VALUES ($1, $2, $3, $4::jsonb, $5)`,
			meta.EventID, aggregateID, ev.EventName(), string(payload), meta.OccurredAt)
		if err != nil {
			return fmt.Errorf("insert outbox event %s: %w", ev.EventName(), err)
		}
	}
	return nil
}

// ClaimOutboxEvents locks a batch of undispatched events for delivery.
// SKIP LOCKED keeps concurrent dispatcher instances from double-claiming.
func (q *Queries) ClaimOutboxEvents(ctx context.Context, batchSize int32) ([]OutboxEvent, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, aggregate_id, event_name, payload, created_at
		FROM outbox_events
		WHERE dispatched_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventName, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// MarkOutboxDispatched stamps an event as delivered.
func (q *Queries) MarkOutboxDispatched(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE outbox_events SET dispatched_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event dispatched: %w", err)
	}
	return nil
}

// CountPendingOutboxEvents reports the current backlog size.
func (q *Queries) CountPendingOutboxEvents(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE dispatched_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox events: %w", err)
	}
	return n, nil
}
