package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of something that happened to an aggregate.
// Every payload carries the ids, numbers and amounts an idempotent consumer
// needs to detect replays.
type Event interface {
	EventName() string
	EventMeta() Meta
}

// Meta is the envelope shared by all domain events.
type Meta struct {
	EventID    uuid.UUID `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newMeta() Meta {
	return Meta{EventID: uuid.New(), OccurredAt: time.Now().UTC()}
}

// EventMeta lets any struct embedding Meta satisfy the Event interface's
// envelope half.
func (m Meta) EventMeta() Meta {
	return m
}
