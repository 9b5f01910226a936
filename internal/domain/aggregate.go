package domain

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate carries the identity, audit and soft-delete state shared by every
// aggregate root, plus the buffer of events recorded by domain operations.
// Embed it by value; mutate it only through the owning aggregate's methods.
type Aggregate struct {
	ID        uuid.UUID  `json:"id"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	CreatedBy string     `json:"created_by"`
	UpdatedBy *string    `json:"updated_by,omitempty"`
	IsDeleted bool       `json:"is_deleted"`

	events []Event
}

// newAggregate assigns the identity once; it never changes afterwards.
func newAggregate(createdBy string) Aggregate {
	return Aggregate{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
	}
}

func (a *Aggregate) record(ev Event) {
	a.events = append(a.events, ev)
}

func (a *Aggregate) touch(by string) {
	now := time.Now().UTC()
	a.UpdatedAt = &now
	a.UpdatedBy = &by
}

// MarkDeleted soft-deletes the aggregate. The persistence layer filters
// deleted rows on every load.
func (a *Aggregate) MarkDeleted(by string) {
	a.IsDeleted = true
	a.touch(by)
}

// PullEvents drains the pending event buffer and returns it in recording
// order. The persistence layer calls this exactly once per successful save so
// that field state and events commit together; a failed save must discard the
// aggregate instance rather than re-save it.
func (a *Aggregate) PullEvents() []Event {
	evs := a.events
	a.events = nil
	return evs
}

// PendingEvents returns a copy of the buffered events without draining them.
func (a *Aggregate) PendingEvents() []Event {
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}
