package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAggregate_AssignsIdentityOnce(t *testing.T) {
	a := newAggregate("creator")

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, "creator", a.CreatedBy)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Nil(t, a.UpdatedAt)
	assert.False(t, a.IsDeleted)
}

func TestAggregate_MarkDeleted(t *testing.T) {
	a := newAggregate("creator")
	a.MarkDeleted("remover")

	assert.True(t, a.IsDeleted)
	require.NotNil(t, a.UpdatedBy)
	assert.Equal(t, "remover", *a.UpdatedBy)
	require.NotNil(t, a.UpdatedAt)
}

func TestAggregate_PullEventsDrainsExactlyOnce(t *testing.T) {
	a := newAggregate("creator")
	a.record(AccountActivated{Meta: newMeta(), AccountID: a.ID})
	a.record(AccountActivated{Meta: newMeta(), AccountID: a.ID})

	first := a.PullEvents()
	assert.Len(t, first, 2)

	second := a.PullEvents()
	assert.Empty(t, second)
}

func TestAggregate_PendingEventsReturnsCopy(t *testing.T) {
	a := newAggregate("creator")
	a.record(AccountActivated{Meta: newMeta(), AccountID: a.ID})

	peek := a.PendingEvents()
	require.Len(t, peek, 1)
	assert.Len(t, a.PendingEvents(), 1)
}

func TestEventMeta(t *testing.T) {
	m := newMeta()
	assert.NotEqual(t, uuid.Nil, m.EventID)
	assert.False(t, m.OccurredAt.IsZero())
}
