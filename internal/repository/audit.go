package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one immutable row of the audit trail. Rows are only ever
// inserted, never updated.
type AuditRecord struct {
	ID         int64
	TenantID   string
	EntityType string
	EntityID   uuid.UUID
	Actor      string
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
	CreatedAt  time.Time
}

type InsertAuditLogParams struct {
	TenantID   string
	EntityType string
	EntityID   uuid.UUID
	Actor      string
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
}

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error) {
	var id int64
	metadata := arg.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO audit_log (tenant_id, entity_type, entity_id, actor, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, now())
		RETURNING id`,
		arg.TenantID, arg.EntityType, arg.EntityID, arg.Actor, arg.Action,
		arg.PrevState, arg.NextState, string(metadata)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert audit log: %w", err)
	}
	return id, nil
}

// HasAuditAction reports whether an action with the given reference in its
// metadata was ever recorded for an entity.
func (q *Queries) HasAuditAction(ctx context.Context, entityType string, entityID uuid.UUID, action, reference string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM audit_log
			WHERE entity_type = $1 AND entity_id = $2 AND action = $3 AND metadata->>'reference' = $4
		)`, entityType, entityID, action, reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check audit action: %w", err)
	}
	return exists, nil
}

// ListAuditLogForEntity returns the full trail for one entity in insertion
// order.
func (q *Queries) ListAuditLogForEntity(ctx context.Context, tenantID, entityType string, entityID uuid.UUID) ([]AuditRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, entity_type, entity_id, actor, action, prev_state, next_state, metadata, created_at
		FROM audit_log
		WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY id`, tenantID, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(&r.ID, &r.TenantID, &r.EntityType, &r.EntityID, &r.Actor, &r.Action,
			&r.PrevState, &r.NextState, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
