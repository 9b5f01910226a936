package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atlasbank/ledger/internal/repository"
	"github.com/google/uuid"
)

// AuditService writes immutable audit trail entries. Every state-changing
// operation records who acted and which states the entity moved between.
type AuditService struct {
	store QueryStore
}

func NewAuditService(store QueryStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record.
func (s *AuditService) Write(ctx context.Context, qtx *repository.Queries, tenantID, entityType string, entityID uuid.UUID, actor, action, prevState, nextState string, metadata []byte) error {
	if _, err := qtx.InsertAuditLog(ctx, repository.InsertAuditLogParams{
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Action:     action,
		PrevState:  textParam(prevState),
		NextState:  textParam(nextState),
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Trail returns the full audit history of one entity.
func (s *AuditService) Trail(ctx context.Context, tenantID, entityType string, entityID uuid.UUID) ([]repository.AuditRecord, error) {
	return s.store.Queries().ListAuditLogForEntity(ctx, tenantID, entityType, entityID)
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func auditMetadata(kv map[string]any) []byte {
	if len(kv) == 0 {
		return nil
	}
	payload, err := json.Marshal(kv)
	if err != nil {
		return nil
	}
	return payload
}
