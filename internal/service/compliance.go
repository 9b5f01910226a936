package service

import (
	"context"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/google/uuid"
)

// ComplianceService raises and resolves regulatory checks.
type ComplianceService struct {
	store QueryStore
	audit *AuditService
}

func NewComplianceService(store QueryStore) *ComplianceService {
	return &ComplianceService{
		store: store,
		audit: NewAuditService(store),
	}
}

type RaiseCheckCmd struct {
	TenantID   string
	EntityID   string
	EntityType string
	CheckType  domain.ComplianceCheckType
	Actor      string
}

func (s *ComplianceService) RaiseCheck(ctx context.Context, cmd RaiseCheckCmd) (*domain.ComplianceCheck, error) {
	check, err := domain.NewComplianceCheck(cmd.TenantID, cmd.EntityID, cmd.EntityType, cmd.CheckType, cmd.Actor)
	if err != nil {
		return nil, err
	}
	err = s.store.RunInTx(ctx, func(q *repository.Queries) error {
		if err := q.CreateComplianceCheck(ctx, check); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, check.TenantID, "compliance_check", check.ID, cmd.Actor, "check_raised", "", string(check.Status), nil)
	})
	if err != nil {
		return nil, err
	}
	return check, nil
}

func (s *ComplianceService) ApproveCheck(ctx context.Context, checkID uuid.UUID, notes, actor string) (*domain.ComplianceCheck, error) {
	return s.mutateCheck(ctx, checkID, actor, "check_approved", func(c *domain.ComplianceCheck) error {
		c.Approve(notes, actor)
		return nil
	})
}

func (s *ComplianceService) RejectCheck(ctx context.Context, checkID uuid.UUID, reason, actor string) (*domain.ComplianceCheck, error) {
	return s.mutateCheck(ctx, checkID, actor, "check_rejected", func(c *domain.ComplianceCheck) error {
		c.Reject(reason, actor)
		return nil
	})
}

func (s *ComplianceService) UpdateRiskScore(ctx context.Context, checkID uuid.UUID, score int, actor string) (*domain.ComplianceCheck, error) {
	return s.mutateCheck(ctx, checkID, actor, "risk_score_updated", func(c *domain.ComplianceCheck) error {
		return c.UpdateRiskScore(score, actor)
	})
}

func (s *ComplianceService) mutateCheck(ctx context.Context, checkID uuid.UUID, actor, action string, op func(*domain.ComplianceCheck) error) (*domain.ComplianceCheck, error) {
	var check *domain.ComplianceCheck
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var err error
		check, err = q.GetComplianceCheckForUpdate(ctx, checkID)
		if err != nil {
			return err
		}
		prev := string(check.Status)
		if err := op(check); err != nil {
			return err
		}
		if err := q.SaveComplianceCheck(ctx, check); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, check.TenantID, "compliance_check", check.ID, actor, action, prev, string(check.Status), nil)
	})
	if err != nil {
		return nil, err
	}
	return check, nil
}

func (s *ComplianceService) GetCheck(ctx context.Context, checkID uuid.UUID) (*domain.ComplianceCheck, error) {
	return s.store.Queries().GetComplianceCheck(ctx, checkID)
}

func (s *ComplianceService) ListChecksForEntity(ctx context.Context, tenantID, entityID string) ([]*domain.ComplianceCheck, error) {
	return s.store.Queries().ListComplianceChecksForEntity(ctx, tenantID, entityID)
}
