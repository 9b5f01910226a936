package domain

import (
	"time"

	"github.com/google/uuid"
)

// ComplianceCheckType enumerates the kinds of regulatory checks the ledger
// raises against customers, accounts and transactions.
type ComplianceCheckType string

const (
	CheckKYC              ComplianceCheckType = "KYC"
	CheckAML              ComplianceCheckType = "AML"
	CheckSanctions        ComplianceCheckType = "SANCTIONS"
	CheckPEP              ComplianceCheckType = "PEP"
	CheckTransactionLimit ComplianceCheckType = "TRANSACTION_LIMIT"
	CheckRiskScoring      ComplianceCheckType = "RISK_SCORING"
)

type ComplianceStatus string

const (
	ComplianceStatusPending     ComplianceStatus = "PENDING"
	ComplianceStatusApproved    ComplianceStatus = "APPROVED"
	ComplianceStatusRejected    ComplianceStatus = "REJECTED"
	ComplianceStatusUnderReview ComplianceStatus = "UNDER_REVIEW"
	ComplianceStatusEscalated   ComplianceStatus = "ESCALATED"
)

// ComplianceCheck tracks a single regulatory review of an entity.
type ComplianceCheck struct {
	Aggregate

	TenantID   string              `json:"tenant_id"`
	EntityID   string              `json:"entity_id"`
	EntityType string              `json:"entity_type"`
	CheckType  ComplianceCheckType `json:"check_type"`
	Status     ComplianceStatus    `json:"status"`
	RiskScore  int                 `json:"risk_score"`
	Notes      *string             `json:"notes,omitempty"`
	ReviewedBy *string             `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time          `json:"reviewed_at,omitempty"`
}

type ComplianceCheckCreated struct {
	Meta
	CheckID   uuid.UUID           `json:"check_id"`
	EntityID  string              `json:"entity_id"`
	CheckType ComplianceCheckType `json:"check_type"`
}

func (ComplianceCheckCreated) EventName() string { return "compliance.check_created" }

type ComplianceCheckApproved struct {
	Meta
	CheckID   uuid.UUID           `json:"check_id"`
	EntityID  string              `json:"entity_id"`
	CheckType ComplianceCheckType `json:"check_type"`
}

func (ComplianceCheckApproved) EventName() string { return "compliance.check_approved" }

type ComplianceCheckRejected struct {
	Meta
	CheckID   uuid.UUID           `json:"check_id"`
	EntityID  string              `json:"entity_id"`
	CheckType ComplianceCheckType `json:"check_type"`
	Reason    string              `json:"reason"`
}

func (ComplianceCheckRejected) EventName() string { return "compliance.check_rejected" }

// NewComplianceCheck raises a Pending check with a zero risk score.
func NewComplianceCheck(tenantID, entityID, entityType string, checkType ComplianceCheckType, createdBy string) (*ComplianceCheck, error) {
	if tenantID == "" {
		return nil, newError(ErrInvalidArgument, "tenant id is required")
	}
	if entityID == "" {
		return nil, newError(ErrInvalidArgument, "entity id is required")
	}
	c := &ComplianceCheck{
		Aggregate:  newAggregate(createdBy),
		TenantID:   tenantID,
		EntityID:   entityID,
		EntityType: entityType,
		CheckType:  checkType,
		Status:     ComplianceStatusPending,
	}
	c.record(ComplianceCheckCreated{Meta: newMeta(), CheckID: c.ID, EntityID: entityID, CheckType: checkType})
	return c, nil
}

// Approve records the reviewer's sign-off, with optional notes.
func (c *ComplianceCheck) Approve(notes, approvedBy string) {
	now := time.Now().UTC()
	c.Status = ComplianceStatusApproved
	c.ReviewedBy = &approvedBy
	c.ReviewedAt = &now
	if notes != "" {
		c.Notes = &notes
	}
	c.touch(approvedBy)
	c.record(ComplianceCheckApproved{Meta: newMeta(), CheckID: c.ID, EntityID: c.EntityID, CheckType: c.CheckType})
}

// Reject records the reviewer's rejection and its reason.
func (c *ComplianceCheck) Reject(reason, rejectedBy string) {
	now := time.Now().UTC()
	c.Status = ComplianceStatusRejected
	c.ReviewedBy = &rejectedBy
	c.ReviewedAt = &now
	c.Notes = &reason
	c.touch(rejectedBy)
	c.record(ComplianceCheckRejected{Meta: newMeta(), CheckID: c.ID, EntityID: c.EntityID, CheckType: c.CheckType, Reason: reason})
}

// UpdateRiskScore sets the 0-100 risk score.
func (c *ComplianceCheck) UpdateRiskScore(score int, updatedBy string) error {
	if score < 0 || score > 100 {
		return newError(ErrInvalidArgument, "risk score must be between 0 and 100, got %d", score)
	}
	c.RiskScore = score
	c.touch(updatedBy)
	return nil
}
