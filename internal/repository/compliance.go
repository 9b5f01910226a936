package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const complianceColumns = `
	id, version, tenant_id, entity_id, entity_type, check_type, status,
	risk_score, notes, reviewed_by, reviewed_at,
	created_at, updated_at, created_by, updated_by, is_deleted`

func (q *Queries) CreateComplianceCheck(ctx context.Context, c *domain.ComplianceCheck) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO compliance_checks (
			id, version, tenant_id, entity_id, entity_type, check_type, status,
			risk_score, notes, reviewed_by, reviewed_at,
			created_at, updated_at, created_by, updated_by, is_deleted
		) VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.TenantID, c.EntityID, c.EntityType, string(c.CheckType), string(c.Status),
		c.RiskScore, c.Notes, c.ReviewedBy, c.ReviewedAt,
		c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy, c.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert compliance check: %w", err)
	}
	if err := q.insertOutboxEvents(ctx, c.ID, c.PullEvents()); err != nil {
		return err
	}
	c.Version = 1
	return nil
}

func (q *Queries) GetComplianceCheck(ctx context.Context, id uuid.UUID) (*domain.ComplianceCheck, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+complianceColumns+` FROM compliance_checks WHERE id = $1 AND is_deleted = FALSE`, id)
	return scanComplianceCheck(row)
}

func (q *Queries) GetComplianceCheckForUpdate(ctx context.Context, id uuid.UUID) (*domain.ComplianceCheck, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+complianceColumns+` FROM compliance_checks WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`, id)
	return scanComplianceCheck(row)
}

// ListComplianceChecksForEntity returns every check raised against an entity,
// newest first.
func (q *Queries) ListComplianceChecksForEntity(ctx context.Context, tenantID, entityID string) ([]*domain.ComplianceCheck, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+complianceColumns+` FROM compliance_checks
		 WHERE tenant_id = $1 AND entity_id = $2 AND is_deleted = FALSE
		 ORDER BY created_at DESC`, tenantID, entityID)
	if err != nil {
		return nil, fmt.Errorf("list compliance checks: %w", err)
	}
	defer rows.Close()

	var checks []*domain.ComplianceCheck
	for rows.Next() {
		c, err := scanComplianceCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (q *Queries) SaveComplianceCheck(ctx context.Context, c *domain.ComplianceCheck) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE compliance_checks SET
			version = version + 1,
			status = $3,
			risk_score = $4,
			notes = $5,
			reviewed_by = $6,
			reviewed_at = $7,
			updated_at = $8,
			updated_by = $9,
			is_deleted = $10
		WHERE id = $1 AND version = $2 AND is_deleted = FALSE`,
		c.ID, c.Version,
		string(c.Status), c.RiskScore, c.Notes, c.ReviewedBy, c.ReviewedAt,
		c.UpdatedAt, c.UpdatedBy, c.IsDeleted)
	if err != nil {
		return fmt.Errorf("update compliance check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	if err := q.insertOutboxEvents(ctx, c.ID, c.PullEvents()); err != nil {
		return err
	}
	c.Version++
	return nil
}

func scanComplianceCheck(row pgx.Row) (*domain.ComplianceCheck, error) {
	var (
		c                 domain.ComplianceCheck
		checkType, status string
	)
	err := row.Scan(
		&c.ID, &c.Version, &c.TenantID, &c.EntityID, &c.EntityType, &checkType, &status,
		&c.RiskScore, &c.Notes, &c.ReviewedBy, &c.ReviewedAt,
		&c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy, &c.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan compliance check: %w", err)
	}
	c.CheckType = domain.ComplianceCheckType(checkType)
	c.Status = domain.ComplianceStatus(status)
	return &c, nil
}
