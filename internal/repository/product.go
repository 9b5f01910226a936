package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const productColumns = `
	id, version, tenant_id, product_code, product_name, product_type, description,
	interest_rate::text, minimum_balance::text, maximum_balance::text,
	monthly_fee::text, currency, term_months, is_active, features,
	created_at, updated_at, created_by, updated_by, is_deleted`

func (q *Queries) CreateProduct(ctx context.Context, p *domain.FinancialProduct) error {
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("marshal product features: %w", err)
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO products (
			id, version, tenant_id, product_code, product_name, product_type, description,
			interest_rate, minimum_balance, maximum_balance, monthly_fee, currency,
			term_months, is_active, features,
			created_at, updated_at, created_by, updated_by, is_deleted
		) VALUES ($1, 1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric,
			$10::numeric, $11, $12, $13, $14::jsonb, $15, $16, $17, $18, $19)`,
		p.ID, p.TenantID, p.ProductCode, p.ProductName, string(p.ProductType), p.Description,
		p.InterestRate.String(), p.MinimumBalance.String(), p.MaximumBalance.String(),
		p.MonthlyFee.Amount().StringFixed(2), p.MonthlyFee.Currency(),
		p.TermMonths, p.IsActive, string(features),
		p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy, p.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	if err := q.insertOutboxEvents(ctx, p.ID, p.PullEvents()); err != nil {
		return err
	}
	p.Version = 1
	return nil
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (*domain.FinancialProduct, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND is_deleted = FALSE`, id)
	return scanProduct(row)
}

func (q *Queries) GetProductForUpdate(ctx context.Context, id uuid.UUID) (*domain.FinancialProduct, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`, id)
	return scanProduct(row)
}

// GetProductByCode resolves a product via its per-tenant unique code.
func (q *Queries) GetProductByCode(ctx context.Context, tenantID, productCode string) (*domain.FinancialProduct, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE tenant_id = $1 AND product_code = $2 AND is_deleted = FALSE`, tenantID, productCode)
	return scanProduct(row)
}

func (q *Queries) SaveProduct(ctx context.Context, p *domain.FinancialProduct) error {
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("marshal product features: %w", err)
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE products SET
			version = version + 1,
			interest_rate = $3::numeric,
			monthly_fee = $4::numeric,
			currency = $5,
			is_active = $6,
			features = $7::jsonb,
			updated_at = $8,
			updated_by = $9,
			is_deleted = $10
		WHERE id = $1 AND version = $2 AND is_deleted = FALSE`,
		p.ID, p.Version,
		p.InterestRate.String(), p.MonthlyFee.Amount().StringFixed(2), p.MonthlyFee.Currency(),
		p.IsActive, string(features),
		p.UpdatedAt, p.UpdatedBy, p.IsDeleted)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	if err := q.insertOutboxEvents(ctx, p.ID, p.PullEvents()); err != nil {
		return err
	}
	p.Version++
	return nil
}

func scanProduct(row pgx.Row) (*domain.FinancialProduct, error) {
	var (
		p                    domain.FinancialProduct
		productType          string
		rate, minBal, maxBal string
		fee, currency        string
		features             []byte
	)
	err := row.Scan(
		&p.ID, &p.Version, &p.TenantID, &p.ProductCode, &p.ProductName, &productType, &p.Description,
		&rate, &minBal, &maxBal, &fee, &currency, &p.TermMonths, &p.IsActive, &features,
		&p.CreatedAt, &p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy, &p.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	p.ProductType = domain.ProductType(productType)
	if p.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("product interest rate: %w", err)
	}
	if p.MinimumBalance, err = decimal.NewFromString(minBal); err != nil {
		return nil, fmt.Errorf("product minimum balance: %w", err)
	}
	if p.MaximumBalance, err = decimal.NewFromString(maxBal); err != nil {
		return nil, fmt.Errorf("product maximum balance: %w", err)
	}
	if p.MonthlyFee, err = domain.NewMoneyFromString(fee, currency); err != nil {
		return nil, fmt.Errorf("product monthly fee: %w", err)
	}
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, fmt.Errorf("unmarshal product features: %w", err)
	}
	return &p, nil
}
