package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const loanColumns = `
	id, version, loan_number, tenant_id, customer_id, account_id, product_id,
	principal_amount::text, outstanding_balance::text, currency, interest_rate::text,
	term_months, remaining_months, monthly_payment::text,
	disbursement_date, maturity_date, next_payment_date, status,
	created_at, updated_at, created_by, updated_by, is_deleted`

func (q *Queries) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO loans (
			id, version, loan_number, tenant_id, customer_id, account_id, product_id,
			principal_amount, outstanding_balance, currency, interest_rate,
			term_months, remaining_months, monthly_payment,
			disbursement_date, maturity_date, next_payment_date, status,
			created_at, updated_at, created_by, updated_by, is_deleted
		) VALUES ($1, 1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10::numeric,
			$11, $12, $13::numeric, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		loan.ID, loan.LoanNumber, loan.TenantID, loan.CustomerID, loan.AccountID, loan.ProductID,
		loan.PrincipalAmount.Amount().StringFixed(2), loan.OutstandingBalance.Amount().StringFixed(2),
		loan.PrincipalAmount.Currency(), loan.InterestRate.String(),
		loan.TermMonths, loan.RemainingMonths, loan.MonthlyPayment.Amount().StringFixed(2),
		loan.DisbursementDate, loan.MaturityDate, loan.NextPaymentDate, string(loan.Status),
		loan.CreatedAt, loan.UpdatedAt, loan.CreatedBy, loan.UpdatedBy, loan.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	if err := q.insertOutboxEvents(ctx, loan.ID, loan.PullEvents()); err != nil {
		return err
	}
	loan.Version = 1
	return nil
}

func (q *Queries) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1 AND is_deleted = FALSE`, id)
	return scanLoan(row)
}

func (q *Queries) GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`, id)
	return scanLoan(row)
}

func (q *Queries) SaveLoan(ctx context.Context, loan *domain.Loan) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE loans SET
			version = version + 1,
			outstanding_balance = $3::numeric,
			remaining_months = $4,
			disbursement_date = $5,
			maturity_date = $6,
			next_payment_date = $7,
			status = $8,
			updated_at = $9,
			updated_by = $10,
			is_deleted = $11
		WHERE id = $1 AND version = $2 AND is_deleted = FALSE`,
		loan.ID, loan.Version,
		loan.OutstandingBalance.Amount().StringFixed(2), loan.RemainingMonths,
		loan.DisbursementDate, loan.MaturityDate, loan.NextPaymentDate, string(loan.Status),
		loan.UpdatedAt, loan.UpdatedBy, loan.IsDeleted)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	if err := q.insertOutboxEvents(ctx, loan.ID, loan.PullEvents()); err != nil {
		return err
	}
	loan.Version++
	return nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		loan                            domain.Loan
		principal, outstanding, payment string
		currency, rate, status          string
	)
	err := row.Scan(
		&loan.ID, &loan.Version, &loan.LoanNumber, &loan.TenantID, &loan.CustomerID,
		&loan.AccountID, &loan.ProductID,
		&principal, &outstanding, &currency, &rate,
		&loan.TermMonths, &loan.RemainingMonths, &payment,
		&loan.DisbursementDate, &loan.MaturityDate, &loan.NextPaymentDate, &status,
		&loan.CreatedAt, &loan.UpdatedAt, &loan.CreatedBy, &loan.UpdatedBy, &loan.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan loan: %w", err)
	}

	loan.Status = domain.LoanStatus(status)
	if loan.PrincipalAmount, err = domain.NewMoneyFromString(principal, currency); err != nil {
		return nil, fmt.Errorf("loan principal: %w", err)
	}
	if loan.OutstandingBalance, err = domain.NewMoneyFromString(outstanding, currency); err != nil {
		return nil, fmt.Errorf("loan outstanding balance: %w", err)
	}
	if loan.MonthlyPayment, err = domain.NewMoneyFromString(payment, currency); err != nil {
		return nil, fmt.Errorf("loan monthly payment: %w", err)
	}
	if loan.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("loan interest rate: %w", err)
	}
	return &loan, nil
}
