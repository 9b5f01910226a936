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

const accountColumns = `
	id, version, account_number, customer_id, tenant_id, product_type,
	balance::text, available_balance::text, currency, status,
	interest_rate::text, last_interest_date,
	created_at, updated_at, created_by, updated_by, is_deleted`

// CreateAccount inserts a freshly opened account and its pending events.
func (q *Queries) CreateAccount(ctx context.Context, acc *domain.Account) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO accounts (
			id, version, account_number, customer_id, tenant_id, product_type,
			balance, available_balance, currency, status, interest_rate,
			last_interest_date, created_at, updated_at, created_by, updated_by, is_deleted
		) VALUES ($1, 1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10::numeric, $11, $12, $13, $14, $15, $16)`,
		acc.ID, acc.AccountNumber, acc.CustomerID, acc.TenantID, string(acc.ProductType),
		acc.Balance.Amount().StringFixed(2), acc.AvailableBalance.Amount().StringFixed(2),
		acc.Balance.Currency(), string(acc.Status), acc.InterestRate.String(),
		acc.LastInterestDate, acc.CreatedAt, acc.UpdatedAt, acc.CreatedBy, acc.UpdatedBy, acc.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if err := q.insertOutboxEvents(ctx, acc.ID, acc.PullEvents()); err != nil {
		return err
	}
	acc.Version = 1
	return nil
}

// GetAccount loads an account by id, skipping soft-deleted rows.
func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND is_deleted = FALSE`, id)
	return scanAccount(row)
}

// GetAccountForUpdate loads an account with a row lock, serializing
// concurrent operations against the same aggregate id.
func (q *Queries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`, id)
	return scanAccount(row)
}

// ListAccountsForInterest returns active interest-bearing accounts whose last
// interest run is older than the cutoff (or that never had one).
func (q *Queries) ListAccountsForInterest(ctx context.Context, olderThan int, limit int32) ([]*domain.Account, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE is_deleted = FALSE
		  AND status = $1
		  AND interest_rate > 0
		  AND (last_interest_date IS NULL OR last_interest_date < NOW() - make_interval(days => $2))
		ORDER BY last_interest_date NULLS FIRST
		LIMIT $3`,
		string(domain.AccountStatusActive), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts for interest: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// SaveAccount writes the account's field state and drains its events into the
// outbox in one shot. The version check enforces optimistic concurrency.
func (q *Queries) SaveAccount(ctx context.Context, acc *domain.Account) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE accounts SET
			version = version + 1,
			balance = $3::numeric,
			available_balance = $4::numeric,
			status = $5,
			interest_rate = $6::numeric,
			last_interest_date = $7,
			updated_at = $8,
			updated_by = $9,
			is_deleted = $10
		WHERE id = $1 AND version = $2 AND is_deleted = FALSE`,
		acc.ID, acc.Version,
		acc.Balance.Amount().StringFixed(2), acc.AvailableBalance.Amount().StringFixed(2),
		string(acc.Status), acc.InterestRate.String(), acc.LastInterestDate,
		acc.UpdatedAt, acc.UpdatedBy, acc.IsDeleted)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	if err := q.insertOutboxEvents(ctx, acc.ID, acc.PullEvents()); err != nil {
		return err
	}
	acc.Version++
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc                      domain.Account
		productType, status      string
		balance, available, rate string
		currency                 string
	)
	err := row.Scan(
		&acc.ID, &acc.Version, &acc.AccountNumber, &acc.CustomerID, &acc.TenantID, &productType,
		&balance, &available, &currency, &status, &rate, &acc.LastInterestDate,
		&acc.CreatedAt, &acc.UpdatedAt, &acc.CreatedBy, &acc.UpdatedBy, &acc.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	acc.ProductType = domain.ProductType(productType)
	acc.Status = domain.AccountStatus(status)
	if acc.Balance, err = domain.NewMoneyFromString(balance, currency); err != nil {
		return nil, fmt.Errorf("account balance: %w", err)
	}
	if acc.AvailableBalance, err = domain.NewMoneyFromString(available, currency); err != nil {
		return nil, fmt.Errorf("account available balance: %w", err)
	}
	if acc.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("account interest rate: %w", err)
	}
	return &acc, nil
}
