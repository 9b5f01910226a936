package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `
	id, version, reference, tenant_id, type, source_account_id, destination_account_id,
	amount::text, currency, status, description, failure_reason, processed_at, processed_by,
	created_at, updated_at, created_by, updated_by, is_deleted`

// CreateTransaction inserts a new transfer and its pending events.
func (q *Queries) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO transactions (
			id, version, reference, tenant_id, type, source_account_id, destination_account_id,
			amount, currency, status, description, failure_reason, processed_at, processed_by,
			created_at, updated_at, created_by, updated_by, is_deleted
		) VALUES ($1, 1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		txn.ID, txn.Reference, txn.TenantID, string(txn.Type),
		txn.SourceAccountID, txn.DestinationAccountID,
		txn.Amount.Amount().StringFixed(2), txn.Amount.Currency(), string(txn.Status),
		txn.Description, txn.FailureReason, txn.ProcessedAt, txn.ProcessedBy,
		txn.CreatedAt, txn.UpdatedAt, txn.CreatedBy, txn.UpdatedBy, txn.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if err := q.insertOutboxEvents(ctx, txn.ID, txn.PullEvents()); err != nil {
		return err
	}
	txn.Version = 1
	return nil
}

func (q *Queries) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND is_deleted = FALSE`, id)
	return scanTransaction(row)
}

func (q *Queries) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`, id)
	return scanTransaction(row)
}

// GetTransactionByReference resolves the globally unique reference.
func (q *Queries) GetTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1 AND is_deleted = FALSE`, reference)
	return scanTransaction(row)
}

// SaveTransaction writes field state plus events with a version check.
// The reference never changes after creation and is not part of the update.
func (q *Queries) SaveTransaction(ctx context.Context, txn *domain.Transaction) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE transactions SET
			version = version + 1,
			status = $3,
			failure_reason = $4,
			processed_at = $5,
			processed_by = $6,
			updated_at = $7,
			updated_by = $8,
			is_deleted = $9
		WHERE id = $1 AND version = $2 AND is_deleted = FALSE`,
		txn.ID, txn.Version,
		string(txn.Status), txn.FailureReason, txn.ProcessedAt, txn.ProcessedBy,
		txn.UpdatedAt, txn.UpdatedBy, txn.IsDeleted)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	if err := q.insertOutboxEvents(ctx, txn.ID, txn.PullEvents()); err != nil {
		return err
	}
	txn.Version++
	return nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn              domain.Transaction
		txType, status   string
		amount, currency string
	)
	err := row.Scan(
		&txn.ID, &txn.Version, &txn.Reference, &txn.TenantID, &txType,
		&txn.SourceAccountID, &txn.DestinationAccountID,
		&amount, &currency, &status, &txn.Description, &txn.FailureReason,
		&txn.ProcessedAt, &txn.ProcessedBy,
		&txn.CreatedAt, &txn.UpdatedAt, &txn.CreatedBy, &txn.UpdatedBy, &txn.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	txn.Type = domain.TransactionType(txType)
	txn.Status = domain.TransactionStatus(status)
	if txn.Amount, err = domain.NewMoneyFromString(amount, currency); err != nil {
		return nil, fmt.Errorf("transaction amount: %w", err)
	}
	return &txn, nil
}
