package repository

import (
	"context"
	"fmt"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/google/uuid"
)

// List queries back the read side of the API. They page with LIMIT/OFFSET and
// always filter soft-deleted rows.

func (q *Queries) ListAccounts(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.Account, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE tenant_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
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

func (q *Queries) GetAccountByNumber(ctx context.Context, tenantID, accountNumber string) (*domain.Account, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE tenant_id = $1 AND account_number = $2 AND is_deleted = FALSE`, tenantID, accountNumber)
	return scanAccount(row)
}

// ListTransactionsForAccount returns transactions touching the account on
// either side, newest first.
func (q *Queries) ListTransactionsForAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]*domain.Transaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE (source_account_id = $1 OR destination_account_id = $1) AND is_deleted = FALSE
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (q *Queries) ListLoansForAccount(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]*domain.Loan, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE account_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func (q *Queries) ListProducts(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.FinancialProduct, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE tenant_id = $1 AND is_deleted = FALSE
		ORDER BY product_code
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*domain.FinancialProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
