package service

import (
	"context"
	"fmt"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/observability"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountService owns the account lifecycle and balance operations. Every
// mutation runs in one transaction that commits the aggregate's new state,
// its domain events and an audit record together.
type AccountService struct {
	store QueryStore
	audit *AuditService
}

func NewAccountService(store QueryStore) *AccountService {
	return &AccountService{
		store: store,
		audit: NewAuditService(store),
	}
}

type OpenAccountCmd struct {
	TenantID     string
	CustomerID   string
	ProductType  domain.ProductType
	Currency     string
	InterestRate decimal.Decimal
	Actor        string
}

func (s *AccountService) OpenAccount(ctx context.Context, cmd OpenAccountCmd) (*domain.Account, error) {
	acc, err := domain.NewAccount(cmd.CustomerID, cmd.TenantID, cmd.ProductType, cmd.Currency, cmd.InterestRate, cmd.Actor)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(q *repository.Queries) error {
		if err := q.CreateAccount(ctx, acc); err != nil {
			if repository.IsUniqueViolation(err, "accounts_account_number_key") {
				return domain.NewError(domain.ErrAlreadyExists, "account number %s already exists", acc.AccountNumber)
			}
			return err
		}
		return s.audit.Write(ctx, q, acc.TenantID, "account", acc.ID, cmd.Actor, "account_opened", "", string(acc.Status), nil)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *AccountService) ActivateAccount(ctx context.Context, accountID uuid.UUID, actor string) (*domain.Account, error) {
	return s.mutateAccount(ctx, accountID, actor, "account_activated", func(acc *domain.Account) error {
		return acc.Activate(actor)
	})
}

func (s *AccountService) Deposit(ctx context.Context, accountID uuid.UUID, amount domain.Money, actor string) (*domain.Account, error) {
	return s.mutateAccount(ctx, accountID, actor, "deposit", func(acc *domain.Account) error {
		return acc.Deposit(amount, actor)
	})
}

func (s *AccountService) Withdraw(ctx context.Context, accountID uuid.UUID, amount domain.Money, actor string) (*domain.Account, error) {
	return s.mutateAccount(ctx, accountID, actor, "withdrawal", func(acc *domain.Account) error {
		return acc.Withdraw(amount, actor)
	})
}

func (s *AccountService) FreezeAccount(ctx context.Context, accountID uuid.UUID, reason, actor string) (*domain.Account, error) {
	return s.mutateAccount(ctx, accountID, actor, "account_frozen", func(acc *domain.Account) error {
		acc.Freeze(reason, actor)
		return nil
	})
}

// mutateAccount loads the account under a row lock, applies op and saves. The
// lock serializes writers so the optimistic version check only fires when a
// caller held a stale copy across transactions.
func (s *AccountService) mutateAccount(ctx context.Context, accountID uuid.UUID, actor, action string, op func(*domain.Account) error) (*domain.Account, error) {
	var acc *domain.Account
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var err error
		acc, err = q.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		prev := string(acc.Status)
		if err := op(acc); err != nil {
			return err
		}
		if err := q.SaveAccount(ctx, acc); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, acc.TenantID, "account", acc.ID, actor, action, prev, string(acc.Status), nil)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.store.Queries().GetAccount(ctx, accountID)
}

func (s *AccountService) ListAccounts(ctx context.Context, tenantID string, page, pageSize int) ([]*domain.Account, error) {
	limit, offset := pagination(page, pageSize)
	return s.store.Queries().ListAccounts(ctx, tenantID, limit, offset)
}

// GetStatement returns the account's transaction history, newest first.
func (s *AccountService) GetStatement(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]*domain.Transaction, error) {
	if _, err := s.store.Queries().GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	limit, offset := pagination(page, pageSize)
	return s.store.Queries().ListTransactionsForAccount(ctx, accountID, limit, offset)
}

// ApplyDueInterest credits one month of interest to active interest-bearing
// accounts whose last run is older than the cutoff. Each account commits in
// its own transaction, so one failure never rolls back the rest of the batch.
func (s *AccountService) ApplyDueInterest(ctx context.Context, olderThanDays int, batchSize int32, actor string) (int, error) {
	due, err := s.store.Queries().ListAccountsForInterest(ctx, olderThanDays, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list accounts due for interest: %w", err)
	}

	applied := 0
	for _, candidate := range due {
		accountID := candidate.ID
		err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
			acc, err := q.GetAccountForUpdate(ctx, accountID)
			if err != nil {
				return err
			}
			if err := acc.ApplyInterest(actor); err != nil {
				return err
			}
			if err := q.SaveAccount(ctx, acc); err != nil {
				return err
			}
			return s.audit.Write(ctx, q, acc.TenantID, "account", acc.ID, actor, "interest_applied", "", "", nil)
		})
		if err != nil {
			zap.L().Error("interest application failed",
				zap.String("account_id", accountID.String()), zap.Error(err))
			continue
		}
		observability.IncrementInterestApplied(candidate.Balance.Currency())
		applied++
	}
	return applied, nil
}

func pagination(page, pageSize int) (limit, offset int32) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return int32(pageSize), int32((page - 1) * pageSize)
}
