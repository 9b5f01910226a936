package service

import (
	"context"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/google/uuid"
)

// TransferService accepts transfer requests. It only validates and records
// the intent; no balance moves here. Settlement happens asynchronously when
// the SettlementService consumes the created event, so both accounts are
// never touched in one database transaction.
type TransferService struct {
	store QueryStore
	audit *AuditService
}

func NewTransferService(store QueryStore) *TransferService {
	return &TransferService{
		store: store,
		audit: NewAuditService(store),
	}
}

type InitiateTransferCmd struct {
	TenantID             string
	SourceAccountID      uuid.UUID
	DestinationAccountID uuid.UUID
	Amount               domain.Money
	Description          string
	Actor                string
}

func (s *TransferService) InitiateTransfer(ctx context.Context, cmd InitiateTransferCmd) (*domain.Transaction, error) {
	txn, err := domain.NewTransfer(cmd.TenantID, cmd.SourceAccountID, cmd.DestinationAccountID, cmd.Amount, cmd.Description, cmd.Actor)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(q *repository.Queries) error {
		source, err := q.GetAccount(ctx, cmd.SourceAccountID)
		if err != nil {
			return err
		}
		dest, err := q.GetAccount(ctx, cmd.DestinationAccountID)
		if err != nil {
			return err
		}

		// Both accounts must belong to the caller's tenant. Answer NotFound
		// so foreign account ids are indistinguishable from missing ones.
		if source.TenantID != cmd.TenantID {
			return domain.NewError(domain.ErrNotFound, "account %s not found", cmd.SourceAccountID)
		}
		if dest.TenantID != cmd.TenantID {
			return domain.NewError(domain.ErrNotFound, "account %s not found", cmd.DestinationAccountID)
		}

		// Upfront checks so obviously doomed transfers are rejected at the
		// API. They re-run under locks at settlement, which is the decision
		// that counts.
		if source.Status != domain.AccountStatusActive {
			return domain.NewError(domain.ErrAccountNotActive, "source account is %s", source.Status)
		}
		if dest.Status != domain.AccountStatusActive {
			return domain.NewError(domain.ErrAccountNotActive, "destination account is %s", dest.Status)
		}
		if source.Balance.Currency() != cmd.Amount.Currency() {
			return domain.NewError(domain.ErrCurrencyMismatch, "source account holds %s, transfer is %s", source.Balance.Currency(), cmd.Amount.Currency())
		}
		if dest.Balance.Currency() != cmd.Amount.Currency() {
			return domain.NewError(domain.ErrCurrencyMismatch, "destination account holds %s, transfer is %s", dest.Balance.Currency(), cmd.Amount.Currency())
		}
		short, err := source.AvailableBalance.LessThan(cmd.Amount)
		if err != nil {
			return err
		}
		if short {
			return domain.NewError(domain.ErrInsufficientFunds, "available balance %s is less than %s", source.AvailableBalance, cmd.Amount)
		}

		if err := q.CreateTransaction(ctx, txn); err != nil {
			if repository.IsUniqueViolation(err, "transactions_reference_key") {
				return domain.NewError(domain.ErrAlreadyExists, "transaction reference %s already exists", txn.Reference)
			}
			return err
		}
		return s.audit.Write(ctx, q, txn.TenantID, "transaction", txn.ID, cmd.Actor, "transfer_initiated", "", string(txn.Status), auditMetadata(map[string]any{
			"reference": txn.Reference,
			"amount":    txn.Amount.String(),
		}))
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *TransferService) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.store.Queries().GetTransaction(ctx, id)
}

func (s *TransferService) GetTransferByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return s.store.Queries().GetTransactionByReference(ctx, reference)
}
