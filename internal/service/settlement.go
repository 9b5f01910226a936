package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/observability"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementService executes pending transfers. It consumes transaction
// created events off the bus, so delivery is at-least-once and Settle must be
// idempotent: a settled transaction is skipped, and one stranded in
// Processing by a crashed consumer is resumed from its audit trail.
//
// Each step runs in its own local transaction touching one account at most.
// Cross-account consistency is eventual; a credit failure after a successful
// debit is undone by a compensating credit back to the source.
type SettlementService struct {
	store QueryStore
	audit *AuditService
	actor string
}

func NewSettlementService(store QueryStore, actor string) *SettlementService {
	return &SettlementService{
		store: store,
		audit: NewAuditService(store),
		actor: actor,
	}
}

// Settle drives one transfer from Pending to Completed or Failed. Redelivery
// of an already settled transaction is a no-op. A transaction found in
// Processing was claimed by a delivery that crashed mid-flight; the audit
// trail shows which legs ran, and settlement resumes from there.
func (s *SettlementService) Settle(ctx context.Context, transactionID uuid.UUID) error {
	claimed, resumed, txn, err := s.claim(ctx, transactionID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	needDebit := true
	if resumed {
		debitHolds, credited, err := s.resumeState(ctx, txn)
		if err != nil {
			return err
		}
		if credited {
			if err := s.complete(ctx, transactionID); err != nil {
				return err
			}
			observability.IncrementSettlement("completed")
			return nil
		}
		needDebit = !debitHolds
	}

	if needDebit {
		if err := s.debitSource(ctx, txn); err != nil {
			if isSettlementRejection(err) {
				observability.IncrementSettlement("rejected")
				return s.fail(ctx, transactionID, err.Error())
			}
			observability.IncrementSettlement("error")
			return err
		}
	}

	if err := s.creditDestination(ctx, txn); err != nil {
		if compErr := s.compensateSource(ctx, txn); compErr != nil {
			// The debit stands until the event is redelivered or an operator
			// steps in; both sides of the failure are on the audit trail.
			observability.IncrementSettlement("compensation_failed")
			return fmt.Errorf("credit failed (%v), compensation failed: %w", err, compErr)
		}
		if isSettlementRejection(err) {
			observability.IncrementSettlement("rejected")
			return s.fail(ctx, transactionID, err.Error())
		}
		observability.IncrementSettlement("error")
		return err
	}

	if err := s.complete(ctx, transactionID); err != nil {
		return err
	}
	observability.IncrementSettlement("completed")
	return nil
}

// claim moves the transaction from Pending to Processing under a row lock.
// A transaction already in Processing is claimed for resumption; redelivery
// only reaches here after the original consumer's pending entry went idle.
// Terminal statuses return unclaimed so the event can be acknowledged.
func (s *SettlementService) claim(ctx context.Context, transactionID uuid.UUID) (bool, bool, *domain.Transaction, error) {
	var (
		claimed bool
		resumed bool
		txn     *domain.Transaction
	)
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var err error
		txn, err = q.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		switch txn.Status {
		case domain.TxStatusPending:
		case domain.TxStatusProcessing:
			claimed = true
			resumed = true
			return s.audit.Write(ctx, q, txn.TenantID, "transaction", txn.ID, s.actor, "settlement_resumed",
				string(domain.TxStatusProcessing), string(domain.TxStatusProcessing), nil)
		default:
			zap.L().Debug("settlement skipped, transaction already settled",
				zap.String("transaction_id", transactionID.String()),
				zap.String("status", string(txn.Status)))
			return nil
		}
		if err := txn.Process(s.actor); err != nil {
			return err
		}
		if err := q.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		claimed = true
		return s.audit.Write(ctx, q, txn.TenantID, "transaction", txn.ID, s.actor, "settlement_started",
			string(domain.TxStatusPending), string(domain.TxStatusProcessing), nil)
	})
	if err != nil {
		return false, false, nil, err
	}
	return claimed, resumed, txn, nil
}

// resumeState reads the audit trail to find how far a crashed delivery got.
// debitHolds means the source was debited and the debit was not compensated;
// credited means the destination already received the funds.
func (s *SettlementService) resumeState(ctx context.Context, txn *domain.Transaction) (debitHolds, credited bool, err error) {
	q := s.store.Queries()
	debited, err := q.HasAuditAction(ctx, "account", txn.SourceAccountID, "transfer_debit", txn.Reference)
	if err != nil {
		return false, false, err
	}
	compensated, err := q.HasAuditAction(ctx, "account", txn.SourceAccountID, "transfer_compensation", txn.Reference)
	if err != nil {
		return false, false, err
	}
	credited, err = q.HasAuditAction(ctx, "account", *txn.DestinationAccountID, "transfer_credit", txn.Reference)
	if err != nil {
		return false, false, err
	}
	return debited && !compensated, credited, nil
}

func (s *SettlementService) debitSource(ctx context.Context, txn *domain.Transaction) error {
	return s.store.RunInTx(ctx, func(q *repository.Queries) error {
		acc, err := q.GetAccountForUpdate(ctx, txn.SourceAccountID)
		if err != nil {
			return err
		}
		if err := acc.Withdraw(txn.Amount, s.actor); err != nil {
			return err
		}
		if err := q.SaveAccount(ctx, acc); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, acc.TenantID, "account", acc.ID, s.actor, "transfer_debit", "", "", auditMetadata(map[string]any{
			"reference": txn.Reference,
			"amount":    txn.Amount.String(),
		}))
	})
}

func (s *SettlementService) creditDestination(ctx context.Context, txn *domain.Transaction) error {
	return s.store.RunInTx(ctx, func(q *repository.Queries) error {
		acc, err := q.GetAccountForUpdate(ctx, *txn.DestinationAccountID)
		if err != nil {
			return err
		}
		if err := acc.Deposit(txn.Amount, s.actor); err != nil {
			return err
		}
		if err := q.SaveAccount(ctx, acc); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, acc.TenantID, "account", acc.ID, s.actor, "transfer_credit", "", "", auditMetadata(map[string]any{
			"reference": txn.Reference,
			"amount":    txn.Amount.String(),
		}))
	})
}

// compensateSource returns the debited amount after a failed credit.
func (s *SettlementService) compensateSource(ctx context.Context, txn *domain.Transaction) error {
	return s.store.RunInTx(ctx, func(q *repository.Queries) error {
		acc, err := q.GetAccountForUpdate(ctx, txn.SourceAccountID)
		if err != nil {
			return err
		}
		if err := acc.Deposit(txn.Amount, s.actor); err != nil {
			return err
		}
		if err := q.SaveAccount(ctx, acc); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, acc.TenantID, "account", acc.ID, s.actor, "transfer_compensation", "", "", auditMetadata(map[string]any{
			"reference": txn.Reference,
			"amount":    txn.Amount.String(),
		}))
	})
}

func (s *SettlementService) complete(ctx context.Context, transactionID uuid.UUID) error {
	return s.store.RunInTx(ctx, func(q *repository.Queries) error {
		txn, err := q.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := txn.Complete(s.actor); err != nil {
			return err
		}
		if err := q.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, txn.TenantID, "transaction", txn.ID, s.actor, "settlement_completed",
			string(domain.TxStatusProcessing), string(domain.TxStatusCompleted), nil)
	})
}

func (s *SettlementService) fail(ctx context.Context, transactionID uuid.UUID, reason string) error {
	return s.store.RunInTx(ctx, func(q *repository.Queries) error {
		txn, err := q.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		prev := string(txn.Status)
		if err := txn.Fail(reason, s.actor); err != nil {
			return err
		}
		if err := q.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, txn.TenantID, "transaction", txn.ID, s.actor, "settlement_failed",
			prev, string(domain.TxStatusFailed), auditMetadata(map[string]any{"reason": reason}))
	})
}

// isSettlementRejection tells business rejections (fail the transfer) apart
// from infrastructure errors (leave Pending work for redelivery).
func isSettlementRejection(err error) bool {
	return errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrAccountNotActive) ||
		errors.Is(err, domain.ErrCurrencyMismatch) ||
		errors.Is(err, domain.ErrNotFound)
}
