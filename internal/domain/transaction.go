package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus enumerates the transfer lifecycle states.
type TransactionStatus string

const (
	TxStatusPending    TransactionStatus = "PENDING"
	TxStatusProcessing TransactionStatus = "PROCESSING"
	TxStatusCompleted  TransactionStatus = "COMPLETED"
	TxStatusFailed     TransactionStatus = "FAILED"
	TxStatusReversed   TransactionStatus = "REVERSED"
)

// TransactionType classifies money movements.
type TransactionType string

const (
	TxTypeDeposit    TransactionType = "DEPOSIT"
	TxTypeWithdrawal TransactionType = "WITHDRAWAL"
	TxTypeTransfer   TransactionType = "TRANSFER"
	TxTypeFee        TransactionType = "FEE"
	TxTypeInterest   TransactionType = "INTEREST"
	TxTypeReversal   TransactionType = "REVERSAL"
)

// transactionTransitions is the forward-only transition table. Fail is not
// listed here; it is legal from any non-terminal state.
var transactionTransitions = map[TransactionStatus]map[TransactionStatus]struct{}{
	TxStatusPending: {
		TxStatusProcessing: {},
	},
	TxStatusProcessing: {
		TxStatusCompleted: {},
	},
	TxStatusCompleted: {},
	TxStatusFailed:    {},
	TxStatusReversed:  {},
}

func (s TransactionStatus) canTransition(next TransactionStatus) bool {
	allowed, ok := transactionTransitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}

func (s TransactionStatus) terminal() bool {
	return s == TxStatusCompleted || s == TxStatusFailed || s == TxStatusReversed
}

// Transaction records the intent and outcome of a money movement. It never
// mutates account balances itself; settlement happens downstream by whoever
// consumes its events.
type Transaction struct {
	Aggregate

	Reference            string            `json:"reference"`
	TenantID             string            `json:"tenant_id"`
	Type                 TransactionType   `json:"type"`
	SourceAccountID      uuid.UUID         `json:"source_account_id"`
	DestinationAccountID *uuid.UUID        `json:"destination_account_id,omitempty"`
	Amount               Money             `json:"amount"`
	Status               TransactionStatus `json:"status"`
	Description          string            `json:"description"`
	FailureReason        *string           `json:"failure_reason,omitempty"`
	ProcessedAt          *time.Time        `json:"processed_at,omitempty"`
	ProcessedBy          string            `json:"processed_by"`
}

type TransactionCreated struct {
	Meta
	TransactionID        uuid.UUID  `json:"transaction_id"`
	Reference            string     `json:"reference"`
	SourceAccountID      uuid.UUID  `json:"source_account_id"`
	DestinationAccountID *uuid.UUID `json:"destination_account_id,omitempty"`
	Amount               Money      `json:"amount"`
}

func (TransactionCreated) EventName() string { return "transaction.created" }

type TransactionProcessing struct {
	Meta
	TransactionID uuid.UUID `json:"transaction_id"`
	Reference     string    `json:"reference"`
}

func (TransactionProcessing) EventName() string { return "transaction.processing" }

type TransactionCompleted struct {
	Meta
	TransactionID uuid.UUID `json:"transaction_id"`
	Reference     string    `json:"reference"`
	Amount        Money     `json:"amount"`
}

func (TransactionCompleted) EventName() string { return "transaction.completed" }

type TransactionFailed struct {
	Meta
	TransactionID uuid.UUID `json:"transaction_id"`
	Reference     string    `json:"reference"`
	Reason        string    `json:"reason"`
}

func (TransactionFailed) EventName() string { return "transaction.failed" }

// NewTransfer creates a Pending transfer between two accounts, identified by
// a globally unique reference.
func NewTransfer(tenantID string, sourceAccountID, destinationAccountID uuid.UUID, amount Money, description, createdBy string) (*Transaction, error) {
	if tenantID == "" {
		return nil, newError(ErrInvalidArgument, "tenant id is required")
	}
	if sourceAccountID == uuid.Nil {
		return nil, newError(ErrInvalidArgument, "source account id is required")
	}
	if destinationAccountID == uuid.Nil {
		return nil, newError(ErrInvalidArgument, "destination account id is required")
	}
	if sourceAccountID == destinationAccountID {
		return nil, newError(ErrInvalidArgument, "cannot transfer to the same account")
	}
	if amount.IsZero() {
		return nil, newError(ErrInvalidAmount, "transfer amount must be positive")
	}

	dest := destinationAccountID
	txn := &Transaction{
		Aggregate:            newAggregate(createdBy),
		Reference:            generateTransactionReference(),
		TenantID:             tenantID,
		Type:                 TxTypeTransfer,
		SourceAccountID:      sourceAccountID,
		DestinationAccountID: &dest,
		Amount:               amount,
		Status:               TxStatusPending,
		Description:          description,
	}
	txn.record(TransactionCreated{
		Meta:                 newMeta(),
		TransactionID:        txn.ID,
		Reference:            txn.Reference,
		SourceAccountID:      sourceAccountID,
		DestinationAccountID: txn.DestinationAccountID,
		Amount:               amount,
	})
	return txn, nil
}

// Process moves a Pending transaction to Processing.
func (t *Transaction) Process(processedBy string) error {
	if !t.Status.canTransition(TxStatusProcessing) {
		return newError(ErrIllegalStateTransition, "only pending transactions can be processed, transaction is %s", t.Status)
	}
	t.Status = TxStatusProcessing
	t.ProcessedBy = processedBy
	t.touch(processedBy)
	t.record(TransactionProcessing{Meta: newMeta(), TransactionID: t.ID, Reference: t.Reference})
	return nil
}

// Complete moves a Processing transaction to Completed.
func (t *Transaction) Complete(completedBy string) error {
	if !t.Status.canTransition(TxStatusCompleted) {
		return newError(ErrIllegalStateTransition, "only processing transactions can be completed, transaction is %s", t.Status)
	}
	now := time.Now().UTC()
	t.Status = TxStatusCompleted
	t.ProcessedAt = &now
	t.ProcessedBy = completedBy
	t.touch(completedBy)
	t.record(TransactionCompleted{Meta: newMeta(), TransactionID: t.ID, Reference: t.Reference, Amount: t.Amount})
	return nil
}

// Fail records the failure reason. Legal from any non-terminal state.
func (t *Transaction) Fail(reason, failedBy string) error {
	if t.Status.terminal() {
		return newError(ErrIllegalStateTransition, "transaction is already %s", t.Status)
	}
	now := time.Now().UTC()
	t.Status = TxStatusFailed
	t.FailureReason = &reason
	t.ProcessedAt = &now
	t.ProcessedBy = failedBy
	t.touch(failedBy)
	t.record(TransactionFailed{Meta: newMeta(), TransactionID: t.ID, Reference: t.Reference, Reason: reason})
	return nil
}

func generateTransactionReference() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TXN%s%s", time.Now().UTC().Format("20060102150405"), suffix)
}
