package service

import (
	"context"
	"time"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/google/uuid"
)

// LoanService handles origination, disbursement and repayment. Disbursement
// credits the linked account and repayment debits it, each in one transaction
// together with the loan, since both rows live in the same ledger database.
type LoanService struct {
	store QueryStore
	audit *AuditService
}

func NewLoanService(store QueryStore) *LoanService {
	return &LoanService{
		store: store,
		audit: NewAuditService(store),
	}
}

type OriginateLoanCmd struct {
	TenantID    string
	CustomerID  string
	AccountID   uuid.UUID
	ProductCode string
	Principal   domain.Money
	TermMonths  int
	Actor       string
}

// OriginateLoan creates a Pending loan priced from the product's interest
// rate. The linked account's balance must fall inside the product's band.
func (s *LoanService) OriginateLoan(ctx context.Context, cmd OriginateLoanCmd) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		product, err := q.GetProductByCode(ctx, cmd.TenantID, cmd.ProductCode)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return domain.NewError(domain.ErrProductNotActive, "product %s is not active", product.ProductCode)
		}
		account, err := q.GetAccount(ctx, cmd.AccountID)
		if err != nil {
			return err
		}
		// The linked account must belong to the caller's tenant. Answer
		// NotFound so foreign account ids are indistinguishable from
		// missing ones.
		if account.TenantID != cmd.TenantID {
			return domain.NewError(domain.ErrNotFound, "account %s not found", cmd.AccountID)
		}
		if account.Status != domain.AccountStatusActive {
			return domain.NewError(domain.ErrAccountNotActive, "account is %s", account.Status)
		}
		if !product.IsEligible(account.Balance.Amount()) {
			return domain.NewError(domain.ErrNotEligible, "account balance %s is outside the product band", account.Balance)
		}

		loan, err = domain.NewLoan(cmd.TenantID, cmd.CustomerID, cmd.AccountID, product.ID, cmd.Principal, product.InterestRate, cmd.TermMonths, cmd.Actor)
		if err != nil {
			return err
		}
		if err := q.CreateLoan(ctx, loan); err != nil {
			if repository.IsUniqueViolation(err, "loans_loan_number_key") {
				return domain.NewError(domain.ErrAlreadyExists, "loan number %s already exists", loan.LoanNumber)
			}
			return err
		}
		return s.audit.Write(ctx, q, loan.TenantID, "loan", loan.ID, cmd.Actor, "loan_originated", "", string(loan.Status), auditMetadata(map[string]any{
			"loan_number": loan.LoanNumber,
			"principal":   loan.PrincipalAmount.String(),
		}))
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *LoanService) ApproveLoan(ctx context.Context, loanID uuid.UUID, disbursementDate time.Time, actor string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var err error
		loan, err = q.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		prev := string(loan.Status)
		if err := loan.Approve(disbursementDate, actor); err != nil {
			return err
		}
		if err := q.SaveLoan(ctx, loan); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, loan.TenantID, "loan", loan.ID, actor, "loan_approved", prev, string(loan.Status), nil)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// DisburseLoan activates the loan and credits the principal to the linked
// account.
func (s *LoanService) DisburseLoan(ctx context.Context, loanID uuid.UUID, actor string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var err error
		loan, err = q.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		prev := string(loan.Status)
		if err := loan.Disburse(actor); err != nil {
			return err
		}

		account, err := q.GetAccountForUpdate(ctx, loan.AccountID)
		if err != nil {
			return err
		}
		if err := account.Deposit(loan.PrincipalAmount, actor); err != nil {
			return err
		}

		if err := q.SaveLoan(ctx, loan); err != nil {
			return err
		}
		if err := q.SaveAccount(ctx, account); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, loan.TenantID, "loan", loan.ID, actor, "loan_disbursed", prev, string(loan.Status), auditMetadata(map[string]any{
			"loan_number": loan.LoanNumber,
			"amount":      loan.PrincipalAmount.String(),
		}))
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// MakeLoanPayment withdraws the payment from the linked account and applies
// it to the loan balance.
func (s *LoanService) MakeLoanPayment(ctx context.Context, loanID uuid.UUID, amount domain.Money, actor string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var err error
		loan, err = q.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		prev := string(loan.Status)

		// The loan clamps the final installment to the outstanding balance;
		// withdraw the clamped amount so the account matches.
		over, err := amount.GreaterThan(loan.OutstandingBalance)
		if err != nil {
			return err
		}
		if over {
			amount = loan.OutstandingBalance
		}

		account, err := q.GetAccountForUpdate(ctx, loan.AccountID)
		if err != nil {
			return err
		}
		if err := account.Withdraw(amount, actor); err != nil {
			return err
		}
		if err := loan.MakePayment(amount, actor); err != nil {
			return err
		}

		if err := q.SaveAccount(ctx, account); err != nil {
			return err
		}
		if err := q.SaveLoan(ctx, loan); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, loan.TenantID, "loan", loan.ID, actor, "loan_payment", prev, string(loan.Status), auditMetadata(map[string]any{
			"loan_number": loan.LoanNumber,
			"amount":      amount.String(),
		}))
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *LoanService) MarkLoanDefaulted(ctx context.Context, loanID uuid.UUID, reason, actor string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var err error
		loan, err = q.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		prev := string(loan.Status)
		loan.MarkDefaulted(reason, actor)
		if err := q.SaveLoan(ctx, loan); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, loan.TenantID, "loan", loan.ID, actor, "loan_defaulted", prev, string(loan.Status), auditMetadata(map[string]any{"reason": reason}))
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *LoanService) WriteOffLoan(ctx context.Context, loanID uuid.UUID, actor string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var err error
		loan, err = q.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		prev := string(loan.Status)
		if err := loan.WriteOff(actor); err != nil {
			return err
		}
		if err := q.SaveLoan(ctx, loan); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, loan.TenantID, "loan", loan.ID, actor, "loan_written_off", prev, string(loan.Status), nil)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	return s.store.Queries().GetLoan(ctx, loanID)
}

func (s *LoanService) ListLoansForAccount(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]*domain.Loan, error) {
	limit, offset := pagination(page, pageSize)
	return s.store.Queries().ListLoansForAccount(ctx, accountID, limit, offset)
}
