package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus enumerates the loan lifecycle states.
type LoanStatus string

const (
	LoanStatusPending    LoanStatus = "PENDING"
	LoanStatusApproved   LoanStatus = "APPROVED"
	LoanStatusActive     LoanStatus = "ACTIVE"
	LoanStatusPaidOff    LoanStatus = "PAID_OFF"
	LoanStatusDefaulted  LoanStatus = "DEFAULTED"
	LoanStatusWrittenOff LoanStatus = "WRITTEN_OFF"
)

// Loan is an amortizing loan. OutstandingBalance never exceeds
// PrincipalAmount and a zero outstanding balance implies PaidOff.
type Loan struct {
	Aggregate

	LoanNumber         string          `json:"loan_number"`
	TenantID           string          `json:"tenant_id"`
	CustomerID         string          `json:"customer_id"`
	AccountID          uuid.UUID       `json:"account_id"`
	ProductID          uuid.UUID       `json:"product_id"`
	PrincipalAmount    Money           `json:"principal_amount"`
	OutstandingBalance Money           `json:"outstanding_balance"`
	InterestRate       decimal.Decimal `json:"interest_rate"`
	TermMonths         int             `json:"term_months"`
	RemainingMonths    int             `json:"remaining_months"`
	MonthlyPayment     Money           `json:"monthly_payment"`
	DisbursementDate   time.Time       `json:"disbursement_date"`
	MaturityDate       *time.Time      `json:"maturity_date,omitempty"`
	NextPaymentDate    time.Time       `json:"next_payment_date"`
	Status             LoanStatus      `json:"status"`
}

type LoanCreated struct {
	Meta
	LoanID     uuid.UUID `json:"loan_id"`
	LoanNumber string    `json:"loan_number"`
	CustomerID string    `json:"customer_id"`
	Amount     Money     `json:"amount"`
}

func (LoanCreated) EventName() string { return "loan.created" }

type LoanApproved struct {
	Meta
	LoanID           uuid.UUID `json:"loan_id"`
	LoanNumber       string    `json:"loan_number"`
	DisbursementDate time.Time `json:"disbursement_date"`
}

func (LoanApproved) EventName() string { return "loan.approved" }

type LoanDisbursed struct {
	Meta
	LoanID     uuid.UUID `json:"loan_id"`
	LoanNumber string    `json:"loan_number"`
	Amount     Money     `json:"amount"`
}

func (LoanDisbursed) EventName() string { return "loan.disbursed" }

type LoanPaymentMade struct {
	Meta
	LoanID           uuid.UUID `json:"loan_id"`
	LoanNumber       string    `json:"loan_number"`
	PaymentAmount    Money     `json:"payment_amount"`
	RemainingBalance Money     `json:"remaining_balance"`
}

func (LoanPaymentMade) EventName() string { return "loan.payment_made" }

type LoanPaidOff struct {
	Meta
	LoanID     uuid.UUID `json:"loan_id"`
	LoanNumber string    `json:"loan_number"`
}

func (LoanPaidOff) EventName() string { return "loan.paid_off" }

type LoanDefaulted struct {
	Meta
	LoanID     uuid.UUID `json:"loan_id"`
	LoanNumber string    `json:"loan_number"`
	Reason     string    `json:"reason"`
}

func (LoanDefaulted) EventName() string { return "loan.defaulted" }

type LoanWrittenOff struct {
	Meta
	LoanID     uuid.UUID `json:"loan_id"`
	LoanNumber string    `json:"loan_number"`
	Amount     Money     `json:"amount"`
}

func (LoanWrittenOff) EventName() string { return "loan.written_off" }

// NewLoan creates a Pending loan, pricing the monthly payment with the
// standard annuity formula.
func NewLoan(tenantID, customerID string, accountID, productID uuid.UUID, principal Money, annualRatePercent decimal.Decimal, termMonths int, createdBy string) (*Loan, error) {
	if tenantID == "" {
		return nil, newError(ErrInvalidArgument, "tenant id is required")
	}
	if customerID == "" {
		return nil, newError(ErrInvalidArgument, "customer id is required")
	}
	if termMonths <= 0 || termMonths > 360 {
		return nil, newError(ErrInvalidArgument, "term months must be between 1 and 360")
	}
	if principal.IsZero() {
		return nil, newError(ErrInvalidAmount, "principal must be positive")
	}
	if annualRatePercent.IsNegative() {
		return nil, newError(ErrInvalidArgument, "interest rate cannot be negative")
	}

	monthlyPayment, err := calculateMonthlyPayment(principal, annualRatePercent, termMonths)
	if err != nil {
		return nil, err
	}

	loan := &Loan{
		Aggregate:          newAggregate(createdBy),
		LoanNumber:         generateLoanNumber(),
		TenantID:           tenantID,
		CustomerID:         customerID,
		AccountID:          accountID,
		ProductID:          productID,
		PrincipalAmount:    principal,
		OutstandingBalance: principal,
		InterestRate:       annualRatePercent,
		TermMonths:         termMonths,
		RemainingMonths:    termMonths,
		MonthlyPayment:     monthlyPayment,
		Status:             LoanStatusPending,
	}
	loan.record(LoanCreated{Meta: newMeta(), LoanID: loan.ID, LoanNumber: loan.LoanNumber, CustomerID: customerID, Amount: principal})
	return loan, nil
}

// Approve fixes the disbursement schedule: maturity after the full term, the
// first payment one month in.
func (l *Loan) Approve(disbursementDate time.Time, approvedBy string) error {
	if l.Status != LoanStatusPending {
		return newError(ErrIllegalStateTransition, "only pending loans can be approved, loan is %s", l.Status)
	}
	maturity := disbursementDate.AddDate(0, l.TermMonths, 0)
	l.Status = LoanStatusApproved
	l.DisbursementDate = disbursementDate
	l.MaturityDate = &maturity
	l.NextPaymentDate = disbursementDate.AddDate(0, 1, 0)
	l.touch(approvedBy)
	l.record(LoanApproved{Meta: newMeta(), LoanID: l.ID, LoanNumber: l.LoanNumber, DisbursementDate: disbursementDate})
	return nil
}

// Disburse activates an approved loan.
func (l *Loan) Disburse(disbursedBy string) error {
	if l.Status != LoanStatusApproved {
		return newError(ErrIllegalStateTransition, "only approved loans can be disbursed, loan is %s", l.Status)
	}
	l.Status = LoanStatusActive
	l.touch(disbursedBy)
	l.record(LoanDisbursed{Meta: newMeta(), LoanID: l.ID, LoanNumber: l.LoanNumber, Amount: l.PrincipalAmount})
	return nil
}

// MakePayment applies a payment to an active loan. Payments are clamped to
// the outstanding balance so the final installment never overshoots; a zero
// balance transitions the loan to PaidOff.
func (l *Loan) MakePayment(amount Money, paidBy string) error {
	if l.Status != LoanStatusActive {
		return newError(ErrIllegalStateTransition, "only active loans can receive payments, loan is %s", l.Status)
	}
	over, err := amount.GreaterThan(l.OutstandingBalance)
	if err != nil {
		return err
	}
	if over {
		amount = l.OutstandingBalance
	}
	remaining, err := l.OutstandingBalance.Subtract(amount)
	if err != nil {
		return err
	}
	l.OutstandingBalance = remaining
	l.RemainingMonths--
	l.NextPaymentDate = l.NextPaymentDate.AddDate(0, 1, 0)
	l.touch(paidBy)

	if l.OutstandingBalance.IsZero() {
		l.Status = LoanStatusPaidOff
		l.record(LoanPaidOff{Meta: newMeta(), LoanID: l.ID, LoanNumber: l.LoanNumber})
		return nil
	}
	l.record(LoanPaymentMade{Meta: newMeta(), LoanID: l.ID, LoanNumber: l.LoanNumber, PaymentAmount: amount, RemainingBalance: remaining})
	return nil
}

// MarkDefaulted transitions the loan to Defaulted unconditionally.
func (l *Loan) MarkDefaulted(reason, markedBy string) {
	l.Status = LoanStatusDefaulted
	l.touch(markedBy)
	l.record(LoanDefaulted{Meta: newMeta(), LoanID: l.ID, LoanNumber: l.LoanNumber, Reason: reason})
}

// WriteOff closes out a defaulted loan.
func (l *Loan) WriteOff(writtenOffBy string) error {
	if l.Status != LoanStatusDefaulted {
		return newError(ErrIllegalStateTransition, "only defaulted loans can be written off, loan is %s", l.Status)
	}
	l.Status = LoanStatusWrittenOff
	l.touch(writtenOffBy)
	l.record(LoanWrittenOff{Meta: newMeta(), LoanID: l.ID, LoanNumber: l.LoanNumber, Amount: l.OutstandingBalance})
	return nil
}

// calculateMonthlyPayment prices an amortizing loan:
// payment = P * (r (1+r)^n) / ((1+r)^n - 1), where r is the monthly rate.
func calculateMonthlyPayment(principal Money, annualRatePercent decimal.Decimal, termMonths int) (Money, error) {
	term := decimal.NewFromInt(int64(termMonths))
	if annualRatePercent.IsZero() {
		return NewMoney(principal.Amount().Div(term), principal.Currency())
	}
	monthlyRate := annualRatePercent.Div(decimal.NewFromInt(12)).Div(decimal.NewFromInt(100))
	compound := decimal.NewFromInt(1).Add(monthlyRate).Pow(term)
	payment := principal.Amount().
		Mul(monthlyRate.Mul(compound)).
		Div(compound.Sub(decimal.NewFromInt(1)))
	return NewMoney(payment, principal.Currency())
}

func generateLoanNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("LN%s%s", time.Now().UTC().Format("20060102"), suffix)
}
