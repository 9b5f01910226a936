package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoan(t *testing.T, principal string, annualRate float64, termMonths int) *Loan {
	t.Helper()
	loan, err := NewLoan("tenant-1", "cust-1", uuid.New(), uuid.New(),
		mustMoney(t, principal, "ZAR"), decimal.NewFromFloat(annualRate), termMonths, "tester")
	require.NoError(t, err)
	loan.PullEvents()
	return loan
}

func newActiveLoan(t *testing.T, principal string, annualRate float64, termMonths int) *Loan {
	t.Helper()
	loan := newLoan(t, principal, annualRate, termMonths)
	require.NoError(t, loan.Approve(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "tester"))
	require.NoError(t, loan.Disburse("tester"))
	loan.PullEvents()
	return loan
}

func TestNewLoan_AnnuityPayment(t *testing.T) {
	loan := newLoan(t, "120000.00", 12, 12)

	// P=120000, r=1%/month, n=12 -> 10661.8546... rounds to 10661.85
	assert.Equal(t, "10661.85 ZAR", loan.MonthlyPayment.String())
	assert.Equal(t, LoanStatusPending, loan.Status)
	assert.Equal(t, "120000.00 ZAR", loan.OutstandingBalance.String())
	assert.Equal(t, 12, loan.RemainingMonths)
	assert.Regexp(t, `^LN\d{8}[0-9A-F]{6}$`, loan.LoanNumber)
}

func TestNewLoan_ZeroRatePayment(t *testing.T) {
	loan := newLoan(t, "12000.00", 0, 12)
	assert.Equal(t, "1000.00 ZAR", loan.MonthlyPayment.String())
}

func TestNewLoan_Validation(t *testing.T) {
	principal := mustMoney(t, "1000.00", "ZAR")

	_, err := NewLoan("tenant-1", "cust-1", uuid.New(), uuid.New(), principal, decimal.NewFromInt(-1), 12, "tester")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewLoan("tenant-1", "cust-1", uuid.New(), uuid.New(), principal, decimal.Zero, 0, "tester")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewLoan("tenant-1", "cust-1", uuid.New(), uuid.New(), Zero("ZAR"), decimal.Zero, 12, "tester")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLoan_ApproveSetsSchedule(t *testing.T) {
	loan := newLoan(t, "10000.00", 10, 24)
	disbursement := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, loan.Approve(disbursement, "approver"))
	assert.Equal(t, LoanStatusApproved, loan.Status)
	require.NotNil(t, loan.MaturityDate)
	assert.Equal(t, disbursement.AddDate(0, 24, 0), *loan.MaturityDate)
	assert.Equal(t, disbursement.AddDate(0, 1, 0), loan.NextPaymentDate)

	// second approval is illegal
	assert.ErrorIs(t, loan.Approve(disbursement, "approver"), ErrIllegalStateTransition)
}

func TestLoan_DisburseOnlyFromApproved(t *testing.T) {
	loan := newLoan(t, "10000.00", 10, 24)
	assert.ErrorIs(t, loan.Disburse("ops"), ErrIllegalStateTransition)

	require.NoError(t, loan.Approve(time.Now().UTC(), "approver"))
	require.NoError(t, loan.Disburse("ops"))
	assert.Equal(t, LoanStatusActive, loan.Status)
}

func TestLoan_FullAmortizationReachesZero(t *testing.T) {
	loan := newActiveLoan(t, "120000.00", 12, 12)
	payment := loan.MonthlyPayment

	for i := 0; i < 12; i++ {
		require.NoError(t, loan.MakePayment(payment, "payer"), "payment %d", i+1)
	}

	assert.True(t, loan.OutstandingBalance.IsZero())
	assert.Equal(t, LoanStatusPaidOff, loan.Status)
	assert.Equal(t, 0, loan.RemainingMonths)

	events := loan.PullEvents()
	require.Len(t, events, 12)
	assert.Equal(t, "loan.payment_made", events[0].EventName())
	assert.Equal(t, "loan.paid_off", events[11].EventName())
}

func TestLoan_PaymentClampedToOutstanding(t *testing.T) {
	loan := newActiveLoan(t, "100.00", 0, 10)

	require.NoError(t, loan.MakePayment(mustMoney(t, "250.00", "ZAR"), "payer"))
	assert.True(t, loan.OutstandingBalance.IsZero())
	assert.Equal(t, LoanStatusPaidOff, loan.Status)
}

func TestLoan_PaymentAdvancesSchedule(t *testing.T) {
	loan := newActiveLoan(t, "1200.00", 0, 12)
	firstDue := loan.NextPaymentDate

	require.NoError(t, loan.MakePayment(loan.MonthlyPayment, "payer"))
	assert.Equal(t, 11, loan.RemainingMonths)
	assert.Equal(t, firstDue.AddDate(0, 1, 0), loan.NextPaymentDate)
	assert.Equal(t, "1100.00 ZAR", loan.OutstandingBalance.String())
}

func TestLoan_PaymentOnPaidOffLoanFails(t *testing.T) {
	loan := newActiveLoan(t, "100.00", 0, 1)
	require.NoError(t, loan.MakePayment(mustMoney(t, "100.00", "ZAR"), "payer"))
	require.Equal(t, LoanStatusPaidOff, loan.Status)

	err := loan.MakePayment(mustMoney(t, "10.00", "ZAR"), "payer")
	assert.ErrorIs(t, err, ErrIllegalStateTransition)
}

func TestLoan_DefaultAndWriteOff(t *testing.T) {
	loan := newActiveLoan(t, "5000.00", 10, 12)

	loan.MarkDefaulted("90 days in arrears", "collections")
	assert.Equal(t, LoanStatusDefaulted, loan.Status)

	require.NoError(t, loan.WriteOff("collections"))
	assert.Equal(t, LoanStatusWrittenOff, loan.Status)

	events := loan.PullEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "loan.defaulted", events[0].EventName())
	assert.Equal(t, "loan.written_off", events[1].EventName())
}

func TestLoan_WriteOffRequiresDefaulted(t *testing.T) {
	loan := newActiveLoan(t, "5000.00", 10, 12)
	assert.ErrorIs(t, loan.WriteOff("collections"), ErrIllegalStateTransition)
}
