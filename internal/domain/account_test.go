package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActiveAccount(t *testing.T) *Account {
	t.Helper()
	acc, err := NewAccount("cust-1", "tenant-1", ProductCurrentAccount, "ZAR", decimal.Zero, "tester")
	require.NoError(t, err)
	require.NoError(t, acc.Activate("tester"))
	acc.PullEvents()
	return acc
}

func TestNewAccount_StartsPending(t *testing.T) {
	acc, err := NewAccount("cust-1", "tenant-1", ProductSavingsAccount, "ZAR", decimal.NewFromInt(5), "tester")
	require.NoError(t, err)

	assert.Equal(t, AccountStatusPending, acc.Status)
	assert.Regexp(t, `^62\d{8}$`, acc.AccountNumber)
	assert.True(t, acc.Balance.IsZero())
	assert.True(t, acc.AvailableBalance.IsZero())
	assert.Equal(t, "tester", acc.CreatedBy)

	events := acc.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "account.created", events[0].EventName())
}

func TestAccount_ActivateOnlyFromPending(t *testing.T) {
	acc, err := NewAccount("cust-1", "tenant-1", ProductCurrentAccount, "ZAR", decimal.Zero, "tester")
	require.NoError(t, err)

	require.NoError(t, acc.Activate("tester"))
	assert.Equal(t, AccountStatusActive, acc.Status)

	err = acc.Activate("tester")
	assert.ErrorIs(t, err, ErrIllegalStateTransition)
}

func TestAccount_DepositRequiresActive(t *testing.T) {
	acc, err := NewAccount("cust-1", "tenant-1", ProductCurrentAccount, "ZAR", decimal.Zero, "tester")
	require.NoError(t, err)

	err = acc.Deposit(mustMoney(t, "100.00", "ZAR"), "tester")
	assert.ErrorIs(t, err, ErrAccountNotActive)
	assert.True(t, acc.Balance.IsZero())
}

func TestAccount_DepositThenWithdrawRestoresBalances(t *testing.T) {
	acc := newActiveAccount(t)
	amount := mustMoney(t, "250.00", "ZAR")

	require.NoError(t, acc.Deposit(amount, "tester"))
	assert.Equal(t, "250.00 ZAR", acc.Balance.String())
	assert.Equal(t, "250.00 ZAR", acc.AvailableBalance.String())

	require.NoError(t, acc.Withdraw(amount, "tester"))
	assert.True(t, acc.Balance.IsZero())
	assert.True(t, acc.AvailableBalance.IsZero())
}

func TestAccount_WithdrawInsufficientFundsLeavesBalancesUnchanged(t *testing.T) {
	acc := newActiveAccount(t)
	require.NoError(t, acc.Deposit(mustMoney(t, "100.00", "ZAR"), "tester"))
	acc.PullEvents()

	err := acc.Withdraw(mustMoney(t, "150.00", "ZAR"), "tester")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "100.00 ZAR", acc.Balance.String())
	assert.Equal(t, "100.00 ZAR", acc.AvailableBalance.String())
	assert.Empty(t, acc.PendingEvents())

	require.NoError(t, acc.Withdraw(mustMoney(t, "40.00", "ZAR"), "tester"))
	assert.Equal(t, "60.00 ZAR", acc.Balance.String())
}

func TestAccount_FreezeHasNoPrecondition(t *testing.T) {
	acc, err := NewAccount("cust-1", "tenant-1", ProductCurrentAccount, "ZAR", decimal.Zero, "tester")
	require.NoError(t, err)

	acc.Freeze("suspicious activity", "compliance-officer")
	assert.Equal(t, AccountStatusFrozen, acc.Status)

	err = acc.Deposit(mustMoney(t, "10.00", "ZAR"), "tester")
	assert.ErrorIs(t, err, ErrAccountNotActive)
}

func TestAccount_ApplyInterest(t *testing.T) {
	acc, err := NewAccount("cust-1", "tenant-1", ProductSavingsAccount, "ZAR", decimal.NewFromInt(12), "tester")
	require.NoError(t, err)
	require.NoError(t, acc.Activate("tester"))
	require.NoError(t, acc.Deposit(mustMoney(t, "1200.00", "ZAR"), "tester"))
	acc.PullEvents()

	// 12% annual -> 1% monthly on 1200.00 = 12.00
	require.NoError(t, acc.ApplyInterest("interest-runner"))
	assert.Equal(t, "1212.00 ZAR", acc.Balance.String())
	assert.Equal(t, "1212.00 ZAR", acc.AvailableBalance.String())
	require.NotNil(t, acc.LastInterestDate)

	events := acc.PullEvents()
	require.Len(t, events, 1)
	applied, ok := events[0].(InterestApplied)
	require.True(t, ok)
	assert.Equal(t, "12.00 ZAR", applied.Amount.String())
}

func TestAccount_ApplyInterestZeroRateIsNoOp(t *testing.T) {
	acc := newActiveAccount(t)
	require.NoError(t, acc.Deposit(mustMoney(t, "500.00", "ZAR"), "tester"))
	acc.PullEvents()

	require.NoError(t, acc.ApplyInterest("interest-runner"))
	assert.Equal(t, "500.00 ZAR", acc.Balance.String())
	assert.Nil(t, acc.LastInterestDate)
	assert.Empty(t, acc.PendingEvents())
}

func TestAccount_EveryMutationRecordsOneEvent(t *testing.T) {
	acc, err := NewAccount("cust-1", "tenant-1", ProductCurrentAccount, "ZAR", decimal.Zero, "tester")
	require.NoError(t, err)
	assert.Len(t, acc.PendingEvents(), 1)

	require.NoError(t, acc.Activate("tester"))
	assert.Len(t, acc.PendingEvents(), 2)

	require.NoError(t, acc.Deposit(mustMoney(t, "10.00", "ZAR"), "tester"))
	assert.Len(t, acc.PendingEvents(), 3)

	drained := acc.PullEvents()
	assert.Len(t, drained, 3)
	assert.Empty(t, acc.PendingEvents())
	assert.Empty(t, acc.PullEvents())
}

func TestAccount_ScenarioLifecycle(t *testing.T) {
	acc, err := NewAccount("cust-9", "tenant-1", ProductCurrentAccount, "ZAR", decimal.Zero, "tester")
	require.NoError(t, err)
	require.NoError(t, acc.Activate("tester"))
	require.NoError(t, acc.Deposit(mustMoney(t, "100.00", "ZAR"), "tester"))

	err = acc.Withdraw(mustMoney(t, "150.00", "ZAR"), "tester")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "100.00 ZAR", acc.Balance.String())

	require.NoError(t, acc.Withdraw(mustMoney(t, "40.00", "ZAR"), "tester"))
	assert.Equal(t, "60.00 ZAR", acc.Balance.String())
	assert.Equal(t, "60.00 ZAR", acc.AvailableBalance.String())
}
