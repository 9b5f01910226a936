package service

import (
	"context"
	"testing"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestOpenAccountWritesAuditTrail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)
	audit := NewAuditService(store)

	acc, err := accounts.OpenAccount(ctx, OpenAccountCmd{
		TenantID:    "tenant-1",
		CustomerID:  "cust-1",
		ProductType: domain.ProductSavingsAccount,
		Currency:    "ZAR",
		Actor:       "alice",
	})
	require.NoError(t, err)

	_, err = accounts.ActivateAccount(ctx, acc.ID, "bob")
	require.NoError(t, err)

	trail, err := audit.Trail(ctx, "tenant-1", "account", acc.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, "account_opened", trail[0].Action)
	require.Equal(t, "alice", trail[0].Actor)
	require.Equal(t, "account_activated", trail[1].Action)
	require.Equal(t, "bob", trail[1].Actor)
	require.Equal(t, "PENDING", *trail[1].PrevState)
	require.Equal(t, "ACTIVE", *trail[1].NextState)
}

func TestWithdrawRejectsOverdraft(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)

	acc := openActiveAccount(t, accounts, "tenant-1", "ZAR", "40.00")

	_, err := accounts.Withdraw(ctx, acc.ID, money(t, "50.00", "ZAR"), "alice")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	reloaded, err := accounts.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, "40.00 ZAR", reloaded.Balance.String())
}

func TestApplyDueInterest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)

	savings, err := accounts.OpenAccount(ctx, OpenAccountCmd{
		TenantID:     "tenant-1",
		CustomerID:   "cust-1",
		ProductType:  domain.ProductSavingsAccount,
		Currency:     "ZAR",
		InterestRate: decimal.RequireFromString("12"),
		Actor:        "alice",
	})
	require.NoError(t, err)
	_, err = accounts.ActivateAccount(ctx, savings.ID, "alice")
	require.NoError(t, err)
	_, err = accounts.Deposit(ctx, savings.ID, money(t, "1200.00", "ZAR"), "alice")
	require.NoError(t, err)

	// Zero-rate accounts never qualify.
	openActiveAccount(t, accounts, "tenant-1", "ZAR", "1000.00")

	applied, err := accounts.ApplyDueInterest(ctx, 30, 100, "system")
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	reloaded, err := accounts.GetAccount(ctx, savings.ID)
	require.NoError(t, err)
	// 12% annual is 1% per month on 1200.00.
	require.Equal(t, "1212.00 ZAR", reloaded.Balance.String())
	require.NotNil(t, reloaded.LastInterestDate)

	// The fresh timestamp takes the account out of the due set.
	applied, err = accounts.ApplyDueInterest(ctx, 30, 100, "system")
	require.NoError(t, err)
	require.Zero(t, applied)
}
