package repository

import (
	"context"
	"testing"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAccountRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	queries := New(pool)

	acc, err := domain.NewAccount("cust-1", "tenant-1", domain.ProductSavingsAccount, "ZAR", decimal.RequireFromString("5.5"), "alice")
	require.NoError(t, err)
	require.NoError(t, queries.CreateAccount(ctx, acc))
	require.EqualValues(t, 1, acc.Version)

	loaded, err := queries.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, acc.AccountNumber, loaded.AccountNumber)
	require.Equal(t, domain.AccountStatusPending, loaded.Status)
	require.True(t, loaded.Balance.IsZero())
	require.True(t, loaded.InterestRate.Equal(decimal.RequireFromString("5.5")))

	require.NoError(t, loaded.Activate("alice"))
	deposit, err := domain.NewMoney(decimal.RequireFromString("250.00"), "ZAR")
	require.NoError(t, err)
	require.NoError(t, loaded.Deposit(deposit, "alice"))
	require.NoError(t, queries.SaveAccount(ctx, loaded))
	require.EqualValues(t, 2, loaded.Version)

	reloaded, err := queries.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AccountStatusActive, reloaded.Status)
	require.Equal(t, "250.00 ZAR", reloaded.Balance.String())
}

func TestSaveAccountVersionConflict(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	queries := New(pool)

	acc, err := domain.NewAccount("cust-1", "tenant-1", domain.ProductCurrentAccount, "ZAR", decimal.Zero, "alice")
	require.NoError(t, err)
	require.NoError(t, queries.CreateAccount(ctx, acc))

	first, err := queries.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	second, err := queries.GetAccount(ctx, acc.ID)
	require.NoError(t, err)

	require.NoError(t, first.Activate("alice"))
	require.NoError(t, queries.SaveAccount(ctx, first))

	require.NoError(t, second.Activate("bob"))
	err = queries.SaveAccount(ctx, second)
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestCreateAccountWritesOutbox(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	queries := New(pool)

	acc, err := domain.NewAccount("cust-1", "tenant-1", domain.ProductSavingsAccount, "ZAR", decimal.Zero, "alice")
	require.NoError(t, err)
	require.NoError(t, queries.CreateAccount(ctx, acc))

	pending, err := queries.CountPendingOutboxEvents(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)

	events, err := queries.ClaimOutboxEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "account.created", events[0].EventName)
	require.Equal(t, acc.ID, events[0].AggregateID)

	require.NoError(t, queries.MarkOutboxDispatched(ctx, events[0].ID))
	pending, err = queries.CountPendingOutboxEvents(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)

	// The buffer drained on save, so a second save writes nothing new.
	require.NoError(t, acc.Activate("alice"))
	_ = acc.PullEvents()
	require.NoError(t, queries.SaveAccount(ctx, acc))
	pending, err = queries.CountPendingOutboxEvents(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestGetAccountNotFoundAndSoftDelete(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	queries := New(pool)

	acc, err := domain.NewAccount("cust-1", "tenant-1", domain.ProductCurrentAccount, "ZAR", decimal.Zero, "alice")
	require.NoError(t, err)

	_, err = queries.GetAccount(ctx, acc.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, queries.CreateAccount(ctx, acc))
	acc.MarkDeleted("alice")
	require.NoError(t, queries.SaveAccount(ctx, acc))

	_, err = queries.GetAccount(ctx, acc.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAccountsScopedToTenant(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	queries := New(pool)

	for _, tenant := range []string{"tenant-1", "tenant-1", "tenant-2"} {
		acc, err := domain.NewAccount("cust-1", tenant, domain.ProductCurrentAccount, "ZAR", decimal.Zero, "alice")
		require.NoError(t, err)
		require.NoError(t, queries.CreateAccount(ctx, acc))
	}

	accounts, err := queries.ListAccounts(ctx, "tenant-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	accounts, err = queries.ListAccounts(ctx, "tenant-2", 10, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}
