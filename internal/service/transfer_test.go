package service

import (
	"context"
	"testing"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestInitiateTransferRecordsPendingTransaction(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)
	transfers := NewTransferService(store)

	source := openActiveAccount(t, accounts, "tenant-1", "ZAR", "500.00")
	dest := openActiveAccount(t, accounts, "tenant-1", "ZAR", "")

	txn, err := transfers.InitiateTransfer(ctx, InitiateTransferCmd{
		TenantID:             "tenant-1",
		SourceAccountID:      source.ID,
		DestinationAccountID: dest.ID,
		Amount:               money(t, "120.00", "ZAR"),
		Description:          "rent",
		Actor:                "alice",
	})
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusPending, txn.Status)
	require.NotEmpty(t, txn.Reference)

	// Nothing moves until settlement.
	reloaded, err := accounts.GetAccount(ctx, source.ID)
	require.NoError(t, err)
	require.Equal(t, "500.00 ZAR", reloaded.Balance.String())

	loaded, err := transfers.GetTransferByReference(ctx, txn.Reference)
	require.NoError(t, err)
	require.Equal(t, txn.ID, loaded.ID)
}

func TestInitiateTransferRejectsUpfront(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)
	transfers := NewTransferService(store)

	source := openActiveAccount(t, accounts, "tenant-1", "ZAR", "50.00")
	dest := openActiveAccount(t, accounts, "tenant-1", "ZAR", "")

	_, err := transfers.InitiateTransfer(ctx, InitiateTransferCmd{
		TenantID:             "tenant-1",
		SourceAccountID:      source.ID,
		DestinationAccountID: dest.ID,
		Amount:               money(t, "100.00", "ZAR"),
		Actor:                "alice",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = transfers.InitiateTransfer(ctx, InitiateTransferCmd{
		TenantID:             "tenant-1",
		SourceAccountID:      source.ID,
		DestinationAccountID: dest.ID,
		Amount:               money(t, "10.00", "USD"),
		Actor:                "alice",
	})
	require.ErrorIs(t, err, domain.ErrCurrencyMismatch)

	frozen, err := accounts.FreezeAccount(ctx, dest.ID, "fraud review", "admin")
	require.NoError(t, err)
	require.Equal(t, domain.AccountStatusFrozen, frozen.Status)

	_, err = transfers.InitiateTransfer(ctx, InitiateTransferCmd{
		TenantID:             "tenant-1",
		SourceAccountID:      source.ID,
		DestinationAccountID: dest.ID,
		Amount:               money(t, "10.00", "ZAR"),
		Actor:                "alice",
	})
	require.ErrorIs(t, err, domain.ErrAccountNotActive)
}

func TestSettleCompletesTransfer(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)
	transfers := NewTransferService(store)
	settlement := NewSettlementService(store, "system")

	source := openActiveAccount(t, accounts, "tenant-1", "ZAR", "500.00")
	dest := openActiveAccount(t, accounts, "tenant-1", "ZAR", "")

	txn, err := transfers.InitiateTransfer(ctx, InitiateTransferCmd{
		TenantID:             "tenant-1",
		SourceAccountID:      source.ID,
		DestinationAccountID: dest.ID,
		Amount:               money(t, "120.00", "ZAR"),
		Actor:                "alice",
	})
	require.NoError(t, err)

	require.NoError(t, settlement.Settle(ctx, txn.ID))

	settled, err := transfers.GetTransfer(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusCompleted, settled.Status)

	src, err := accounts.GetAccount(ctx, source.ID)
	require.NoError(t, err)
	require.Equal(t, "380.00 ZAR", src.Balance.String())

	dst, err := accounts.GetAccount(ctx, dest.ID)
	require.NoError(t, err)
	require.Equal(t, "120.00 ZAR", dst.Balance.String())
}

func TestSettleIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)
	transfers := NewTransferService(store)
	settlement := NewSettlementService(store, "system")

	source := openActiveAccount(t, accounts, "tenant-1", "ZAR", "300.00")
	dest := openActiveAccount(t, accounts, "tenant-1", "ZAR", "")

	txn, err := transfers.InitiateTransfer(ctx, InitiateTransferCmd{
		TenantID:             "tenant-1",
		SourceAccountID:      source.ID,
		DestinationAccountID: dest.ID,
		Amount:               money(t, "100.00", "ZAR"),
		Actor:                "alice",
	})
	require.NoError(t, err)

	require.NoError(t, settlement.Settle(ctx, txn.ID))
	// Redelivery must not move funds twice.
	require.NoError(t, settlement.Settle(ctx, txn.ID))

	src, err := accounts.GetAccount(ctx, source.ID)
	require.NoError(t, err)
	require.Equal(t, "200.00 ZAR", src.Balance.String())

	dst, err := accounts.GetAccount(ctx, dest.ID)
	require.NoError(t, err)
	require.Equal(t, "100.00 ZAR", dst.Balance.String())
}

func TestSettleFailsTransactionWhenFundsGone(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)
	transfers := NewTransferService(store)
	settlement := NewSettlementService(store, "system")

	source := openActiveAccount(t, accounts, "tenant-1", "ZAR", "150.00")
	dest := openActiveAccount(t, accounts, "tenant-1", "ZAR", "")

	txn, err := transfers.InitiateTransfer(ctx, InitiateTransferCmd{
		TenantID:             "tenant-1",
		SourceAccountID:      source.ID,
		DestinationAccountID: dest.ID,
		Amount:               money(t, "100.00", "ZAR"),
		Actor:                "alice",
	})
	require.NoError(t, err)

	// Drain the source between acceptance and settlement.
	_, err = accounts.Withdraw(ctx, source.ID, money(t, "100.00", "ZAR"), "alice")
	require.NoError(t, err)

	require.NoError(t, settlement.Settle(ctx, txn.ID))

	failed, err := transfers.GetTransfer(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)

	dst, err := accounts.GetAccount(ctx, dest.ID)
	require.NoError(t, err)
	require.True(t, dst.Balance.IsZero())
}

func TestInitiateTransferRejectsForeignTenantAccounts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)
	transfers := NewTransferService(store)

	victimSource := openActiveAccount(t, accounts, "tenant-b", "ZAR", "500.00")
	victimDest := openActiveAccount(t, accounts, "tenant-b", "ZAR", "500.00")
	own := openActiveAccount(t, accounts, "tenant-a", "ZAR", "500.00")

	// Funded, active accounts in another tenant read as missing.
	_, err := transfers.InitiateTransfer(ctx, InitiateTransferCmd{
		TenantID:             "tenant-a",
		SourceAccountID:      victimSource.ID,
		DestinationAccountID: victimDest.ID,
		Amount:               money(t, "100.00", "ZAR"),
		Actor:                "mallory",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)

	// A foreign destination alone is rejected the same way.
	_, err = transfers.InitiateTransfer(ctx, InitiateTransferCmd{
		TenantID:             "tenant-a",
		SourceAccountID:      own.ID,
		DestinationAccountID: victimDest.ID,
		Amount:               money(t, "100.00", "ZAR"),
		Actor:                "mallory",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)

	reloaded, err := accounts.GetAccount(ctx, victimSource.ID)
	require.NoError(t, err)
	require.Equal(t, "500.00 ZAR", reloaded.Balance.String())
}

func TestSettleResumesStrandedProcessing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := NewAccountService(store)
	transfers := NewTransferService(store)
	settlement := NewSettlementService(store, "system")

	source := openActiveAccount(t, accounts, "tenant-1", "ZAR", "500.00")
	dest := openActiveAccount(t, accounts, "tenant-1", "ZAR", "")

	initiate := func(amount string) *domain.Transaction {
		txn, err := transfers.InitiateTransfer(ctx, InitiateTransferCmd{
			TenantID:             "tenant-1",
			SourceAccountID:      source.ID,
			DestinationAccountID: dest.ID,
			Amount:               money(t, amount, "ZAR"),
			Actor:                "alice",
		})
		require.NoError(t, err)
		return txn
	}
	balances := func() (string, string) {
		src, err := accounts.GetAccount(ctx, source.ID)
		require.NoError(t, err)
		dst, err := accounts.GetAccount(ctx, dest.ID)
		require.NoError(t, err)
		return src.Balance.String(), dst.Balance.String()
	}
	settleAndCheck := func(txn *domain.Transaction) {
		require.NoError(t, settlement.Settle(ctx, txn.ID))
		settled, err := transfers.GetTransfer(ctx, txn.ID)
		require.NoError(t, err)
		require.Equal(t, domain.TxStatusCompleted, settled.Status)
	}

	// Crashed right after claiming: redelivery runs both legs.
	txn := initiate("120.00")
	claimed, resumed, _, err := settlement.claim(ctx, txn.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.False(t, resumed)
	settleAndCheck(txn)
	src, dst := balances()
	require.Equal(t, "380.00 ZAR", src)
	require.Equal(t, "120.00 ZAR", dst)

	// Crashed after the debit: redelivery must not debit twice.
	txn = initiate("100.00")
	_, _, loaded, err := settlement.claim(ctx, txn.ID)
	require.NoError(t, err)
	require.NoError(t, settlement.debitSource(ctx, loaded))
	settleAndCheck(txn)
	src, dst = balances()
	require.Equal(t, "280.00 ZAR", src)
	require.Equal(t, "220.00 ZAR", dst)

	// Crashed after the credit: redelivery only completes the transaction.
	txn = initiate("50.00")
	_, _, loaded, err = settlement.claim(ctx, txn.ID)
	require.NoError(t, err)
	require.NoError(t, settlement.debitSource(ctx, loaded))
	require.NoError(t, settlement.creditDestination(ctx, loaded))
	settleAndCheck(txn)
	src, dst = balances()
	require.Equal(t, "230.00 ZAR", src)
	require.Equal(t, "270.00 ZAR", dst)
}
