package service

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/atlasbank/ledger/internal/db"
	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load("../../.env")
}

// setupTestStore connects to the local Postgres instance, applies the schema,
// truncates every ledger table and returns a store.
func setupTestStore(t *testing.T) *repository.Store {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	pool, err := db.Connect(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	for _, table := range []string{
		"audit_log", "outbox_events", "idempotency_keys",
		"compliance_checks", "loans", "transactions", "products", "accounts",
	} {
		stmt := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		if _, err := pool.Exec(context.Background(), stmt); err != nil {
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}
	return repository.NewStore(pool)
}

// openActiveAccount opens, activates and funds an account in one go.
func openActiveAccount(t *testing.T, svc *AccountService, tenantID, currency, balance string) *domain.Account {
	t.Helper()
	ctx := context.Background()

	acc, err := svc.OpenAccount(ctx, OpenAccountCmd{
		TenantID:    tenantID,
		CustomerID:  "cust-1",
		ProductType: domain.ProductCurrentAccount,
		Currency:    currency,
		Actor:       "tester",
	})
	require.NoError(t, err)
	acc, err = svc.ActivateAccount(ctx, acc.ID, "tester")
	require.NoError(t, err)

	if balance != "" && balance != "0" {
		amount := money(t, balance, currency)
		acc, err = svc.Deposit(ctx, acc.ID, amount, "tester")
		require.NoError(t, err)
	}
	return acc
}

func money(t *testing.T, amount, currency string) domain.Money {
	t.Helper()
	m, err := domain.NewMoneyFromString(amount, currency)
	require.NoError(t, err)
	return m
}

// newLoanProduct creates an active personal loan product priced at 12.5%.
func newLoanProduct(t *testing.T, svc *ProductService, tenantID, code string) *domain.FinancialProduct {
	t.Helper()

	product, err := svc.CreateProduct(context.Background(), CreateProductCmd{
		TenantID:       tenantID,
		ProductCode:    code,
		ProductName:    "Personal Loan",
		ProductType:    domain.ProductPersonalLoan,
		InterestRate:   decimal.RequireFromString("12.5"),
		MinimumBalance: decimal.RequireFromString("100"),
		MaximumBalance: decimal.RequireFromString("1000000"),
		MonthlyFee:     money(t, "10.00", "ZAR"),
		TermMonths:     60,
		Actor:          "tester",
	})
	require.NoError(t, err)
	return product
}
