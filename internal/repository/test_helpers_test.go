package repository

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/atlasbank/ledger/internal/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func init() {
	_ = godotenv.Load("../../.env")
}

// setupTestDB connects to the local Postgres instance, applies the schema and
// truncates every ledger table.
func setupTestDB(t *testing.T) *pgxpool.Pool {
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
	return pool
}
