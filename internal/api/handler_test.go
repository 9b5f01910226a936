package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/atlasbank/ledger/internal/api"
	"github.com/atlasbank/ledger/internal/api/middleware"
	"github.com/atlasbank/ledger/internal/config"
	"github.com/atlasbank/ledger/internal/db"
	"github.com/atlasbank/ledger/internal/idempotency"
	"github.com/atlasbank/ledger/internal/observability"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/atlasbank/ledger/internal/testutil/dblock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "atlasbank-ledger-test"
	testJWTAudience = "ledger-api-test"
)

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")
	release := dblock.Acquire()
	observability.Init()
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	code := m.Run()
	release()
	os.Exit(code)
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	pool, err := db.Connect(context.Background(), connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(context.Background(), pool))

	for _, table := range []string{
		"audit_log", "outbox_events", "idempotency_keys",
		"compliance_checks", "loans", "transactions", "products", "accounts",
	} {
		_, err := pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err)
	}

	cfg := &config.Config{
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
	}
	store := repository.NewStore(pool)
	idemStore := idempotency.NewStore(nil, pool, time.Hour)
	router := api.NewRouter(cfg, zap.NewNop(), pool, store, idemStore, nil)

	srv := httptest.NewServer(router.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, userID, tenantID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id":   userID,
		"tenant_id": tenantID,
		"role":      role,
		"sub":       userID,
		"iss":       testJWTIssuer,
		"aud":       testJWTAudience,
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func openActiveHTTPAccount(t *testing.T, srv *httptest.Server, token, idemKey string) string {
	t.Helper()
	resp, body := doRequest(t, srv, http.MethodPost, "/v1/accounts", token, map[string]any{
		"customer_id":  "cust-1",
		"product_type": "CURRENT_ACCOUNT",
		"currency":     "ZAR",
	}, map[string]string{"Idempotency-Key": idemKey})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var account struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &account))
	resp, body = doRequest(t, srv, http.MethodPost, "/v1/accounts/"+account.ID+"/activate", token, map[string]any{}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	return account.ID
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := doRequest(t, srv, http.MethodGet, "/v1/accounts", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Contains(t, problem["type"], "auth/")
}

func TestHealthAndDocsArePublic(t *testing.T) {
	srv := setupTestServer(t)

	for _, path := range []string{"/healthz", "/metrics", "/openapi.yaml"} {
		resp, _ := doRequest(t, srv, http.MethodGet, path, "", nil, nil)
		assert.Equalf(t, http.StatusOK, resp.StatusCode, "path %s", path)
	}
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	srv := setupTestServer(t)
	token := signToken(t, "alice", "tenant-1", "user")

	resp, body := doRequest(t, srv, http.MethodPost, "/v1/accounts", token, map[string]any{
		"customer_id":  "cust-1",
		"product_type": "CURRENT_ACCOUNT",
		"currency":     "ZAR",
	}, map[string]string{"Idempotency-Key": "open-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var account struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &account))
	assert.Equal(t, "PENDING", account.Status)

	resp, body = doRequest(t, srv, http.MethodPost, "/v1/accounts/"+account.ID+"/activate", token, map[string]any{}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doRequest(t, srv, http.MethodPost, "/v1/accounts/"+account.ID+"/deposit", token, map[string]any{
		"amount":   "250.00",
		"currency": "ZAR",
	}, map[string]string{"Idempotency-Key": "dep-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated struct {
		Balance struct {
			Amount string `json:"amount"`
		} `json:"balance"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "ACTIVE", updated.Status)
	assert.Equal(t, "250.00", updated.Balance.Amount)

	// Replaying the deposit with the same key returns the recorded response
	// without moving funds again.
	resp, replay := doRequest(t, srv, http.MethodPost, "/v1/accounts/"+account.ID+"/deposit", token, map[string]any{
		"amount":   "250.00",
		"currency": "ZAR",
	}, map[string]string{"Idempotency-Key": "dep-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Idempotent-Replay"))
	assert.JSONEq(t, string(body), string(replay))

	resp, body = doRequest(t, srv, http.MethodGet, "/v1/accounts/"+account.ID, token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "250.00", updated.Balance.Amount)
}

func TestIdempotencyKeyRequiredOnMutations(t *testing.T) {
	srv := setupTestServer(t)
	token := signToken(t, "alice", "tenant-1", "user")

	resp, body := doRequest(t, srv, http.MethodPost, "/v1/accounts", token, map[string]any{
		"customer_id":  "cust-1",
		"product_type": "CURRENT_ACCOUNT",
		"currency":     "ZAR",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Contains(t, problem["type"], "idempotency/missing-key")
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	srv := setupTestServer(t)
	tenant1 := signToken(t, "alice", "tenant-1", "user")
	tenant2 := signToken(t, "bob", "tenant-2", "user")

	accountID := openActiveHTTPAccount(t, srv, tenant1, "open-1")

	// Another tenant's token cannot see the account at all.
	resp, _ := doRequest(t, srv, http.MethodGet, "/v1/accounts/"+accountID, tenant2, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodPost, "/v1/accounts/"+accountID+"/freeze", tenant2, map[string]any{}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Nor move money into it: a transfer naming a foreign account is a 404,
	// no matter how well funded the caller's own source is.
	source := openActiveHTTPAccount(t, srv, tenant2, "open-2")
	resp, body := doRequest(t, srv, http.MethodPost, "/v1/accounts/"+source+"/deposit", tenant2, map[string]any{
		"amount":   "500.00",
		"currency": "ZAR",
	}, map[string]string{"Idempotency-Key": "dep-2"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = doRequest(t, srv, http.MethodPost, "/v1/transfers", tenant2, map[string]any{
		"source_account_id":      source,
		"destination_account_id": accountID,
		"amount":                 "100.00",
		"currency":               "ZAR",
	}, map[string]string{"Idempotency-Key": "tr-x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodGet, "/v1/accounts/"+accountID, tenant1, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminOnlyRoutes(t *testing.T) {
	srv := setupTestServer(t)
	user := signToken(t, "alice", "tenant-1", "user")
	admin := signToken(t, "root", "tenant-1", "admin")

	productBody := map[string]any{
		"product_code":    "PL-STD",
		"product_name":    "Personal Loan",
		"product_type":    "PERSONAL_LOAN",
		"interest_rate":   "12.5",
		"minimum_balance": "100",
		"maximum_balance": "1000000",
		"monthly_fee":     map[string]string{"amount": "10.00", "currency": "ZAR"},
		"term_months":     60,
	}

	resp, _ := doRequest(t, srv, http.MethodPost, "/v1/products", user, productBody, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doRequest(t, srv, http.MethodPost, "/v1/products", admin, productBody, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	// Duplicate product code within the tenant conflicts.
	resp, _ = doRequest(t, srv, http.MethodPost, "/v1/products", admin, productBody, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTransferOverHTTP(t *testing.T) {
	srv := setupTestServer(t)
	token := signToken(t, "alice", "tenant-1", "user")

	source := openActiveHTTPAccount(t, srv, token, "open-src")
	dest := openActiveHTTPAccount(t, srv, token, "open-dst")

	resp, body := doRequest(t, srv, http.MethodPost, "/v1/accounts/"+source+"/deposit", token, map[string]any{
		"amount":   "300.00",
		"currency": "ZAR",
	}, map[string]string{"Idempotency-Key": "dep-src"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doRequest(t, srv, http.MethodPost, "/v1/transfers", token, map[string]any{
		"source_account_id":      source,
		"destination_account_id": dest,
		"amount":                 "120.00",
		"currency":               "ZAR",
		"description":            "rent",
	}, map[string]string{"Idempotency-Key": "tr-1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var txn struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Reference string `json:"reference"`
	}
	require.NoError(t, json.Unmarshal(body, &txn))
	assert.Equal(t, "PENDING", txn.Status)
	assert.NotEmpty(t, txn.Reference)

	resp, body = doRequest(t, srv, http.MethodGet, "/v1/transfers/"+txn.ID, token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// Insufficient funds is a business rejection, not a 500.
	resp, body = doRequest(t, srv, http.MethodPost, "/v1/transfers", token, map[string]any{
		"source_account_id":      source,
		"destination_account_id": dest,
		"amount":                 "10000.00",
		"currency":               "ZAR",
	}, map[string]string{"Idempotency-Key": "tr-2"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Contains(t, problem["type"], "domain/insufficient-funds")
}
