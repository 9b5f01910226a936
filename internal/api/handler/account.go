package handler

import (
	"encoding/json"
	"net/http"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AccountHandler struct {
	svc *service.AccountService
}

func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// OpenAccountRequest is the body for POST /v1/accounts.
type OpenAccountRequest struct {
	CustomerID   string `json:"customer_id"`
	ProductType  string `json:"product_type"`
	Currency     string `json:"currency"`
	InterestRate string `json:"interest_rate"`
}

func (h *AccountHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.CustomerID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-customer-id", "customer_id is required")
		return
	}

	rate := decimal.Zero
	if req.InterestRate != "" {
		rate, err = decimal.NewFromString(req.InterestRate)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-interest-rate", "interest_rate must be a decimal string")
			return
		}
	}

	account, err := h.svc.OpenAccount(r.Context(), service.OpenAccountCmd{
		TenantID:     tenantID,
		CustomerID:   req.CustomerID,
		ProductType:  domain.ProductType(req.ProductType),
		Currency:     req.Currency,
		InterestRate: rate,
		Actor:        actor,
	})
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("open account failed", zap.Error(err), zap.String("tenant_id", tenantID))
		RespondError(w, r, http.StatusInternalServerError, "account/open-failed", "Failed to open account")
		return
	}

	RespondJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizeAccount(w, r)
	if !ok {
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	page, pageSize := paginationParams(r)
	accounts, err := h.svc.ListAccounts(r.Context(), tenantID, page, pageSize)
	if err != nil {
		zap.L().Error("list accounts failed", zap.Error(err), zap.String("tenant_id", tenantID))
		RespondError(w, r, http.StatusInternalServerError, "account/list-failed", "Failed to list accounts")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items": accounts,
		"count": len(accounts),
	})
}

func (h *AccountHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "activate", func(accountID uuid.UUID, actor string) (*domain.Account, error) {
		return h.svc.ActivateAccount(r.Context(), accountID, actor)
	})
}

// MoneyRequest carries an amount as a decimal string plus its currency.
type MoneyRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (mr MoneyRequest) toMoney() (domain.Money, error) {
	return domain.NewMoneyFromString(mr.Amount, mr.Currency)
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	amount, err := req.toMoney()
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	h.mutate(w, r, "deposit", func(accountID uuid.UUID, actor string) (*domain.Account, error) {
		return h.svc.Deposit(r.Context(), accountID, amount, actor)
	})
}

func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	amount, err := req.toMoney()
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	h.mutate(w, r, "withdraw", func(accountID uuid.UUID, actor string) (*domain.Account, error) {
		return h.svc.Withdraw(r.Context(), accountID, amount, actor)
	})
}

func (h *AccountHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Reason == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reason", "reason is required")
		return
	}
	h.mutate(w, r, "freeze", func(accountID uuid.UUID, actor string) (*domain.Account, error) {
		return h.svc.FreezeAccount(r.Context(), accountID, req.Reason, actor)
	})
}

func (h *AccountHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizeAccount(w, r)
	if !ok {
		return
	}

	page, pageSize := paginationParams(r)
	entries, err := h.svc.GetStatement(r.Context(), account.ID, page, pageSize)
	if err != nil {
		zap.L().Error("get statement failed", zap.Error(err), zap.String("account_id", account.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/statement-read-failed", "Failed to get statement")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"account_id": account.ID,
		"items":      entries,
		"count":      len(entries),
	})
}

// mutate runs one lifecycle operation against the account in the URL after
// checking the caller's tenant owns it.
func (h *AccountHandler) mutate(w http.ResponseWriter, r *http.Request, action string, op func(uuid.UUID, string) (*domain.Account, error)) {
	actor, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return
	}

	existing, err := h.svc.GetAccount(r.Context(), accountID)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("account lookup failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to read account")
		return
	}
	if existing.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}

	account, err := op(accountID, actor)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("account "+action+" failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/"+action+"-failed", "Failed to "+action+" account")
		return
	}

	RespondJSON(w, http.StatusOK, account)
}

// authorizeAccount loads the account in the URL and hides it behind a 404
// when it belongs to another tenant.
func (h *AccountHandler) authorizeAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return nil, false
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return nil, false
	}

	account, err := h.svc.GetAccount(r.Context(), accountID)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return nil, false
		}
		zap.L().Error("account lookup failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to read account")
		return nil, false
	}
	if account.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return nil, false
	}
	return account, true
}
