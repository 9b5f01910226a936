package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LoanHandler struct {
	svc *service.LoanService
}

func NewLoanHandler(svc *service.LoanService) *LoanHandler {
	return &LoanHandler{svc: svc}
}

// OriginateLoanRequest is the body for POST /v1/loans.
type OriginateLoanRequest struct {
	CustomerID  string `json:"customer_id"`
	AccountID   string `json:"account_id"`
	ProductCode string `json:"product_code"`
	Principal   string `json:"principal"`
	Currency    string `json:"currency"`
	TermMonths  int    `json:"term_months"`
}

func (h *LoanHandler) OriginateLoan(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req OriginateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.CustomerID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-customer-id", "customer_id is required")
		return
	}
	if req.ProductCode == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-product-code", "product_code is required")
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account_id")
		return
	}
	principal, err := domain.NewMoneyFromString(req.Principal, req.Currency)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	loan, err := h.svc.OriginateLoan(r.Context(), service.OriginateLoanCmd{
		TenantID:    tenantID,
		CustomerID:  req.CustomerID,
		AccountID:   accountID,
		ProductCode: req.ProductCode,
		Principal:   principal,
		TermMonths:  req.TermMonths,
		Actor:       actor,
	})
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("originate loan failed", zap.Error(err), zap.String("tenant_id", tenantID))
		RespondError(w, r, http.StatusInternalServerError, "loan/originate-failed", "Failed to originate loan")
		return
	}

	RespondJSON(w, http.StatusCreated, loan)
}

// ApproveLoanRequest carries the disbursement date for an approval.
type ApproveLoanRequest struct {
	DisbursementDate string `json:"disbursement_date"`
}

func (h *LoanHandler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	var req ApproveLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	disbursementDate := time.Now().UTC()
	if req.DisbursementDate != "" {
		var err error
		disbursementDate, err = time.Parse(time.RFC3339, req.DisbursementDate)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-disbursement-date", "disbursement_date must be RFC 3339")
			return
		}
	}
	h.mutate(w, r, "approve", func(loanID uuid.UUID, actor string) (*domain.Loan, error) {
		return h.svc.ApproveLoan(r.Context(), loanID, disbursementDate, actor)
	})
}

func (h *LoanHandler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "disburse", func(loanID uuid.UUID, actor string) (*domain.Loan, error) {
		return h.svc.DisburseLoan(r.Context(), loanID, actor)
	})
}

func (h *LoanHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
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
	h.mutate(w, r, "payment", func(loanID uuid.UUID, actor string) (*domain.Loan, error) {
		return h.svc.MakeLoanPayment(r.Context(), loanID, amount, actor)
	})
}

func (h *LoanHandler) MarkDefaulted(w http.ResponseWriter, r *http.Request) {
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
	h.mutate(w, r, "default", func(loanID uuid.UUID, actor string) (*domain.Loan, error) {
		return h.svc.MarkLoanDefaulted(r.Context(), loanID, req.Reason, actor)
	})
}

func (h *LoanHandler) WriteOff(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "write-off", func(loanID uuid.UUID, actor string) (*domain.Loan, error) {
		return h.svc.WriteOffLoan(r.Context(), loanID, actor)
	})
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-loan-id", "Invalid loan ID")
		return
	}

	loan, err := h.svc.GetLoan(r.Context(), loanID)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("get loan failed", zap.Error(err), zap.String("loan_id", loanID.String()))
		RespondError(w, r, http.StatusInternalServerError, "loan/read-failed", "Failed to get loan")
		return
	}
	if loan.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}

	RespondJSON(w, http.StatusOK, loan)
}

func (h *LoanHandler) ListLoansForAccount(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return
	}

	page, pageSize := paginationParams(r)
	loans, err := h.svc.ListLoansForAccount(r.Context(), accountID, page, pageSize)
	if err != nil {
		zap.L().Error("list loans failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "loan/list-failed", "Failed to list loans")
		return
	}

	filtered := loans[:0]
	for _, loan := range loans {
		if loan.TenantID == tenantID {
			filtered = append(filtered, loan)
		}
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"items":      filtered,
		"count":      len(filtered),
	})
}

func (h *LoanHandler) mutate(w http.ResponseWriter, r *http.Request, action string, op func(uuid.UUID, string) (*domain.Loan, error)) {
	actor, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-loan-id", "Invalid loan ID")
		return
	}

	existing, err := h.svc.GetLoan(r.Context(), loanID)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("loan lookup failed", zap.Error(err), zap.String("loan_id", loanID.String()))
		RespondError(w, r, http.StatusInternalServerError, "loan/read-failed", "Failed to read loan")
		return
	}
	if existing.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}

	loan, err := op(loanID, actor)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("loan "+action+" failed", zap.Error(err), zap.String("loan_id", loanID.String()))
		RespondError(w, r, http.StatusInternalServerError, "loan/"+action+"-failed", "Failed to "+action+" loan")
		return
	}

	RespondJSON(w, http.StatusOK, loan)
}
