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

type ProductHandler struct {
	svc *service.ProductService
}

func NewProductHandler(svc *service.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// CreateProductRequest is the body for POST /v1/products (admin only).
type CreateProductRequest struct {
	ProductCode    string            `json:"product_code"`
	ProductName    string            `json:"product_name"`
	ProductType    string            `json:"product_type"`
	Description    string            `json:"description"`
	InterestRate   string            `json:"interest_rate"`
	MinimumBalance string            `json:"minimum_balance"`
	MaximumBalance string            `json:"maximum_balance"`
	MonthlyFee     MoneyRequest      `json:"monthly_fee"`
	TermMonths     int               `json:"term_months"`
	Features       map[string]string `json:"features"`
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	rate, err := parseDecimalField(req.InterestRate)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-interest-rate", "interest_rate must be a decimal string")
		return
	}
	minBalance, err := parseDecimalField(req.MinimumBalance)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-minimum-balance", "minimum_balance must be a decimal string")
		return
	}
	maxBalance, err := parseDecimalField(req.MaximumBalance)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-maximum-balance", "maximum_balance must be a decimal string")
		return
	}
	monthlyFee, err := req.MonthlyFee.toMoney()
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	product, err := h.svc.CreateProduct(r.Context(), service.CreateProductCmd{
		TenantID:       tenantID,
		ProductCode:    req.ProductCode,
		ProductName:    req.ProductName,
		ProductType:    domain.ProductType(req.ProductType),
		Description:    req.Description,
		InterestRate:   rate,
		MinimumBalance: minBalance,
		MaximumBalance: maxBalance,
		MonthlyFee:     monthlyFee,
		TermMonths:     req.TermMonths,
		Features:       req.Features,
		Actor:          actor,
	})
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("create product failed", zap.Error(err), zap.String("tenant_id", tenantID))
		RespondError(w, r, http.StatusInternalServerError, "product/create-failed", "Failed to create product")
		return
	}

	RespondJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.authorizeProduct(w, r)
	if !ok {
		return
	}
	RespondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	page, pageSize := paginationParams(r)
	products, err := h.svc.ListProducts(r.Context(), tenantID, page, pageSize)
	if err != nil {
		zap.L().Error("list products failed", zap.Error(err), zap.String("tenant_id", tenantID))
		RespondError(w, r, http.StatusInternalServerError, "product/list-failed", "Failed to list products")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items": products,
		"count": len(products),
	})
}

func (h *ProductHandler) UpdateInterestRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InterestRate string `json:"interest_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	rate, err := decimal.NewFromString(req.InterestRate)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-interest-rate", "interest_rate must be a decimal string")
		return
	}
	h.mutate(w, r, "interest-rate", func(productID uuid.UUID, actor string) (*domain.FinancialProduct, error) {
		return h.svc.UpdateInterestRate(r.Context(), productID, rate, actor)
	})
}

func (h *ProductHandler) UpdateFees(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MonthlyFee MoneyRequest `json:"monthly_fee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	fee, err := req.MonthlyFee.toMoney()
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	h.mutate(w, r, "fees", func(productID uuid.UUID, actor string) (*domain.FinancialProduct, error) {
		return h.svc.UpdateFees(r.Context(), productID, fee, actor)
	})
}

func (h *ProductHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "activate", func(productID uuid.UUID, actor string) (*domain.FinancialProduct, error) {
		return h.svc.ActivateProduct(r.Context(), productID, actor)
	})
}

func (h *ProductHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "deactivate", func(productID uuid.UUID, actor string) (*domain.FinancialProduct, error) {
		return h.svc.DeactivateProduct(r.Context(), productID, actor)
	})
}

func (h *ProductHandler) AddFeature(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Key == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-feature-key", "key is required")
		return
	}
	h.mutate(w, r, "feature", func(productID uuid.UUID, actor string) (*domain.FinancialProduct, error) {
		return h.svc.AddFeature(r.Context(), productID, req.Key, req.Value, actor)
	})
}

func (h *ProductHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	product, ok := h.authorizeProduct(w, r)
	if !ok {
		return
	}

	balanceStr := r.URL.Query().Get("balance")
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-balance", "balance must be a decimal string")
		return
	}

	eligible, err := h.svc.CheckEligibility(r.Context(), product.ID, balance)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("check eligibility failed", zap.Error(err), zap.String("product_id", product.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "product/eligibility-failed", "Failed to check eligibility")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"product_id": product.ID,
		"balance":    balance.String(),
		"eligible":   eligible,
	})
}

func (h *ProductHandler) mutate(w http.ResponseWriter, r *http.Request, action string, op func(uuid.UUID, string) (*domain.FinancialProduct, error)) {
	actor, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-product-id", "Invalid product ID")
		return
	}

	existing, err := h.svc.GetProduct(r.Context(), productID)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("product lookup failed", zap.Error(err), zap.String("product_id", productID.String()))
		RespondError(w, r, http.StatusInternalServerError, "product/read-failed", "Failed to read product")
		return
	}
	if existing.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}

	product, err := op(productID, actor)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("product "+action+" update failed", zap.Error(err), zap.String("product_id", productID.String()))
		RespondError(w, r, http.StatusInternalServerError, "product/"+action+"-failed", "Failed to update product")
		return
	}

	RespondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) authorizeProduct(w http.ResponseWriter, r *http.Request) (*domain.FinancialProduct, bool) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return nil, false
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-product-id", "Invalid product ID")
		return nil, false
	}

	product, err := h.svc.GetProduct(r.Context(), productID)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return nil, false
		}
		zap.L().Error("product lookup failed", zap.Error(err), zap.String("product_id", productID.String()))
		RespondError(w, r, http.StatusInternalServerError, "product/read-failed", "Failed to read product")
		return nil, false
	}
	if product.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return nil, false
	}
	return product, true
}

func parseDecimalField(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
