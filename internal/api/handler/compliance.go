package handler

import (
	"encoding/json"
	"net/http"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ComplianceHandler struct {
	svc *service.ComplianceService
}

func NewComplianceHandler(svc *service.ComplianceService) *ComplianceHandler {
	return &ComplianceHandler{svc: svc}
}

// RaiseCheckRequest is the body for POST /v1/compliance/checks (admin only).
type RaiseCheckRequest struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
	CheckType  string `json:"check_type"`
}

func (h *ComplianceHandler) RaiseCheck(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req RaiseCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	check, err := h.svc.RaiseCheck(r.Context(), service.RaiseCheckCmd{
		TenantID:   tenantID,
		EntityID:   req.EntityID,
		EntityType: req.EntityType,
		CheckType:  domain.ComplianceCheckType(req.CheckType),
		Actor:      actor,
	})
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("raise compliance check failed", zap.Error(err), zap.String("tenant_id", tenantID))
		RespondError(w, r, http.StatusInternalServerError, "compliance/raise-failed", "Failed to raise compliance check")
		return
	}

	RespondJSON(w, http.StatusCreated, check)
}

func (h *ComplianceHandler) ApproveCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	h.mutate(w, r, "approve", func(checkID uuid.UUID, actor string) (*domain.ComplianceCheck, error) {
		return h.svc.ApproveCheck(r.Context(), checkID, req.Notes, actor)
	})
}

func (h *ComplianceHandler) RejectCheck(w http.ResponseWriter, r *http.Request) {
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
	h.mutate(w, r, "reject", func(checkID uuid.UUID, actor string) (*domain.ComplianceCheck, error) {
		return h.svc.RejectCheck(r.Context(), checkID, req.Reason, actor)
	})
}

func (h *ComplianceHandler) UpdateRiskScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RiskScore int `json:"risk_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	h.mutate(w, r, "risk-score", func(checkID uuid.UUID, actor string) (*domain.ComplianceCheck, error) {
		return h.svc.UpdateRiskScore(r.Context(), checkID, req.RiskScore, actor)
	})
}

func (h *ComplianceHandler) GetCheck(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	checkID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-check-id", "Invalid check ID")
		return
	}

	check, err := h.svc.GetCheck(r.Context(), checkID)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("get compliance check failed", zap.Error(err), zap.String("check_id", checkID.String()))
		RespondError(w, r, http.StatusInternalServerError, "compliance/read-failed", "Failed to get compliance check")
		return
	}
	if check.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}

	RespondJSON(w, http.StatusOK, check)
}

func (h *ComplianceHandler) ListChecksForEntity(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	entityID := chi.URLParam(r, "entityID")
	if entityID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-entity-id", "entity ID is required")
		return
	}

	checks, err := h.svc.ListChecksForEntity(r.Context(), tenantID, entityID)
	if err != nil {
		zap.L().Error("list compliance checks failed", zap.Error(err), zap.String("entity_id", entityID))
		RespondError(w, r, http.StatusInternalServerError, "compliance/list-failed", "Failed to list compliance checks")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"entity_id": entityID,
		"items":     checks,
		"count":     len(checks),
	})
}

func (h *ComplianceHandler) mutate(w http.ResponseWriter, r *http.Request, action string, op func(uuid.UUID, string) (*domain.ComplianceCheck, error)) {
	actor, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	checkID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-check-id", "Invalid check ID")
		return
	}

	existing, err := h.svc.GetCheck(r.Context(), checkID)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("compliance check lookup failed", zap.Error(err), zap.String("check_id", checkID.String()))
		RespondError(w, r, http.StatusInternalServerError, "compliance/read-failed", "Failed to read compliance check")
		return
	}
	if existing.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}

	check, err := op(checkID, actor)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("compliance "+action+" failed", zap.Error(err), zap.String("check_id", checkID.String()))
		RespondError(w, r, http.StatusInternalServerError, "compliance/"+action+"-failed", "Failed to update compliance check")
		return
	}

	RespondJSON(w, http.StatusOK, check)
}
