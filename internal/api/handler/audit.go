package handler

import (
	"net/http"

	"github.com/atlasbank/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditHandler serves the immutable audit trail (admin only).
type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// Trail handles GET /v1/audit/{entityType}/{entityID}.
func (h *AuditHandler) Trail(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	entityType := chi.URLParam(r, "entityType")
	entityID, err := uuid.Parse(chi.URLParam(r, "entityID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-entity-id", "Invalid entity ID")
		return
	}

	records, err := h.svc.Trail(r.Context(), tenantID, entityType, entityID)
	if err != nil {
		zap.L().Error("audit trail read failed", zap.Error(err), zap.String("entity_id", entityID.String()))
		RespondError(w, r, http.StatusInternalServerError, "audit/read-failed", "Failed to read audit trail")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"entity_type": entityType,
		"entity_id":   entityID,
		"items":       records,
		"count":       len(records),
	})
}
