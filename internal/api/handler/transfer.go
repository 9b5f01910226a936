package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TransferHandler struct {
	svc *service.TransferService
}

func NewTransferHandler(svc *service.TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// InitiateTransferRequest is the body for POST /v1/transfers.
type InitiateTransferRequest struct {
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               string `json:"amount"`
	Currency             string `json:"currency"`
	Description          string `json:"description"`
}

// InitiateTransfer accepts a transfer for asynchronous settlement and
// answers 202. The transaction settles once the settlement consumer picks
// up the outbox event.
func (h *TransferHandler) InitiateTransfer(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req InitiateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	sourceID, err := uuid.Parse(req.SourceAccountID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-source-account-id", "Invalid source_account_id")
		return
	}
	destinationID, err := uuid.Parse(req.DestinationAccountID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-destination-account-id", "Invalid destination_account_id")
		return
	}

	amount, err := domain.NewMoneyFromString(req.Amount, req.Currency)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	txn, err := h.svc.InitiateTransfer(r.Context(), service.InitiateTransferCmd{
		TenantID:             tenantID,
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               amount,
		Description:          req.Description,
		Actor:                actor,
	})
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("initiate transfer failed", zap.Error(err), zap.String("tenant_id", tenantID))
		RespondError(w, r, http.StatusInternalServerError, "transfer/initiate-failed", "Failed to initiate transfer")
		return
	}

	RespondJSON(w, http.StatusAccepted, txn)
}

func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	transferID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-transfer-id", "Invalid transfer ID")
		return
	}

	txn, err := h.svc.GetTransfer(r.Context(), transferID)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("get transfer failed", zap.Error(err), zap.String("transfer_id", transferID.String()))
		RespondError(w, r, http.StatusInternalServerError, "transfer/read-failed", "Failed to get transfer")
		return
	}
	if txn.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}

	RespondJSON(w, http.StatusOK, txn)
}

func (h *TransferHandler) GetTransferByReference(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	if reference == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reference", "reference is required")
		return
	}

	txn, err := h.svc.GetTransferByReference(r.Context(), reference)
	if err != nil {
		if RespondDomainError(w, r, err) {
			return
		}
		zap.L().Error("get transfer by reference failed", zap.Error(err), zap.String("reference", reference))
		RespondError(w, r, http.StatusInternalServerError, "transfer/read-failed", "Failed to get transfer")
		return
	}
	if txn.TenantID != tenantID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}

	RespondJSON(w, http.StatusOK, txn)
}
