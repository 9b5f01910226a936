package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/atlasbank/ledger/internal/api/middleware"
	"github.com/atlasbank/ledger/internal/api/problem"
	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/jackc/pgx/v5"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// requestActor returns the authenticated user, their tenant and whether they
// hold the admin role. The actor string lands in audit rows unchanged.
func requestActor(r *http.Request) (actor, tenantID string, isAdmin bool, err error) {
	actor = middleware.UserIDFromContext(r.Context())
	tenantID = middleware.TenantIDFromContext(r.Context())
	if actor == "" || tenantID == "" {
		return "", "", false, errors.New("missing user or tenant in auth context")
	}
	return actor, tenantID, middleware.UserRoleFromContext(r.Context()) == "admin", nil
}

// RespondDomainError translates domain rule violations and storage errors
// into RFC 7807 responses. Returns false when the error is none of those, so
// the caller can log it and answer 500.
func RespondDomainError(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return true
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		RespondError(w, r, http.StatusConflict, "resource/version-conflict", "resource was modified concurrently, retry the request")
		return true
	}

	var domainErr *domain.Error
	if !errors.As(err, &domainErr) {
		return false
	}

	status := http.StatusUnprocessableEntity
	switch domainErr.Kind() {
	case domain.ErrNotFound.Kind():
		status = http.StatusNotFound
	case domain.ErrAlreadyExists.Kind():
		status = http.StatusConflict
	case domain.ErrInvalidAmount.Kind(), domain.ErrInvalidCurrency.Kind(), domain.ErrInvalidArgument.Kind():
		status = http.StatusBadRequest
	}
	RespondError(w, r, status, "domain/"+strings.ReplaceAll(domainErr.Kind(), "_", "-"), domainErr.Error())
	return true
}

func paginationParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}
