package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/middleware"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/repository"
)

type upsertProfileRequest struct {
	ID       string `json:"id" validate:"required,notblank"`
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"full_name" validate:"max=200"`
}

// HandleUpsertProfile writes the caller's own profile row.
func (h *handlers) HandleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req upsertProfileRequest
	if err := h.validator.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	err := h.profiles.Upsert(r.Context(), principal, req.ID, repository.NormalizeEmail(req.Email), req.FullName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if h.onRoleChange != nil {
		h.onRoleChange(principal.UserID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetProfile returns a profile row, or JSON null when there is no
// row the caller may see.
func (h *handlers) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	p, err := h.profiles.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(p))
}

// HandleInventoryStats returns the dashboard counts. Counts that could not
// be read are omitted.
func (h *handlers) HandleInventoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.inventory.Stats(r.Context()))
}

// HandleRecentActivity returns the newest activity rows, optionally
// filtered.
func (h *handlers) HandleRecentActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "validation_failed", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	rows, err := h.inventory.RecentActivity(r.Context(), limit, q.Get("filter"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleMyAssignments returns the items issued to the caller.
func (h *handlers) HandleMyAssignments(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	rows, err := h.inventory.MyAssignments(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
