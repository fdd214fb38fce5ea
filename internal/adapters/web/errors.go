package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"shop-admin/internal/app"
	"shop-admin/internal/core"
	"shop-admin/internal/drafts"
)

type errorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Details:   details,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps an application error onto an HTTP response. Domain
// errors are shown verbatim; anything else is logged and reported generically.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *core.ValidationError
		nferr *core.NotFoundError
		serr  *core.InsufficientStockError
		cerr  *core.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		writeErrorDetails(w, r, verr.Error(), "VALIDATION_ERROR", http.StatusBadRequest,
			map[string]any{"field": verr.Field})
	case errors.As(err, &nferr):
		writeErrorDetails(w, r, nferr.Error(), "NOT_FOUND", http.StatusNotFound,
			map[string]any{"entity": nferr.Entity, "id": nferr.ID})
	case errors.As(err, &serr):
		writeErrorDetails(w, r, serr.Error(), "INSUFFICIENT_STOCK", http.StatusConflict, map[string]any{
			"product_id":   serr.ProductID,
			"product_name": serr.ProductName,
			"available":    serr.Available,
			"requested":    serr.Requested,
		})
	case errors.As(err, &cerr):
		writeError(w, r, cerr.Error(), "CONFLICT", http.StatusConflict)
	case errors.Is(err, drafts.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, app.ErrExtractionDisabled):
		writeError(w, r, err.Error(), "UNAVAILABLE", http.StatusServiceUnavailable)
	default:
		h.log.Error(r.Context(), "request failed", err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
