package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shop-admin/internal/ai"
	"shop-admin/internal/app"
)

type draftResponse struct {
	Token     string         `json:"token"`
	CreatedAt time.Time      `json:"created_at"`
	Draft     *ai.OrderDraft `json:"draft"`
}

func toDraftResponse(res *app.DraftResult) draftResponse {
	return draftResponse{Token: res.Token, CreatedAt: res.CreatedAt, Draft: res.Draft}
}

// extractOrder handles POST /api/orders/extract.
// Body: { conversation }. The response is a draft; no order is created.
func (h *Handler) extractOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Conversation string `json:"conversation"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.ExtractOrderDraft(r.Context(), body.Conversation)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, toDraftResponse(res))
}

// getDraft handles GET /api/orders/drafts/{token}.
func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetDraft(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, toDraftResponse(res))
}

// confirmDraft handles POST /api/orders/drafts/{token}/confirm.
// An empty body confirms the draft as extracted; otherwise the body is the
// operator-edited order in the same shape as POST /api/orders.
func (h *Handler) confirmDraft(w http.ResponseWriter, r *http.Request) {
	var req *app.CreateOrderRequest
	if r.ContentLength != 0 {
		req = &app.CreateOrderRequest{}
		if !decodeJSON(w, r, req) {
			return
		}
	}
	result, err := h.svc.ConfirmDraft(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Order)
}

// discardDraft handles DELETE /api/orders/drafts/{token}.
func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DiscardDraft(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
