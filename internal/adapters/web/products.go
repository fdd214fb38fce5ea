package web

import (
	"net/http"

	"shop-admin/internal/app"
	"shop-admin/internal/core"
)

// listProducts handles GET /api/products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Products)
}

// listDeletedProducts handles GET /api/products/deleted.
func (h *Handler) listDeletedProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListDeletedProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Products)
}

// getProduct handles GET /api/products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// createProduct handles POST /api/products.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in core.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

// updateProduct handles PUT /api/products/{id}.
// An omitted quantity keeps the current stock.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in core.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	result, err := h.svc.UpdateProduct(r.Context(), id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	changed := result.Changed
	if changed == nil {
		changed = []string{}
	}
	writeJSON(w, map[string]any{"product": result.Product, "changed": changed})
}

// softDeleteProduct handles DELETE /api/products/{id}.
func (h *Handler) softDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.SoftDeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// restoreProduct handles POST /api/products/{id}/restore.
func (h *Handler) restoreProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.RestoreProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// permanentlyDeleteProduct handles DELETE /api/products/{id}/permanent.
func (h *Handler) permanentlyDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.PermanentlyDeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adjustStock handles POST /api/products/{id}/adjust-stock.
// Body: { reduce_by, note? }
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		ReduceBy int    `json:"reduce_by"`
		Note     string `json:"note"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	p, err := h.svc.AdjustStock(r.Context(), app.AdjustStockRequest{ProductID: id, ReduceBy: body.ReduceBy, Note: body.Note})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// productHistory handles GET /api/products/{id}/history.
func (h *Handler) productHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListProductHistory(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Entries)
}
