package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"shop-admin/internal/app"
	"shop-admin/internal/logger"
	"shop-admin/internal/metrics"
)

const maxBodyBytes = 1 << 20 // 1 MB

// Options configures the HTTP handler.
type Options struct {
	AllowedOrigins []string
	Tokens         *TokenIssuer
	Metrics        *metrics.Metrics
	Logger         *logger.Logger
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc     app.ApplicationService
	router  chi.Router
	tokens  *TokenIssuer
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	h := &Handler{
		svc:     svc,
		tokens:  opts.Tokens,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if h.log == nil {
		h.log = logger.Nop()
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}

	r := chi.NewRouter()
	r.Use(RequestID(h.log))
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(Metrics(h.metrics))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(maxBodyBytes))

		r.Get("/api/auth/me", h.me)

		// ── Products ──────────────────────────────────────────────────────────
		r.Get("/api/products", h.listProducts)
		r.Post("/api/products", h.createProduct)
		r.Get("/api/products/deleted", h.listDeletedProducts)
		r.Get("/api/products/{id}", h.getProduct)
		r.Put("/api/products/{id}", h.updateProduct)
		r.Delete("/api/products/{id}", h.softDeleteProduct)
		r.Post("/api/products/{id}/restore", h.restoreProduct)
		r.Delete("/api/products/{id}/permanent", h.permanentlyDeleteProduct)
		r.Post("/api/products/{id}/adjust-stock", h.adjustStock)
		r.Get("/api/products/{id}/history", h.productHistory)

		// ── Orders ────────────────────────────────────────────────────────────
		r.Get("/api/orders", h.listOrders)
		r.Post("/api/orders", h.createOrder)
		r.Get("/api/orders/{id}", h.getOrder)
		r.Patch("/api/orders/{id}", h.updateOrder)
		r.Delete("/api/orders/{id}", h.deleteOrder)
		r.Put("/api/orders/{id}/status", h.setOrderStatus)

		// ── AI order intake ───────────────────────────────────────────────────
		r.Post("/api/orders/extract", h.extractOrder)
		r.Get("/api/orders/drafts/{token}", h.getDraft)
		r.Post("/api/orders/drafts/{token}/confirm", h.confirmDraft)
		r.Delete("/api/orders/drafts/{token}", h.discardDraft)
	})

	h.router = r
	return r
}

// health reports whether the database is reachable.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := h.svc.Health(r.Context()); err != nil {
		h.log.Warn(r.Context(), "health check failed: "+err.Error())
		writeJSONStatus(w, http.StatusServiceUnavailable, response{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, response{Status: "ok", Database: "ok"})
}

// pathID parses the {id} URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
