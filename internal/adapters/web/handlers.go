package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/idempotency"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures NewHandler.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
	// Idempotency enables Idempotency-Key replay for POST routes when non-nil.
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	jwtSecret string
	log       *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{svc: svc, jwtSecret: opts.JWTSecret, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/health", h.health)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Route("/api", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB
		r.Use(RequireWriteRole)
		if opts.Idempotency != nil {
			r.Use(idempotency.Middleware(opts.Idempotency, opts.IdempotencyTTL, idempotencyScope, log))
		}

		// ── Stock ─────────────────────────────────────────────────────────────
		r.Get("/stock", h.apiListStock)
		r.Get("/stock/movements", h.apiListMovements)
		r.Get("/stock/{productID}/{warehouseID}", h.apiGetStock)
		r.Get("/stock/{productID}/{warehouseID}/reconcile", h.apiReconcileStock)
		r.Post("/stock/adjust", h.apiAdjustStock)
		r.Post("/stock/transfer", h.apiTransferStock)

		// ── Purchase orders ───────────────────────────────────────────────────
		r.Get("/purchase-orders", h.apiListPurchaseOrders)
		r.Post("/purchase-orders", h.apiCreatePurchaseOrder)
		r.Get("/purchase-orders/{id}", h.apiGetPurchaseOrder)
		r.Post("/purchase-orders/{id}/approve", h.apiApprovePurchaseOrder)
		r.Post("/purchase-orders/{id}/cancel", h.apiCancelPurchaseOrder)
		r.Post("/purchase-orders/{id}/receive", h.apiReceivePurchaseOrder)

		// ── Sales orders ──────────────────────────────────────────────────────
		r.Get("/sales-orders", h.apiListSalesOrders)
		r.Post("/sales-orders", h.apiCreateSalesOrder)
		r.Get("/sales-orders/{id}", h.apiGetSalesOrder)
		r.Post("/sales-orders/{id}/processing", h.apiBeginProcessing)
		r.Post("/sales-orders/{id}/process", h.apiShipSalesOrder)
		r.Post("/sales-orders/{id}/deliver", h.apiDeliverSalesOrder)
		r.Post("/sales-orders/{id}/cancel", h.apiCancelSalesOrder)

		// ── Stock assistant ───────────────────────────────────────────────────
		r.Post("/assistant/propose", h.apiAssistantPropose)
		r.Post("/assistant/execute", h.apiAssistantExecute)
	})

	return r
}

// health returns service liveness.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
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

// decodeOptionalJSON is decodeJSON for requests whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return true
	case errors.As(err, new(*http.MaxBytesError)):
		writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
	default:
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	}
	return false
}

// pathID parses a positive integer URL parameter, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter, writing 400 on failure.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}
