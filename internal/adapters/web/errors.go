package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
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

var errorStatuses = []struct {
	target error
	code   string
	status int
}{
	{core.ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest},
	{core.ErrOverReceipt, "OVER_RECEIPT", http.StatusBadRequest},
	{core.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{core.ErrInsufficientStock, "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity},
	{core.ErrInvalidStateTransition, "INVALID_STATE_TRANSITION", http.StatusUnprocessableEntity},
	{core.ErrConcurrencyConflict, "CONCURRENCY_CONFLICT", http.StatusConflict},
	{core.ErrOperationTimeout, "OPERATION_TIMEOUT", http.StatusGatewayTimeout},
	{app.ErrAssistantUnavailable, "ASSISTANT_UNAVAILABLE", http.StatusServiceUnavailable},
}

// writeServiceError maps a service error to its HTTP status. Unmapped errors are
// logged and reported as 500 without their detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.target) {
			writeError(w, r, err.Error(), e.code, e.status)
			return
		}
	}
	h.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Error(err),
	)
	writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
}
