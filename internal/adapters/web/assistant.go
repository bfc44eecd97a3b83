package web

import (
	"net/http"

	"warehouse-ledger/internal/core"
)

type proposeRequest struct {
	Text string `json:"text"`
}

// apiAssistantPropose returns a proposal or clarification. Nothing is written.
func (h *Handler) apiAssistantPropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.InterpretStockEvent(r.Context(), req.Text)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAssistantExecute applies a proposal the user has confirmed.
func (h *Handler) apiAssistantExecute(w http.ResponseWriter, r *http.Request) {
	var proposal core.StockActionProposal
	if !decodeJSON(w, r, &proposal) {
		return
	}
	result, err := h.svc.ExecuteStockAction(r.Context(), proposal)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
