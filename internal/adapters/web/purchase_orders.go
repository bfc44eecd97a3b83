package web

import (
	"context"
	"net/http"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"
)

// orderFilter reads status, party_id (supplier or customer) and limit.
func orderFilter(w http.ResponseWriter, r *http.Request, partyParam string) (core.OrderFilter, bool) {
	f := core.OrderFilter{Status: r.URL.Query().Get("status")}
	partyID, ok := queryInt(w, r, partyParam)
	if !ok {
		return f, false
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return f, false
	}
	f.PartyID = partyID
	f.Limit = int(limit)
	return f, true
}

func (h *Handler) apiListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	f, ok := orderFilter(w, r, "supplier_id")
	if !ok {
		return
	}
	result, err := h.svc.ListPurchaseOrders(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiCreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

func (h *Handler) apiGetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.purchaseOrderAction(w, r, h.svc.GetPurchaseOrder)
}

func (h *Handler) apiApprovePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.purchaseOrderAction(w, r, h.svc.ApprovePurchaseOrder)
}

func (h *Handler) apiCancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.purchaseOrderAction(w, r, h.svc.CancelPurchaseOrder)
}

func (h *Handler) apiReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.ReceivePORequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PurchaseOrderID = id
	result, err := h.svc.ReceivePurchaseOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) purchaseOrderAction(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, int64) (*app.PurchaseOrderResult, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := fn(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
