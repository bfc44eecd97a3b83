package web

import (
	"context"
	"net/http"

	"warehouse-ledger/internal/app"
)

func (h *Handler) apiListSalesOrders(w http.ResponseWriter, r *http.Request) {
	f, ok := orderFilter(w, r, "customer_id")
	if !ok {
		return
	}
	result, err := h.svc.ListSalesOrders(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiCreateSalesOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSalesOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateSalesOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

func (h *Handler) apiGetSalesOrder(w http.ResponseWriter, r *http.Request) {
	h.salesOrderAction(w, r, h.svc.GetSalesOrder)
}

func (h *Handler) apiBeginProcessing(w http.ResponseWriter, r *http.Request) {
	h.salesOrderAction(w, r, h.svc.BeginProcessing)
}

func (h *Handler) apiDeliverSalesOrder(w http.ResponseWriter, r *http.Request) {
	h.salesOrderAction(w, r, h.svc.DeliverSalesOrder)
}

func (h *Handler) apiCancelSalesOrder(w http.ResponseWriter, r *http.Request) {
	h.salesOrderAction(w, r, h.svc.CancelSalesOrder)
}

// apiShipSalesOrder ships the order. The carrier body is optional.
func (h *Handler) apiShipSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.ShipOrderRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	req.SalesOrderID = id
	result, err := h.svc.ShipSalesOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) salesOrderAction(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, int64) (*app.SalesOrderResult, error)) {
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
