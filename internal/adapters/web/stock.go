package web

import (
	"net/http"
	"strconv"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"
)

func (h *Handler) apiListStock(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := queryInt(w, r, "warehouse_id")
	if !ok {
		return
	}
	lowOnly, _ := strconv.ParseBool(r.URL.Query().Get("low_stock_only"))
	result, err := h.svc.ListStock(r.Context(), core.StockFilter{WarehouseID: warehouseID, LowStockOnly: lowOnly})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiGetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	warehouseID, ok := pathID(w, r, "warehouseID")
	if !ok {
		return
	}
	result, err := h.svc.GetStock(r.Context(), productID, warehouseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiReconcileStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	warehouseID, ok := pathID(w, r, "warehouseID")
	if !ok {
		return
	}
	result, err := h.svc.ReconcileStock(r.Context(), productID, warehouseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListMovements accepts product_id, warehouse_id, reference_type, reference_id and limit.
func (h *Handler) apiListMovements(w http.ResponseWriter, r *http.Request) {
	var f core.MovementFilter
	var ok bool
	if f.ProductID, ok = queryInt(w, r, "product_id"); !ok {
		return
	}
	if f.WarehouseID, ok = queryInt(w, r, "warehouse_id"); !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	f.Limit = int(limit)
	f.ReferenceType = core.ReferenceType(r.URL.Query().Get("reference_type"))
	f.ReferenceID = r.URL.Query().Get("reference_id")

	result, err := h.svc.ListMovements(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req app.AdjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.AdjustStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiTransferStock(w http.ResponseWriter, r *http.Request) {
	var req app.TransferStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.TransferStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
