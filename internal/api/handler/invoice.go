package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/marketbill/internal/api/request"
	"github.com/edvin/marketbill/internal/api/response"
	"github.com/edvin/marketbill/internal/core"
)

type Invoice struct {
	svc *core.InvoiceService
}

func NewInvoice(svc *core.InvoiceService) *Invoice {
	return &Invoice{svc: svc}
}

func (h *Invoice) ListByTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := request.ParsePagination(r)
	invoices, hasMore, err := h.svc.ListByTenant(r.Context(), tenantID, p.Limit, p.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(invoices) > 0 {
		nextCursor = invoices[len(invoices)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, invoices, nextCursor, hasMore)
}

func (h *Invoice) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, inv)
}
