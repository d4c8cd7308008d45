package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/edvin/marketbill/internal/api/request"
	"github.com/edvin/marketbill/internal/api/response"
	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/core"
)

type Wallet struct {
	svc *core.WalletService
}

func NewWallet(svc *core.WalletService) *Wallet {
	return &Wallet{svc: svc}
}

func (h *Wallet) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	wallet, err := h.svc.GetByTenant(r.Context(), tenantID)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, wallet)
}

// Topup credits the tenant's wallet. Replays with the same idempotency key
// come back as 409 without moving money twice.
func (h *Wallet) Topup(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.Topup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	entry, err := h.svc.Credit(r.Context(), tenantID, amount, "topup:"+req.IdempotencyKey, "wallet topup")
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrConflict):
			response.WriteError(w, http.StatusConflict, "topup already applied")
		case errors.Is(err, billing.ErrNotFound):
			response.WriteError(w, http.StatusNotFound, err.Error())
		default:
			response.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Wallet) ListEntries(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := request.ParsePagination(r)
	entries, hasMore, err := h.svc.ListEntries(r.Context(), tenantID, p.Limit, p.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(entries) > 0 {
		nextCursor = entries[len(entries)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, entries, nextCursor, hasMore)
}
