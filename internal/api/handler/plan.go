package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/marketbill/internal/api/request"
	"github.com/edvin/marketbill/internal/api/response"
	"github.com/edvin/marketbill/internal/core"
)

type Plan struct {
	svc *core.PlanService
}

func NewPlan(svc *core.PlanService) *Plan {
	return &Plan{svc: svc}
}

func (h *Plan) List(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)

	plans, hasMore, err := h.svc.List(r.Context(), p.Limit, p.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(plans) > 0 {
		nextCursor = plans[len(plans)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, plans, nextCursor, hasMore)
}

func (h *Plan) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, plan)
}
