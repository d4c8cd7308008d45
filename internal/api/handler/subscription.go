package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/marketbill/internal/api/request"
	"github.com/edvin/marketbill/internal/api/response"
	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/core"
	"github.com/edvin/marketbill/internal/model"
)

type Subscription struct {
	subs    *core.SubscriptionService
	plans   *core.PlanService
	wallets *core.WalletService
}

func NewSubscription(subs *core.SubscriptionService, plans *core.PlanService, wallets *core.WalletService) *Subscription {
	return &Subscription{subs: subs, plans: plans, wallets: wallets}
}

// Create signs the tenant up on a plan and makes sure a wallet exists for
// upcoming charges.
func (h *Subscription) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.CreateSubscription
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.plans.GetByID(r.Context(), req.PlanID)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	if _, err := h.wallets.Ensure(r.Context(), tenantID, plan.Currency); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sub, err := h.subs.Create(r.Context(), tenantID, plan, time.Now().UTC())
	if err != nil {
		if errors.Is(err, billing.ErrConflict) {
			response.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, sub)
}

func (h *Subscription) GetByTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.subs.GetByTenant(r.Context(), tenantID)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}

func (h *Subscription) ListByTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !model.IsValidSubscriptionStatus(status) {
		response.WriteError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	p := request.ParsePagination(r)
	subs, hasMore, err := h.subs.ListByTenant(r.Context(), tenantID, status, p.Limit, p.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(subs) > 0 {
		nextCursor = subs[len(subs)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, subs, nextCursor, hasMore)
}

func (h *Subscription) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.subs.Cancel(r.Context(), id, time.Now().UTC()); err != nil {
		if errors.Is(err, billing.ErrConflict) {
			response.WriteError(w, http.StatusConflict, "subscription cannot be canceled in its current state")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sub, err := h.subs.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, sub)
}

// Reactivate brings a subscription back to active. A canceled one simply
// resumes its running period. A trial or past_due one pays for the period
// the sweep could not collect and advances onto it. A locked one requires
// a successful wallet charge for a fresh period first.
func (h *Subscription) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.subs.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	now := time.Now().UTC()

	switch sub.Status {
	case model.SubscriptionStatusCanceled:
		err = h.subs.Reactivate(r.Context(), id, now)

	case model.SubscriptionStatusTrial, model.SubscriptionStatusPastDue:
		err = h.payCurrentPeriod(r, sub)

	case model.SubscriptionStatusLocked:
		err = h.reactivateLocked(r, sub, now)

	default:
		response.WriteError(w, http.StatusConflict, "subscription is already active")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInsufficientFunds):
			response.WriteError(w, http.StatusPaymentRequired, "insufficient wallet balance")
		case errors.Is(err, billing.ErrConflict):
			response.WriteError(w, http.StatusConflict, "subscription changed concurrently")
		default:
			response.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	sub, err = h.subs.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, sub)
}

// payCurrentPeriod charges the wallet for the period the renewal sweep left
// unpaid and advances the subscription onto it, converting a trial or
// recovering a past_due row. The idempotency key matches the one the sweep
// would have used, so the tenant is charged at most once per period even if
// this races a concurrent reactivation.
func (h *Subscription) payCurrentPeriod(r *http.Request, sub *model.Subscription) error {
	plan, err := h.plans.GetByID(r.Context(), sub.PlanID)
	if err != nil {
		return err
	}

	idemKey := fmt.Sprintf("renew:%s:%s", sub.ID, sub.CurrentPeriodEnd.UTC().Format(time.RFC3339))
	if _, err := h.wallets.Debit(r.Context(), sub.TenantID, plan.Price, idemKey,
		fmt.Sprintf("renewal %s for period starting %s", plan.Name, sub.CurrentPeriodEnd.Format(time.DateOnly))); err != nil {
		return err
	}

	return h.subs.AdvancePeriod(r.Context(), sub.ID, sub.Status, sub.CurrentPeriodEnd,
		sub.CurrentPeriodEnd, sub.CurrentPeriodEnd.AddDate(0, 1, 0))
}

func (h *Subscription) reactivateLocked(r *http.Request, sub *model.Subscription, now time.Time) error {
	plan, err := h.plans.GetByID(r.Context(), sub.PlanID)
	if err != nil {
		return err
	}

	idemKey := fmt.Sprintf("reactivate:%s:%s", sub.ID, now.Format(time.DateOnly))
	if _, err := h.wallets.Debit(r.Context(), sub.TenantID, plan.Price, idemKey,
		fmt.Sprintf("reactivation %s", plan.Name)); err != nil {
		return err
	}

	return h.subs.Unlock(r.Context(), sub.ID, now, now.AddDate(0, 1, 0))
}
