package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/marketbill/internal/model"
)

// Processor outcomes.
const (
	OutcomeRenewed = "renewed"
	OutcomePastDue = "past_due"
	OutcomeLocked  = "locked"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

const notifyTimeout = 5 * time.Second

// RenewalResult describes what happened to one subscription during a sweep.
type RenewalResult struct {
	Outcome  string
	Notified bool
}

// RenewalProcessor renews a single subscription: it charges the wallet,
// advances the billing period and writes the invoice trail.
type RenewalProcessor struct {
	subs     SubscriptionStore
	plans    PlanStore
	wallet   WalletLedger
	invoices InvoiceStore
	notifier NotificationDispatcher
	logger   zerolog.Logger
}

func NewRenewalProcessor(subs SubscriptionStore, plans PlanStore, wallet WalletLedger, invoices InvoiceStore, notifier NotificationDispatcher, logger zerolog.Logger) *RenewalProcessor {
	return &RenewalProcessor{
		subs:     subs,
		plans:    plans,
		wallet:   wallet,
		invoices: invoices,
		notifier: notifier,
		logger:   logger,
	}
}

// Renew processes one eligible subscription snapshot. The snapshot comes
// from the sweep query; Renew re-reads the row first and skips when another
// runner already advanced it. The debit idempotency key is derived from the
// subscription and the period end it is paying for, so concurrent sweeps
// charge the wallet at most once per period.
func (p *RenewalProcessor) Renew(ctx context.Context, snapshot model.Subscription, now time.Time) (RenewalResult, error) {
	sub, err := p.subs.GetByID(ctx, snapshot.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenewalResult{Outcome: OutcomeSkipped}, nil
		}
		return RenewalResult{Outcome: OutcomeError}, fmt.Errorf("reload subscription %s: %w", snapshot.ID, err)
	}

	// Another runner moved the row since the sweep selected it.
	if sub.Status != snapshot.Status || !sub.CurrentPeriodEnd.Equal(snapshot.CurrentPeriodEnd) {
		return RenewalResult{Outcome: OutcomeSkipped}, nil
	}
	// Only active rows renew on the sweep. Trials and past_due rows are
	// either paid for through an explicit reactivation or retired by the
	// lock sweep; checking the transition table keeps a stale snapshot
	// from ever charging them here.
	if !CanTransition(sub.Status, EventRenewalSucceeded) {
		return RenewalResult{Outcome: OutcomeSkipped}, nil
	}

	plan, err := p.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return RenewalResult{Outcome: OutcomeError}, fmt.Errorf("load plan %s: %w", sub.PlanID, err)
	}

	periodStart := sub.CurrentPeriodEnd
	periodEnd := sub.CurrentPeriodEnd.AddDate(0, 1, 0)
	idemKey := renewalIdempotencyKey(sub.ID, sub.CurrentPeriodEnd)
	description := fmt.Sprintf("renewal %s for period starting %s", plan.Name, periodStart.Format(time.DateOnly))

	entry, err := p.wallet.Debit(ctx, sub.TenantID, plan.Price, idemKey, description)
	switch {
	case err == nil:
		return p.completeRenewal(ctx, sub, plan, entry, periodStart, periodEnd)

	case errors.Is(err, ErrInsufficientFunds):
		return p.failRenewal(ctx, sub, plan, periodStart, periodEnd)

	case errors.Is(err, ErrConflict):
		// The period was already paid for by an earlier attempt.
		return RenewalResult{Outcome: OutcomeSkipped}, nil

	default:
		return RenewalResult{Outcome: OutcomeError}, fmt.Errorf("debit wallet for subscription %s: %w", sub.ID, err)
	}
}

func (p *RenewalProcessor) completeRenewal(ctx context.Context, sub *model.Subscription, plan *model.Plan, entry *model.LedgerEntry, periodStart, periodEnd time.Time) (RenewalResult, error) {
	err := p.subs.AdvancePeriod(ctx, sub.ID, sub.Status, sub.CurrentPeriodEnd, periodStart, periodEnd)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the race after charging. Put the money back under a
			// distinct key so the reversal itself is idempotent too.
			reversalKey := reversalIdempotencyKey(sub.ID, sub.CurrentPeriodEnd)
			if _, crErr := p.wallet.Credit(ctx, sub.TenantID, plan.Price, reversalKey, "renewal reversal after concurrent update"); crErr != nil && !errors.Is(crErr, ErrConflict) {
				p.logger.Error().Err(crErr).
					Str("subscription_id", sub.ID).
					Str("tenant_id", sub.TenantID).
					Msg("failed to reverse renewal debit")
			}
			return RenewalResult{Outcome: OutcomeSkipped}, nil
		}
		return RenewalResult{Outcome: OutcomeError}, fmt.Errorf("advance period for subscription %s: %w", sub.ID, err)
	}

	inv := &model.Invoice{
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Status:         model.InvoiceStatusPaid,
		LedgerEntryID:  &entry.ID,
	}
	if err := p.invoices.Create(ctx, inv); err != nil && !errors.Is(err, ErrConflict) {
		// The charge and the period advance already happened; the invoice is
		// an audit record, so log loudly and keep the renewal.
		p.logger.Error().Err(err).
			Str("subscription_id", sub.ID).
			Msg("failed to record paid invoice")
	}

	notified := p.notify(ctx, model.NotificationEvent{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		EventType:      model.EventSubscriptionRenewed,
		Payload: map[string]any{
			"plan_id":      plan.ID,
			"plan_name":    plan.Name,
			"amount":       plan.Price.String(),
			"currency":     plan.Currency,
			"balance":      entry.BalanceAfter.String(),
			"period_start": periodStart,
			"period_end":   periodEnd,
		},
	})

	return RenewalResult{Outcome: OutcomeRenewed, Notified: notified}, nil
}

func (p *RenewalProcessor) failRenewal(ctx context.Context, sub *model.Subscription, plan *model.Plan, periodStart, periodEnd time.Time) (RenewalResult, error) {
	if err := p.subs.MarkPastDue(ctx, sub.ID, sub.Status, sub.CurrentPeriodEnd); err != nil {
		if errors.Is(err, ErrConflict) {
			return RenewalResult{Outcome: OutcomeSkipped}, nil
		}
		return RenewalResult{Outcome: OutcomeError}, fmt.Errorf("mark subscription %s past due: %w", sub.ID, err)
	}

	reason := model.InvoiceFailureInsufficientBalance
	inv := &model.Invoice{
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Status:         model.InvoiceStatusFailed,
		FailureReason:  &reason,
	}
	if err := p.invoices.Create(ctx, inv); err != nil && !errors.Is(err, ErrConflict) {
		p.logger.Error().Err(err).
			Str("subscription_id", sub.ID).
			Msg("failed to record failed invoice")
	}

	// The failed debit returns no entry, so the remaining balance is read
	// separately. Best effort: the notification goes out either way.
	balance := ""
	if w, werr := p.wallet.GetByTenant(ctx, sub.TenantID); werr == nil {
		balance = w.Balance.String()
	} else {
		p.logger.Warn().Err(werr).
			Str("tenant_id", sub.TenantID).
			Msg("failed to read wallet balance for notification")
	}

	notified := p.notify(ctx, model.NotificationEvent{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		EventType:      model.EventRenewalFailed,
		Payload: map[string]any{
			"plan_id":   plan.ID,
			"plan_name": plan.Name,
			"amount":    plan.Price.String(),
			"currency":  plan.Currency,
			"balance":   balance,
			"reason":    model.InvoiceFailureInsufficientBalance,
		},
	})

	return RenewalResult{Outcome: OutcomePastDue, Notified: notified}, nil
}

func (p *RenewalProcessor) notify(ctx context.Context, ev model.NotificationEvent) bool {
	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := p.notifier.Notify(nctx, ev); err != nil {
		p.logger.Warn().Err(err).
			Str("tenant_id", ev.TenantID).
			Str("event_type", ev.EventType).
			Msg("notification dispatch failed")
		return false
	}
	return true
}

func renewalIdempotencyKey(subscriptionID string, periodEnd time.Time) string {
	return fmt.Sprintf("renew:%s:%s", subscriptionID, periodEnd.UTC().Format(time.RFC3339))
}

func reversalIdempotencyKey(subscriptionID string, periodEnd time.Time) string {
	return fmt.Sprintf("renew-reversal:%s:%s", subscriptionID, periodEnd.UTC().Format(time.RFC3339))
}
