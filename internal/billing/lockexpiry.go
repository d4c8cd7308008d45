package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/marketbill/internal/model"
)

// LockProcessor moves overdue, trial-expired and run-out subscriptions into
// the locked state and schedules their data for purge.
type LockProcessor struct {
	subs          SubscriptionStore
	notifier      NotificationDispatcher
	retentionDays int
	logger        zerolog.Logger
}

func NewLockProcessor(subs SubscriptionStore, notifier NotificationDispatcher, retentionDays int, logger zerolog.Logger) *LockProcessor {
	return &LockProcessor{
		subs:          subs,
		notifier:      notifier,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// LockResult describes what happened to one lock candidate.
type LockResult struct {
	Outcome  string // OutcomeLocked or OutcomeSkipped
	Notified bool
}

var lockEvents = map[string]Event{
	model.LockReasonTrialExpired:        EventTrialExpired,
	model.LockReasonPaymentOverdue:      EventGraceExpired,
	model.LockReasonSubscriptionExpired: EventPeriodExpired,
}

// Lock applies the lock transition to one candidate. The sweep query picks
// the reason; Lock verifies the transition is still legal for the current
// status and compare-and-swaps the row, so two runners cannot both claim it.
func (p *LockProcessor) Lock(ctx context.Context, cand LockCandidate, now time.Time) (LockResult, error) {
	sub := cand.Subscription

	event, ok := lockEvents[cand.Reason]
	if !ok {
		return LockResult{}, fmt.Errorf("unknown lock reason %q for subscription %s", cand.Reason, sub.ID)
	}
	if next, legal := Next(sub.Status, event); !legal || next != model.SubscriptionStatusLocked {
		return LockResult{Outcome: OutcomeSkipped}, nil
	}

	purgeAfter := now.AddDate(0, 0, p.retentionDays)
	err := p.subs.Lock(ctx, sub.ID, sub.Status, cand.Reason, now, purgeAfter)
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return LockResult{Outcome: OutcomeSkipped}, nil
		}
		return LockResult{}, fmt.Errorf("lock subscription %s: %w", sub.ID, err)
	}

	notified := true
	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	nerr := p.notifier.Notify(nctx, model.NotificationEvent{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		EventType:      model.EventAccountLocked,
		Payload: map[string]any{
			"reason":      cand.Reason,
			"locked_at":   now,
			"purge_after": purgeAfter,
		},
	})
	if nerr != nil {
		notified = false
		p.logger.Warn().Err(nerr).
			Str("tenant_id", sub.TenantID).
			Str("subscription_id", sub.ID).
			Msg("lock notification dispatch failed")
	}

	return LockResult{Outcome: OutcomeLocked, Notified: notified}, nil
}
