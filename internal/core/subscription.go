package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/model"
	"github.com/edvin/marketbill/internal/platform"
)

const subscriptionColumns = `id, tenant_id, plan_id, status, current_period_start, current_period_end,
	 trial_ends_at, canceled_at, locked_at, lock_reason, purge_after, created_at, updated_at`

type SubscriptionService struct {
	db DB
}

func NewSubscriptionService(db DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

func scanSubscription(row interface{ Scan(dest ...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.TrialEndsAt, &sub.CanceledAt, &sub.LockedAt, &sub.LockReason,
		&sub.PurgeAfter, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Create signs a tenant up on a plan. Plans with trial days start in trial
// with the first period covering the trial; otherwise the caller must have
// funded the wallet and the subscription starts active. A partial unique
// index on tenant_id over non-locked rows rejects double signups.
func (s *SubscriptionService) Create(ctx context.Context, tenantID string, plan *model.Plan, now time.Time) (*model.Subscription, error) {
	sub := &model.Subscription{
		ID:                 platform.NewID(),
		TenantID:           tenantID,
		PlanID:             plan.ID,
		CurrentPeriodStart: now,
	}

	if plan.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, plan.TrialDays)
		sub.Status = model.SubscriptionStatusTrial
		sub.TrialEndsAt = &trialEnd
		sub.CurrentPeriodEnd = trialEnd
	} else {
		sub.Status = model.SubscriptionStatusActive
		sub.CurrentPeriodEnd = now.AddDate(0, 1, 0)
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO subscriptions (id, tenant_id, plan_id, status, current_period_start, current_period_end, trial_ends_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		sub.ID, sub.TenantID, sub.PlanID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEndsAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("tenant %s already has a subscription: %w", tenantID, billing.ErrConflict)
		}
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionService) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, mapNotFound(err))
	}
	return sub, nil
}

// GetByTenant returns the tenant's current (non-locked) subscription.
func (s *SubscriptionService) GetByTenant(ctx context.Context, tenantID string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE tenant_id = $1 AND status != $2
		 ORDER BY created_at DESC LIMIT 1`,
		tenantID, model.SubscriptionStatusLocked,
	))
	if err != nil {
		return nil, fmt.Errorf("get subscription for tenant %s: %w", tenantID, mapNotFound(err))
	}
	return sub, nil
}

// QueryRenewalEligible returns active subscriptions due for a renewal
// attempt. The window is widened by a day so a sweep that runs slightly
// early still picks up periods ending later the same day. No other status
// renews on the sweep: trials and past_due rows either get paid for through
// an explicit reactivation or are retired by the lock sweep.
func (s *SubscriptionService) QueryRenewalEligible(ctx context.Context, now time.Time) ([]model.Subscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status = $1 AND current_period_end < $2 + interval '1 day'
		 ORDER BY current_period_end`,
		model.SubscriptionStatusActive, now,
	)
	if err != nil {
		return nil, fmt.Errorf("query renewal eligible: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan renewal eligible: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate renewal eligible: %w", err)
	}
	return subs, nil
}

// QueryLockEligible returns subscriptions that should be locked, each tagged
// with the reason the predicate matched.
func (s *SubscriptionService) QueryLockEligible(ctx context.Context, now time.Time, graceDays int) ([]billing.LockCandidate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+`, $5::text AS reason FROM subscriptions
		 WHERE status = $1 AND trial_ends_at < $4
		 UNION ALL
		 SELECT `+subscriptionColumns+`, $6::text FROM subscriptions
		 WHERE status = $2 AND current_period_end + make_interval(days => $7) < $4
		 UNION ALL
		 SELECT `+subscriptionColumns+`, $8::text FROM subscriptions
		 WHERE status = $3 AND current_period_end < $4`,
		model.SubscriptionStatusTrial, model.SubscriptionStatusPastDue, model.SubscriptionStatusCanceled,
		now,
		model.LockReasonTrialExpired, model.LockReasonPaymentOverdue, graceDays, model.LockReasonSubscriptionExpired,
	)
	if err != nil {
		return nil, fmt.Errorf("query lock eligible: %w", err)
	}
	defer rows.Close()

	var candidates []billing.LockCandidate
	for rows.Next() {
		var sub model.Subscription
		var reason string
		err := rows.Scan(
			&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Status,
			&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
			&sub.TrialEndsAt, &sub.CanceledAt, &sub.LockedAt, &sub.LockReason,
			&sub.PurgeAfter, &sub.CreatedAt, &sub.UpdatedAt,
			&reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan lock eligible: %w", err)
		}
		candidates = append(candidates, billing.LockCandidate{Subscription: sub, Reason: reason})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lock eligible: %w", err)
	}
	return candidates, nil
}

// AdvancePeriod moves a paid subscription to its next billing period and
// lands it on active. The update only applies while the row still has the
// expected status and period end.
func (s *SubscriptionService) AdvancePeriod(ctx context.Context, id string, fromStatus string, expectedPeriodEnd, newPeriodStart, newPeriodEnd time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1, current_period_start = $2, current_period_end = $3, updated_at = now()
		 WHERE id = $4 AND status = $5 AND current_period_end = $6`,
		model.SubscriptionStatusActive, newPeriodStart, newPeriodEnd,
		id, fromStatus, expectedPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("advance period for subscription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrConflict
	}
	return nil
}

func (s *SubscriptionService) MarkPastDue(ctx context.Context, id string, fromStatus string, expectedPeriodEnd time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions SET status = $1, updated_at = now()
		 WHERE id = $2 AND status = $3 AND current_period_end = $4`,
		model.SubscriptionStatusPastDue, id, fromStatus, expectedPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("mark subscription %s past due: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrConflict
	}
	return nil
}

func (s *SubscriptionService) Lock(ctx context.Context, id string, fromStatus, reason string, lockedAt, purgeAfter time.Time) error {
	if !model.IsValidLockReason(reason) {
		return fmt.Errorf("lock subscription %s: unknown lock reason %q", id, reason)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1, lock_reason = $2, locked_at = $3, purge_after = $4, updated_at = now()
		 WHERE id = $5 AND status = $6`,
		model.SubscriptionStatusLocked, reason, lockedAt, purgeAfter, id, fromStatus,
	)
	if err != nil {
		return fmt.Errorf("lock subscription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrConflict
	}
	return nil
}

// Cancel stops future renewals. The subscription keeps running until its
// period ends, after which the lock sweep retires it.
func (s *SubscriptionService) Cancel(ctx context.Context, id string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions SET status = $1, canceled_at = $2, updated_at = now()
		 WHERE id = $3 AND status IN ($4, $5, $6)`,
		model.SubscriptionStatusCanceled, now, id,
		model.SubscriptionStatusTrial, model.SubscriptionStatusActive, model.SubscriptionStatusPastDue,
	)
	if err != nil {
		return fmt.Errorf("cancel subscription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrConflict
	}
	return nil
}

// Reactivate undoes a cancelation before the period runs out.
func (s *SubscriptionService) Reactivate(ctx context.Context, id string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions SET status = $1, canceled_at = NULL, updated_at = now()
		 WHERE id = $2 AND status = $3 AND current_period_end > $4`,
		model.SubscriptionStatusActive, id, model.SubscriptionStatusCanceled, now,
	)
	if err != nil {
		return fmt.Errorf("reactivate subscription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrConflict
	}
	return nil
}

// Unlock restores a locked subscription to active on a fresh period. Used by
// the reactivation path after the wallet has been charged for the new
// period; never called by the sweeps.
func (s *SubscriptionService) Unlock(ctx context.Context, id string, newPeriodStart, newPeriodEnd time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1, lock_reason = NULL, locked_at = NULL, purge_after = NULL, canceled_at = NULL,
		     current_period_start = $2, current_period_end = $3, updated_at = now()
		 WHERE id = $4 AND status = $5`,
		model.SubscriptionStatusActive, newPeriodStart, newPeriodEnd,
		id, model.SubscriptionStatusLocked,
	)
	if err != nil {
		return fmt.Errorf("unlock subscription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrConflict
	}
	return nil
}

// ListByTenant returns a tenant's subscriptions, locked ones included, with
// cursor-based pagination. A non-empty status narrows the result to rows in
// that status.
func (s *SubscriptionService) ListByTenant(ctx context.Context, tenantID, status string, limit int, cursor string) ([]model.Subscription, bool, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, status)
		argIdx++
	}

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list subscriptions for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate subscriptions: %w", err)
	}

	hasMore := len(subs) > limit
	if hasMore {
		subs = subs[:limit]
	}
	return subs, hasMore, nil
}
