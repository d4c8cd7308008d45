package model

import "time"

// Subscription binds a tenant to a plan and tracks the billing lifecycle.
// A tenant has at most one subscription that is not locked.
type Subscription struct {
	ID                 string     `db:"id" json:"id"`
	TenantID           string     `db:"tenant_id" json:"tenant_id"`
	PlanID             string     `db:"plan_id" json:"plan_id"`
	Status             string     `db:"status" json:"status"`
	CurrentPeriodStart time.Time  `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `db:"current_period_end" json:"current_period_end"`
	TrialEndsAt        *time.Time `db:"trial_ends_at" json:"trial_ends_at,omitempty"`
	CanceledAt         *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
	LockedAt           *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	LockReason         *string    `db:"lock_reason" json:"lock_reason,omitempty"`
	PurgeAfter         *time.Time `db:"purge_after" json:"purge_after,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
