package billing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edvin/marketbill/internal/model"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional update lost the race or an
	// idempotency key already exists.
	ErrConflict = errors.New("conflict")

	// ErrInsufficientFunds is returned when a debit would take the wallet
	// balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// WalletLedger moves money on tenant wallets. Debit and Credit are atomic
// and idempotent: a repeated call with the same key returns ErrConflict and
// leaves the balance untouched.
type WalletLedger interface {
	GetByTenant(ctx context.Context, tenantID string) (*model.Wallet, error)
	Debit(ctx context.Context, tenantID string, amount decimal.Decimal, idempotencyKey, description string) (*model.LedgerEntry, error)
	Credit(ctx context.Context, tenantID string, amount decimal.Decimal, idempotencyKey, description string) (*model.LedgerEntry, error)
}

// SubscriptionStore is the persistence surface the billing engine needs.
// The mutating calls are compare-and-swap: they only apply when the row
// still matches the expected prior state, and return ErrConflict otherwise.
// AdvancePeriod always lands the row on active, which is also how a paid
// trial converts.
type SubscriptionStore interface {
	GetByID(ctx context.Context, id string) (*model.Subscription, error)
	QueryRenewalEligible(ctx context.Context, now time.Time) ([]model.Subscription, error)
	QueryLockEligible(ctx context.Context, now time.Time, graceDays int) ([]LockCandidate, error)
	AdvancePeriod(ctx context.Context, id string, fromStatus string, expectedPeriodEnd, newPeriodStart, newPeriodEnd time.Time) error
	MarkPastDue(ctx context.Context, id string, fromStatus string, expectedPeriodEnd time.Time) error
	Lock(ctx context.Context, id string, fromStatus, reason string, lockedAt, purgeAfter time.Time) error
}

// LockCandidate pairs a subscription with the reason the lock sweep
// selected it.
type LockCandidate struct {
	Subscription model.Subscription
	Reason       string
}

// PlanStore resolves plans for pricing.
type PlanStore interface {
	GetByID(ctx context.Context, id string) (*model.Plan, error)
}

// InvoiceStore persists billing attempt records.
type InvoiceStore interface {
	Create(ctx context.Context, inv *model.Invoice) error
}

// NotificationDispatcher hands lifecycle events to the delivery pipeline.
// Dispatch failures never affect billing outcomes.
type NotificationDispatcher interface {
	Notify(ctx context.Context, ev model.NotificationEvent) error
}

// JobRunStore records completed billing cycle invocations.
type JobRunStore interface {
	RecordRun(ctx context.Context, run *model.JobRun) error
}
