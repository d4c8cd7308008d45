package model

// Subscription lifecycle statuses.
const (
	SubscriptionStatusTrial    = "trial"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusLocked   = "locked"
)

// Lock reasons recorded when a subscription transitions to locked.
const (
	LockReasonTrialExpired        = "trial_expired"
	LockReasonSubscriptionExpired = "subscription_expired"
	LockReasonPaymentOverdue      = "payment_overdue"
)

// Invoice statuses.
const (
	InvoiceStatusPaid   = "paid"
	InvoiceStatusFailed = "failed"
)

// Invoice failure reasons.
const (
	InvoiceFailureInsufficientBalance = "insufficient_balance"
)

// Ledger entry types.
const (
	LedgerEntryTypeDebit  = "debit"
	LedgerEntryTypeCredit = "credit"
)

// Notification event types emitted by the billing engine.
const (
	EventSubscriptionRenewed = "subscription_renewed"
	EventRenewalFailed       = "renewal_failed"
	EventAccountLocked       = "account_locked"
)

// Billing job trigger sources.
const (
	TriggerScheduler = "scheduler"
	TriggerManual    = "manual"
)

var validSubscriptionStatuses = map[string]bool{
	SubscriptionStatusTrial:    true,
	SubscriptionStatusActive:   true,
	SubscriptionStatusPastDue:  true,
	SubscriptionStatusCanceled: true,
	SubscriptionStatusLocked:   true,
}

// IsValidSubscriptionStatus reports whether s is a known lifecycle status.
func IsValidSubscriptionStatus(s string) bool {
	return validSubscriptionStatuses[s]
}

var validLockReasons = map[string]bool{
	LockReasonTrialExpired:        true,
	LockReasonSubscriptionExpired: true,
	LockReasonPaymentOverdue:      true,
}

// IsValidLockReason reports whether r is a known lock reason.
func IsValidLockReason(r string) bool {
	return validLockReasons[r]
}
