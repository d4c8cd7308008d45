package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the audit record for one billing attempt against a subscription
// period. At most one invoice exists per subscription and period start.
type Invoice struct {
	ID             string          `db:"id" json:"id"`
	SubscriptionID string          `db:"subscription_id" json:"subscription_id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	PeriodStart    time.Time       `db:"period_start" json:"period_start"`
	PeriodEnd      time.Time       `db:"period_end" json:"period_end"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	FailureReason  *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	LedgerEntryID  *string         `db:"ledger_entry_id" json:"ledger_entry_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
