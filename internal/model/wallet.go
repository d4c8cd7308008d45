package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a tenant's prepaid balance. The balance never goes negative.
type Wallet struct {
	ID        string          `db:"id" json:"id"`
	TenantID  string          `db:"tenant_id" json:"tenant_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Currency  string          `db:"currency" json:"currency"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is one immutable movement on a wallet. The idempotency key is
// unique across all entries, which is what makes retried debits safe.
type LedgerEntry struct {
	ID             string          `db:"id" json:"id"`
	WalletID       string          `db:"wallet_id" json:"wallet_id"`
	EntryType      string          `db:"entry_type" json:"entry_type"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter   decimal.Decimal `db:"balance_after" json:"balance_after"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key"`
	Description    string          `db:"description" json:"description"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
