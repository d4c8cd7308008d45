package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a purchasable subscription plan. Price is a fixed monthly amount
// in the plan's currency.
type Plan struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Currency  string          `db:"currency" json:"currency"`
	TrialDays int             `db:"trial_days" json:"trial_days"`
	Active    bool            `db:"active" json:"active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
