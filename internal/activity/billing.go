package activity

import (
	"context"
	"time"

	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/model"
)

// Billing wraps the cycle controller so Temporal can invoke it.
type Billing struct {
	controller *billing.Controller
}

func NewBilling(controller *billing.Controller) *Billing {
	return &Billing{controller: controller}
}

// RunBillingCycle executes one full billing cycle. Safe to retry: renewal
// debits are idempotency-keyed and state changes are compare-and-swap.
func (b *Billing) RunBillingCycle(ctx context.Context, now time.Time) (*billing.Summary, error) {
	return b.controller.Run(ctx, model.TriggerScheduler, now)
}
