package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/marketbill/internal/billing"
)

// BillingCycleWorkflow runs one daily billing cycle. The cycle itself is
// idempotent, so a single retry after a transient failure cannot double
// charge anyone.
func BillingCycleWorkflow(ctx workflow.Context) (*billing.Summary, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var summary billing.Summary
	err := workflow.ExecuteActivity(ctx, "RunBillingCycle", workflow.Now(ctx).UTC()).Get(ctx, &summary)
	if err != nil {
		return nil, fmt.Errorf("run billing cycle: %w", err)
	}

	workflow.GetLogger(ctx).Info("billing cycle finished",
		"renewed", summary.Renewed,
		"failed_insufficient_balance", summary.FailedInsufficientBalance,
		"locked", summary.Locked,
		"skipped", summary.Skipped)

	return &summary, nil
}
