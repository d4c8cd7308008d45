package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/marketbill/internal/metrics"
	"github.com/edvin/marketbill/internal/model"
)

// Summary aggregates the outcomes of one billing cycle.
type Summary struct {
	RunID                     string    `json:"run_id"`
	TriggeredBy               string    `json:"triggered_by"`
	StartedAt                 time.Time `json:"started_at"`
	FinishedAt                time.Time `json:"finished_at"`
	Renewed                   int       `json:"renewed"`
	FailedInsufficientBalance int       `json:"failed_insufficient_balance"`
	FailedOther               int       `json:"failed_other"`
	Locked                    int       `json:"locked"`
	Skipped                   int       `json:"skipped"`
	NotificationsSent         int       `json:"notifications_sent"`
	Errors                    []string  `json:"errors,omitempty"`
}

// Controller runs the full billing cycle: the renewal sweep followed by the
// lock sweep, with one job run record per invocation.
type Controller struct {
	subs        SubscriptionStore
	renewals    *RenewalProcessor
	locks       *LockProcessor
	runs        JobRunStore
	graceDays   int
	concurrency int
	logger      zerolog.Logger
}

func NewController(subs SubscriptionStore, renewals *RenewalProcessor, locks *LockProcessor, runs JobRunStore, graceDays, concurrency int, logger zerolog.Logger) *Controller {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Controller{
		subs:        subs,
		renewals:    renewals,
		locks:       locks,
		runs:        runs,
		graceDays:   graceDays,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run executes one billing cycle at the given clock reading. A failure on a
// single subscription is counted and the cycle continues; only a failed
// sweep query aborts the run. Exactly one job run record is written, even
// when the cycle aborts partway.
func (c *Controller) Run(ctx context.Context, triggeredBy string, now time.Time) (*Summary, error) {
	summary := &Summary{
		TriggeredBy: triggeredBy,
		StartedAt:   now,
	}

	var mu sync.Mutex
	record := func(fn func(*Summary)) {
		mu.Lock()
		fn(summary)
		mu.Unlock()
	}

	runErr := c.runSweeps(ctx, now, record)

	summary.FinishedAt = time.Now().UTC()

	metrics.BillingCycleRuns.Inc()
	metrics.BillingCycleDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())

	run := &model.JobRun{
		TriggeredBy:               summary.TriggeredBy,
		StartedAt:                 summary.StartedAt,
		FinishedAt:                summary.FinishedAt,
		Success:                   len(summary.Errors) == 0,
		Renewed:                   summary.Renewed,
		FailedInsufficientBalance: summary.FailedInsufficientBalance,
		FailedOther:               summary.FailedOther,
		Locked:                    summary.Locked,
		Skipped:                   summary.Skipped,
		NotificationsSent:         summary.NotificationsSent,
		Errors:                    summary.Errors,
	}
	if err := c.runs.RecordRun(ctx, run); err != nil {
		c.logger.Error().Err(err).Msg("failed to record billing job run")
	} else {
		summary.RunID = run.ID
	}

	c.logger.Info().
		Str("triggered_by", triggeredBy).
		Int("renewed", summary.Renewed).
		Int("failed_insufficient_balance", summary.FailedInsufficientBalance).
		Int("failed_other", summary.FailedOther).
		Int("locked", summary.Locked).
		Int("skipped", summary.Skipped).
		Msg("billing cycle finished")

	return summary, runErr
}

func (c *Controller) runSweeps(ctx context.Context, now time.Time, record func(func(*Summary))) error {
	eligible, err := c.subs.QueryRenewalEligible(ctx, now)
	if err != nil {
		record(func(s *Summary) {
			s.Errors = append(s.Errors, fmt.Sprintf("renewal sweep query: %v", err))
		})
		return fmt.Errorf("query renewal eligible: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, sub := range eligible {
		g.Go(func() error {
			res, rerr := c.renewals.Renew(gctx, sub, now)
			metrics.BillingRenewals.WithLabelValues(res.Outcome).Inc()
			record(func(s *Summary) {
				switch res.Outcome {
				case OutcomeRenewed:
					s.Renewed++
				case OutcomePastDue:
					s.FailedInsufficientBalance++
				case OutcomeSkipped:
					s.Skipped++
				default:
					s.FailedOther++
				}
				if res.Notified {
					s.NotificationsSent++
				}
				if rerr != nil {
					s.Errors = append(s.Errors, rerr.Error())
				}
			})
			if rerr != nil {
				c.logger.Error().Err(rerr).
					Str("subscription_id", sub.ID).
					Msg("renewal failed")
			}
			// Item failures never cancel the group.
			return nil
		})
	}
	g.Wait()

	candidates, err := c.subs.QueryLockEligible(ctx, now, c.graceDays)
	if err != nil {
		record(func(s *Summary) {
			s.Errors = append(s.Errors, fmt.Sprintf("lock sweep query: %v", err))
		})
		return fmt.Errorf("query lock eligible: %w", err)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, cand := range candidates {
		g.Go(func() error {
			res, lerr := c.locks.Lock(gctx, cand, now)
			if res.Outcome == OutcomeLocked {
				metrics.BillingLocks.WithLabelValues(cand.Reason).Inc()
			}
			record(func(s *Summary) {
				switch res.Outcome {
				case OutcomeLocked:
					s.Locked++
				case OutcomeSkipped:
					s.Skipped++
				default:
					s.FailedOther++
				}
				if res.Notified {
					s.NotificationsSent++
				}
				if lerr != nil {
					s.Errors = append(s.Errors, lerr.Error())
				}
			})
			if lerr != nil {
				c.logger.Error().Err(lerr).
					Str("subscription_id", cand.Subscription.ID).
					Msg("lock failed")
			}
			return nil
		})
	}
	g.Wait()

	return nil
}
