package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/marketbill/internal/activity"
	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/config"
	"github.com/edvin/marketbill/internal/core"
	"github.com/edvin/marketbill/internal/db"
	"github.com/edvin/marketbill/internal/logging"
	"github.com/edvin/marketbill/internal/metrics"
	"github.com/edvin/marketbill/internal/workflow"
)

const taskQueue = "marketbill-tasks"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()

	metrics.RegisterPgxPoolMetrics(corePool)

	tc, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	services := core.NewServices(corePool)
	renewals := billing.NewRenewalProcessor(
		services.Subscription, services.Plan, services.Wallet,
		services.Invoice, services.Notification, logger)
	locks := billing.NewLockProcessor(
		services.Subscription, services.Notification, cfg.DataRetentionDays, logger)
	controller := billing.NewController(
		services.Subscription, renewals, locks, services.JobRun,
		cfg.BillingGraceDays, cfg.BillingConcurrency, logger)

	w := worker.New(tc, taskQueue, worker.Options{})

	w.RegisterActivity(activity.NewBilling(controller))
	w.RegisterWorkflow(workflow.BillingCycleWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", taskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Register the cron schedule. An already-existing schedule is fine so
	// that re-deploys do not fail.
	registerCronSchedule(ctx, tc, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

func registerCronSchedule(ctx context.Context, tc temporalclient.Client, logger zerolog.Logger) {
	const scheduleID = "billing-cycle-cron"

	_, err := tc.ScheduleClient().Create(ctx, temporalclient.ScheduleOptions{
		ID: scheduleID,
		Spec: temporalclient.ScheduleSpec{
			CronExpressions: []string{"0 1 * * *"},
		},
		Action: &temporalclient.ScheduleWorkflowAction{
			ID:        scheduleID,
			Workflow:  workflow.BillingCycleWorkflow,
			TaskQueue: taskQueue,
		},
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
			logger.Info().Str("id", scheduleID).Msg("cron schedule already exists, skipping")
		} else {
			logger.Fatal().Err(err).Str("id", scheduleID).Msg("failed to create cron schedule")
		}
	} else {
		logger.Info().Str("id", scheduleID).Str("cron", "0 1 * * *").Msg("created cron schedule")
	}
}
