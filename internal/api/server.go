package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/marketbill/internal/api/handler"
	mw "github.com/edvin/marketbill/internal/api/middleware"
	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/config"
	"github.com/edvin/marketbill/internal/core"
)

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	corePool       *pgxpool.Pool
	temporalClient temporalclient.Client
	cfg            *config.Config
	auditLogger    *mw.AuditLogger
	controller     *billing.Controller
}

func NewServer(logger zerolog.Logger, coreDB *pgxpool.Pool, temporalClient temporalclient.Client, cfg *config.Config) *Server {
	services := core.NewServices(coreDB)
	auditLogger := mw.NewAuditLogger(coreDB, logger)

	renewals := billing.NewRenewalProcessor(
		services.Subscription, services.Plan, services.Wallet,
		services.Invoice, services.Notification, logger)
	locks := billing.NewLockProcessor(
		services.Subscription, services.Notification, cfg.DataRetentionDays, logger)
	controller := billing.NewController(
		services.Subscription, renewals, locks, services.JobRun,
		cfg.BillingGraceDays, cfg.BillingConcurrency, logger)

	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		corePool:       coreDB,
		temporalClient: temporalClient,
		cfg:            cfg,
		auditLogger:    auditLogger,
		controller:     controller,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	billingHandler := handler.NewBilling(s.controller, s.services.JobRun)

	// Scheduler-facing trigger. Authenticated by a shared bearer token
	// rather than an API key so the external cron needs no key material
	// beyond its token.
	s.router.Group(func(r chi.Router) {
		r.Use(mw.SchedulerAuth(s.cfg.SchedulerToken))
		r.Post("/api/v1/billing/run", billingHandler.Run)
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.corePool))
		r.Use(s.auditLogger.Middleware)

		// Billing cycle history
		r.Get("/billing/runs", billingHandler.ListRuns)

		// Audit logs
		audit := handler.NewAudit(s.corePool)
		r.Get("/audit-logs", audit.List)

		// Plans
		plan := handler.NewPlan(s.services.Plan)
		r.Get("/plans", plan.List)
		r.Get("/plans/{id}", plan.Get)

		// Tenant subscriptions
		subscription := handler.NewSubscription(s.services.Subscription, s.services.Plan, s.services.Wallet)
		r.Post("/tenants/{tenantID}/subscription", subscription.Create)
		r.Get("/tenants/{tenantID}/subscription", subscription.GetByTenant)
		r.Get("/tenants/{tenantID}/subscriptions", subscription.ListByTenant)
		r.Post("/subscriptions/{id}/cancel", subscription.Cancel)
		r.Post("/subscriptions/{id}/reactivate", subscription.Reactivate)

		// Wallets
		wallet := handler.NewWallet(s.services.Wallet)
		r.Get("/tenants/{tenantID}/wallet", wallet.Get)
		r.Post("/tenants/{tenantID}/wallet/topup", wallet.Topup)
		r.Get("/tenants/{tenantID}/wallet/entries", wallet.ListEntries)

		// Invoices
		invoice := handler.NewInvoice(s.services.Invoice)
		r.Get("/tenants/{tenantID}/invoices", invoice.ListByTenant)
		r.Get("/invoices/{id}", invoice.Get)

		// API keys
		apiKey := handler.NewAPIKey(s.services.APIKey)
		r.Get("/api-keys", apiKey.List)
		r.Post("/api-keys", apiKey.Create)
		r.Get("/api-keys/{id}", apiKey.Get)
		r.Delete("/api-keys/{id}", apiKey.Revoke)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.corePool.Ping(ctx); err != nil {
		checks["core_db"] = err.Error()
		healthy = false
	} else {
		checks["core_db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

// Close flushes the async audit log writer.
func (s *Server) Close() {
	s.auditLogger.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
