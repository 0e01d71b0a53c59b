package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/podforge/internal"
	"github.com/DukeRupert/podforge/internal/billing"
	"github.com/DukeRupert/podforge/internal/entitlement"
	"github.com/DukeRupert/podforge/internal/generation/mock"
	"github.com/DukeRupert/podforge/internal/handler"
	"github.com/DukeRupert/podforge/internal/jobs"
	"github.com/DukeRupert/podforge/internal/ledger"
	"github.com/DukeRupert/podforge/internal/metrics"
	"github.com/DukeRupert/podforge/internal/middleware"
	"github.com/DukeRupert/podforge/internal/quota"
	"github.com/DukeRupert/podforge/internal/ratelimit"
	"github.com/DukeRupert/podforge/internal/service"
	"github.com/DukeRupert/podforge/internal/storage"
	"github.com/DukeRupert/podforge/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func serve(ctx context.Context, e *env) error {
	cfg, logger, store := e.cfg, e.logger, e.store

	// Run migrations
	if err := internal.RunMigrations(ctx, e.db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize storage
	localCfg, r2Cfg := cfg.Storage()
	files, err := storage.New(cfg.StorageProvider, localCfg, r2Cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// ==========================================================================
	// Entitlement core
	// ==========================================================================

	limiter := ratelimit.New(store, cfg.RateLimits, logger, ratelimit.WithJitter(cfg.RetryJitterMax, nil))
	scheduler := worker.NewScheduler(store, logger)
	subscriptions := ledger.New(store, scheduler, logger)
	tracker := quota.NewTracker(store, logger)
	gate := entitlement.NewGate(limiter, subscriptions, tracker, logger)

	// Initialize services
	previews := service.NewPreviewRenderer(service.PreviewMaxWidth, service.PreviewMaxHeight)
	generationService := service.NewGenerationService(gate, mock.New(logger), files, tracker, previews, logger)
	podcastService := service.NewPodcastService(gate, files, tracker, logger)
	uploadService := service.NewUploadService(gate, files, cfg.MaxUploadSize, logger)

	// Billing is optional in development; handlers answer 503 without it
	var billingAPI handler.Billing
	var webhooks handler.WebhookProcessor
	if cfg.BillingEnabled() {
		stripeService := billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		plans, err := billing.NewPlanResolver(cfg.Prices(), stripeService, 0, logger)
		if err != nil {
			return fmt.Errorf("plan resolver initialization failed: %w", err)
		}
		billingAPI = service.NewBillingService(stripeService, subscriptions, cfg.Prices(), cfg.BaseURL, logger)
		webhooks = billing.NewProcessor(cfg.StripeWebhookSecret, subscriptions, store, stripeService, plans, logger)
	} else {
		logger.Warn("Stripe is not configured, billing endpoints are disabled")
	}

	// ==========================================================================
	// Middleware and handlers
	// ==========================================================================

	identity := middleware.NewIdentityMiddleware(cfg.IdentityHeader, logger)
	billingLimit := middleware.NewRateLimitMiddleware(limiter, ratelimit.KindBilling, logger)
	requestLogger := middleware.NewRequestLoggingMiddleware(logger)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(cfg.Env != "development")
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)

	generationHandler := handler.NewGenerationHandler(generationService, podcastService, logger)
	uploadHandler := handler.NewUploadHandler(uploadService, logger)
	billingHandler := handler.NewBillingHandler(subscriptions, billingAPI, logger)
	webhookHandler := handler.NewWebhookHandler(webhooks, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			logger.Error("Health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (optionally behind basic auth)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Locally stored artifacts
	if local, ok := files.(*storage.LocalStorage); ok {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(local.BasePath()))))
	}

	requireUser := identity.RequireIdentity
	generationHandler.RegisterRoutes(mux, requireUser)
	uploadHandler.RegisterRoutes(mux, requireUser)
	billingHandler.RegisterRoutes(mux, requireUser, billingLimit.Limit)
	webhookHandler.RegisterRoutes(mux)

	stack := middleware.Stack(
		metrics.Middleware,
		requestLogger.Handler,
		securityHeaders.Handler,
		identity.WithIdentity,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ==========================================================================
	// Start server and background loops
	// ==========================================================================

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		limiter.RunPruner(gctx, store, ratelimit.DefaultPruneInterval)
		return nil
	})

	if cfg.WorkerEnabled {
		w, err := worker.New(store, cfg.Worker(), logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(jobs.NewDeferredTransitionHandler(subscriptions, logger))
		w.Register(jobs.NewResetUsageHandler(tracker, logger))

		g.Go(func() error {
			w.Start(gctx)
			<-gctx.Done()
			w.Stop()
			return nil
		})

		g.Go(func() error {
			worker.NewMonthlyTrigger(store, logger).Run(gctx)
			return nil
		})
	} else {
		logger.Warn("Worker disabled, deferred transitions and monthly resets will not run")
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Graceful shutdown complete")
	return nil
}
