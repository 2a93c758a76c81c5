package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/astralpost/astralpost/pkg/billing"
	"github.com/astralpost/astralpost/pkg/config"
	"github.com/astralpost/astralpost/pkg/httputil"
	"github.com/astralpost/astralpost/pkg/mailer"
	"github.com/astralpost/astralpost/pkg/observability"
	"github.com/astralpost/astralpost/pkg/store"
	"github.com/astralpost/astralpost/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "astralpost: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var otelMetrics *observability.OTelMetrics
	if otelProviders != nil {
		if otelMetrics, err = observability.NewOTelMetrics(); err != nil {
			return fmt.Errorf("failed to create OTel instruments: %w", err)
		}
	}

	db, err := store.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db); err != nil {
		return err
	}
	store.StartPoolStatsUpdater(ctx, db, metrics, logger, 0)

	rdb, err := store.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	prices, err := billing.LoadPriceMap(cfg.Billing.PriceMapPath, logger)
	if err != nil {
		return err
	}
	if err := prices.Watch(ctx); err != nil {
		logger.WithError(err).Warn("price map hot reload disabled")
	}

	queue := mailer.NewQueue(db, rdb, cfg.Mailer.QueueKey, metrics, logger)
	billingSvc := billing.NewService(db, cfg.Billing, prices, queue, logger, metrics)
	usersSvc := users.NewService(db, cfg.Users.TokenSecret, cfg.Billing.TrialDays, metrics, logger)

	sender := mailer.NewAPISender(cfg.Mailer, logger)
	worker := mailer.NewWorker(db, rdb, cfg.Mailer.QueueKey, sender, cfg.Mailer.Workers,
		cfg.Mailer.MaxAttempts, metrics, logger)

	router := mux.NewRouter()
	billing.NewHandler(billingSvc, logger).RegisterRoutes(router)
	users.NewHandler(usersSvc, logger).RegisterRoutes(router)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		httputil.OTelMetricsMiddleware(otelMetrics),
		httputil.ContentTypeMiddleware,
	)(router)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(handler, "astralpost.api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, rdb))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Run blocks until its context ends, so the worker pool gets its own
	// group task alongside the listeners.
	g.Go(func() error {
		logger.Infof("mail worker pool started with %d workers", cfg.Mailer.Workers)
		worker.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("API server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("health server shutdown failed")
		}
		if err := observability.ShutdownOTel(shutdownCtx, otelProviders, logger); err != nil {
			logger.WithError(err).Error("OpenTelemetry shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
