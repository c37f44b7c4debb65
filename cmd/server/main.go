package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"memebot/internal/consent/handler"
	consentmetrics "memebot/internal/consent/metrics"
	"memebot/internal/consent/service"
	"memebot/internal/consent/store"
	"memebot/internal/platform/config"
	"memebot/internal/platform/health"
	"memebot/internal/platform/httpserver"
	"memebot/internal/platform/logger"
	"memebot/internal/platform/tracer"
	"memebot/internal/policy"
	httptransport "memebot/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	log.Info("initializing memebot consent core",
		"addr", cfg.Addr,
		"consent_file", cfg.ConsentFile,
		"policy_file", cfg.PolicyFile,
		"renew_days", cfg.RenewDays,
		"environment", cfg.Environment,
	)
	if cfg.AdminToken == "" {
		log.Warn("no admin token configured; admin endpoints will reject all requests")
	}

	fileStore := store.NewFileStore(cfg.ConsentFile, store.WithAuditKeepLast(cfg.AuditKeepLast))
	policySource := policy.NewSource(cfg.PolicyFile, cfg.PublicPolicyURL)
	log.Info("resolved policy fingerprint", "policy_version", policySource.Version())

	consentService := service.NewService(fileStore, policySource, log,
		service.WithMetrics(consentmetrics.New()),
		service.WithTracer(tracer.NewOTel()),
		service.WithRenewDays(cfg.RenewDays),
	)

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterCheck("policy_document", func() error {
		_, err := os.Stat(cfg.PolicyFile)
		return err
	})
	healthHandler.RegisterCheck("consent_store", func() error {
		return os.MkdirAll(filepath.Dir(fileStore.Path()), 0o750)
	})

	consentHandler := handler.New(consentService, log)
	router := httptransport.NewRouter(consentHandler, healthHandler, cfg.AdminToken, log)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
