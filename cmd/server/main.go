package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"canopy/internal/analysis"
	claimhandler "canopy/internal/claim/handler"
	"canopy/internal/claim/metrics"
	"canopy/internal/claim/service"
	claimstore "canopy/internal/claim/store"
	creditstore "canopy/internal/credit/store"
	"canopy/internal/issuance"
	"canopy/internal/platform/config"
	"canopy/internal/platform/health"
	"canopy/internal/platform/httpserver"
	"canopy/internal/platform/logger"
	"canopy/internal/platform/middleware"
	"canopy/pkg/platform/audit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing claim service",
		"addr", cfg.Addr,
		"imagery_configured", cfg.ImageryURL != "",
		"ledger_configured", cfg.LedgerURL != "",
	)

	claims := claimstore.NewMemory()
	credits := creditstore.NewMemory()

	auditPublisher := audit.NewPublisher(audit.NewMemoryStore(),
		audit.WithAsyncBuffer(cfg.AuditBuffer),
		audit.WithPublisherLogger(log),
	)
	defer auditPublisher.Close()

	var provider analysis.Provider
	if cfg.ImageryURL != "" {
		provider = analysis.NewClient(cfg.ImageryURL, cfg.ImageryAPIKey,
			analysis.WithTimeout(cfg.ImageryTimeout))
	}
	analyzer := analysis.New(provider, analysis.NewFallback(cfg.FallbackSeed),
		analysis.WithLogger(log),
		analysis.WithCacheTTL(cfg.SceneCacheTTL),
		analysis.WithPassThreshold(cfg.PassThreshold),
	)

	var minter issuance.Minter
	if cfg.LedgerURL != "" {
		minter = issuance.NewLedgerClient(cfg.LedgerURL, cfg.LedgerContract,
			issuance.WithLedgerTimeout(cfg.LedgerTimeout))
	}
	issuer := issuance.New(credits, minter,
		issuance.WithLogger(log),
		issuance.WithCreditMultiplier(cfg.CreditMultiplier),
	)

	m := metrics.New()
	claimService := service.New(claims, credits, analyzer, issuer,
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(m),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)

	healthHandler := health.New()
	healthHandler.Register(router)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor([]byte(cfg.JWTSigningKey), log))
		claimhandler.New(claimService, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
