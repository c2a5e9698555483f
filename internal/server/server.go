package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rastreador/premium-backend/internal/entitlement"
	"github.com/rastreador/premium-backend/internal/logging"
	"github.com/rastreador/premium-backend/internal/payments"
	"github.com/rastreador/premium-backend/internal/pmetrics"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Run starts the premium backend HTTP server with graceful shutdown.
func Run(ctx context.Context, version string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "premium-backend",
	})

	log.Info().Str("version", version).Msg("Starting premium entitlement backend")

	store, err := entitlement.NewStore(cfg.EntitlementsDir())
	if err != nil {
		return fmt.Errorf("open entitlement store: %w", err)
	}
	defer store.Close()

	stripeClient := payments.NewClient(cfg.StripeAPIKey, cfg.StripeTimeout)
	issuer := payments.NewIssuer(stripeClient, cfg.PriceID)
	reconciler := payments.NewReconciler(store, stripeClient, cfg.StripeTimeout)

	if cfg.AdminKey == "" {
		log.Warn().Msg("ADMIN_KEY not set; /metrics and /admin endpoints are locked")
	}

	mux := http.NewServeMux()
	deps := &Deps{
		Config:     cfg,
		Store:      store,
		Issuer:     issuer,
		Reconciler: reconciler,
		Version:    version,
	}
	RegisterRoutes(mux, deps)

	// The hosted card form runs in a browser context.
	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Stripe-Signature"},
	}).Handler(RequestIDMiddleware(mux))

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Create derived context for background goroutines
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Keep the premium-subscriber gauge fresh.
	go runEntitlementMetrics(ctx, store)

	// Start server in background
	go func() {
		log.Info().Str("addr", addr).Msg("Premium backend listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server failed")
		}
	}()

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down...")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Premium backend stopped")
	return nil
}

// runEntitlementMetrics refreshes the premium-subscriber gauge once a minute.
func runEntitlementMetrics(ctx context.Context, store *entitlement.Store) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	update := func() {
		count, err := store.CountPremium()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count premium subscribers for metrics")
			return
		}
		pmetrics.PremiumSubscribers.Set(float64(count))
	}

	update()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
