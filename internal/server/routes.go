package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rastreador/premium-backend/internal/entitlement"
	"github.com/rastreador/premium-backend/internal/payments"
)

// Deps holds shared dependencies injected into HTTP handlers.
type Deps struct {
	Config     *Config
	Store      *entitlement.Store
	Issuer     *payments.Issuer
	Reconciler *payments.Reconciler
	Version    string
}

// RegisterRoutes wires all HTTP handlers onto the given ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	adminAuth := func(next http.Handler) http.Handler {
		return AdminKeyMiddleware(deps.Config.AdminKey, next)
	}

	// Liveness / readiness probes.
	mux.HandleFunc("/health", HandleHealth)
	mux.HandleFunc("/readyz", HandleReadyz(deps.Store))

	// Payment surface.
	mux.HandleFunc("/create-payment-intent", HandleCreatePaymentIntent(deps.Issuer))
	mux.HandleFunc("/create-subscription", HandleCreateSubscription(deps.Issuer))
	mux.HandleFunc("/premium-status", HandlePremiumStatus(deps.Store))

	// Stripe webhook (signature-authenticated). Registered directly on the
	// mux so the handler sees the unmodified raw body.
	webhookHandler := payments.NewWebhookHandler(deps.Config.WebhookSecret, deps.Reconciler)
	webhookLimiter := NewRateLimiter(defaultWebhookLimit, defaultWebhookWindow)
	mux.Handle("/webhook", webhookLimiter.Middleware(webhookHandler))

	// Ops surface (key-authenticated).
	mux.Handle("/metrics", adminAuth(promhttp.Handler()))
	mux.Handle("/admin/entitlements", adminAuth(HandleListEntitlements(deps.Store)))
}
