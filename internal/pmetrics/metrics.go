package pmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rastreador",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rastreador",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// ReconcileTotal counts entitlement reconciliation outcomes.
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rastreador",
		Subsystem: "billing",
		Name:      "reconcile_total",
		Help:      "Entitlement reconciliation outcomes (resolved/unresolved/storage_error).",
	}, []string{"outcome"})

	// IntentsTotal counts payment-intent creation attempts by outcome.
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rastreador",
		Subsystem: "billing",
		Name:      "payment_intents_total",
		Help:      "Payment intent creation attempts by outcome.",
	}, []string{"outcome"})

	// SubscriptionsTotal counts subscription creation attempts by outcome.
	SubscriptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rastreador",
		Subsystem: "billing",
		Name:      "subscriptions_total",
		Help:      "Subscription creation attempts by outcome.",
	}, []string{"outcome"})

	// PremiumSubscribers tracks the number of premium entitlements on record.
	PremiumSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rastreador",
		Subsystem: "billing",
		Name:      "premium_subscribers",
		Help:      "Number of subscribers with a premium entitlement.",
	})
)
