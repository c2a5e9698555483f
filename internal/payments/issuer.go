package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/rastreador/premium-backend/internal/errs"
	"github.com/rastreador/premium-backend/internal/pmetrics"
	"github.com/rs/zerolog/log"
)

// IntentResult is what a client needs to complete a one-time card payment.
type IntentResult struct {
	ClientSecret string `json:"clientSecret"`
	IntentID     string `json:"id"`
}

// SubscriptionResult is what a client needs to complete a subscription's
// first invoice payment.
type SubscriptionResult struct {
	ClientSecret   string `json:"clientSecret"`
	SubscriptionID string `json:"subscriptionId"`
}

// Issuer creates payment intents and subscriptions on the processor. It is a
// pure facade: processor failures are surfaced, never retried here.
type Issuer struct {
	api     ProcessorAPI
	priceID string
}

// NewIssuer creates an Issuer using priceID for recurring subscriptions.
func NewIssuer(api ProcessorAPI, priceID string) *Issuer {
	return &Issuer{
		api:     api,
		priceID: strings.TrimSpace(priceID),
	}
}

// CreatePaymentIntent creates a one-time charge for amountMinorUnits. The
// subscriber phone is attached as intent metadata so the webhook can resolve
// it later without any lookup.
func (i *Issuer) CreatePaymentIntent(ctx context.Context, amountMinorUnits int64, currency, phone string) (*IntentResult, error) {
	if amountMinorUnits <= 0 {
		pmetrics.IntentsTotal.WithLabelValues("invalid").Inc()
		return nil, errs.Validation("create_payment_intent", "amount must be a positive integer")
	}
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = "usd"
	}
	phone = strings.TrimSpace(phone)

	intent, err := i.api.CreatePaymentIntent(ctx, amountMinorUnits, currency, phone)
	if err != nil {
		pmetrics.IntentsTotal.WithLabelValues("upstream_error").Inc()
		return nil, errs.Upstream("create_payment_intent", fmt.Errorf("%s", upstreamMessage(err)))
	}
	pmetrics.IntentsTotal.WithLabelValues("success").Inc()

	log.Info().
		Str("intent_id", intent.ID).
		Int64("amount", amountMinorUnits).
		Str("currency", currency).
		Msg("Payment intent created")

	return &IntentResult{
		ClientSecret: intent.ClientSecret,
		IntentID:     intent.ID,
	}, nil
}

// CreateSubscription creates a customer tagged with phone and an incomplete
// subscription against the configured recurring price, returning the secret
// for completing the first invoice's payment client-side.
func (i *Issuer) CreateSubscription(ctx context.Context, phone string) (*SubscriptionResult, error) {
	if i.priceID == "" {
		pmetrics.SubscriptionsTotal.WithLabelValues("misconfigured").Inc()
		return nil, errs.Upstream("create_subscription", fmt.Errorf("recurring price not configured"))
	}
	phone = strings.TrimSpace(phone)

	customer, err := i.api.CreateCustomer(ctx, phone)
	if err != nil {
		pmetrics.SubscriptionsTotal.WithLabelValues("upstream_error").Inc()
		return nil, errs.Upstream("create_customer", fmt.Errorf("%s", upstreamMessage(err)))
	}

	sub, err := i.api.CreateSubscription(ctx, customer.ID, i.priceID)
	if err != nil {
		pmetrics.SubscriptionsTotal.WithLabelValues("upstream_error").Inc()
		return nil, errs.Upstream("create_subscription", fmt.Errorf("%s", upstreamMessage(err)))
	}

	clientSecret := ""
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		clientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	if clientSecret == "" {
		pmetrics.SubscriptionsTotal.WithLabelValues("upstream_error").Inc()
		return nil, errs.Upstream("create_subscription", fmt.Errorf("subscription %s has no payable invoice secret", sub.ID))
	}

	// Propagate the phone onto the first invoice's payment intent so the
	// webhook's primary resolution path works without the customer fallback.
	if phone != "" {
		if intentID := IntentIDFromClientSecret(clientSecret); intentID != "" {
			if err := i.api.SetIntentPhone(ctx, intentID, phone); err != nil {
				log.Warn().
					Err(err).
					Str("subscription_id", sub.ID).
					Str("intent_id", intentID).
					Msg("Failed to tag subscription payment intent with phone; customer fallback will apply")
			}
		}
	}

	pmetrics.SubscriptionsTotal.WithLabelValues("success").Inc()
	log.Info().
		Str("subscription_id", sub.ID).
		Str("customer_id", customer.ID).
		Msg("Subscription created")

	return &SubscriptionResult{
		ClientSecret:   clientSecret,
		SubscriptionID: sub.ID,
	}, nil
}

// IntentIDFromClientSecret extracts the payment intent ID embedded in a
// client secret of the form "pi_..._secret_...".
func IntentIDFromClientSecret(clientSecret string) string {
	id, _, found := strings.Cut(clientSecret, "_secret_")
	if !found || !strings.HasPrefix(id, "pi_") {
		return ""
	}
	return id
}
