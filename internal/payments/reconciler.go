package payments

import (
	"context"
	"strings"
	"time"

	"github.com/rastreador/premium-backend/internal/entitlement"
	"github.com/rastreador/premium-backend/internal/errs"
	"github.com/rastreador/premium-backend/internal/pmetrics"
	"github.com/rs/zerolog/log"
)

const defaultLookupTimeout = 10 * time.Second

// Reconciler derives entitlement store mutations from verified payment
// events. Resolution failures are warnings, not errors: the processor must
// not be pushed into a redelivery storm over an event we can never resolve.
type Reconciler struct {
	store         *entitlement.Store
	api           ProcessorAPI
	lookupTimeout time.Duration
}

// NewReconciler creates a Reconciler. api may be nil in deployments without
// an API key; the invoice fallback paths then resolve nothing.
func NewReconciler(store *entitlement.Store, api ProcessorAPI, lookupTimeout time.Duration) *Reconciler {
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	return &Reconciler{
		store:         store,
		api:           api,
		lookupTimeout: lookupTimeout,
	}
}

// Apply consumes a verified payment event. It returns the resolved phone
// ("" if the event could not be resolved, which is not an error) and a
// storage error if the entitlement write itself failed.
func (r *Reconciler) Apply(ctx context.Context, ev PaymentEvent) (string, error) {
	var phone string

	switch ev := ev.(type) {
	case ChargeSucceeded:
		phone = strings.TrimSpace(ev.Phone)
		if phone == "" {
			log.Warn().
				Str("intent_id", ev.IntentID).
				Msg("payment_intent.succeeded carries no phone metadata; dropping")
		}
	case InvoicePaid:
		phone = r.resolveInvoicePhone(ctx, ev)
		if phone == "" {
			log.Warn().
				Str("invoice_id", ev.InvoiceID).
				Str("customer_id", ev.CustomerID).
				Msg("invoice.payment_succeeded received but no phone found")
		}
	default:
		return "", nil
	}

	if phone == "" {
		pmetrics.ReconcileTotal.WithLabelValues("unresolved").Inc()
		return "", nil
	}

	if err := r.store.Set(phone); err != nil {
		pmetrics.ReconcileTotal.WithLabelValues("storage_error").Inc()
		return phone, errs.Storage("mark_premium", err)
	}
	pmetrics.ReconcileTotal.WithLabelValues("resolved").Inc()

	log.Info().Str("phone", phone).Msg("Marked premium")
	return phone, nil
}

// resolveInvoicePhone recovers the subscriber phone for an invoice payment:
// first from the referenced payment intent's metadata, then from the customer
// record's phone field or metadata. Lookup failures and timeouts downgrade to
// warnings; the webhook is still acknowledged.
func (r *Reconciler) resolveInvoicePhone(ctx context.Context, ev InvoicePaid) string {
	if r.api == nil {
		return ""
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	if ev.PaymentIntentID != "" {
		intent, err := r.api.GetPaymentIntent(lookupCtx, ev.PaymentIntentID)
		if err != nil {
			log.Warn().
				Err(err).
				Str("intent_id", ev.PaymentIntentID).
				Msg("Payment intent lookup failed during invoice resolution")
		} else if phone := strings.TrimSpace(intent.Metadata["phone"]); phone != "" {
			return phone
		}
	}

	if ev.CustomerID != "" {
		customer, err := r.api.GetCustomer(lookupCtx, ev.CustomerID)
		if err != nil {
			log.Warn().
				Err(err).
				Str("customer_id", ev.CustomerID).
				Msg("Customer lookup failed during invoice resolution")
			return ""
		}
		if phone := strings.TrimSpace(customer.Phone); phone != "" {
			return phone
		}
		if phone := strings.TrimSpace(customer.Metadata["phone"]); phone != "" {
			return phone
		}
	}

	return ""
}
