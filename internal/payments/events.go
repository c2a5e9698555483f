package payments

import (
	"encoding/json"
	"fmt"

	stripelib "github.com/stripe/stripe-go/v82"
)

// Event types that carry entitlement meaning for this service. Everything
// else the processor pushes is acknowledged and ignored.
const (
	EventPaymentIntentSucceeded  stripelib.EventType = "payment_intent.succeeded"
	EventInvoicePaymentSucceeded stripelib.EventType = "invoice.payment_succeeded"
)

// PaymentEvent is the boundary representation of a verified processor
// notification. The raw event is resolved into one of these variants exactly
// once; nothing downstream dispatches on event-type strings.
type PaymentEvent interface {
	paymentEvent()
}

// ChargeSucceeded is a one-time charge completion. The subscriber phone was
// attached as intent metadata at creation time, so no secondary lookup is
// needed to resolve it.
type ChargeSucceeded struct {
	IntentID string
	Phone    string
}

func (ChargeSucceeded) paymentEvent() {}

// InvoicePaid is a subscription invoice payment. The subscriber phone must be
// recovered by dereferencing the payment intent, falling back to the customer
// record.
type InvoicePaid struct {
	InvoiceID       string
	PaymentIntentID string
	CustomerID      string
}

func (InvoicePaid) paymentEvent() {}

// paymentIntentEvent is a minimal representation of a payment_intent event
// object. Decoded from the raw payload rather than the SDK type so the wire
// shape stays decoupled from API version churn.
type paymentIntentEvent struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// invoiceEvent is a minimal representation of an invoice event object.
type invoiceEvent struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	PaymentIntent string `json:"payment_intent"`
}

// ParsePaymentEvent resolves a verified Stripe event into the tagged union.
// ok is false for event types this service does not handle.
func ParsePaymentEvent(event *stripelib.Event) (ev PaymentEvent, ok bool, err error) {
	switch event.Type {
	case EventPaymentIntentSucceeded:
		var intent paymentIntentEvent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, true, fmt.Errorf("decode payment_intent: %w", err)
		}
		return ChargeSucceeded{
			IntentID: intent.ID,
			Phone:    intent.Metadata["phone"],
		}, true, nil

	case EventInvoicePaymentSucceeded:
		var invoice invoiceEvent
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, true, fmt.Errorf("decode invoice: %w", err)
		}
		return InvoicePaid{
			InvoiceID:       invoice.ID,
			PaymentIntentID: invoice.PaymentIntent,
			CustomerID:      invoice.Customer,
		}, true, nil

	default:
		return nil, false, nil
	}
}
