package payments

import (
	"context"
	"sync"
	"testing"

	"github.com/rastreador/premium-backend/internal/entitlement"
	stripelib "github.com/stripe/stripe-go/v82"
)

// fakeProcessor is an in-memory ProcessorAPI that records every call.
type fakeProcessor struct {
	mu    sync.Mutex
	calls []string

	intents   map[string]*stripelib.PaymentIntent
	customers map[string]*stripelib.Customer

	nextIntent       *stripelib.PaymentIntent
	nextCustomer     *stripelib.Customer
	nextSubscription *stripelib.Subscription

	createIntentErr       error
	createCustomerErr     error
	createSubscriptionErr error
	getIntentErr          error
	getCustomerErr        error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		intents:   make(map[string]*stripelib.PaymentIntent),
		customers: make(map[string]*stripelib.Customer),
	}
}

func (f *fakeProcessor) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeProcessor) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeProcessor) CreatePaymentIntent(ctx context.Context, amount int64, currency, phone string) (*stripelib.PaymentIntent, error) {
	f.record("create_intent")
	if f.createIntentErr != nil {
		return nil, f.createIntentErr
	}
	if f.nextIntent != nil {
		return f.nextIntent, nil
	}
	intent := &stripelib.PaymentIntent{ID: "pi_test", ClientSecret: "pi_test_secret_abc"}
	if phone != "" {
		intent.Metadata = map[string]string{"phone": phone}
	}
	return intent, nil
}

func (f *fakeProcessor) CreateCustomer(ctx context.Context, phone string) (*stripelib.Customer, error) {
	f.record("create_customer")
	if f.createCustomerErr != nil {
		return nil, f.createCustomerErr
	}
	if f.nextCustomer != nil {
		return f.nextCustomer, nil
	}
	customer := &stripelib.Customer{ID: "cus_test", Phone: phone}
	if phone != "" {
		customer.Metadata = map[string]string{"phone": phone}
	}
	f.mu.Lock()
	f.customers[customer.ID] = customer
	f.mu.Unlock()
	return customer, nil
}

func (f *fakeProcessor) CreateSubscription(ctx context.Context, customerID, priceID string) (*stripelib.Subscription, error) {
	f.record("create_subscription")
	if f.createSubscriptionErr != nil {
		return nil, f.createSubscriptionErr
	}
	if f.nextSubscription != nil {
		return f.nextSubscription, nil
	}
	return &stripelib.Subscription{
		ID: "sub_test",
		LatestInvoice: &stripelib.Invoice{
			ID: "in_test",
			ConfirmationSecret: &stripelib.InvoiceConfirmationSecret{
				ClientSecret: "pi_subintent_secret_xyz",
			},
		},
	}, nil
}

func (f *fakeProcessor) SetIntentPhone(ctx context.Context, intentID, phone string) error {
	f.record("set_intent_phone")
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[intentID]
	if !ok {
		intent = &stripelib.PaymentIntent{ID: intentID}
		f.intents[intentID] = intent
	}
	if intent.Metadata == nil {
		intent.Metadata = make(map[string]string)
	}
	intent.Metadata["phone"] = phone
	return nil
}

func (f *fakeProcessor) GetPaymentIntent(ctx context.Context, intentID string) (*stripelib.PaymentIntent, error) {
	f.record("get_intent")
	if f.getIntentErr != nil {
		return nil, f.getIntentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if intent, ok := f.intents[intentID]; ok {
		return intent, nil
	}
	return &stripelib.PaymentIntent{ID: intentID}, nil
}

func (f *fakeProcessor) GetCustomer(ctx context.Context, customerID string) (*stripelib.Customer, error) {
	f.record("get_customer")
	if f.getCustomerErr != nil {
		return nil, f.getCustomerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if customer, ok := f.customers[customerID]; ok {
		return customer, nil
	}
	return &stripelib.Customer{ID: customerID}, nil
}

func newTestStore(t *testing.T) *entitlement.Store {
	t.Helper()
	store, err := entitlement.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
