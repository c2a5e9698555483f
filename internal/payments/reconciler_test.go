package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
)

func TestApplyChargeSucceededUsesMetadataOnly(t *testing.T) {
	store := newTestStore(t)
	api := newFakeProcessor()
	rec := NewReconciler(store, api, time.Second)

	phone, err := rec.Apply(context.Background(), ChargeSucceeded{IntentID: "pi_1", Phone: "5551234567"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if phone != "5551234567" {
		t.Fatalf("resolved phone = %q", phone)
	}
	if !store.Get("5551234567") {
		t.Fatal("expected premium after charge event")
	}
	// Direct metadata resolution must not touch the processor.
	if n := api.callCount("get_intent") + api.callCount("get_customer"); n != 0 {
		t.Fatalf("expected no secondary lookups, got %d", n)
	}
}

func TestApplyChargeWithoutPhoneIsUnresolved(t *testing.T) {
	store := newTestStore(t)
	rec := NewReconciler(store, newFakeProcessor(), time.Second)

	phone, err := rec.Apply(context.Background(), ChargeSucceeded{IntentID: "pi_1"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if phone != "" {
		t.Fatalf("expected unresolved, got %q", phone)
	}
	records, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("store must stay unchanged, found %d records", len(records))
	}
}

func TestApplyInvoicePaidPrefersIntentMetadata(t *testing.T) {
	store := newTestStore(t)
	api := newFakeProcessor()
	if err := api.SetIntentPhone(context.Background(), "pi_9", "5551230000"); err != nil {
		t.Fatalf("seed intent: %v", err)
	}
	rec := NewReconciler(store, api, time.Second)

	phone, err := rec.Apply(context.Background(), InvoicePaid{
		InvoiceID:       "in_1",
		PaymentIntentID: "pi_9",
		CustomerID:      "cus_9",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if phone != "5551230000" {
		t.Fatalf("resolved phone = %q", phone)
	}
	if api.callCount("get_customer") != 0 {
		t.Fatal("customer fallback must not run when intent metadata resolves")
	}
}

func TestApplyInvoicePaidFallsBackToCustomerPhone(t *testing.T) {
	store := newTestStore(t)
	api := newFakeProcessor()
	api.customers["cus_9"] = &stripelib.Customer{ID: "cus_9", Phone: "5559876543"}
	rec := NewReconciler(store, api, time.Second)

	phone, err := rec.Apply(context.Background(), InvoicePaid{
		InvoiceID:       "in_1",
		PaymentIntentID: "pi_blank",
		CustomerID:      "cus_9",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if phone != "5559876543" {
		t.Fatalf("resolved phone = %q", phone)
	}
	if !store.Get("5559876543") {
		t.Fatal("expected premium via customer fallback")
	}
	if api.callCount("get_intent") != 1 || api.callCount("get_customer") != 1 {
		t.Fatalf("expected intent-then-customer lookup order, calls=%v", api.calls)
	}
}

func TestApplyInvoicePaidCustomerMetadataFallback(t *testing.T) {
	store := newTestStore(t)
	api := newFakeProcessor()
	api.customers["cus_9"] = &stripelib.Customer{
		ID:       "cus_9",
		Metadata: map[string]string{"phone": "5553334444"},
	}
	rec := NewReconciler(store, api, time.Second)

	phone, err := rec.Apply(context.Background(), InvoicePaid{CustomerID: "cus_9"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if phone != "5553334444" {
		t.Fatalf("resolved phone = %q", phone)
	}
}

func TestApplyInvoicePaidUnresolvableLeavesStoreUntouched(t *testing.T) {
	store := newTestStore(t)
	api := newFakeProcessor()
	api.customers["cus_empty"] = &stripelib.Customer{ID: "cus_empty"}
	rec := NewReconciler(store, api, time.Second)

	phone, err := rec.Apply(context.Background(), InvoicePaid{
		InvoiceID:  "in_1",
		CustomerID: "cus_empty",
	})
	if err != nil {
		t.Fatalf("Apply must not fail on unresolvable events: %v", err)
	}
	if phone != "" {
		t.Fatalf("expected unresolved, got %q", phone)
	}
	records, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatal("store must stay unchanged for unresolvable events")
	}
}

func TestApplyInvoicePaidLookupFailureIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	api := newFakeProcessor()
	api.getIntentErr = errors.New("connection timed out")
	api.getCustomerErr = errors.New("connection timed out")
	rec := NewReconciler(store, api, 50*time.Millisecond)

	phone, err := rec.Apply(context.Background(), InvoicePaid{
		PaymentIntentID: "pi_1",
		CustomerID:      "cus_1",
	})
	if err != nil {
		t.Fatalf("upstream lookup failures must downgrade to warnings: %v", err)
	}
	if phone != "" {
		t.Fatalf("expected unresolved, got %q", phone)
	}
}
