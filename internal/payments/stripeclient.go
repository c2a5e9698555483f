package payments

import (
	"context"
	"errors"
	"net/http"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// ProcessorAPI is the outbound surface this package needs from the payment
// processor. Kept narrow so tests can substitute a fake without network.
type ProcessorAPI interface {
	CreatePaymentIntent(ctx context.Context, amountMinorUnits int64, currency, phone string) (*stripelib.PaymentIntent, error)
	CreateCustomer(ctx context.Context, phone string) (*stripelib.Customer, error)
	CreateSubscription(ctx context.Context, customerID, priceID string) (*stripelib.Subscription, error)
	SetIntentPhone(ctx context.Context, intentID, phone string) error
	GetPaymentIntent(ctx context.Context, intentID string) (*stripelib.PaymentIntent, error)
	GetCustomer(ctx context.Context, customerID string) (*stripelib.Customer, error)
}

// Client implements ProcessorAPI against the Stripe API with a bounded
// per-request timeout. An upstream hang must not stall webhook handling.
type Client struct {
	sc *client.API
}

// NewClient creates a Stripe API client using apiKey.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	sc := client.New(apiKey, stripelib.NewBackends(&http.Client{Timeout: timeout}))
	return &Client{sc: sc}
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amountMinorUnits int64, currency, phone string) (*stripelib.PaymentIntent, error) {
	params := &stripelib.PaymentIntentParams{
		Amount:   stripelib.Int64(amountMinorUnits),
		Currency: stripelib.String(currency),
		AutomaticPaymentMethods: &stripelib.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripelib.Bool(true),
		},
	}
	params.Context = ctx
	if phone != "" {
		params.AddMetadata("phone", phone)
	}
	return c.sc.PaymentIntents.New(params)
}

func (c *Client) CreateCustomer(ctx context.Context, phone string) (*stripelib.Customer, error) {
	params := &stripelib.CustomerParams{}
	params.Context = ctx
	if phone != "" {
		params.Phone = stripelib.String(phone)
		params.AddMetadata("phone", phone)
	}
	return c.sc.Customers.New(params)
}

func (c *Client) CreateSubscription(ctx context.Context, customerID, priceID string) (*stripelib.Subscription, error) {
	params := &stripelib.SubscriptionParams{
		Customer: stripelib.String(customerID),
		Items: []*stripelib.SubscriptionItemsParams{
			{Price: stripelib.String(priceID)},
		},
		PaymentBehavior: stripelib.String("default_incomplete"),
		PaymentSettings: &stripelib.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripelib.String("on_subscription"),
		},
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.confirmation_secret")
	return c.sc.Subscriptions.New(params)
}

func (c *Client) SetIntentPhone(ctx context.Context, intentID, phone string) error {
	params := &stripelib.PaymentIntentParams{}
	params.Context = ctx
	params.AddMetadata("phone", phone)
	_, err := c.sc.PaymentIntents.Update(intentID, params)
	return err
}

func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (*stripelib.PaymentIntent, error) {
	params := &stripelib.PaymentIntentParams{}
	params.Context = ctx
	return c.sc.PaymentIntents.Get(intentID, params)
}

func (c *Client) GetCustomer(ctx context.Context, customerID string) (*stripelib.Customer, error) {
	params := &stripelib.CustomerParams{}
	params.Context = ctx
	return c.sc.Customers.Get(customerID, params)
}

// upstreamMessage extracts the processor's own message from a Stripe error so
// callers see something more useful than a generic failure.
func upstreamMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *stripelib.Error
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}
	return err.Error()
}
