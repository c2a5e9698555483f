// Package entitlementcache keeps a client-side view of premium status.
//
// Two signals feed the view: a local optimistic flag set the moment a
// payment succeeds on-device, and the server-confirmed flag fetched from
// the backend. Premium is the OR of the two, so a user who just paid sees
// premium immediately even if the webhook has not landed yet, and a
// confirmation that has not yet arrived never takes premium away.
package entitlementcache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultRequestTimeout = 10 * time.Second

// Cache tracks premium entitlement for a single phone number.
type Cache struct {
	baseURL string
	phone   string
	client  *http.Client

	mu         sync.RWMutex
	optimistic bool // set locally on payment success
	confirmed  bool // last server-confirmed value
}

// Option customizes a Cache.
type Option func(*Cache)

// WithHTTPClient overrides the HTTP client used for status polls.
func WithHTTPClient(c *http.Client) Option {
	return func(cache *Cache) { cache.client = c }
}

// New creates a cache for the given backend base URL and phone number.
func New(baseURL, phone string, opts ...Option) *Cache {
	c := &Cache{
		baseURL: baseURL,
		phone:   phone,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Premium reports whether the user should currently be treated as premium.
// True if either the local optimistic flag or the server confirmation is set.
func (c *Cache) Premium() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.optimistic || c.confirmed
}

// Confirmed reports only the server-confirmed flag, ignoring the local
// optimistic state.
func (c *Cache) Confirmed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.confirmed
}

// OnLocalPaymentSuccess records a successful on-device payment. The
// optimistic flag is set immediately and a background refresh is kicked off
// to pick up the server confirmation once the webhook settles. The flag is
// never cleared by a negative poll; only confirmation can supersede it.
func (c *Cache) OnLocalPaymentSuccess(ctx context.Context) {
	c.mu.Lock()
	c.optimistic = true
	c.mu.Unlock()

	go func() {
		if err := c.Refresh(ctx); err != nil {
			log.Debug().Err(err).Msg("entitlementcache: background refresh after payment")
		}
	}()
}

// Refresh polls the backend for the server-confirmed status. A confirmed
// true is latched; a confirmed false updates only the confirmed flag and
// leaves any optimistic state intact. Network or server errors leave the
// cache unchanged.
func (c *Cache) Refresh(ctx context.Context) error {
	status, err := c.fetchStatus(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.confirmed = status
	c.mu.Unlock()
	return nil
}

func (c *Cache) fetchStatus(ctx context.Context) (bool, error) {
	u := fmt.Sprintf("%s/premium-status?phone=%s", c.baseURL, url.QueryEscape(c.phone))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch premium status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("premium status returned %d", resp.StatusCode)
	}

	var body struct {
		Premium bool `json:"premium"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode premium status: %w", err)
	}
	return body.Premium, nil
}
