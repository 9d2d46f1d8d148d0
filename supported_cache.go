package x402

import (
	"context"
	"sync"
	"time"
)

// DefaultSupportedCacheTTL is how long a Supported response is reused
const DefaultSupportedCacheTTL = 5 * time.Minute

// SupportedCache is an in-memory SupportedStore
type SupportedCache struct {
	mu     sync.RWMutex
	data   map[string]SupportedResponse
	expiry map[string]time.Time
	now    func() time.Time
}

// NewSupportedCache creates an empty in-memory store
func NewSupportedCache() *SupportedCache {
	return &SupportedCache{
		data:   make(map[string]SupportedResponse),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Get implements SupportedStore
func (c *SupportedCache) Get(_ context.Context, key string) (*SupportedResponse, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	exp, ok := c.expiry[key]
	if !ok || !c.now().Before(exp) {
		return nil, false, nil
	}
	resp := c.data[key]
	return &resp, true, nil
}

// Set implements SupportedStore
func (c *SupportedCache) Set(_ context.Context, key string, resp SupportedResponse, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = resp
	c.expiry[key] = c.now().Add(ttl)
	return nil
}

// Clear removes every entry
func (c *SupportedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]SupportedResponse)
	c.expiry = make(map[string]time.Time)
}

// CachingFacilitator wraps a Facilitator and reuses Supported responses.
// Verify and Settle always reach the wrapped facilitator.
type CachingFacilitator struct {
	Facilitator
	store SupportedStore
	key   string
	ttl   time.Duration
}

// CacheOption configures a CachingFacilitator
type CacheOption func(*CachingFacilitator)

// WithSupportedStore replaces the in-memory store
func WithSupportedStore(store SupportedStore) CacheOption {
	return func(c *CachingFacilitator) {
		c.store = store
	}
}

// WithSupportedTTL sets how long a response is reused
func WithSupportedTTL(ttl time.Duration) CacheOption {
	return func(c *CachingFacilitator) {
		c.ttl = ttl
	}
}

// WithCacheKey sets the store key, needed when several facilitators share a store
func WithCacheKey(key string) CacheOption {
	return func(c *CachingFacilitator) {
		c.key = key
	}
}

// NewCachingFacilitator wraps f
func NewCachingFacilitator(f Facilitator, opts ...CacheOption) *CachingFacilitator {
	c := &CachingFacilitator{
		Facilitator: f,
		store:       NewSupportedCache(),
		key:         "default",
		ttl:         DefaultSupportedCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supported returns a cached response when one is fresh. Store failures
// degrade to a direct call rather than failing the request.
func (c *CachingFacilitator) Supported(ctx context.Context) (SupportedResponse, error) {
	if cached, ok, err := c.store.Get(ctx, c.key); err == nil && ok {
		return *cached, nil
	}

	resp, err := c.Facilitator.Supported(ctx)
	if err != nil {
		return SupportedResponse{}, err
	}

	_ = c.store.Set(ctx, c.key, resp, c.ttl)
	return resp, nil
}
