package paygate

import (
	"net/url"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/price"
)

const (
	DefaultMimeType          = "application/json"
	DefaultMaxTimeoutSeconds = 300
	DefaultBaseURL           = "http://localhost/"
)

// Middleware is an immutable payment configuration for a protected route.
// Every With method returns a new Middleware with freshly built offers and
// leaves the receiver untouched, so a *Middleware can be shared freely
// between goroutines.
type Middleware struct {
	facilitator           x402.Facilitator
	description           string
	mimeType              string
	resource              *url.URL
	baseURL               *url.URL
	priceTags             []price.PriceTag
	maxTimeoutSeconds     int
	inputSchema           map[string]interface{}
	outputSchema          map[string]interface{}
	settleBeforeExecution bool
	observer              Observer
	offers                PaymentOffers
}

// New creates a configuration with defaults and no price tags
func New(facilitator x402.Facilitator, tags ...price.PriceTag) *Middleware {
	m := &Middleware{
		facilitator:       facilitator,
		mimeType:          DefaultMimeType,
		baseURL:           defaultBaseURL(),
		maxTimeoutSeconds: DefaultMaxTimeoutSeconds,
		observer:          NopObserver{},
	}
	m.priceTags = appendUnique(nil, tags...)
	m.offers = m.buildOffers()
	return m
}

// Load returns m, so a fixed configuration can be used where a snapshot source is expected
func (m *Middleware) Load() *Middleware {
	return m
}

func (m *Middleware) clone() *Middleware {
	c := *m
	c.priceTags = append([]price.PriceTag(nil), m.priceTags...)
	return &c
}

func (m *Middleware) rebuild() *Middleware {
	m.offers = m.buildOffers()
	return m
}

func (m *Middleware) buildOffers() PaymentOffers {
	return BuildOffers(OfferConfig{
		PriceTags:         m.priceTags,
		Description:       m.description,
		MimeType:          m.mimeType,
		MaxTimeoutSeconds: m.maxTimeoutSeconds,
		InputSchema:       m.inputSchema,
		OutputSchema:      m.outputSchema,
		Resource:          m.resource,
		BaseURL:           m.baseURL,
	})
}

// WithDescription sets the human readable description of the resource
func (m *Middleware) WithDescription(description string) *Middleware {
	c := m.clone()
	c.description = description
	return c.rebuild()
}

// WithMimeType sets the MIME type of the protected response
func (m *Middleware) WithMimeType(mimeType string) *Middleware {
	c := m.clone()
	c.mimeType = mimeType
	return c.rebuild()
}

// WithResource fixes the resource URL for every request
func (m *Middleware) WithResource(resource *url.URL) *Middleware {
	c := m.clone()
	c.resource = cloneURL(resource)
	return c.rebuild()
}

// WithBaseURL sets the origin used to derive per-request resource URLs.
// A nil baseURL restores DefaultBaseURL.
func (m *Middleware) WithBaseURL(baseURL *url.URL) *Middleware {
	c := m.clone()
	if baseURL == nil {
		baseURL = defaultBaseURL()
	}
	c.baseURL = cloneURL(baseURL)
	return c.rebuild()
}

// WithMaxTimeoutSeconds sets how long a payment authorization stays valid
func (m *Middleware) WithMaxTimeoutSeconds(seconds int) *Middleware {
	c := m.clone()
	c.maxTimeoutSeconds = seconds
	return c.rebuild()
}

// WithPriceTag replaces the accepted price tags
func (m *Middleware) WithPriceTag(tags ...price.PriceTag) *Middleware {
	c := m.clone()
	c.priceTags = appendUnique(nil, tags...)
	return c.rebuild()
}

// OrPriceTag adds alternative price tags. Tags already present are ignored.
func (m *Middleware) OrPriceTag(tags ...price.PriceTag) *Middleware {
	c := m.clone()
	c.priceTags = appendUnique(c.priceTags, tags...)
	return c.rebuild()
}

// WithInputSchema describes how to call the resource
func (m *Middleware) WithInputSchema(schema map[string]interface{}) *Middleware {
	c := m.clone()
	c.inputSchema = schema
	return c.rebuild()
}

// WithOutputSchema describes the resource's response
func (m *Middleware) WithOutputSchema(schema map[string]interface{}) *Middleware {
	c := m.clone()
	c.outputSchema = schema
	return c.rebuild()
}

// SettleBeforeExecution settles payments before the protected handler runs
func (m *Middleware) SettleBeforeExecution() *Middleware {
	return m.WithSettleBeforeExecution(true)
}

// WithSettleBeforeExecution chooses when settlement happens
func (m *Middleware) WithSettleBeforeExecution(enabled bool) *Middleware {
	c := m.clone()
	c.settleBeforeExecution = enabled
	return c
}

// WithObserver sets the observer that receives gate outcomes
func (m *Middleware) WithObserver(observer Observer) *Middleware {
	c := m.clone()
	if observer == nil {
		observer = NopObserver{}
	}
	c.observer = observer
	return c
}

// Facilitator returns the configured facilitator
func (m *Middleware) Facilitator() x402.Facilitator {
	return m.facilitator
}

// PriceTags returns a copy of the accepted price tags in order
func (m *Middleware) PriceTags() []price.PriceTag {
	return append([]price.PriceTag(nil), m.priceTags...)
}

// Offers returns the offers derived from this configuration
func (m *Middleware) Offers() PaymentOffers {
	return m.offers
}

// BaseURL returns a copy of the base URL
func (m *Middleware) BaseURL() *url.URL {
	return cloneURL(m.baseURL)
}

// Resource returns a copy of the fixed resource URL, or nil
func (m *Middleware) Resource() *url.URL {
	return cloneURL(m.resource)
}

// Paygate builds the gate for a request to requestURL
func (m *Middleware) Paygate(requestURL *url.URL) *Paygate {
	return &Paygate{
		facilitator:           m.facilitator,
		requirements:          ResolveOffers(m.offers, requestURL),
		settleBeforeExecution: m.settleBeforeExecution,
		observer:              m.observer,
	}
}

func defaultBaseURL() *url.URL {
	base, _ := url.Parse(DefaultBaseURL)
	return base
}

func appendUnique(dst []price.PriceTag, tags ...price.PriceTag) []price.PriceTag {
	seen := make(map[price.PriceTag]struct{}, len(dst)+len(tags))
	for _, t := range dst {
		seen[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		dst = append(dst, t)
	}
	return dst
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}
