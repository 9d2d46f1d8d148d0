package paygate

import (
	"net/url"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/price"
)

// PaymentRequirementsNoResource is a payment offer whose resource URL is
// filled in per request.
type PaymentRequirementsNoResource struct {
	Scheme            x402.Scheme
	Network           x402.Network
	MaxAmountRequired string
	Description       string
	MimeType          string
	OutputSchema      map[string]interface{}
	PayTo             string
	MaxTimeoutSeconds int
	Asset             string
	Extra             map[string]interface{}
}

// ToPaymentRequirements attaches resource to the partial offer
func (p PaymentRequirementsNoResource) ToPaymentRequirements(resource string) x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            p.Scheme,
		Network:           p.Network,
		MaxAmountRequired: p.MaxAmountRequired,
		Resource:          resource,
		Description:       p.Description,
		MimeType:          p.MimeType,
		OutputSchema:      p.OutputSchema,
		PayTo:             p.PayTo,
		MaxTimeoutSeconds: p.MaxTimeoutSeconds,
		Asset:             p.Asset,
		Extra:             p.Extra,
	}
}

// PaymentOffers is either ReadyOffers or DeferredOffers.
// Use ResolveOffers to obtain the concrete requirements for a request.
type PaymentOffers interface {
	isPaymentOffers()
}

// ReadyOffers are complete because the resource URL was configured explicitly
type ReadyOffers struct {
	Requirements []x402.PaymentRequirements
}

// DeferredOffers need the request URL to derive each offer's resource
type DeferredOffers struct {
	Partial []PaymentRequirementsNoResource
	BaseURL *url.URL
}

func (ReadyOffers) isPaymentOffers()    {}
func (DeferredOffers) isPaymentOffers() {}

// ResolveOffers returns the payment requirements that apply to requestURL.
// Ready offers are returned as-is; callers must not modify them.
func ResolveOffers(offers PaymentOffers, requestURL *url.URL) []x402.PaymentRequirements {
	switch o := offers.(type) {
	case ReadyOffers:
		return o.Requirements
	case DeferredOffers:
		resource := ResourceURL(o.BaseURL, requestURL).String()
		reqs := make([]x402.PaymentRequirements, 0, len(o.Partial))
		for _, p := range o.Partial {
			reqs = append(reqs, p.ToPaymentRequirements(resource))
		}
		return reqs
	default:
		return nil
	}
}

// ResourceURL keeps the scheme, host and port of base and takes the path
// and query from requestURL. A nil base means DefaultBaseURL.
func ResourceURL(base, requestURL *url.URL) *url.URL {
	if base == nil {
		base = defaultBaseURL()
	}
	u := *base
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = "/"
	u.RawPath = ""
	u.RawQuery = ""
	if requestURL != nil {
		if requestURL.Path != "" {
			u.Path = requestURL.Path
			u.RawPath = requestURL.RawPath
		}
		u.RawQuery = requestURL.RawQuery
	}
	return &u
}

// OfferConfig is everything BuildOffers needs
type OfferConfig struct {
	PriceTags         []price.PriceTag
	Description       string
	MimeType          string
	MaxTimeoutSeconds int
	InputSchema       map[string]interface{}
	OutputSchema      map[string]interface{}
	Resource          *url.URL // nil defers resource derivation to request time
	BaseURL           *url.URL
}

// BuildOffers derives one offer per price tag, in price tag order.
// It is a pure function of cfg.
func BuildOffers(cfg OfferConfig) PaymentOffers {
	outputSchema := mergeSchemas(cfg.InputSchema, cfg.OutputSchema)

	partial := make([]PaymentRequirementsNoResource, 0, len(cfg.PriceTags))
	for _, tag := range cfg.PriceTags {
		partial = append(partial, PaymentRequirementsNoResource{
			Scheme:            x402.SchemeExact,
			Network:           tag.Token.Network,
			MaxAmountRequired: tag.Amount,
			Description:       cfg.Description,
			MimeType:          cfg.MimeType,
			OutputSchema:      outputSchema,
			PayTo:             tag.PayTo,
			MaxTimeoutSeconds: cfg.MaxTimeoutSeconds,
			Asset:             tag.Token.Address,
			Extra:             tokenExtra(tag.Token),
		})
	}

	if cfg.Resource == nil {
		return DeferredOffers{Partial: partial, BaseURL: cfg.BaseURL}
	}

	resource := cfg.Resource.String()
	reqs := make([]x402.PaymentRequirements, 0, len(partial))
	for _, p := range partial {
		reqs = append(reqs, p.ToPaymentRequirements(resource))
	}
	return ReadyOffers{Requirements: reqs}
}

func tokenExtra(token price.TokenAsset) map[string]interface{} {
	if !token.HasEIP712() {
		return nil
	}
	return map[string]interface{}{
		"name":    token.EIP712.Name,
		"version": token.EIP712.Version,
	}
}

func mergeSchemas(input, output map[string]interface{}) map[string]interface{} {
	if input == nil && output == nil {
		return nil
	}
	merged := make(map[string]interface{}, 2)
	if input != nil {
		merged["input"] = input
	}
	if output != nil {
		merged["output"] = output
	}
	return merged
}
