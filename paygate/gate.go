package paygate

import (
	"context"
	"errors"
	"net/http"

	x402 "github.com/x402-foundation/x402-paygate"
)

// HeaderPayment carries the client's base64 encoded payment payload
const HeaderPayment = "X-Payment"

var errEmptyFacilitatorResponse = errors.New("facilitator returned an empty response")

// VerifiedPayment is proof that a payload passed facilitator verification.
// Only Paygate.VerifyPayment creates one, so settlement cannot be reached
// without verification.
type VerifiedPayment struct {
	request      x402.VerifyRequest
	verification x402.VerifyResponse
}

// Request returns the verify request, which is also what gets settled
func (v *VerifiedPayment) Request() x402.VerifyRequest {
	return v.request
}

// Requirements returns the offer the payload was matched to
func (v *VerifiedPayment) Requirements() x402.PaymentRequirements {
	return v.request.PaymentRequirements
}

// Payload returns the client's payment payload
func (v *VerifiedPayment) Payload() x402.PaymentPayload {
	return v.request.PaymentPayload
}

// Payer returns the payer reported by the facilitator
func (v *VerifiedPayment) Payer() string {
	return v.verification.Payer
}

// Paygate evaluates one request against a resolved list of payment requirements.
// A Paygate is built per request and never modified.
type Paygate struct {
	facilitator           x402.Facilitator
	requirements          []x402.PaymentRequirements
	settleBeforeExecution bool
	observer              Observer
}

// NewPaygate builds a gate over already-resolved requirements
func NewPaygate(facilitator x402.Facilitator, requirements []x402.PaymentRequirements) *Paygate {
	return &Paygate{
		facilitator:  facilitator,
		requirements: requirements,
		observer:     NopObserver{},
	}
}

// Requirements returns the offers this gate accepts
func (g *Paygate) Requirements() []x402.PaymentRequirements {
	return g.requirements
}

// SettleBeforeExecution reports whether settlement happens before the protected handler runs
func (g *Paygate) SettleBeforeExecution() bool {
	return g.settleBeforeExecution
}

// ExtractPaymentPayload decodes the X-PAYMENT header.
// The facilitator's supported kinds are queried first on every request; if that
// fails the request is rejected whatever the header holds. Without a header the
// 402 lists every offer, enriched with facilitator fee payers.
func (g *Paygate) ExtractPaymentPayload(ctx context.Context, header http.Header) (*x402.PaymentPayload, error) {
	supported, err := g.facilitator.Supported(ctx)
	if err != nil {
		return nil, g.reject(ctx, ErrSupportedUnavailable(err), nil)
	}

	raw := header.Get(HeaderPayment)
	if raw == "" {
		return nil, g.reject(ctx, ErrPaymentHeaderRequired(enrichFeePayer(g.requirements, supported)), nil)
	}

	payload, err := x402.DecodePaymentHeader(raw)
	if err != nil {
		return nil, g.reject(ctx, ErrInvalidPaymentHeader(g.requirements, err), nil)
	}
	return payload, nil
}

// FindMatchingRequirements returns the first offer with the payload's scheme and network
func (g *Paygate) FindMatchingRequirements(payload x402.PaymentPayload) (x402.PaymentRequirements, bool) {
	for _, req := range g.requirements {
		if req.Scheme == payload.Scheme && req.Network == payload.Network {
			return req, true
		}
	}
	return x402.PaymentRequirements{}, false
}

// VerifyPayment selects the matching offer and asks the facilitator to verify the payload
func (g *Paygate) VerifyPayment(ctx context.Context, payload x402.PaymentPayload) (*VerifiedPayment, error) {
	selected, ok := g.FindMatchingRequirements(payload)
	if !ok {
		return nil, g.reject(ctx, ErrNoPaymentMatching(g.requirements), nil)
	}

	req := x402.VerifyRequest{
		X402Version:         payload.X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: selected,
	}

	resp, err := g.facilitator.Verify(ctx, req)
	if err == nil && resp == nil {
		err = errEmptyFacilitatorResponse
	}
	if err != nil {
		return nil, g.reject(ctx, ErrVerificationFailed(err.Error(), g.requirements, err), nil)
	}
	if !resp.IsValid {
		reason := resp.InvalidReason
		if reason == "" {
			reason = x402.ErrorReasonUnexpectedVerifyError
		}
		return nil, g.reject(ctx, ErrVerificationFailed(reason, g.requirements, nil), nil)
	}

	verified := &VerifiedPayment{request: req, verification: *resp}
	g.observer.PaymentVerified(ctx, verified)
	return verified, nil
}

// SettlePayment executes a verified payment
func (g *Paygate) SettlePayment(ctx context.Context, payment *VerifiedPayment) (*x402.SettleResponse, error) {
	resp, err := g.facilitator.Settle(ctx, x402.SettleRequest(payment.request))
	if err == nil && resp == nil {
		err = errEmptyFacilitatorResponse
	}
	if err != nil {
		return nil, g.reject(ctx, ErrSettlementFailed(err.Error(), g.requirements, err), payment)
	}
	if !resp.Success {
		reason := resp.ErrorReason
		if reason == "" {
			reason = x402.ErrorReasonUnexpectedSettleError
		}
		return nil, g.reject(ctx, ErrSettlementFailed(reason, g.requirements, nil), payment)
	}

	g.observer.PaymentSettled(ctx, payment, resp)
	return resp, nil
}

// Run takes a request through extract, verify and settle around next.
//
// With settle-before-execution, next runs only after a successful settlement
// and receives it. Otherwise next runs right after verification with a nil
// settlement, and settlement happens only if next reports success.
// The returned settlement is nil when next failed and nothing was settled.
func (g *Paygate) Run(ctx context.Context, header http.Header, next func(settlement *x402.SettleResponse) bool) (*x402.SettleResponse, error) {
	payload, err := g.ExtractPaymentPayload(ctx, header)
	if err != nil {
		return nil, err
	}

	verified, err := g.VerifyPayment(ctx, *payload)
	if err != nil {
		return nil, err
	}

	if g.settleBeforeExecution {
		settlement, err := g.SettlePayment(ctx, verified)
		if err != nil {
			return nil, err
		}
		next(settlement)
		return settlement, nil
	}

	if !next(nil) {
		return nil, nil
	}
	return g.SettlePayment(ctx, verified)
}

func (g *Paygate) reject(ctx context.Context, err *PaymentRequiredError, payment *VerifiedPayment) error {
	g.observer.PaymentRejected(ctx, err, payment)
	return err
}

// enrichFeePayer copies offers, adding the fee payer a facilitator reports for
// the offer's network. Offers without such a kind are returned unchanged.
func enrichFeePayer(offers []x402.PaymentRequirements, supported x402.SupportedResponse) []x402.PaymentRequirements {
	enriched := make([]x402.PaymentRequirements, 0, len(offers))
	for _, offer := range offers {
		feePayer := ""
		for _, kind := range supported.Kinds {
			if kind.Network == offer.Network && kind.FeePayer() != "" {
				feePayer = kind.FeePayer()
				break
			}
		}
		if feePayer == "" {
			enriched = append(enriched, offer)
			continue
		}

		c := offer.Clone()
		if c.Extra == nil {
			c.Extra = make(map[string]interface{}, 1)
		}
		c.Extra["feePayer"] = feePayer
		enriched = append(enriched, c)
	}
	return enriched
}
