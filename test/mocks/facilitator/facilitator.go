package facilitator

import (
	"context"
	"sync"

	x402 "github.com/x402-foundation/x402-paygate"
)

// ============================================================================
// Programmable Facilitator
// ============================================================================

// Facilitator is an in-memory x402.Facilitator whose answers are set by tests.
// Unset functions fall back to an accepting facilitator that supports Kinds.
type Facilitator struct {
	Kinds []x402.SupportedKind

	SupportedFunc func(ctx context.Context) (x402.SupportedResponse, error)
	VerifyFunc    func(ctx context.Context, req x402.VerifyRequest) (*x402.VerifyResponse, error)
	SettleFunc    func(ctx context.Context, req x402.SettleRequest) (*x402.SettleResponse, error)

	mu             sync.Mutex
	supportedCalls int
	verifyCalls    []x402.VerifyRequest
	settleCalls    []x402.SettleRequest
}

// New creates a facilitator that accepts every payment on the given kinds
func New(kinds ...x402.SupportedKind) *Facilitator {
	return &Facilitator{Kinds: kinds}
}

// Supported implements x402.Facilitator
func (f *Facilitator) Supported(ctx context.Context) (x402.SupportedResponse, error) {
	f.mu.Lock()
	f.supportedCalls++
	f.mu.Unlock()

	if f.SupportedFunc != nil {
		return f.SupportedFunc(ctx)
	}
	return x402.SupportedResponse{Kinds: f.Kinds}, nil
}

// Verify implements x402.Facilitator
func (f *Facilitator) Verify(ctx context.Context, req x402.VerifyRequest) (*x402.VerifyResponse, error) {
	f.mu.Lock()
	f.verifyCalls = append(f.verifyCalls, req)
	f.mu.Unlock()

	if f.VerifyFunc != nil {
		return f.VerifyFunc(ctx, req)
	}
	return &x402.VerifyResponse{IsValid: true, Payer: payerOf(req.PaymentPayload)}, nil
}

// Settle implements x402.Facilitator
func (f *Facilitator) Settle(ctx context.Context, req x402.SettleRequest) (*x402.SettleResponse, error) {
	f.mu.Lock()
	f.settleCalls = append(f.settleCalls, req)
	f.mu.Unlock()

	if f.SettleFunc != nil {
		return f.SettleFunc(ctx, req)
	}
	return &x402.SettleResponse{
		Success:     true,
		Payer:       payerOf(req.PaymentPayload),
		Transaction: "0xsettled",
		Network:     req.PaymentRequirements.Network,
	}, nil
}

// SupportedCalls returns how many times Supported was called
func (f *Facilitator) SupportedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supportedCalls
}

// VerifyCalls returns the recorded verify requests
func (f *Facilitator) VerifyCalls() []x402.VerifyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]x402.VerifyRequest(nil), f.verifyCalls...)
}

// SettleCalls returns the recorded settle requests
func (f *Facilitator) SettleCalls() []x402.SettleRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]x402.SettleRequest(nil), f.settleCalls...)
}

// ============================================================================
// Payload helpers
// ============================================================================

// Payload builds an exact-scheme payload for network signed by payer
func Payload(network x402.Network, payer string) x402.PaymentPayload {
	return x402.PaymentPayload{
		X402Version: x402.X402Version,
		Scheme:      x402.SchemeExact,
		Network:     network,
		Payload: map[string]interface{}{
			"signature": "0xsig",
			"authorization": map[string]interface{}{
				"from": payer,
			},
		},
	}
}

// Header encodes Payload(network, payer) as an X-PAYMENT header value
func Header(network x402.Network, payer string) string {
	h, err := x402.EncodePaymentHeader(Payload(network, payer))
	if err != nil {
		panic(err)
	}
	return h
}

func payerOf(p x402.PaymentPayload) string {
	auth, ok := p.Payload["authorization"].(map[string]interface{})
	if !ok {
		return ""
	}
	from, _ := auth["from"].(string)
	return from
}
