package x402

// X402Version is the protocol version spoken by this module
const X402Version = 1

// Scheme identifies a payment scheme
type Scheme string

const (
	// SchemeExact transfers exactly the required amount
	SchemeExact Scheme = "exact"
)

// Known reports whether the scheme is one this module can carry
func (s Scheme) Known() bool {
	return s == SchemeExact
}

// PaymentRequirements defines what payment is acceptable for a resource
type PaymentRequirements struct {
	Scheme            Scheme                 `json:"scheme"`
	Network           Network                `json:"network"`
	MaxAmountRequired string                 `json:"maxAmountRequired"`
	Resource          string                 `json:"resource"`
	Description       string                 `json:"description"`
	MimeType          string                 `json:"mimeType"`
	OutputSchema      map[string]interface{} `json:"outputSchema,omitempty"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Asset             string                 `json:"asset"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// Clone returns a copy whose Extra map can be modified without affecting r
func (r PaymentRequirements) Clone() PaymentRequirements {
	c := r
	if r.Extra != nil {
		c.Extra = make(map[string]interface{}, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// PaymentPayload contains the signed payment authorization from a client
type PaymentPayload struct {
	X402Version int                    `json:"x402Version"`
	Scheme      Scheme                 `json:"scheme"`
	Network     Network                `json:"network"`
	Payload     map[string]interface{} `json:"payload"`
}

// VerifyRequest is sent to a facilitator's /verify endpoint
type VerifyRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettleRequest is sent to a facilitator's /settle endpoint
type SettleRequest VerifyRequest

// VerifyResponse contains the verification result
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse contains the settlement result
type SettleResponse struct {
	Success     bool    `json:"success"`
	ErrorReason string  `json:"errorReason,omitempty"`
	Payer       string  `json:"payer,omitempty"`
	Transaction string  `json:"transaction"`
	Network     Network `json:"network"`
}

// SupportedKind describes a scheme/network pair a facilitator can handle
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      Scheme                 `json:"scheme"`
	Network     Network                `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// FeePayer returns the facilitator-provided fee payer address, if any
func (k SupportedKind) FeePayer() string {
	if k.Extra == nil {
		return ""
	}
	feePayer, _ := k.Extra["feePayer"].(string)
	return feePayer
}

// SupportedResponse lists what a facilitator supports
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// PaymentRequired is the body of a 402 response
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// NewPaymentRequired builds a 402 body; accepts is never nil so it encodes as an array
func NewPaymentRequired(message string, accepts []PaymentRequirements) PaymentRequired {
	if accepts == nil {
		accepts = []PaymentRequirements{}
	}
	return PaymentRequired{
		X402Version: X402Version,
		Error:       message,
		Accepts:     accepts,
	}
}

// Facilitator error reasons reported in VerifyResponse.InvalidReason and SettleResponse.ErrorReason
const (
	ErrorReasonInsufficientFunds     = "insufficient_funds"
	ErrorReasonInvalidScheme         = "invalid_scheme"
	ErrorReasonInvalidNetwork        = "invalid_network"
	ErrorReasonUnexpectedVerifyError = "unexpected_verify_error"
	ErrorReasonUnexpectedSettleError = "unexpected_settle_error"
)
