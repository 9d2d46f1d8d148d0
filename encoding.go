package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Base64 regex pattern - requires at least one character
var base64Regex = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// DecodePaymentHeader validates and decodes an X-PAYMENT header value.
// It checks:
// - Base64 format
// - JSON structure
// - Protocol version, scheme and network against what this module knows
//
// Every failure wraps ErrInvalidPaymentHeader.
func DecodePaymentHeader(header string) (*PaymentPayload, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("%w: header is empty", ErrInvalidPaymentHeader)
	}

	if !base64Regex.MatchString(header) {
		return nil, fmt.Errorf("%w: not valid base64", ErrInvalidPaymentHeader)
	}

	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decoding failed: %v", ErrInvalidPaymentHeader, err)
	}

	var payload PaymentPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrInvalidPaymentHeader, err)
	}

	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPaymentHeader, err)
	}

	return &payload, nil
}

// Validate checks the payload's version, scheme, network and payload object
func (p PaymentPayload) Validate() error {
	if p.X402Version != X402Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.X402Version)
	}
	if !p.Scheme.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownScheme, p.Scheme)
	}
	if !p.Network.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, p.Network)
	}
	if p.Payload == nil {
		return ErrMissingPayload
	}
	return nil
}

// EncodePaymentHeader encodes a payload the way clients send it in X-PAYMENT
func EncodePaymentHeader(payload PaymentPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeSettleResponseHeader encodes a settlement result for the X-PAYMENT-RESPONSE header
func EncodeSettleResponseHeader(resp SettleResponse) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settle response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSettleResponseHeader decodes an X-PAYMENT-RESPONSE header value
func DecodeSettleResponseHeader(header string) (*SettleResponse, error) {
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("failed to decode settle response: %w", err)
	}
	var resp SettleResponse
	if err := json.Unmarshal(decoded, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settle response: %w", err)
	}
	return &resp, nil
}
