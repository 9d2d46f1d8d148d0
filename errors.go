package x402

import "errors"

var (
	ErrInvalidPaymentHeader = errors.New("x402: invalid payment header")
	ErrUnsupportedVersion   = errors.New("x402: unsupported x402 version")
	ErrUnknownScheme        = errors.New("x402: unknown payment scheme")
	ErrUnknownNetwork       = errors.New("x402: unknown network")
	ErrMissingPayload       = errors.New("x402: payment payload is missing")
)
