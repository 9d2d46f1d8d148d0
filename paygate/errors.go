package paygate

import (
	"errors"
	"fmt"
	"net/http"

	x402 "github.com/x402-foundation/x402-paygate"
)

// ErrorReason classifies why a request was answered with 402
type ErrorReason string

const (
	ReasonPaymentHeaderRequired ErrorReason = "payment_header_required"
	ReasonInvalidPaymentHeader  ErrorReason = "invalid_payment_header"
	ReasonNoPaymentMatching     ErrorReason = "no_payment_matching"
	ReasonVerificationFailed    ErrorReason = "verification_failed"
	ReasonSettlementFailed      ErrorReason = "settlement_failed"
	ReasonSupportedUnavailable  ErrorReason = "supported_unavailable"
)

// Messages carried in the "error" field of the 402 body
const (
	MessagePaymentHeaderRequired = "X-PAYMENT header is required"
	MessageInvalidPaymentHeader  = "Invalid or malformed payment header"
	MessageNoPaymentMatching     = "Unable to find matching payment requirements"
)

// PaymentRequiredError is returned by every failing gate operation.
// It always renders as HTTP 402 with Response as the JSON body.
type PaymentRequiredError struct {
	Reason   ErrorReason
	Response x402.PaymentRequired
	Cause    error
}

func (e *PaymentRequiredError) Error() string {
	return "402 Payment Required: " + e.Response.Error
}

// Unwrap returns the underlying decode or facilitator error, if any
func (e *PaymentRequiredError) Unwrap() error {
	return e.Cause
}

// StatusCode is always 402
func (e *PaymentRequiredError) StatusCode() int {
	return http.StatusPaymentRequired
}

// AsPaymentRequired extracts a *PaymentRequiredError from err
func AsPaymentRequired(err error) (*PaymentRequiredError, bool) {
	var pre *PaymentRequiredError
	if errors.As(err, &pre) {
		return pre, true
	}
	return nil, false
}

func newPaymentRequired(reason ErrorReason, message string, accepts []x402.PaymentRequirements, cause error) *PaymentRequiredError {
	return &PaymentRequiredError{
		Reason:   reason,
		Response: x402.NewPaymentRequired(message, accepts),
		Cause:    cause,
	}
}

// ErrPaymentHeaderRequired builds the 402 for a request without X-PAYMENT
func ErrPaymentHeaderRequired(accepts []x402.PaymentRequirements) *PaymentRequiredError {
	return newPaymentRequired(ReasonPaymentHeaderRequired, MessagePaymentHeaderRequired, accepts, nil)
}

// ErrInvalidPaymentHeader builds the 402 for an undecodable X-PAYMENT header
func ErrInvalidPaymentHeader(accepts []x402.PaymentRequirements, cause error) *PaymentRequiredError {
	return newPaymentRequired(ReasonInvalidPaymentHeader, MessageInvalidPaymentHeader, accepts, cause)
}

// ErrNoPaymentMatching builds the 402 for a payload that fits no offer
func ErrNoPaymentMatching(accepts []x402.PaymentRequirements) *PaymentRequiredError {
	return newPaymentRequired(ReasonNoPaymentMatching, MessageNoPaymentMatching, accepts, nil)
}

// ErrVerificationFailed builds the 402 for a payload the facilitator rejected
func ErrVerificationFailed(reason string, accepts []x402.PaymentRequirements, cause error) *PaymentRequiredError {
	return newPaymentRequired(ReasonVerificationFailed, fmt.Sprintf("Verification Failed: %s", reason), accepts, cause)
}

// ErrSettlementFailed builds the 402 for a verified payload that could not be settled
func ErrSettlementFailed(reason string, accepts []x402.PaymentRequirements, cause error) *PaymentRequiredError {
	return newPaymentRequired(ReasonSettlementFailed, fmt.Sprintf("Settlement Failed: %s", reason), accepts, cause)
}

// ErrSupportedUnavailable builds the 402 for a failed supported-kinds query.
// The offer list is empty because none could be enriched.
func ErrSupportedUnavailable(cause error) *PaymentRequiredError {
	return newPaymentRequired(ReasonSupportedUnavailable, fmt.Sprintf("Unable to retrieve supported payment schemes: %v", cause), nil, cause)
}
