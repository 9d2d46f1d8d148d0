// Package settlement publishes the outcome of every settlement attempt so it
// can be recorded outside the request path.
package settlement

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/paygate"
)

type Status string

const (
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
)

// Event describes one settlement attempt
type Event struct {
	IdempotencyKey string       `json:"idempotency_key"`
	Status         Status       `json:"status"`
	Scheme         x402.Scheme  `json:"scheme"`
	Network        x402.Network `json:"network"`
	Resource       string       `json:"resource"`
	PayTo          string       `json:"pay_to"`
	Asset          string       `json:"asset"`
	Amount         string       `json:"amount"`
	Payer          string       `json:"payer,omitempty"`
	Transaction    string       `json:"transaction,omitempty"`
	ErrorReason    string       `json:"error_reason,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// IdempotencyKey identifies a payment payload. A payload can only be
// settled once, so retries of the same payload share a key.
func IdempotencyKey(payload x402.PaymentPayload) string {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	hash := sha256.Sum256(payloadBytes)
	return hex.EncodeToString(hash[:])
}

func newEvent(payment *paygate.VerifiedPayment, now time.Time) Event {
	req := payment.Requirements()
	return Event{
		IdempotencyKey: IdempotencyKey(payment.Payload()),
		Scheme:         req.Scheme,
		Network:        req.Network,
		Resource:       req.Resource,
		PayTo:          req.PayTo,
		Asset:          req.Asset,
		Amount:         req.MaxAmountRequired,
		Payer:          payment.Payer(),
		CreatedAt:      now.UTC(),
	}
}

// SettledEvent records a successful settlement
func SettledEvent(payment *paygate.VerifiedPayment, settlement *x402.SettleResponse, now time.Time) Event {
	e := newEvent(payment, now)
	e.Status = StatusSettled
	e.Transaction = settlement.Transaction
	if settlement.Payer != "" {
		e.Payer = settlement.Payer
	}
	if settlement.Network != "" {
		e.Network = settlement.Network
	}
	return e
}

// FailedEvent records a settlement the facilitator refused or could not complete
func FailedEvent(payment *paygate.VerifiedPayment, rejection *paygate.PaymentRequiredError, now time.Time) Event {
	e := newEvent(payment, now)
	e.Status = StatusFailed
	e.ErrorReason = rejection.Response.Error
	return e
}
