package settlement

import (
	"context"
	"log/slog"
	"time"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/paygate"
)

// Observer publishes an event for every settlement attempt.
// Publish errors are logged and never affect the response.
type Observer struct {
	paygate.NopObserver

	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewObserver(publisher Publisher, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{publisher: publisher, logger: logger, now: time.Now}
}

func (o *Observer) PaymentSettled(ctx context.Context, payment *paygate.VerifiedPayment, settlement *x402.SettleResponse) {
	o.publish(ctx, SettledEvent(payment, settlement, o.now()))
}

// PaymentRejected publishes only settlement failures; other rejections never reached the chain
func (o *Observer) PaymentRejected(ctx context.Context, rejection *paygate.PaymentRequiredError, payment *paygate.VerifiedPayment) {
	if payment == nil || rejection.Reason != paygate.ReasonSettlementFailed {
		return
	}
	o.publish(ctx, FailedEvent(payment, rejection, o.now()))
}

func (o *Observer) publish(ctx context.Context, event Event) {
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.ErrorContext(ctx, "settlement: failed to publish event",
			"key", event.IdempotencyKey,
			"status", event.Status,
			"error", err,
		)
	}
}
