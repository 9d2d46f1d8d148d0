package paygate

import (
	"context"
	"log/slog"

	x402 "github.com/x402-foundation/x402-paygate"
)

// Observer receives gate outcomes. Observers cannot change an outcome and
// must not block; they are called synchronously on the request path.
type Observer interface {
	// PaymentVerified is called after the facilitator accepted a payload
	PaymentVerified(ctx context.Context, payment *VerifiedPayment)
	// PaymentSettled is called after a successful settlement
	PaymentSettled(ctx context.Context, payment *VerifiedPayment, settlement *x402.SettleResponse)
	// PaymentRejected is called for every 402. payment is nil unless
	// the payload had already been verified.
	PaymentRejected(ctx context.Context, rejection *PaymentRequiredError, payment *VerifiedPayment)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) PaymentVerified(context.Context, *VerifiedPayment) {}
func (NopObserver) PaymentSettled(context.Context, *VerifiedPayment, *x402.SettleResponse) {}
func (NopObserver) PaymentRejected(context.Context, *PaymentRequiredError, *VerifiedPayment) {}

type multiObserver []Observer

// Observers fans events out to every observer in order
func Observers(observers ...Observer) Observer {
	flat := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o == nil {
			continue
		}
		if m, ok := o.(multiObserver); ok {
			flat = append(flat, m...)
			continue
		}
		flat = append(flat, o)
	}
	return flat
}

func (m multiObserver) PaymentVerified(ctx context.Context, payment *VerifiedPayment) {
	for _, o := range m {
		o.PaymentVerified(ctx, payment)
	}
}

func (m multiObserver) PaymentSettled(ctx context.Context, payment *VerifiedPayment, settlement *x402.SettleResponse) {
	for _, o := range m {
		o.PaymentSettled(ctx, payment, settlement)
	}
}

func (m multiObserver) PaymentRejected(ctx context.Context, rejection *PaymentRequiredError, payment *VerifiedPayment) {
	for _, o := range m {
		o.PaymentRejected(ctx, rejection, payment)
	}
}

// LogObserver writes gate outcomes to a structured logger
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver logs to logger, or slog.Default when logger is nil
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (l *LogObserver) PaymentVerified(ctx context.Context, payment *VerifiedPayment) {
	req := payment.Requirements()
	l.logger.DebugContext(ctx, "paygate: payment verified",
		"network", req.Network,
		"resource", req.Resource,
		"payer", payment.Payer(),
	)
}

func (l *LogObserver) PaymentSettled(ctx context.Context, payment *VerifiedPayment, settlement *x402.SettleResponse) {
	req := payment.Requirements()
	l.logger.InfoContext(ctx, "paygate: payment settled",
		"network", req.Network,
		"resource", req.Resource,
		"amount", req.MaxAmountRequired,
		"asset", req.Asset,
		"payer", settlement.Payer,
		"transaction", settlement.Transaction,
	)
}

func (l *LogObserver) PaymentRejected(ctx context.Context, rejection *PaymentRequiredError, payment *VerifiedPayment) {
	level := slog.LevelInfo
	switch rejection.Reason {
	case ReasonVerificationFailed, ReasonSettlementFailed, ReasonSupportedUnavailable:
		level = slog.LevelWarn
	}

	attrs := []any{
		"reason", rejection.Reason,
		"error", rejection.Response.Error,
	}
	if payment != nil {
		attrs = append(attrs, "network", payment.Requirements().Network, "payer", payment.Payer())
	}
	l.logger.Log(ctx, level, "paygate: payment required", attrs...)
}
