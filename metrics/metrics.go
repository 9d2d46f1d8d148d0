// Package metrics exports gate outcomes and facilitator latency to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/paygate"
)

// Collector implements paygate.Observer
type Collector struct {
	verified        *prometheus.CounterVec
	settled         *prometheus.CounterVec
	settledAmount   *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	facilitatorTime *prometheus.HistogramVec
}

// NewCollector creates the collectors and registers them with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		verified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x402_payments_verified_total",
				Help: "Total number of payment payloads accepted by the facilitator.",
			},
			[]string{"network"},
		),
		settled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x402_payments_settled_total",
				Help: "Total number of settled payments.",
			},
			[]string{"network", "asset"},
		),
		settledAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x402_payments_settled_amount_atomic_total",
				Help: "Sum of settled amounts in the asset's atomic units. Approximate once the total exceeds 2^53 units.",
			},
			[]string{"network", "asset"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x402_payments_rejected_total",
				Help: "Total number of requests answered with 402 Payment Required.",
			},
			[]string{"reason"},
		),
		facilitatorTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "x402_facilitator_request_duration_seconds",
				Help:    "Latency of facilitator calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
	}
	reg.MustRegister(c.verified, c.settled, c.settledAmount, c.rejected, c.facilitatorTime)
	return c
}

func (c *Collector) PaymentVerified(_ context.Context, payment *paygate.VerifiedPayment) {
	c.verified.WithLabelValues(string(payment.Requirements().Network)).Inc()
}

func (c *Collector) PaymentSettled(_ context.Context, payment *paygate.VerifiedPayment, _ *x402.SettleResponse) {
	req := payment.Requirements()
	c.settled.WithLabelValues(string(req.Network), req.Asset).Inc()
	if amount, ok := atomicAmount(req.MaxAmountRequired); ok {
		c.settledAmount.WithLabelValues(string(req.Network), req.Asset).Add(amount)
	}
}

// atomicAmount converts a base-10 atomic amount to the counter's float64.
// Prometheus counters are float64, so amounts above 2^53 are rounded.
func atomicAmount(units string) (float64, bool) {
	d, err := decimal.NewFromString(units)
	if err != nil || !d.IsInteger() || d.Sign() <= 0 {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func (c *Collector) PaymentRejected(_ context.Context, rejection *paygate.PaymentRequiredError, _ *paygate.VerifiedPayment) {
	c.rejected.WithLabelValues(string(rejection.Reason)).Inc()
}

// Instrument wraps f so every call is timed
func (c *Collector) Instrument(f x402.Facilitator) x402.Facilitator {
	return &instrumentedFacilitator{next: f, hist: c.facilitatorTime}
}

type instrumentedFacilitator struct {
	next x402.Facilitator
	hist *prometheus.HistogramVec
}

func (f *instrumentedFacilitator) observe(operation string, start time.Time, err error, ok bool) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case !ok:
		outcome = "rejected"
	}
	f.hist.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func (f *instrumentedFacilitator) Supported(ctx context.Context) (x402.SupportedResponse, error) {
	start := time.Now()
	resp, err := f.next.Supported(ctx)
	f.observe("supported", start, err, true)
	return resp, err
}

func (f *instrumentedFacilitator) Verify(ctx context.Context, req x402.VerifyRequest) (*x402.VerifyResponse, error) {
	start := time.Now()
	resp, err := f.next.Verify(ctx, req)
	f.observe("verify", start, err, resp != nil && resp.IsValid)
	return resp, err
}

func (f *instrumentedFacilitator) Settle(ctx context.Context, req x402.SettleRequest) (*x402.SettleResponse, error) {
	start := time.Now()
	resp, err := f.next.Settle(ctx, req)
	f.observe("settle", start, err, resp != nil && resp.Success)
	return resp, err
}
