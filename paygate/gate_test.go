package paygate

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/test/mocks/facilitator"
)

func paymentHeader(network x402.Network) http.Header {
	h := http.Header{}
	h.Set(HeaderPayment, facilitator.Header(network, "0xpayer"))
	return h
}

func requirePaymentRequired(t *testing.T, err error, reason ErrorReason) *PaymentRequiredError {
	t.Helper()

	pre, ok := AsPaymentRequired(err)
	require.True(t, ok, "expected *PaymentRequiredError, got %v", err)
	assert.Equal(t, reason, pre.Reason)
	assert.Equal(t, http.StatusPaymentRequired, pre.StatusCode())
	assert.Equal(t, x402.X402Version, pre.Response.X402Version)
	return pre
}

func TestRunWithoutHeaderListsEnrichedOffers(t *testing.T) {
	fake := facilitator.New(
		x402.SupportedKind{X402Version: 1, Scheme: x402.SchemeExact, Network: x402.NetworkBaseSepolia},
		x402.SupportedKind{
			X402Version: 1,
			Scheme:      x402.SchemeExact,
			Network:     x402.NetworkSolanaDevnet,
			Extra:       map[string]interface{}{"feePayer": testFeePayer},
		},
	)
	m := New(fake, baseSepoliaTag(t), solanaDevnetTag(t))
	gate := m.Paygate(mustParseURL(t, "/pay"))

	handlerRan := false
	_, err := gate.Run(context.Background(), http.Header{}, func(*x402.SettleResponse) bool {
		handlerRan = true
		return true
	})

	pre := requirePaymentRequired(t, err, ReasonPaymentHeaderRequired)
	assert.Equal(t, "X-PAYMENT header is required", pre.Response.Error)
	require.Len(t, pre.Response.Accepts, 2)
	assert.Equal(t, map[string]interface{}{"name": "USDC", "version": "2"}, pre.Response.Accepts[0].Extra)
	assert.Equal(t, map[string]interface{}{"feePayer": testFeePayer}, pre.Response.Accepts[1].Extra)
	assert.False(t, handlerRan)
	assert.Equal(t, 1, fake.SupportedCalls())
	assert.Empty(t, fake.VerifyCalls())

	again := m.Paygate(mustParseURL(t, "/pay")).Requirements()
	assert.Nil(t, again[1].Extra, "enrichment must not leak into the configuration")
}

func TestRunWithoutHeaderKeepsEVMExtra(t *testing.T) {
	fake := facilitator.New(x402.SupportedKind{
		X402Version: 1,
		Scheme:      x402.SchemeExact,
		Network:     x402.NetworkBaseSepolia,
		Extra:       map[string]interface{}{"feePayer": "0xfee"},
	})
	gate := New(fake, baseSepoliaTag(t)).Paygate(mustParseURL(t, "/pay"))

	_, err := gate.ExtractPaymentPayload(context.Background(), http.Header{})
	pre := requirePaymentRequired(t, err, ReasonPaymentHeaderRequired)
	assert.Equal(t, map[string]interface{}{"name": "USDC", "version": "2", "feePayer": "0xfee"}, pre.Response.Accepts[0].Extra)
}

func TestRunSupportedFailure(t *testing.T) {
	fake := facilitator.New()
	fake.SupportedFunc = func(context.Context) (x402.SupportedResponse, error) {
		return x402.SupportedResponse{}, errors.New("connection refused")
	}
	gate := New(fake, baseSepoliaTag(t)).Paygate(mustParseURL(t, "/pay"))

	_, err := gate.Run(context.Background(), http.Header{}, func(*x402.SettleResponse) bool { return true })

	pre := requirePaymentRequired(t, err, ReasonSupportedUnavailable)
	assert.Equal(t, "Unable to retrieve supported payment schemes: connection refused", pre.Response.Error)
	assert.NotNil(t, pre.Response.Accepts)
	assert.Empty(t, pre.Response.Accepts)
}

func TestRunInvalidHeader(t *testing.T) {
	fake := facilitator.New(x402.SupportedKind{
		X402Version: 1,
		Scheme:      x402.SchemeExact,
		Network:     x402.NetworkSolanaDevnet,
		Extra:       map[string]interface{}{"feePayer": testFeePayer},
	})
	m := New(fake, solanaDevnetTag(t))
	gate := m.Paygate(mustParseURL(t, "/pay"))

	h := http.Header{}
	h.Set(HeaderPayment, "not-a-payment")
	_, err := gate.Run(context.Background(), h, func(*x402.SettleResponse) bool { return true })

	pre := requirePaymentRequired(t, err, ReasonInvalidPaymentHeader)
	assert.Equal(t, "Invalid or malformed payment header", pre.Response.Error)
	assert.Equal(t, gate.Requirements(), pre.Response.Accepts)
	assert.Nil(t, pre.Response.Accepts[0].Extra, "invalid header path is not enriched")
	assert.True(t, errors.Is(err, x402.ErrInvalidPaymentHeader))
	assert.Equal(t, 1, fake.SupportedCalls())
}

func TestRunSupportedFailureWithHeader(t *testing.T) {
	fake := facilitator.New()
	fake.SupportedFunc = func(context.Context) (x402.SupportedResponse, error) {
		return x402.SupportedResponse{}, errors.New("connection refused")
	}
	gate := New(fake, baseSepoliaTag(t)).Paygate(mustParseURL(t, "/pay"))

	handlerRan := false
	settlement, err := gate.Run(context.Background(), paymentHeader(x402.NetworkBaseSepolia), func(*x402.SettleResponse) bool {
		handlerRan = true
		return true
	})

	pre := requirePaymentRequired(t, err, ReasonSupportedUnavailable)
	assert.Equal(t, "Unable to retrieve supported payment schemes: connection refused", pre.Response.Error)
	assert.Empty(t, pre.Response.Accepts)
	assert.Nil(t, settlement)
	assert.False(t, handlerRan)
	assert.Equal(t, 1, fake.SupportedCalls())
	assert.Empty(t, fake.VerifyCalls())
	assert.Empty(t, fake.SettleCalls())
}

func TestRunSettlesAfterHandler(t *testing.T) {
	fake := facilitator.New()
	gate := New(fake, baseSepoliaTag(t)).Paygate(mustParseURL(t, "/pay"))

	var order []string
	fake.SettleFunc = func(ctx context.Context, req x402.SettleRequest) (*x402.SettleResponse, error) {
		order = append(order, "settle")
		return &x402.SettleResponse{Success: true, Transaction: "0xtx", Network: req.PaymentRequirements.Network}, nil
	}

	settlement, err := gate.Run(context.Background(), paymentHeader(x402.NetworkBaseSepolia), func(s *x402.SettleResponse) bool {
		assert.Nil(t, s)
		order = append(order, "handler")
		return true
	})

	require.NoError(t, err)
	require.NotNil(t, settlement)
	assert.Equal(t, "0xtx", settlement.Transaction)
	assert.Equal(t, []string{"handler", "settle"}, order)

	verifyCalls := fake.VerifyCalls()
	require.Len(t, verifyCalls, 1)
	assert.Equal(t, x402.X402Version, verifyCalls[0].X402Version)
	assert.Equal(t, gate.Requirements()[0], verifyCalls[0].PaymentRequirements)
	assert.Equal(t, x402.SettleRequest(verifyCalls[0]), fake.SettleCalls()[0], "settle receives exactly what was verified")
}

func TestRunSkipsSettlementWhenHandlerFails(t *testing.T) {
	fake := facilitator.New()
	gate := New(fake, baseSepoliaTag(t)).Paygate(mustParseURL(t, "/pay"))

	settlement, err := gate.Run(context.Background(), paymentHeader(x402.NetworkBaseSepolia), func(*x402.SettleResponse) bool {
		return false
	})

	require.NoError(t, err)
	assert.Nil(t, settlement)
	assert.Len(t, fake.VerifyCalls(), 1)
	assert.Empty(t, fake.SettleCalls())
}

func TestRunSettlesBeforeHandler(t *testing.T) {
	fake := facilitator.New()
	gate := New(fake, baseSepoliaTag(t)).SettleBeforeExecution().Paygate(mustParseURL(t, "/pay"))

	var got *x402.SettleResponse
	settlement, err := gate.Run(context.Background(), paymentHeader(x402.NetworkBaseSepolia), func(s *x402.SettleResponse) bool {
		require.Len(t, fake.SettleCalls(), 1, "settlement must happen before the handler")
		got = s
		return true
	})

	require.NoError(t, err)
	assert.Same(t, settlement, got)
}

func TestRunSettleBeforeFailureSkipsHandler(t *testing.T) {
	fake := facilitator.New()
	fake.SettleFunc = func(context.Context, x402.SettleRequest) (*x402.SettleResponse, error) {
		return &x402.SettleResponse{Success: false, ErrorReason: x402.ErrorReasonInsufficientFunds}, nil
	}
	gate := New(fake, baseSepoliaTag(t)).SettleBeforeExecution().Paygate(mustParseURL(t, "/pay"))

	handlerRan := false
	_, err := gate.Run(context.Background(), paymentHeader(x402.NetworkBaseSepolia), func(*x402.SettleResponse) bool {
		handlerRan = true
		return true
	})

	pre := requirePaymentRequired(t, err, ReasonSettlementFailed)
	assert.Equal(t, "Settlement Failed: insufficient_funds", pre.Response.Error)
	assert.False(t, handlerRan)
}

func TestVerifyPaymentNoMatch(t *testing.T) {
	fake := facilitator.New()
	gate := New(fake, baseSepoliaTag(t), usdcTag(t, x402.NetworkBase, testEVMPayee, "1")).Paygate(mustParseURL(t, "/pay"))

	_, err := gate.VerifyPayment(context.Background(), facilitator.Payload(x402.NetworkSolana, "payer"))

	pre := requirePaymentRequired(t, err, ReasonNoPaymentMatching)
	assert.Equal(t, "Unable to find matching payment requirements", pre.Response.Error)
	assert.Equal(t, gate.Requirements(), pre.Response.Accepts)
	assert.Empty(t, fake.VerifyCalls())
}

func TestVerifyPaymentPicksFirstMatch(t *testing.T) {
	fake := facilitator.New()
	first := usdcTag(t, x402.NetworkBaseSepolia, testEVMPayee, "0.01")
	second := usdcTag(t, x402.NetworkBaseSepolia, testEVMPayee, "0.02")
	gate := New(fake, first, second).Paygate(mustParseURL(t, "/pay"))

	verified, err := gate.VerifyPayment(context.Background(), facilitator.Payload(x402.NetworkBaseSepolia, "0xpayer"))

	require.NoError(t, err)
	assert.Equal(t, "10000", verified.Requirements().MaxAmountRequired)
	assert.Equal(t, "0xpayer", verified.Payer())
}

func TestVerifyPaymentFailures(t *testing.T) {
	tests := []struct {
		name    string
		verify  func(context.Context, x402.VerifyRequest) (*x402.VerifyResponse, error)
		wantMsg string
	}{
		{
			name: "invalid",
			verify: func(context.Context, x402.VerifyRequest) (*x402.VerifyResponse, error) {
				return &x402.VerifyResponse{IsValid: false, InvalidReason: x402.ErrorReasonInsufficientFunds}, nil
			},
			wantMsg: "Verification Failed: insufficient_funds",
		},
		{
			name: "invalid without reason",
			verify: func(context.Context, x402.VerifyRequest) (*x402.VerifyResponse, error) {
				return &x402.VerifyResponse{IsValid: false}, nil
			},
			wantMsg: "Verification Failed: unexpected_verify_error",
		},
		{
			name: "transport error",
			verify: func(context.Context, x402.VerifyRequest) (*x402.VerifyResponse, error) {
				return nil, errors.New("facilitator timeout")
			},
			wantMsg: "Verification Failed: facilitator timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := facilitator.New()
			fake.VerifyFunc = tt.verify
			gate := New(fake, baseSepoliaTag(t)).Paygate(mustParseURL(t, "/pay"))

			handlerRan := false
			_, err := gate.Run(context.Background(), paymentHeader(x402.NetworkBaseSepolia), func(*x402.SettleResponse) bool {
				handlerRan = true
				return true
			})

			pre := requirePaymentRequired(t, err, ReasonVerificationFailed)
			assert.Equal(t, tt.wantMsg, pre.Response.Error)
			assert.Equal(t, gate.Requirements(), pre.Response.Accepts)
			assert.False(t, handlerRan)
			assert.Empty(t, fake.SettleCalls())
		})
	}
}

func TestSettlePaymentFailures(t *testing.T) {
	tests := []struct {
		name    string
		settle  func(context.Context, x402.SettleRequest) (*x402.SettleResponse, error)
		wantMsg string
	}{
		{
			name: "unsuccessful with reason",
			settle: func(context.Context, x402.SettleRequest) (*x402.SettleResponse, error) {
				return &x402.SettleResponse{Success: false, ErrorReason: x402.ErrorReasonInvalidNetwork}, nil
			},
			wantMsg: "Settlement Failed: invalid_network",
		},
		{
			name: "unsuccessful without reason",
			settle: func(context.Context, x402.SettleRequest) (*x402.SettleResponse, error) {
				return &x402.SettleResponse{Success: false}, nil
			},
			wantMsg: "Settlement Failed: unexpected_settle_error",
		},
		{
			name: "transport error",
			settle: func(context.Context, x402.SettleRequest) (*x402.SettleResponse, error) {
				return nil, errors.New("502 bad gateway")
			},
			wantMsg: "Settlement Failed: 502 bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := facilitator.New()
			fake.SettleFunc = tt.settle
			gate := New(fake, baseSepoliaTag(t)).Paygate(mustParseURL(t, "/pay"))

			settlement, err := gate.Run(context.Background(), paymentHeader(x402.NetworkBaseSepolia), func(*x402.SettleResponse) bool {
				return true
			})

			pre := requirePaymentRequired(t, err, ReasonSettlementFailed)
			assert.Nil(t, settlement)
			assert.Equal(t, tt.wantMsg, pre.Response.Error)
			assert.Equal(t, gate.Requirements(), pre.Response.Accepts)
		})
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	verified int
	settled  int
	rejected []ErrorReason
	withPay  []bool
}

func (o *recordingObserver) PaymentVerified(context.Context, *VerifiedPayment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verified++
}

func (o *recordingObserver) PaymentSettled(context.Context, *VerifiedPayment, *x402.SettleResponse) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled++
}

func (o *recordingObserver) PaymentRejected(_ context.Context, rejection *PaymentRequiredError, payment *VerifiedPayment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, rejection.Reason)
	o.withPay = append(o.withPay, payment != nil)
}

func TestObserverSeesOutcomes(t *testing.T) {
	fake := facilitator.New()
	obs := &recordingObserver{}
	m := New(fake, baseSepoliaTag(t)).WithObserver(Observers(obs, NewLogObserver(nil)))
	next := func(*x402.SettleResponse) bool { return true }

	_, err := m.Paygate(mustParseURL(t, "/pay")).Run(context.Background(), paymentHeader(x402.NetworkBaseSepolia), next)
	require.NoError(t, err)

	_, err = m.Paygate(mustParseURL(t, "/pay")).Run(context.Background(), http.Header{}, next)
	require.Error(t, err)

	fake.SettleFunc = func(context.Context, x402.SettleRequest) (*x402.SettleResponse, error) {
		return nil, errors.New("boom")
	}
	_, err = m.Paygate(mustParseURL(t, "/pay")).Run(context.Background(), paymentHeader(x402.NetworkBaseSepolia), next)
	require.Error(t, err)

	assert.Equal(t, 2, obs.verified)
	assert.Equal(t, 1, obs.settled)
	assert.Equal(t, []ErrorReason{ReasonPaymentHeaderRequired, ReasonSettlementFailed}, obs.rejected)
	assert.Equal(t, []bool{false, true}, obs.withPay)
}

func TestPaymentRequiredErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ErrVerificationFailed(cause.Error(), nil, cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "402 Payment Required: Verification Failed: dial tcp: refused", err.Error())
	assert.NotNil(t, err.Response.Accepts)
}
