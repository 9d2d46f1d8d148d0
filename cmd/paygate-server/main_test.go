package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/config"
	x402http "github.com/x402-foundation/x402-paygate/http"
	"github.com/x402-foundation/x402-paygate/metrics"
	"github.com/x402-foundation/x402-paygate/paygate"
	"github.com/x402-foundation/x402-paygate/test/mocks/facilitator"
)

func testServer(t *testing.T) (*httptest.Server, *facilitator.Facilitator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		EVMNetwork:        x402.NetworkBaseSepolia,
		EVMPayeeAddress:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Price:             "0.01",
		MimeType:          paygate.DefaultMimeType,
		MaxTimeoutSeconds: 60,
		BaseURL:           "http://paygate.test",
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	fake := facilitator.New()

	m, err := buildMiddleware(cfg, collector.Instrument(fake), collector)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(newRouter(paygate.NewSnapshot(m), reg, logger))
	t.Cleanup(srv.Close)
	return srv, fake
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPayRequiresPayment(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/pay")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	var body x402.PaymentRequired
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Accepts, 1)
	assert.Equal(t, "http://paygate.test/pay", body.Accepts[0].Resource)
	assert.Equal(t, "10000", body.Accepts[0].MaxAmountRequired)
}

func TestPaySettles(t *testing.T) {
	srv, fake := testServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/pay", nil)
	require.NoError(t, err)
	req.Header.Set(x402http.HeaderPayment, facilitator.Header(x402.NetworkBaseSepolia, "0xpayer"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	settlement, err := x402.DecodeSettleResponseHeader(resp.Header.Get(x402http.HeaderPaymentResponse))
	require.NoError(t, err)
	assert.Equal(t, "0xsettled", settlement.Transaction)
	assert.Len(t, fake.SettleCalls(), 1)

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	text, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(text), `x402_payments_settled_total{`))
}

func TestBuildMiddlewareRejectsInvalidConfig(t *testing.T) {
	cfg := &config.Config{
		EVMNetwork:        x402.NetworkBaseSepolia,
		EVMPayeeAddress:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Price:             "0.01",
		MaxTimeoutSeconds: 60,
		BaseURL:           "/relative",
	}

	_, err := buildMiddleware(cfg, facilitator.New(), paygate.NopObserver{})
	assert.ErrorContains(t, err, "base URL must be absolute")
}
