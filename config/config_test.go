package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/paygate"
	"github.com/x402-foundation/x402-paygate/test/mocks/facilitator"
)

var configKeys = []string{
	"PORT", "FACILITATOR_URL", "BASE_URL", "RESOURCE_URL", "EVM_PAYEE_ADDRESS", "EVM_NETWORK",
	"SVM_PAYEE_ADDRESS", "SVM_NETWORK", "PRICE", "DESCRIPTION", "MIME_TYPE", "MAX_TIMEOUT_SECONDS",
	"SETTLE_BEFORE_EXECUTION", "FACILITATOR_TIMEOUT", "CDP_API_KEY_ID", "CDP_API_KEY_SECRET",
	"REDIS_ADDR", "SUPPORTED_CACHE_TTL", "NATS_URL", "DATABASE_URL", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("EVM_PAYEE_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "4021", cfg.Port)
	assert.Equal(t, x402.NetworkBaseSepolia, cfg.EVMNetwork)
	assert.Equal(t, x402.NetworkSolanaDevnet, cfg.SVMNetwork)
	assert.Equal(t, "0.0025", cfg.Price)
	assert.Equal(t, paygate.DefaultMaxTimeoutSeconds, cfg.MaxTimeoutSeconds)
	assert.Equal(t, 30*time.Second, cfg.FacilitatorTimeout)
	assert.Zero(t, cfg.SupportedCacheTTL)
	assert.False(t, cfg.SettleBeforeExecution)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SVM_PAYEE_ADDRESS", "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU")
	t.Setenv("MAX_TIMEOUT_SECONDS", "60")
	t.Setenv("SETTLE_BEFORE_EXECUTION", "yes")
	t.Setenv("FACILITATOR_TIMEOUT", "5")
	t.Setenv("SUPPORTED_CACHE_TTL", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.MaxTimeoutSeconds)
	assert.True(t, cfg.SettleBeforeExecution)
	assert.Equal(t, 5*time.Second, cfg.FacilitatorTimeout)
	assert.Equal(t, 2*time.Minute, cfg.SupportedCacheTTL)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_TIMEOUT_SECONDS", "-1")
	t.Setenv("SETTLE_BEFORE_EXECUTION", "maybe")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("CDP_API_KEY_ID", "only-the-id")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{
		"MAX_TIMEOUT_SECONDS",
		"SETTLE_BEFORE_EXECUTION",
		"LOG_LEVEL",
		"must be set together",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestPriceTags(t *testing.T) {
	cfg := &Config{
		EVMNetwork:      x402.NetworkBaseSepolia,
		EVMPayeeAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		SVMNetwork:      x402.NetworkSolanaDevnet,
		SVMPayeeAddress: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		Price:           "0.0025",
	}

	tags, err := cfg.PriceTags()
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "2500", tags[0].Amount)
	assert.Equal(t, x402.NetworkBaseSepolia, tags[0].Token.Network)
	assert.Equal(t, x402.NetworkSolanaDevnet, tags[1].Token.Network)

	cfg.EVMNetwork = "ethereum"
	_, err = cfg.PriceTags()
	assert.Error(t, err)

	_, err = (&Config{Price: "0.0025"}).PriceTags()
	assert.ErrorContains(t, err, "EVM_PAYEE_ADDRESS or SVM_PAYEE_ADDRESS")
}

func TestMiddleware(t *testing.T) {
	cfg := &Config{
		EVMNetwork:            x402.NetworkBaseSepolia,
		EVMPayeeAddress:       "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Price:                 "0.01",
		Description:           "Weather report",
		MimeType:              "application/json",
		MaxTimeoutSeconds:     120,
		BaseURL:               "https://api.example.com",
		ResourceURL:           "https://api.example.com/weather",
		SettleBeforeExecution: true,
	}
	tags, err := cfg.PriceTags()
	require.NoError(t, err)

	m, err := cfg.Middleware(paygate.New(facilitator.New(), tags...))
	require.NoError(t, err)
	assert.True(t, m.Validate().Valid)

	ready, ok := m.Offers().(paygate.ReadyOffers)
	require.True(t, ok)
	require.Len(t, ready.Requirements, 1)
	assert.Equal(t, "https://api.example.com/weather", ready.Requirements[0].Resource)
	assert.Equal(t, "Weather report", ready.Requirements[0].Description)
	assert.Equal(t, 120, ready.Requirements[0].MaxTimeoutSeconds)
	assert.Equal(t, "10000", ready.Requirements[0].MaxAmountRequired)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.loggerTo(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}
