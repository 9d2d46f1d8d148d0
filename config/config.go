// Package config reads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/paygate"
	"github.com/x402-foundation/x402-paygate/price"
)

type Config struct {
	Port                  string
	FacilitatorURL        string
	BaseURL               string
	ResourceURL           string
	EVMPayeeAddress       string
	EVMNetwork            x402.Network
	SVMPayeeAddress       string
	SVMNetwork            x402.Network
	Price                 string
	Description           string
	MimeType              string
	MaxTimeoutSeconds     int
	SettleBeforeExecution bool
	FacilitatorTimeout    time.Duration
	CDPAPIKeyID           string
	CDPAPIKeySecret       string
	RedisAddr             string
	SupportedCacheTTL     time.Duration
	NatsURL               string
	DatabaseURL           string
	LogLevel              string
	LogFormat             string
}

// Load reads the environment, after loading .env when one exists
func Load() (*Config, error) {
	ensureEnvLoaded()

	cfg := &Config{
		Port:            getenv("PORT", "4021"),
		FacilitatorURL:  os.Getenv("FACILITATOR_URL"),
		BaseURL:         getenv("BASE_URL", paygate.DefaultBaseURL),
		ResourceURL:     os.Getenv("RESOURCE_URL"),
		EVMPayeeAddress: os.Getenv("EVM_PAYEE_ADDRESS"),
		EVMNetwork:      x402.Network(getenv("EVM_NETWORK", string(x402.NetworkBaseSepolia))),
		SVMPayeeAddress: os.Getenv("SVM_PAYEE_ADDRESS"),
		SVMNetwork:      x402.Network(getenv("SVM_NETWORK", string(x402.NetworkSolanaDevnet))),
		Price:           getenv("PRICE", "0.0025"),
		Description:     os.Getenv("DESCRIPTION"),
		MimeType:        getenv("MIME_TYPE", paygate.DefaultMimeType),
		CDPAPIKeyID:     os.Getenv("CDP_API_KEY_ID"),
		CDPAPIKeySecret: os.Getenv("CDP_API_KEY_SECRET"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		NatsURL:         os.Getenv("NATS_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "text"),
	}

	var errs []error
	var err error
	if cfg.MaxTimeoutSeconds, err = intEnv("MAX_TIMEOUT_SECONDS", paygate.DefaultMaxTimeoutSeconds); err != nil {
		errs = append(errs, err)
	}
	if cfg.SettleBeforeExecution, err = boolEnv("SETTLE_BEFORE_EXECUTION", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.FacilitatorTimeout, err = durationEnv("FACILITATOR_TIMEOUT", 30*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.SupportedCacheTTL, err = durationEnv("SUPPORTED_CACHE_TTL", 0); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if (cfg.CDPAPIKeyID == "") != (cfg.CDPAPIKeySecret == "") {
		errs = append(errs, errors.New("CDP_API_KEY_ID and CDP_API_KEY_SECRET must be set together"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// PriceTags builds the USDC price tags for every configured payee.
// At least one payee is required.
func (c *Config) PriceTags() ([]price.PriceTag, error) {
	var tags []price.PriceTag
	payees := []struct {
		network x402.Network
		address string
	}{
		{c.EVMNetwork, c.EVMPayeeAddress},
		{c.SVMNetwork, c.SVMPayeeAddress},
	}
	for _, p := range payees {
		if p.address == "" {
			continue
		}
		deployment, err := price.USDCDeployment(p.network)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", p.network, err)
		}
		tag, err := deployment.PayTo(p.address).Amount(c.Price)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", p.network, err)
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return nil, errors.New("config: at least one of EVM_PAYEE_ADDRESS or SVM_PAYEE_ADDRESS is required")
	}
	return tags, nil
}

// Middleware applies the offer settings to m
func (c *Config) Middleware(m *paygate.Middleware) (*paygate.Middleware, error) {
	m = m.WithDescription(c.Description).
		WithMimeType(c.MimeType).
		WithMaxTimeoutSeconds(c.MaxTimeoutSeconds).
		WithSettleBeforeExecution(c.SettleBeforeExecution)

	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("config: BASE_URL: %w", err)
	}
	m = m.WithBaseURL(base)

	if c.ResourceURL != "" {
		resource, err := url.Parse(c.ResourceURL)
		if err != nil {
			return nil, fmt.Errorf("config: RESOURCE_URL: %w", err)
		}
		m = m.WithResource(resource)
	}
	return m, nil
}

// Logger builds a slog logger writing to stderr
func (c *Config) Logger() *slog.Logger {
	return c.loggerTo(os.Stderr)
}

func (c *Config) loggerTo(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
