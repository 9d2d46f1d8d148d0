// Package coinbase configures the Coinbase Developer Platform (CDP) hosted facilitator.
package coinbase

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	x402http "github.com/x402-foundation/x402-paygate/http"
)

const (
	CoinbaseFacilitatorBaseURL = "https://api.cdp.coinbase.com"
	CoinbaseFacilitatorV2Route = "/platform/v2/x402"

	// SDKVersion is reported in the Correlation-Context header
	SDKVersion = "0.1.0"

	tokenTTL = 120 * time.Second
)

var ErrMissingCredentials = errors.New("missing credentials: CDP_API_KEY_ID and CDP_API_KEY_SECRET must be set")

// AuthProvider signs a short-lived JWT per facilitator endpoint.
// It implements x402http.AuthProvider.
type AuthProvider struct {
	keyID  string
	key    crypto.Signer
	method jwt.SigningMethod
	host   string
	route  string
	now    func() time.Time
}

// NewAuthProvider parses the CDP API key secret. Empty arguments fall back
// to CDP_API_KEY_ID and CDP_API_KEY_SECRET.
// The secret is either a PEM encoded EC key or a base64 encoded Ed25519 key.
func NewAuthProvider(apiKeyID, apiKeySecret string) (*AuthProvider, error) {
	if apiKeyID == "" {
		apiKeyID = os.Getenv("CDP_API_KEY_ID")
	}
	if apiKeySecret == "" {
		apiKeySecret = os.Getenv("CDP_API_KEY_SECRET")
	}
	if apiKeyID == "" || apiKeySecret == "" {
		return nil, ErrMissingCredentials
	}

	key, method, err := parseKey(apiKeySecret)
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(CoinbaseFacilitatorBaseURL)
	return &AuthProvider{
		keyID:  apiKeyID,
		key:    key,
		method: method,
		host:   base.Host,
		route:  CoinbaseFacilitatorV2Route,
		now:    time.Now,
	}, nil
}

func parseKey(secret string) (crypto.Signer, jwt.SigningMethod, error) {
	secret = strings.TrimSpace(secret)
	if strings.HasPrefix(secret, "-----BEGIN") {
		ecKey, err := jwt.ParseECPrivateKeyFromPEM([]byte(secret))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse EC key: %w", err)
		}
		return ecKey, jwt.SigningMethodES256, nil
	}

	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode Ed25519 key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("invalid Ed25519 key length %d", len(raw))
	}
	return ed25519.PrivateKey(raw), jwt.SigningMethodEdDSA, nil
}

// GetAuthHeaders implements x402http.AuthProvider
func (p *AuthProvider) GetAuthHeaders(_ context.Context) (x402http.AuthHeaders, error) {
	verifyToken, err := p.CreateAuthHeader("POST", p.route+"/verify")
	if err != nil {
		return x402http.AuthHeaders{}, fmt.Errorf("failed to create verify auth header: %w", err)
	}

	settleToken, err := p.CreateAuthHeader("POST", p.route+"/settle")
	if err != nil {
		return x402http.AuthHeaders{}, fmt.Errorf("failed to create settle auth header: %w", err)
	}

	supportedToken, err := p.CreateAuthHeader("GET", p.route+"/supported")
	if err != nil {
		return x402http.AuthHeaders{}, fmt.Errorf("failed to create supported auth header: %w", err)
	}

	correlationHeader := CreateCorrelationHeader()

	return x402http.AuthHeaders{
		Verify:    map[string]string{"Authorization": verifyToken, "Correlation-Context": correlationHeader},
		Settle:    map[string]string{"Authorization": settleToken, "Correlation-Context": correlationHeader},
		Supported: map[string]string{"Authorization": supportedToken, "Correlation-Context": correlationHeader},
	}, nil
}

// CreateAuthHeader returns a bearer token valid for a single method and path
func (p *AuthProvider) CreateAuthHeader(method, path string) (string, error) {
	now := p.now()
	claims := jwt.MapClaims{
		"sub":  p.keyID,
		"iss":  "cdp",
		"aud":  []string{"cdp_service"},
		"nbf":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
		"uris": []string{fmt.Sprintf("%s %s%s", method, p.host, path)},
	}

	token := jwt.NewWithClaims(p.method, claims)
	token.Header["kid"] = p.keyID
	token.Header["nonce"] = strings.ReplaceAll(uuid.NewString(), "-", "")

	signed, err := token.SignedString(p.key)
	if err != nil {
		return "", err
	}
	return "Bearer " + signed, nil
}

// CreateCorrelationHeader identifies this SDK to the CDP API
func CreateCorrelationHeader() string {
	return strings.Join([]string{
		"sdk_version=" + SDKVersion,
		"sdk_language=go",
		"source=x402",
		"source_version=" + SDKVersion,
	}, ",")
}

// CreateFacilitatorConfig creates a facilitator config for the Coinbase x402 facilitator
func CreateFacilitatorConfig(apiKeyID, apiKeySecret string) (*x402http.FacilitatorConfig, error) {
	auth, err := NewAuthProvider(apiKeyID, apiKeySecret)
	if err != nil {
		return nil, err
	}
	return &x402http.FacilitatorConfig{
		URL:          CoinbaseFacilitatorBaseURL + CoinbaseFacilitatorV2Route,
		AuthProvider: auth,
		Identifier:   "coinbase",
	}, nil
}
