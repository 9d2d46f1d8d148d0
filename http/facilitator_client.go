package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	x402 "github.com/x402-foundation/x402-paygate"
)

// ============================================================================
// HTTP Facilitator Client
// ============================================================================

// FacilitatorClient communicates with a remote facilitator service over HTTP.
// It implements x402.Facilitator.
type FacilitatorClient struct {
	url              string
	httpClient       *http.Client
	authProvider     AuthProvider
	identifier       string
	supportedRetries int
}

// AuthProvider generates authentication headers for facilitator requests
type AuthProvider interface {
	// GetAuthHeaders returns authentication headers for each endpoint
	GetAuthHeaders(ctx context.Context) (AuthHeaders, error)
}

// AuthHeaders contains authentication headers for facilitator endpoints
type AuthHeaders struct {
	Verify    map[string]string
	Settle    map[string]string
	Supported map[string]string
}

// FacilitatorConfig configures the HTTP facilitator client
type FacilitatorConfig struct {
	// URL is the base URL of the facilitator service
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// AuthProvider provides authentication headers (optional)
	AuthProvider AuthProvider

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration

	// Identifier for this facilitator (optional, defaults to URL)
	Identifier string

	// SupportedRetries is how many extra attempts Supported makes on 429 (optional, defaults to none)
	SupportedRetries int
}

// DefaultFacilitatorURL is the default public facilitator
const DefaultFacilitatorURL = "https://x402.org/facilitator"

// supportedRetryBaseDelay is the base delay for exponential backoff on retries
var supportedRetryBaseDelay = 1 * time.Second

// FacilitatorError is returned when a facilitator answers with an unexpected status
type FacilitatorError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *FacilitatorError) Error() string {
	return fmt.Sprintf("facilitator %s failed (%d): %s", e.Endpoint, e.StatusCode, e.Body)
}

// NewFacilitatorClient creates a new HTTP facilitator client
func NewFacilitatorClient(config *FacilitatorConfig) *FacilitatorClient {
	if config == nil {
		config = &FacilitatorConfig{}
	}

	url := strings.TrimSuffix(config.URL, "/")
	if url == "" {
		url = DefaultFacilitatorURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	identifier := config.Identifier
	if identifier == "" {
		identifier = url
	}

	return &FacilitatorClient{
		url:              url,
		httpClient:       httpClient,
		authProvider:     config.AuthProvider,
		identifier:       identifier,
		supportedRetries: config.SupportedRetries,
	}
}

// URL returns the facilitator base URL
func (c *FacilitatorClient) URL() string {
	return c.url
}

// Identifier returns the identifier used for cache keys and metrics
func (c *FacilitatorClient) Identifier() string {
	return c.identifier
}

// ============================================================================
// x402.Facilitator Implementation
// ============================================================================

// Supported gets supported payment kinds, retrying with exponential backoff
// on 429 when SupportedRetries is set.
func (c *FacilitatorClient) Supported(ctx context.Context) (x402.SupportedResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.supportedRetries; attempt++ {
		status, body, err := c.do(ctx, http.MethodGet, "/supported", nil, func(h AuthHeaders) map[string]string { return h.Supported })
		if err != nil {
			return x402.SupportedResponse{}, err
		}

		if status == http.StatusOK {
			var supported x402.SupportedResponse
			if err := json.Unmarshal(body, &supported); err != nil {
				return x402.SupportedResponse{}, fmt.Errorf("failed to decode supported response: %w", err)
			}
			return supported, nil
		}

		lastErr = &FacilitatorError{Endpoint: "supported", StatusCode: status, Body: string(body)}

		if status != http.StatusTooManyRequests || attempt == c.supportedRetries {
			return x402.SupportedResponse{}, lastErr
		}

		delay := supportedRetryBaseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return x402.SupportedResponse{}, ctx.Err()
		}
	}

	return x402.SupportedResponse{}, lastErr
}

// Verify checks if a payment is valid.
// A non-200 answer that still carries an invalidReason is reported as an invalid payment.
func (c *FacilitatorClient) Verify(ctx context.Context, req x402.VerifyRequest) (*x402.VerifyResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/verify", req, func(h AuthHeaders) map[string]string { return h.Verify })
	if err != nil {
		return nil, err
	}

	var verifyResponse x402.VerifyResponse
	decodeErr := json.Unmarshal(body, &verifyResponse)

	if status != http.StatusOK {
		if decodeErr == nil && verifyResponse.InvalidReason != "" {
			verifyResponse.IsValid = false
			return &verifyResponse, nil
		}
		return nil, &FacilitatorError{Endpoint: "verify", StatusCode: status, Body: string(body)}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to unmarshal verify response: %w", decodeErr)
	}

	return &verifyResponse, nil
}

// Settle executes a payment.
// A non-200 answer that still carries an errorReason is reported as an unsuccessful settlement.
func (c *FacilitatorClient) Settle(ctx context.Context, req x402.SettleRequest) (*x402.SettleResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/settle", req, func(h AuthHeaders) map[string]string { return h.Settle })
	if err != nil {
		return nil, err
	}

	var settleResponse x402.SettleResponse
	decodeErr := json.Unmarshal(body, &settleResponse)

	if status != http.StatusOK {
		if decodeErr == nil && settleResponse.ErrorReason != "" {
			settleResponse.Success = false
			return &settleResponse, nil
		}
		return nil, &FacilitatorError{Endpoint: "settle", StatusCode: status, Body: string(body)}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to unmarshal settle response: %w", decodeErr)
	}

	return &settleResponse, nil
}

// ============================================================================
// Internal HTTP Methods
// ============================================================================

func (c *FacilitatorClient) do(ctx context.Context, method, path string, payload interface{}, pick func(AuthHeaders) map[string]string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal %s request: %w", path, err)
		}
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")

	// Add auth headers if available
	if c.authProvider != nil {
		authHeaders, err := c.authProvider.GetAuthHeaders(ctx)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to get auth headers: %w", err)
		}
		for k, v := range pick(authHeaders) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, responseBody, nil
}
