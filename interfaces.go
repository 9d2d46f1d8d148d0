package x402

import (
	"context"
	"time"
)

// Facilitator is the remote (or local) service that reports supported payment
// kinds, verifies payment payloads and settles them on-chain.
// Implementations must be safe for concurrent use.
type Facilitator interface {
	// Supported returns the scheme/network kinds the facilitator can handle
	Supported(ctx context.Context) (SupportedResponse, error)

	// Verify checks a payload against the selected requirements without executing it
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)

	// Settle executes a previously verified payment
	Settle(ctx context.Context, req SettleRequest) (*SettleResponse, error)
}

// SupportedStore persists cached Supported responses
type SupportedStore interface {
	// Get returns the cached response for key, reporting false on a miss
	Get(ctx context.Context, key string) (*SupportedResponse, bool, error)
	// Set stores resp under key for ttl
	Set(ctx context.Context, key string, resp SupportedResponse, ttl time.Duration) error
}
