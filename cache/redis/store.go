// Package redis shares facilitator /supported responses between gate
// instances through Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	x402 "github.com/x402-foundation/x402-paygate"
)

const DefaultKeyPrefix = "x402:supported:"

// Store implements x402.SupportedStore
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// NewStore uses client with DefaultKeyPrefix
func NewStore(client goredis.UniversalClient) *Store {
	return &Store{client: client, prefix: DefaultKeyPrefix}
}

// WithPrefix returns a store that namespaces keys under prefix
func (s *Store) WithPrefix(prefix string) *Store {
	return &Store{client: s.client, prefix: prefix}
}

// Connect dials addr and checks the connection
func Connect(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	return rdb, nil
}

func (s *Store) Get(ctx context.Context, key string) (*x402.SupportedResponse, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var resp x402.SupportedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("redis decode supported response: %w", err)
	}
	return &resp, true, nil
}

func (s *Store) Set(ctx context.Context, key string, resp x402.SupportedResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("redis encode supported response: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

var _ x402.SupportedStore = (*Store)(nil)
