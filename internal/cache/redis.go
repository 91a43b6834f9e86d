package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// opTimeout bounds every Redis round trip so a slow shared tier can only
// add a fixed latency penalty, never hang a read path.
const opTimeout = 2 * time.Second

// RedisTier implements ExternalTier backed by Redis.
type RedisTier struct {
	client *redis.Client
	prefix string
}

// Compile-time check.
var _ ExternalTier = (*RedisTier)(nil)

// NewRedisTier wraps an existing Redis client. prefix namespaces keys so
// several deployments can share one Redis.
func NewRedisTier(client *redis.Client, prefix string) *RedisTier {
	return &RedisTier{client: client, prefix: prefix}
}

func (t *RedisTier) key(key string) string {
	if t.prefix == "" {
		return key
	}
	return t.prefix + ":" + key
}

// Get returns the value and whether the key was present.
func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	value, err := t.client.Get(ctx, t.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores the value with a TTL.
func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return t.client.Set(ctx, t.key(key), value, ttl).Err()
}

// Delete removes the key.
func (t *RedisTier) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return t.client.Del(ctx, t.key(key)).Err()
}
