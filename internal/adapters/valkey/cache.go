package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/nightmap/internal/pkg/metrics"
)

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "nightmap:"

// Cache implements ports.CacheService using Valkey (Redis-compatible).
type Cache struct {
	client valkey.Client
}

// New creates a new Valkey cache client.
func New(addr string) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client}, nil
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, error) {
	return c.client.Do(ctx, c.client.B().Get().Key(KeyPrefix+key).Build()).AsBytes()
}

func (c *Cache) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := c.client.B().Set().Key(KeyPrefix + key).Value(valkey.BinaryString(value))
	if ttl <= 0 {
		return c.client.Do(ctx, set.Build()).Error()
	}
	return c.client.Do(ctx, set.Ex(ttl).Build()).Error()
}

// Get retrieves a cached response. A missing key is an error for which
// valkey.IsValkeyNil reports true.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.get(ctx, key)
	switch {
	case err == nil:
		metrics.CacheHits.WithLabelValues("response").Inc()
	case valkey.IsValkeyNil(err):
		metrics.CacheMisses.WithLabelValues("response").Inc()
	}
	return data, err
}

// Set stores a value. ttlSeconds <= 0 keeps the key until deleted.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return c.set(ctx, key, value, time.Duration(ttlSeconds)*time.Second)
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(KeyPrefix+key).Build()).Error()
}

// Ping reports whether the server answers; used by readiness checks.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
