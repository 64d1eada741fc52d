package valkey

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// BlobStore keeps one document under a fixed key with no expiry. It shares
// the connection of the Cache it was made from.
type BlobStore struct {
	cache *Cache
	key   string
}

// BlobStore returns a store for the document under key.
func (c *Cache) BlobStore(key string) *BlobStore {
	return &BlobStore{cache: c, key: key}
}

// Load returns nil, nil when the key does not exist.
func (b *BlobStore) Load(ctx context.Context) ([]byte, error) {
	data, err := b.cache.get(ctx, b.key)
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get %s: %w", b.key, err)
	}
	return data, nil
}

// Save replaces the document.
func (b *BlobStore) Save(ctx context.Context, data []byte) error {
	if err := b.cache.set(ctx, b.key, data, 0); err != nil {
		return fmt.Errorf("valkey set %s: %w", b.key, err)
	}
	return nil
}
