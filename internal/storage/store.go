package storage

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value store with per-entry expiry.
// Implementations must treat a missing or expired key as a miss, not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPrefix(ctx context.Context, prefix string) error
}
