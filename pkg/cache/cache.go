package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrLockLost means the lock expired, or was taken over, before Unlock.
	ErrLockLost = errors.New("cache: lock no longer held")
)

// Service is the shared key/value store used for cross-replica state: run
// locks and small JSON documents such as the last scheduler report.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get decodes the stored JSON into dest, or returns ErrCacheMiss.
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// TryLock sets key to a fresh token only if absent. The lock expires
	// after ttl.
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	// Unlock deletes key if it still holds token, else returns ErrLockLost.
	Unlock(ctx context.Context, key, token string) error
	Close() error
}
