// Package store provides the key-value backends shared by the usage ledger
// and provider health tracking.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key is missing or expired
var ErrKeyNotFound = errors.New("key not found")

// Store is a string key-value store with atomic counters and TTLs.
// A ttl of zero means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// IncrBy atomically adds delta and (re)applies ttl when non-zero
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// IncrByFloat atomically adds delta and (re)applies ttl when non-zero
	IncrByFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error)

	Ping(ctx context.Context) error
	Close() error
}
