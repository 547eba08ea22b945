package domain

import (
	"context"
	"time"
)

// PoolCache stores the most recent yield snapshot so repeated recommend and
// deposit calls do not hammer the upstream aggregator.
type PoolCache interface {
	SetPools(ctx context.Context, pools []Pool, ttl time.Duration) error
	// GetPools returns ErrNotFound when no snapshot is cached.
	GetPools(ctx context.Context) ([]Pool, error)
}

// RateCache stores a fiat exchange rate with a TTL.
type RateCache interface {
	SetRate(ctx context.Context, pair string, rate float64, ttl time.Duration) error
	GetRate(ctx context.Context, pair string) (float64, error)
}

// LockManager provides distributed locking, used to serialize ledger
// mutations per position id.
type LockManager interface {
	// Acquire obtains the lock for key or returns ErrLockHeld. The returned
	// function releases the lock and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus publishes lifecycle events (deposits, withdrawals) for
// downstream consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// RateLimiter applies sliding-window request limits keyed by client.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
