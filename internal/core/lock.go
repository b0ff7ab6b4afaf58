package core

import (
	"context"
	"time"
)

// Locker grants exclusive, expiring leases on a key.
// Implementations should support Redis, DynamoDB or an in-process map.
type Locker interface {
	// Acquire takes the lease for key with the given TTL.
	// Returns ErrLocked if another holder owns an unexpired lease.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)

	// Close releases resources held by the locker.
	Close() error
}

// Lease is an acquired lock.
type Lease interface {
	// Key returns the locked key.
	Key() string

	// Refresh extends the lease by its TTL. Returns ErrLocked if the lease
	// was lost in the meantime.
	Refresh(ctx context.Context) error

	// Release gives the lease up. Releasing a lost lease is not an error.
	Release(ctx context.Context) error
}
