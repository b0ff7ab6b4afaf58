package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	lease, err := l.Acquire(ctx, "partitioner:lock:orders", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "partitioner:lock:orders", lease.Key())

	_, err = l.Acquire(ctx, "partitioner:lock:orders", time.Minute)
	assert.True(t, errors.Is(err, core.ErrLocked))

	other, err := l.Acquire(ctx, "partitioner:lock:users", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Refresh(ctx))
	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))

	_, err = l.Acquire(ctx, "partitioner:lock:orders", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	err = stale.Refresh(ctx)
	assert.True(t, errors.Is(err, core.ErrLocked))

	// Releasing a lost lease must not drop the new holder.
	require.NoError(t, stale.Release(ctx))
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.True(t, errors.Is(err, core.ErrLocked))

	require.NoError(t, fresh.Refresh(ctx))
}

func TestMemoryLocker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryLocker().Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
