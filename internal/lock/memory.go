package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/table-partitioner/internal/config"
	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// MemoryLocker grants leases within a single process.
type MemoryLocker struct {
	mu      sync.Mutex
	holders map[string]memoryHolder
	now     func() time.Time
}

type memoryHolder struct {
	token   string
	expires time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		holders: make(map[string]memoryHolder),
		now:     time.Now,
	}
}

// Acquire takes the lease for key unless an unexpired holder owns it.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (core.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.holders[key]; ok && now.Before(h.expires) {
		return nil, core.Errorf(core.KindLocked, key, "lock held until %s", h.expires.Format(time.RFC3339))
	}

	token := uuid.NewString()
	l.holders[key] = memoryHolder{token: token, expires: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, token: token, ttl: ttl}, nil
}

// Close drops all leases.
func (l *MemoryLocker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holders = make(map[string]memoryHolder)
	return nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
	ttl    time.Duration
}

func (m *memoryLease) Key() string {
	return m.key
}

func (m *memoryLease) Refresh(ctx context.Context) error {
	l := m.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	h, ok := l.holders[m.key]
	if !ok || h.token != m.token || !now.Before(h.expires) {
		return core.NewError(core.KindLocked, m.key, "lock lost", nil)
	}
	h.expires = now.Add(m.ttl)
	l.holders[m.key] = h
	return nil
}

func (m *memoryLease) Release(ctx context.Context) error {
	l := m.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.holders[m.key]; ok && h.token == m.token {
		delete(l.holders, m.key)
	}
	return nil
}

// MemoryLockerFactory implements LockerFactory for in-process locks.
type MemoryLockerFactory struct{}

// Type returns the type identifier for this factory.
func (f *MemoryLockerFactory) Type() string {
	return "memory"
}

// Validate validates the memory lock configuration.
func (f *MemoryLockerFactory) Validate(cfg config.LockConfig) error {
	if cfg.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", cfg.Type)
	}
	return nil
}

// Create creates a new in-process locker.
func (f *MemoryLockerFactory) Create(cfg config.LockConfig) (core.Locker, error) {
	return NewMemoryLocker(), nil
}

func init() {
	RegisterFactory(&MemoryLockerFactory{})
}
