package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/table-partitioner/internal/config"
	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// refreshScript extends the key's expiry only while it still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements core.Locker with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(cfg config.RedisConfig) (*RedisLocker, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	client := redis.NewUniversalClient(universalOptions(cfg))

	// Test connection
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLockerFromClient(client), nil
}

// universalOptions maps cfg onto go-redis options. A single endpoint gives
// a plain client, several endpoints a cluster client.
func universalOptions(cfg config.RedisConfig) *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:        cfg.Endpoints,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// NewRedisLockerFromClient wraps an existing client.
func NewRedisLockerFromClient(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire sets key to a fresh token if it does not exist.
func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (core.Lease, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, core.NewError(core.KindLocked, key, "lock held by another migration", nil)
	}
	return &redisLease{client: r.client, key: key, token: token, ttl: ttl}, nil
}

// Close closes the Redis client.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

func (l *redisLease) Key() string {
	return l.key
}

func (l *redisLease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", l.key, err)
	}
	if n == 0 {
		return core.NewError(core.KindLocked, l.key, "lock lost", nil)
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

// RedisLockerFactory implements LockerFactory for Redis.
type RedisLockerFactory struct{}

// Type returns the type identifier for this factory.
func (f *RedisLockerFactory) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration.
func (f *RedisLockerFactory) Validate(cfg config.LockConfig) error {
	if cfg.Type != "redis" {
		return fmt.Errorf("invalid type for Redis factory: %s", cfg.Type)
	}

	redisConfig := cfg.RedisConfig
	if len(redisConfig.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}

	// Redis supports 0-15 databases
	if redisConfig.DB < 0 || redisConfig.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", redisConfig.DB)
	}
	if redisConfig.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", redisConfig.PoolSize)
	}
	if redisConfig.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", redisConfig.MinIdleConns)
	}
	if redisConfig.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", redisConfig.DialTimeout)
	}
	return nil
}

// Create creates a new Redis locker.
func (f *RedisLockerFactory) Create(cfg config.LockConfig) (core.Locker, error) {
	locker, err := NewRedisLocker(cfg.RedisConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis locker: %w", err)
	}
	return locker, nil
}

func init() {
	RegisterFactory(&RedisLockerFactory{})
}
