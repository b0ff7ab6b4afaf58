package lock

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rzpsarthak13/table-partitioner/internal/config"
	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// LockerFactory is the Strategy interface for creating locker
// implementations. Each backend registers one from its init function.
type LockerFactory interface {
	// Create creates a new locker from the lock configuration.
	Create(cfg config.LockConfig) (core.Locker, error)

	// Type returns the type identifier for this factory (e.g., "redis", "dynamodb").
	Type() string

	// Validate validates the configuration specific to this backend.
	Validate(cfg config.LockConfig) error
}

var (
	// factoryRegistry stores all registered locker factories.
	factoryRegistry = make(map[string]LockerFactory)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers a locker factory and its config validator.
func RegisterFactory(factory LockerFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
	config.RegisterValidator(configValidator{factory: factory})
}

// Create creates a locker using the factory registered for cfg.Type.
// Type "none" or "" returns a nil locker, which disables locking.
func Create(cfg config.LockConfig) (core.Locker, error) {
	if cfg.Type == "" || cfg.Type == "none" {
		return nil, nil
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[cfg.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported lock type: %s", cfg.Type)
	}
	if err := factory.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", cfg.Type, err)
	}
	return factory.Create(cfg)
}

// RegisteredTypes returns the registered locker types, sorted.
func RegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// configValidator adapts a LockerFactory to config.Validator.
type configValidator struct {
	factory LockerFactory
}

func (v configValidator) Type() string {
	return v.factory.Type()
}

func (v configValidator) Validate(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	return v.factory.Validate(cfg.Lock)
}
