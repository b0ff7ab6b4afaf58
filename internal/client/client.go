package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/config"
	"github.com/rzpsarthak13/table-partitioner/internal/core"
	"github.com/rzpsarthak13/table-partitioner/internal/database"
	"github.com/rzpsarthak13/table-partitioner/internal/events"
	"github.com/rzpsarthak13/table-partitioner/internal/lock"
	"github.com/rzpsarthak13/table-partitioner/internal/logger"
	"github.com/rzpsarthak13/table-partitioner/internal/partition"
)

// Options carries dependencies that do not come from configuration.
type Options struct {
	// Log receives all component logs. Nil discards them.
	Log *logrus.Logger

	// Sinks receive migration events in addition to the configured sink.
	Sinks []core.EventSink
}

// ClientImpl owns the connections of one partitioner instance: the
// database, the run locker and the event sink, plus the driver using them.
type ClientImpl struct {
	mu       sync.RWMutex
	config   *config.Config
	database core.Database
	locker   core.Locker
	sink     core.EventSink
	driver   *partition.Driver
	log      *logrus.Entry
	closed   bool
}

// NewClientImpl opens the configured database and creates the locker and
// event sink. Everything opened so far is closed again on failure.
func NewClientImpl(cfg *config.Config, opts Options) (*ClientImpl, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := database.Open(cfg.Database.URL, database.PoolOptions{
		MaxOpenConns:      cfg.Database.MaxOpenConns,
		MaxIdleConns:      cfg.Database.MaxIdleConns,
		ConnMaxLifetime:   cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:   cfg.Database.ConnMaxIdleTime,
		ConnectionTimeout: cfg.Database.ConnectionTimeout,
	}, opts.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", database.Redact(cfg.Database.URL), err)
	}

	c, err := NewClientWithDatabase(cfg, db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewClientWithDatabase wires a client around an already open database.
// The client takes ownership of db.
func NewClientWithDatabase(cfg *config.Config, db core.Database, opts Options) (*ClientImpl, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	locker, err := lock.Create(cfg.Lock)
	if err != nil {
		return nil, fmt.Errorf("failed to create locker: %w", err)
	}

	configured, err := events.Create(cfg.Events, opts.Log)
	if err != nil {
		if locker != nil {
			locker.Close()
		}
		return nil, fmt.Errorf("failed to create event sink: %w", err)
	}
	sink := events.NewMulti(append([]core.EventSink{configured}, opts.Sinks...)...)

	driverConfig := partition.DriverConfig{
		Migrator: partition.MigratorConfig{
			BatchSize:           cfg.Migration.BatchSize,
			AbortOnBatchFailure: cfg.Migration.AbortOnBatchFailure,
			BatchesPerSecond:    cfg.Migration.BatchesPerSecond,
		},
		EmptyRangeIsError: cfg.Migration.EmptyRangeIsError,
		Location:          loc,
		LockTTL:           cfg.Lock.TTL,
		LockKeyPrefix:     cfg.Lock.KeyPrefix,
	}

	c := &ClientImpl{
		config:   cfg,
		database: db,
		locker:   locker,
		sink:     sink,
		driver:   partition.NewDriver(db, locker, sink, driverConfig, opts.Log),
		log:      logger.Component(opts.Log, "client"),
	}
	c.log.WithFields(logger.Fields{
		"dialect": db.Dialect().Name(),
		"lock":    cfg.Lock.Type,
		"events":  cfg.Events.Type,
	}).Debug("client initialized")
	return c, nil
}

// Plan computes the windows of req without writing anything.
func (c *ClientImpl) Plan(ctx context.Context, req partition.Request) (partition.MigrationPlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return partition.MigrationPlan{}, fmt.Errorf("client is closed")
	}
	return c.driver.Plan(ctx, req)
}

// Migrate moves every row of req.Table older than the cutoff into its
// partition tables.
func (c *ClientImpl) Migrate(ctx context.Context, req partition.Request) (*partition.Report, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}
	return c.driver.Migrate(ctx, req)
}

// ListTables returns the base tables of the connected database.
func (c *ClientImpl) ListTables(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}
	return c.database.ListTables(ctx)
}

// Close closes the event sink, the locker and the database.
func (c *ClientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.sink != nil {
		if err := c.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event sink: %w", err))
		}
	}
	if c.locker != nil {
		if err := c.locker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close locker: %w", err))
		}
	}
	if err := c.database.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}
