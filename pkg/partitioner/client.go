package partitioner

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/client"
	"github.com/rzpsarthak13/table-partitioner/internal/logger"
)

// Client is the main interface for running partition migrations against
// one database.
type Client interface {
	// Plan validates req and computes its windows without writing anything.
	Plan(ctx context.Context, req Request) (Plan, error)

	// Migrate moves every row of req.Table older than the cutoff into its
	// partition tables. Failed windows are reported in the Report and
	// joined into the returned error.
	Migrate(ctx context.Context, req Request) (*Report, error)

	// ListTables returns the base tables of the database.
	ListTables(ctx context.Context) ([]string, error)

	// Close closes all connections and releases resources.
	Close() error
}

// Option customizes a client.
type Option func(*client.Options)

// WithLogger sets the logger every component logs through.
func WithLogger(log *logrus.Logger) Option {
	return func(o *client.Options) {
		o.Log = log
	}
}

// WithEventSink adds a sink receiving migration events alongside the
// configured one.
func WithEventSink(sink EventSink) Option {
	return func(o *client.Options) {
		if sink != nil {
			o.Sinks = append(o.Sinks, sink)
		}
	}
}

// NewClient creates a client from cfg. Without WithLogger, a logger is
// built from cfg.Log.
func NewClient(cfg *Config, opts ...Option) (Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	var o client.Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Log == nil {
		log, err := logger.New(nil, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		o.Log = log
	}

	impl, err := client.NewClientImpl(cfg, o)
	if err != nil {
		return nil, err
	}
	return impl, nil
}
