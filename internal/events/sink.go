// Package events publishes migration events to logs, Kafka or memory.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/config"
	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// ErrSinkClosed is returned when publishing to a closed sink.
var ErrSinkClosed = errors.New("event sink is closed")

// Create builds the sink selected by cfg.Type. Type "none" or "" returns
// a nil sink, which disables publishing.
func Create(cfg config.EventsConfig, log *logrus.Logger) (core.EventSink, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "log":
		return NewLogSink(log), nil
	case "kafka":
		return NewKafkaSink(cfg.KafkaConfig, log)
	default:
		return nil, fmt.Errorf("unsupported events type: %s", cfg.Type)
	}
}

// Multi fans every event out to several sinks.
type Multi []core.EventSink

// NewMulti combines sinks, skipping nil ones. It returns nil when no sink
// remains and the single sink when only one does.
func NewMulti(sinks ...core.EventSink) core.EventSink {
	var m Multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

// Publish delivers ev to every sink, even after one of them fails.
func (m Multi) Publish(ctx context.Context, ev core.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
