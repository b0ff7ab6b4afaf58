package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
	"github.com/rzpsarthak13/table-partitioner/internal/logger"
)

// LogSink writes events as structured log lines. Batch events go to debug,
// failures to warn and everything else to info.
type LogSink struct {
	log *logrus.Entry
}

// NewLogSink creates a sink logging through log.
func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: logger.Component(log, "events")}
}

func (s *LogSink) Publish(ctx context.Context, ev core.Event) error {
	fields := logger.Fields{
		"event": ev.Type,
		"table": ev.Table,
	}
	if ev.RunID != "" {
		fields["run_id"] = ev.RunID
	}
	if ev.Partition != "" {
		fields["partition"] = ev.Partition
	}
	if ev.Windows > 0 {
		fields["windows"] = ev.Windows
	}
	if ev.Pending > 0 {
		fields["pending"] = ev.Pending
	}
	if ev.Rows > 0 {
		fields["rows"] = ev.Rows
	}

	entry := s.log.WithFields(fields)
	switch ev.Type {
	case core.EventBatchMoved:
		entry.Debug("batch moved")
	case core.EventBatchFailed, core.EventWindowFailed:
		entry.WithField("error", ev.Error).Warn(string(ev.Type))
	default:
		entry.Info(string(ev.Type))
	}
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
