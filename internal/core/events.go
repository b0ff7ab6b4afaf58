package core

import (
	"context"
	"time"
)

// EventType represents the kind of migration event.
type EventType string

const (
	EventRunStarted    EventType = "RUN_STARTED"
	EventWindowStarted EventType = "WINDOW_STARTED"
	EventBatchMoved    EventType = "BATCH_MOVED"
	EventBatchFailed   EventType = "BATCH_FAILED"
	EventWindowDone    EventType = "WINDOW_DONE"
	EventWindowFailed  EventType = "WINDOW_FAILED"
	EventRunDone       EventType = "RUN_DONE"
)

// Event describes one step of a migration run.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Table     string    `json:"table"`
	Partition string    `json:"partition,omitempty"`

	// WindowStart and WindowEnd are set for window and batch events.
	WindowStart time.Time `json:"window_start,omitempty"`
	WindowEnd   time.Time `json:"window_end,omitempty"`

	// Windows is the number of planned windows (RUN_STARTED, RUN_DONE).
	Windows int `json:"windows,omitempty"`

	// Pending is the number of rows counted for the window at its start.
	Pending int64 `json:"pending,omitempty"`

	// Rows is the number of rows in the batch, or moved in the window or run.
	Rows int64 `json:"rows,omitempty"`

	// Error holds the failure message for *_FAILED events.
	Error string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives migration events. Publish failures are reported to
// the caller but never change the outcome of a migration.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
