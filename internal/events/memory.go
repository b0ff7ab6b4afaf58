package events

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// MemorySink records events in publish order. It backs tests and the
// progress display.
type MemorySink struct {
	mu     sync.RWMutex
	events []core.Event
	closed bool
}

// NewMemorySink creates an empty recorder.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(ctx context.Context, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfType returns the recorded events of type t.
func (s *MemorySink) OfType(t core.EventType) []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
