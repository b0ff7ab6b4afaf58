package main

import (
	"context"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/rzpsarthak13/table-partitioner/pkg/partitioner"
)

// progressSink draws one progress bar per window from migration events.
type progressSink struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

func newProgressSink(out io.Writer) *progressSink {
	return &progressSink{out: out}
}

func (s *progressSink) Publish(ctx context.Context, ev partitioner.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case partitioner.EventWindowStarted:
		s.finish()
		if ev.Pending == 0 {
			return nil
		}
		s.bar = progressbar.NewOptions64(ev.Pending,
			progressbar.OptionSetWriter(s.out),
			progressbar.OptionSetDescription(ev.Partition),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("rows"),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(0),
			progressbar.OptionOnCompletion(func() { io.WriteString(s.out, "\n") }),
		)
	case partitioner.EventBatchMoved, partitioner.EventBatchFailed:
		if s.bar != nil {
			return s.bar.Add64(ev.Rows)
		}
	case partitioner.EventWindowDone, partitioner.EventWindowFailed, partitioner.EventRunDone:
		s.finish()
	}
	return nil
}

func (s *progressSink) finish() {
	if s.bar != nil {
		s.bar.Finish()
		s.bar = nil
	}
}

func (s *progressSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish()
	return nil
}
