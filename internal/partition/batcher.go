package partition

import (
	"github.com/rzpsarthak13/table-partitioner/internal/schema"
)

// DefaultBatchSize is the number of rows moved per transaction.
const DefaultBatchSize = 100

// BatchState is returned by RowBatcher.Add.
type BatchState int

const (
	// Accumulating means the batch should keep filling.
	Accumulating BatchState = iota

	// ReadyToFlush means the batch must be moved before adding more rows.
	ReadyToFlush
)

func (s BatchState) String() string {
	if s == ReadyToFlush {
		return "ready_to_flush"
	}
	return "accumulating"
}

// RowBatcher accumulates the rows of one window into fixed-size batches.
// A batch is ready when it holds size rows, or when the rows added so far
// reach the pending count observed before streaming began.
type RowBatcher struct {
	size     int
	expected int64

	rows [][]interface{}
	keys [][]interface{}

	added   int64
	flushes int
}

// NewRowBatcher creates a batcher for a window expected to yield
// expected rows. A non-positive size falls back to DefaultBatchSize.
func NewRowBatcher(size int, expected int64) *RowBatcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &RowBatcher{
		size:     size,
		expected: expected,
		rows:     make([][]interface{}, 0, size),
		keys:     make([][]interface{}, 0, size),
	}
}

// Add appends row to the current batch.
func (b *RowBatcher) Add(row schema.Row) BatchState {
	b.rows = append(b.rows, row.Values)
	b.keys = append(b.keys, row.Key)
	b.added++

	if len(b.rows) >= b.size || b.added == b.expected {
		return ReadyToFlush
	}
	return Accumulating
}

// Drain returns the buffered rows and their primary key tuples and resets
// the batch. Draining an empty batch returns nil slices.
func (b *RowBatcher) Drain() (rows [][]interface{}, keys [][]interface{}) {
	if len(b.rows) == 0 {
		return nil, nil
	}
	rows, keys = b.rows, b.keys
	b.rows = make([][]interface{}, 0, b.size)
	b.keys = make([][]interface{}, 0, b.size)
	b.flushes++
	return rows, keys
}

// Len returns the number of rows in the current batch.
func (b *RowBatcher) Len() int {
	return len(b.rows)
}

// Added returns the number of rows added since the batcher was created.
func (b *RowBatcher) Added() int64 {
	return b.added
}

// Flushes returns the number of non-empty batches drained.
func (b *RowBatcher) Flushes() int {
	return b.flushes
}
