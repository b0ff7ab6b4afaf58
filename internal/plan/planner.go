package plan

import (
	"fmt"
	"time"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// Window is the half-open interval [Start, End) moved into one partition table.
type Window struct {
	Start time.Time
	End   time.Time
	Table string
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s [%s, %s)", w.Table, w.Start.Format(time.DateTime), w.End.Format(time.DateTime))
}

// Range is the observed span of stamp values older than the cutoff.
type Range struct {
	Min time.Time
	Max time.Time
}

// Bound returns the exclusive upper bound for rows eligible under cutoff:
// the start of the period enclosing cutoff. Rows at or after it belong to a
// period that is still being written and are never planned.
func Bound(mode Mode, cutoff time.Time) time.Time {
	return mode.Floor(cutoff)
}

// Plan returns the ordered windows of source covering observed.
// A nil observed range means no rows are older than the cutoff and yields
// ErrEmptyRange.
func Plan(source string, mode Mode, cutoff time.Time, observed *Range) ([]Window, error) {
	if !mode.Valid() {
		return nil, core.Errorf(core.KindInvalidPartitionMode, source, "wrong partition mode %q", mode)
	}
	if observed == nil {
		return nil, core.NewError(core.KindEmptyRange, source,
			fmt.Sprintf("no rows older than %s", Bound(mode, cutoff).Format(time.DateOnly)), nil)
	}
	if observed.Max.Before(observed.Min) {
		return nil, fmt.Errorf("observed range is inverted: min %s > max %s", observed.Min, observed.Max)
	}
	if !observed.Max.Before(Bound(mode, cutoff)) {
		return nil, fmt.Errorf("observed max %s is not older than cutoff bound %s",
			observed.Max, Bound(mode, cutoff))
	}

	first := mode.Floor(observed.Min)
	last := mode.Next(mode.Floor(observed.Max))

	var windows []Window
	for start := first; start.Before(last); start = mode.Next(start) {
		windows = append(windows, Window{
			Start: start,
			End:   mode.Next(start),
			Table: PartitionTableName(source, mode, start),
		})
	}
	return windows, nil
}
