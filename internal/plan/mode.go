// Package plan computes the time windows a source table is split into.
package plan

import (
	"strings"
	"time"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// Mode is the partitioning granularity.
type Mode string

const (
	ModeYear         Mode = "YEAR"
	ModeYearMonth    Mode = "YEAR_MONTH"
	ModeYearMonthDay Mode = "YEAR_MONTH_DAY"
)

// Modes returns all supported modes, coarsest first.
func Modes() []Mode {
	return []Mode{ModeYear, ModeYearMonth, ModeYearMonthDay}
}

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", core.Errorf(core.KindInvalidPartitionMode, "",
			"wrong partition mode %q (valid: YEAR, YEAR_MONTH, YEAR_MONTH_DAY)", s)
	}
	return m, nil
}

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeYear, ModeYearMonth, ModeYearMonthDay:
		return true
	}
	return false
}

// Floor returns the start of the period enclosing t, in t's location.
func (m Mode) Floor(t time.Time) time.Time {
	switch m {
	case ModeYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	case ModeYearMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// Next returns the start of the period following the one that starts at start.
// start must be a period start as returned by Floor.
func (m Mode) Next(start time.Time) time.Time {
	switch m {
	case ModeYear:
		return time.Date(start.Year()+1, time.January, 1, 0, 0, 0, 0, start.Location())
	case ModeYearMonth:
		return time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, start.Location())
	default:
		return time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, start.Location())
	}
}

// Layout returns the time layout of the partition table suffix.
func (m Mode) Layout() string {
	switch m {
	case ModeYear:
		return "2006"
	case ModeYearMonth:
		return "2006-01"
	default:
		return "2006-01-02"
	}
}

// PartitionTableName returns the name of the partition table holding the
// window of source that starts at start: _{source}__{suffix}.
func PartitionTableName(source string, mode Mode, start time.Time) string {
	return "_" + source + "__" + mode.Floor(start).Format(mode.Layout())
}
