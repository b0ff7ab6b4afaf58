package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// TypeMapper maps declared column types to stamp domains and converts
// driver values of stamp columns to and from time.Time.
type TypeMapper struct {
	loc *time.Location
}

// NewTypeMapper creates a type mapper that interprets wall-clock stamps in loc.
func NewTypeMapper(loc *time.Location) *TypeMapper {
	if loc == nil {
		loc = time.UTC
	}
	return &TypeMapper{loc: loc}
}

// Location returns the location stamps are interpreted in.
func (tm *TypeMapper) Location() *time.Location {
	return tm.loc
}

// baseType strips size/precision and modifiers: "int(10) unsigned" -> "INT".
func baseType(dbType string) string {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if idx := strings.Index(t, "("); idx > 0 {
		t = t[:idx]
	}
	for _, suffix := range []string{" UNSIGNED", " ZEROFILL", " WITHOUT TIME ZONE", " WITH TIME ZONE"} {
		t = strings.TrimSuffix(t, suffix)
	}
	return strings.TrimSpace(t)
}

// InferStampDomain decides the stamp domain for a declared column type.
func (tm *TypeMapper) InferStampDomain(dbType string) (core.StampDomain, error) {
	switch baseType(dbType) {
	case "INT", "INTEGER", "MEDIUMINT", "BIGINT", "SMALLINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return core.StampInteger, nil
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return core.StampTemporal, nil
	default:
		return "", fmt.Errorf("column type %q is neither integer nor date/time", dbType)
	}
}

// IsZoned reports whether a temporal column type stores instants rather
// than wall-clock values (PostgreSQL timestamptz).
func (tm *TypeMapper) IsZoned(dbType string) bool {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	return strings.HasPrefix(t, "TIMESTAMPTZ") || strings.HasSuffix(t, " WITH TIME ZONE")
}

// ToStamp converts a stamp value read from the database to a time in the
// mapper's location. Wall-clock temporal values keep their wall clock,
// zoned values keep their instant, integer values are epoch seconds.
func (tm *TypeMapper) ToStamp(value interface{}, domain core.StampDomain, zoned bool) (time.Time, error) {
	if value == nil {
		return time.Time{}, fmt.Errorf("stamp value is NULL")
	}
	switch domain {
	case core.StampInteger:
		secs, err := tm.toInt64(value)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(secs, 0).In(tm.loc), nil
	case core.StampTemporal:
		t, err := tm.toTime(value)
		if err != nil {
			return time.Time{}, err
		}
		if zoned {
			return t.In(tm.loc), nil
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), tm.loc), nil
	default:
		return time.Time{}, fmt.Errorf("unknown stamp domain %q", domain)
	}
}

// BoundaryArg returns the bind argument for a window boundary: a
// YYYY-MM-DD literal for temporal stamps, epoch seconds for integer stamps.
// Zoned stamps are bound as instants so the session time zone does not
// shift them.
func (tm *TypeMapper) BoundaryArg(t time.Time, domain core.StampDomain, zoned bool) interface{} {
	if domain == core.StampInteger {
		return t.In(tm.loc).Unix()
	}
	if zoned {
		return t.In(tm.loc)
	}
	return t.In(tm.loc).Format(time.DateOnly)
}

// CursorArg returns the bind argument for a resume cursor. Temporal cursors
// carrying a time of day keep it, down to microseconds.
func (tm *TypeMapper) CursorArg(t time.Time, domain core.StampDomain, zoned bool) interface{} {
	if domain == core.StampInteger {
		return t.In(tm.loc).Unix()
	}
	t = t.In(tm.loc)
	if zoned {
		return t
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format("2006-01-02 15:04:05.999999")
}

func (tm *TypeMapper) toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case []byte:
		return tm.toInt64(string(v))
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to int64: %w", err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

func (tm *TypeMapper) toTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return tm.toTime(string(v))
	case string:
		s := strings.TrimSpace(v)
		for _, format := range timeFormats {
			if t, err := time.Parse(format, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time string: %s", v)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}
