package plan

import (
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

var nowFunc = time.Now

var cutoffLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.DateTime,
	time.DateOnly,
	"2006-01",
	"2006",
}

// ParseCutoff parses a cutoff given as a date, datetime, RFC 3339 value,
// "@<epoch seconds>" or "now". Values without an offset are read in loc.
func ParseCutoff(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	v := strings.TrimSpace(s)

	if v == "now" {
		return nowFunc().In(loc), nil
	}

	if strings.HasPrefix(v, "@") {
		secs, err := strconv.ParseInt(v[1:], 10, 64)
		if err != nil {
			return time.Time{}, core.Errorf(core.KindInvalidPartitionMode, "", "wrong cutoff format %q", s)
		}
		return time.Unix(secs, 0).In(loc), nil
	}

	for _, layout := range cutoffLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, core.Errorf(core.KindInvalidPartitionMode, "", "wrong cutoff format %q", s)
}
