package plan

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("year_month")
	require.NoError(t, err)
	assert.Equal(t, ModeYearMonth, m)

	_, err = ParseMode("WEEK")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidPartitionMode))
}

func TestMode_FloorAndNext(t *testing.T) {
	ts := time.Date(2020, time.December, 31, 22, 10, 0, 0, time.UTC)

	assert.Equal(t, date(2020, time.January, 1), ModeYear.Floor(ts))
	assert.Equal(t, date(2021, time.January, 1), ModeYear.Next(ModeYear.Floor(ts)))

	assert.Equal(t, date(2020, time.December, 1), ModeYearMonth.Floor(ts))
	assert.Equal(t, date(2021, time.January, 1), ModeYearMonth.Next(ModeYearMonth.Floor(ts)))

	assert.Equal(t, date(2020, time.December, 31), ModeYearMonthDay.Floor(ts))
	assert.Equal(t, date(2021, time.January, 1), ModeYearMonthDay.Next(ModeYearMonthDay.Floor(ts)))
}

func TestParseCutoff(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2021-04-01", date(2021, time.April, 1)},
		{"2021-04-01 10:11:12", time.Date(2021, time.April, 1, 10, 11, 12, 0, time.UTC)},
		{"2021-04-01T10:11:12Z", time.Date(2021, time.April, 1, 10, 11, 12, 0, time.UTC)},
		{"2021-04", date(2021, time.April, 1)},
		{"2021", date(2021, time.January, 1)},
		{"@1617235200", date(2021, time.April, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCutoff(tt.in, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseCutoff_Now(t *testing.T) {
	fixed := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = time.Now }()

	got, err := ParseCutoff("now", nil)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got))
}

func TestParseCutoff_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "@abc", "01/04/2021"} {
		_, err := ParseCutoff(in, time.UTC)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, core.ErrInvalidPartitionMode), in)
	}
}
