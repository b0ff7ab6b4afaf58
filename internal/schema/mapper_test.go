package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

func TestTypeMapper_InferStampDomain(t *testing.T) {
	tm := NewTypeMapper(nil)

	tests := []struct {
		dbType  string
		want    core.StampDomain
		wantErr bool
	}{
		{dbType: "int(10) unsigned", want: core.StampInteger},
		{dbType: "BIGINT", want: core.StampInteger},
		{dbType: "integer", want: core.StampInteger},
		{dbType: "int8", want: core.StampInteger},
		{dbType: "datetime(6)", want: core.StampTemporal},
		{dbType: "DATE", want: core.StampTemporal},
		{dbType: "timestamp without time zone", want: core.StampTemporal},
		{dbType: "timestamp(3) with time zone", want: core.StampTemporal},
		{dbType: "timestamptz", want: core.StampTemporal},
		{dbType: "varchar(255)", wantErr: true},
		{dbType: "decimal(10,2)", wantErr: true},
		{dbType: "time", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			got, err := tm.InferStampDomain(tt.dbType)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeMapper_ToStamp(t *testing.T) {
	tm := NewTypeMapper(time.UTC)
	want := time.Date(2021, 2, 3, 4, 5, 6, 0, time.UTC)

	tests := []struct {
		name   string
		value  interface{}
		domain core.StampDomain
	}{
		{name: "epoch int64", value: want.Unix(), domain: core.StampInteger},
		{name: "epoch bytes", value: []byte("1612325106"), domain: core.StampInteger},
		{name: "time value", value: want, domain: core.StampTemporal},
		{name: "datetime string", value: "2021-02-03 04:05:06", domain: core.StampTemporal},
		{name: "datetime bytes", value: []byte("2021-02-03 04:05:06"), domain: core.StampTemporal},
		{name: "sqlite timestamp", value: "2021-02-03 04:05:06+00:00", domain: core.StampTemporal},
		{name: "rfc3339", value: "2021-02-03T04:05:06Z", domain: core.StampTemporal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tm.ToStamp(tt.value, tt.domain, false)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}
}

func TestTypeMapper_ToStampKeepsWallClock(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	tm := NewTypeMapper(loc)

	got, err := tm.ToStamp(time.Date(2021, 1, 1, 0, 30, 0, 0, time.UTC), core.StampTemporal, false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 30, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestTypeMapper_ToStampErrors(t *testing.T) {
	tm := NewTypeMapper(nil)

	_, err := tm.ToStamp(nil, core.StampTemporal, false)
	assert.Error(t, err)

	_, err = tm.ToStamp("yesterday", core.StampTemporal, false)
	assert.Error(t, err)

	_, err = tm.ToStamp("abc", core.StampInteger, false)
	assert.Error(t, err)

	_, err = tm.ToStamp(int64(1), core.StampDomain("FLOAT"), false)
	assert.Error(t, err)
}

func TestTypeMapper_BoundaryAndCursorArgs(t *testing.T) {
	tm := NewTypeMapper(time.UTC)
	day := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	withTime := time.Date(2021, 3, 1, 13, 14, 15, 123456000, time.UTC)

	assert.Equal(t, "2021-03-01", tm.BoundaryArg(day, core.StampTemporal, false))
	assert.Equal(t, day.Unix(), tm.BoundaryArg(day, core.StampInteger, false))

	assert.Equal(t, "2021-03-01", tm.CursorArg(day, core.StampTemporal, false))
	assert.Equal(t, "2021-03-01 13:14:15.123456", tm.CursorArg(withTime, core.StampTemporal, false))
	assert.Equal(t, withTime.Unix(), tm.CursorArg(withTime, core.StampInteger, false))
}

func TestTypeMapper_IsZoned(t *testing.T) {
	tm := NewTypeMapper(nil)

	assert.True(t, tm.IsZoned("timestamptz"))
	assert.True(t, tm.IsZoned("timestamp(3) with time zone"))
	assert.False(t, tm.IsZoned("timestamp without time zone"))
	assert.False(t, tm.IsZoned("datetime(6)"))
	assert.False(t, tm.IsZoned("DATE"))
}

func TestTypeMapper_ZonedStampKeepsInstant(t *testing.T) {
	berlin := time.FixedZone("CET", 60*60)
	tm := NewTypeMapper(time.UTC)
	// pgx hands timestamptz values back in the process's local zone.
	value := time.Date(2021, 1, 10, 11, 0, 0, 0, berlin)

	zoned, err := tm.ToStamp(value, core.StampTemporal, true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 10, 10, 0, 0, 0, time.UTC), zoned)

	naive, err := tm.ToStamp(value, core.StampTemporal, false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 10, 11, 0, 0, 0, time.UTC), naive)

	assert.Equal(t, zoned, tm.CursorArg(zoned, core.StampTemporal, true))
	day := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, day, tm.BoundaryArg(day, core.StampTemporal, true))
}
