package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	ts := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{name: "rfc3339", in: "2025-03-10T08:00:00Z", want: ts, ok: true},
		{name: "plain date", in: "2025-03-10", want: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "unix seconds", in: strconv.FormatInt(ts.Unix(), 10), want: ts, ok: true},
		{name: "empty", in: "", ok: false},
		{name: "garbage", in: "yesterday", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, def.Equal(ParseTimeDefault("", def)))
	assert.True(t, def.Equal(ParseTimeDefault("nope", def)))
}

func TestParseBool(t *testing.T) {
	v, ok := ParseBool("")
	assert.True(t, ok)
	assert.Nil(t, v)

	v, ok = ParseBool("true")
	require.True(t, ok)
	require.NotNil(t, v)
	assert.True(t, *v)

	_, ok = ParseBool("maybe")
	assert.False(t, ok)
}
