package timeslot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDays(t *testing.T) {
	tests := []struct {
		raw  string
		want DaySet
	}{
		{"Mon,Wed", Of(time.Monday, time.Wednesday)},
		{"MWF", Of(time.Monday, time.Wednesday, time.Friday)},
		{"TTh", Of(time.Tuesday, time.Thursday)},
		{"TR", Of(time.Tuesday, time.Thursday)},
		{"Tue / Thursday", Of(time.Tuesday, time.Thursday)},
		{"SaSu", Of(time.Saturday, time.Sunday)},
		{"sat", Of(time.Saturday)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDays(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, got.String())
		})
	}
}

func TestParseDaysRejectsGarbage(t *testing.T) {
	_, err := ParseDays("XYZ")
	assert.Error(t, err)
	_, err = ParseDays("  ")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	tests := map[string]int{
		"09:00":    540,
		"9:30 AM":  570,
		"12:00 PM": 720,
		"12:15am":  15,
		"1:15pm":   795,
		"13:15":    795,
		"24:00":    1440,
	}
	for raw, want := range tests {
		got, err := ParseClock(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "25:00", "13:00 PM", "9:75", "ab:cd"} {
		_, err := ParseClock(raw)
		assert.Error(t, err, raw)
	}
}

func TestRangeOverlapIsHalfOpen(t *testing.T) {
	first, err := ParseRange("09:00-10:00")
	require.NoError(t, err)
	touching, err := ParseRange("10:00-11:00")
	require.NoError(t, err)
	assert.False(t, first.Overlaps(touching))
	assert.False(t, touching.Overlaps(first))

	late, err := ParseRange("09:01-10:01")
	require.NoError(t, err)
	assert.True(t, late.Overlaps(touching))
	assert.True(t, first.Overlaps(late))
}

func TestNewRangeRequiresStartBeforeEnd(t *testing.T) {
	_, err := NewRange(600, 600)
	assert.Error(t, err)
	_, err = ParseRange("10:00-09:00")
	assert.Error(t, err)
}

func TestDaySetString(t *testing.T) {
	assert.Equal(t, "Mon,Thu,Sun", Of(time.Sunday, time.Thursday, time.Monday).String())
}
