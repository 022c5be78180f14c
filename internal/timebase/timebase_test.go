package timebase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRescale(t *testing.T) {
	tests := []struct {
		name     string
		ts       int64
		from, to Rational
		want     int64
	}{
		{"frame to 90k", 1, New(1, 25), New(1, 90000), 3600},
		{"identity", 12345, New(1, 1000), New(1, 1000), 12345},
		{"half rounds up", 1, New(1, 2), Second, 1},
		{"negative half rounds away from zero", -1, New(1, 2), Second, -1},
		{"one and a half", 3, New(1, 2), Second, 2},
		{"minus one and a half", -3, New(1, 2), Second, -2},
		{"below half rounds down", 1, New(1, 3), Second, 0},
		{"audio to video clock", 441000, New(1, 44100), New(1, 25), 250},
		{"wide intermediate", 9_000_000_000_000_000, New(1, 90000), New(1, 48000), 4_800_000_000_000_000},
		{"ntsc", 1, New(1001, 30000), New(1, 90000), 3003},
		{"zero", 0, New(1, 25), New(1, 1000), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rescale(tt.ts, tt.from, tt.to))
		})
	}
}

func TestRescaleSentinels(t *testing.T) {
	assert.Equal(t, NoTimestamp, Rescale(NoTimestamp, New(1, 25), New(1, 1000)))
	assert.Equal(t, NoTimestamp, Rescale(10, New(1, 0), New(1, 1000)))
	assert.Equal(t, NoTimestamp, Rescale(10, New(1, 25), New(0, 1)))
	assert.Equal(t, NoTimestamp, Rescale(math.MaxInt64, New(2, 1), Second))
}

func TestRescaleRoundTrip(t *testing.T) {
	pairs := []struct{ a, b Rational }{
		{New(1, 25), New(1, 90000)},
		{New(1, 44100), New(1, 48000)},
		{New(1, 1000), New(1, 1001)},
		{New(1001, 30000), New(1, 90000)},
	}
	for _, p := range pairs {
		for ts := int64(-5000); ts <= 5000; ts += 7 {
			back := Rescale(Rescale(ts, p.a, p.b), p.b, p.a)
			assert.InDelta(t, ts, back, 1, "%d via %s and %s", ts, p.a, p.b)
		}
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare(1, New(1, 25), 3600, New(1, 90000)))
	assert.Equal(t, 0, Compare(250, New(1, 25), 10, Second))
	assert.Equal(t, -1, Compare(249, New(1, 25), 441000, New(1, 44100)))
	assert.Equal(t, 1, Compare(6, New(1, 25), 10000, New(1, 44100)))
	assert.Equal(t, -1, Compare(-1, New(1, 25), 0, New(1, 44100)))
	assert.Equal(t, 1, Compare(0, New(1, 25), -5, Second))
	assert.Equal(t, 1, Compare(-1, New(1, 25), -1, Second))
	assert.Equal(t, 0, Compare(0, New(1, 25), 0, Second))
	assert.Equal(t, 1, Compare(math.MaxInt64, New(1, 1), math.MaxInt64, New(1, 2)))
}

func TestSeconds(t *testing.T) {
	assert.InDelta(t, 0.04, Seconds(1, New(1, 25)), 1e-12)
	assert.True(t, math.IsNaN(Seconds(NoTimestamp, New(1, 25))))
}
