package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shengyanli1982/canbridge-go/internal/canbus"
)

func mustFrame(t *testing.T, id uint32, data []byte, ts time.Time) canbus.Frame {
	t.Helper()
	frame, err := canbus.NewFrame(id, data, false, ts)
	require.NoError(t, err)
	return frame
}

func TestFrameBits(t *testing.T) {
	assert.Equal(t, 47, FrameBits(0))
	assert.Equal(t, 111, FrameBits(8))
}

func TestWindowAggregatorSteadyTraffic(t *testing.T) {
	start := time.Now()
	agg := NewWindowAggregator(500000, start)

	// 100 frames at a perfectly even 10ms cadence
	for i := 0; i < 100; i++ {
		ts := start.Add(time.Duration(i) * 10 * time.Millisecond)
		agg.Observe(mustFrame(t, 0x123, []byte{0x01, 0x02, 0x03, 0x04}, ts))
	}

	snapshot := agg.Tick(start.Add(time.Second))
	require.Len(t, snapshot.PerID, 1)

	stats := snapshot.PerID[0x123]
	assert.Equal(t, uint64(100), stats.Count)
	assert.InDelta(t, 100.0, stats.FPS, 0.001)
	assert.InDelta(t, 4.0, stats.AvgLen, 0.001)

	// Even arrival has zero inter-arrival deviation
	assert.InDelta(t, 0.0, stats.JitterMS, 0.001)

	// 100 frames of 79 bits each over one second on a 500 kbit/s bus
	expectedLoad := 100.0 * float64(FrameBits(4)) / 500000.0 * 100.0
	assert.InDelta(t, expectedLoad, snapshot.BusLoadPct, 0.001)
}

func TestWindowAggregatorJitter(t *testing.T) {
	start := time.Now()
	agg := NewWindowAggregator(500000, start)

	// Gaps of 10ms and 20ms alternate: population stddev of {10,20,10} is ~4.714
	offsets := []time.Duration{0, 10, 30, 40}
	for _, off := range offsets {
		agg.Observe(mustFrame(t, 0x123, nil, start.Add(off*time.Millisecond)))
	}

	snapshot := agg.Tick(start.Add(time.Second))
	stats := snapshot.PerID[0x123]
	assert.InDelta(t, 4.714, stats.JitterMS, 0.001)
}

func TestWindowAggregatorSingleFrameHasZeroJitter(t *testing.T) {
	start := time.Now()
	agg := NewWindowAggregator(500000, start)

	agg.Observe(mustFrame(t, 0x123, nil, start))

	// One frame yields no gap samples; two frames yield a single sample
	snapshot := agg.Tick(start.Add(time.Second))
	assert.Equal(t, 0.0, snapshot.PerID[0x123].JitterMS)

	agg.Observe(mustFrame(t, 0x123, nil, start.Add(1100*time.Millisecond)))
	agg.Observe(mustFrame(t, 0x123, nil, start.Add(1200*time.Millisecond)))
	snapshot = agg.Tick(start.Add(2 * time.Second))
	assert.Equal(t, 0.0, snapshot.PerID[0x123].JitterMS)
}

func TestWindowAggregatorPerIdentifierStats(t *testing.T) {
	start := time.Now()
	agg := NewWindowAggregator(500000, start)

	for i := 0; i < 10; i++ {
		ts := start.Add(time.Duration(i) * 100 * time.Millisecond)
		agg.Observe(mustFrame(t, 0x100, []byte{0x01}, ts))
	}
	for i := 0; i < 5; i++ {
		ts := start.Add(time.Duration(i) * 200 * time.Millisecond)
		agg.Observe(mustFrame(t, 0x200, make([]byte, 8), ts))
	}

	snapshot := agg.Tick(start.Add(time.Second))
	require.Len(t, snapshot.PerID, 2)

	assert.InDelta(t, 10.0, snapshot.PerID[0x100].FPS, 0.001)
	assert.InDelta(t, 1.0, snapshot.PerID[0x100].AvgLen, 0.001)
	assert.InDelta(t, 5.0, snapshot.PerID[0x200].FPS, 0.001)
	assert.InDelta(t, 8.0, snapshot.PerID[0x200].AvgLen, 0.001)

	assert.Equal(t, []uint32{0x100, 0x200}, snapshot.SortedIDs())
}

func TestWindowAggregator_BoundaryDiscardsLastSeen(t *testing.T) {
	start := time.Now()
	agg := NewWindowAggregator(500000, start)

	// Two frames 10ms apart in the first window
	agg.Observe(mustFrame(t, 0x123, nil, start))
	agg.Observe(mustFrame(t, 0x123, nil, start.Add(10*time.Millisecond)))

	windowEnd := start.Add(time.Second)
	first := agg.Tick(windowEnd)
	assert.Equal(t, uint64(2), first.PerID[0x123].Count)

	// The first frame of the new window contributes no gap sample,
	// so a wildly different cross-window gap cannot skew the jitter
	agg.Observe(mustFrame(t, 0x123, nil, windowEnd.Add(900*time.Millisecond)))
	agg.Observe(mustFrame(t, 0x123, nil, windowEnd.Add(910*time.Millisecond)))
	agg.Observe(mustFrame(t, 0x123, nil, windowEnd.Add(920*time.Millisecond)))

	second := agg.Tick(windowEnd.Add(time.Second))
	assert.Equal(t, uint64(3), second.PerID[0x123].Count)
	assert.InDelta(t, 0.0, second.PerID[0x123].JitterMS, 0.001)
}

func TestWindowAggregatorResetsBetweenWindows(t *testing.T) {
	start := time.Now()
	agg := NewWindowAggregator(500000, start)

	agg.Observe(mustFrame(t, 0x123, []byte{0x01}, start))
	first := agg.Tick(start.Add(time.Second))
	require.Len(t, first.PerID, 1)
	assert.Greater(t, first.BusLoadPct, 0.0)

	// An empty follow-up window carries no leftover state
	second := agg.Tick(start.Add(2 * time.Second))
	assert.Empty(t, second.PerID)
	assert.Equal(t, 0.0, second.BusLoadPct)
	assert.Equal(t, start.Add(time.Second), second.Start)
}

func TestWindowAggregatorLoadIsNotClamped(t *testing.T) {
	start := time.Now()
	// A deliberately tiny bitrate pushes the estimate past 100%
	agg := NewWindowAggregator(1000, start)

	for i := 0; i < 100; i++ {
		agg.Observe(mustFrame(t, 0x123, make([]byte, 8), start.Add(time.Duration(i)*time.Millisecond)))
	}

	snapshot := agg.Tick(start.Add(time.Second))
	expected := 100.0 * float64(FrameBits(8)) / 1000.0 * 100.0
	assert.InDelta(t, expected, snapshot.BusLoadPct, 0.001)
	assert.Greater(t, snapshot.BusLoadPct, 100.0)
}
