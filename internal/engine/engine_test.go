package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shengyanli1982/canbridge-go/internal/canbus"
	"github.com/shengyanli1982/canbridge-go/internal/rules"
)

func mustRuleSet(t *testing.T, drop []uint32, remap map[uint32]uint32, limits map[uint32]rules.Limit) *rules.RuleSet {
	t.Helper()
	ruleSet, err := rules.FromParts(drop, remap, limits)
	require.NoError(t, err)
	return ruleSet
}

func mustFrame(t *testing.T, id uint32, data []byte, ts time.Time) canbus.Frame {
	t.Helper()
	frame, err := canbus.NewFrame(id, data, false, ts)
	require.NoError(t, err)
	return frame
}

func TestEngineRequiresRuleSet(t *testing.T) {
	_, err := New(nil, "can0", nil)
	assert.ErrorIs(t, err, ErrNilRuleSet)
}

func TestEngineForwardsUnmatchedFrames(t *testing.T) {
	engine, err := New(rules.Empty(), "can0", nil)
	require.NoError(t, err)

	frame := mustFrame(t, 0x123, []byte{0x01}, time.Now())
	action := engine.Evaluate(frame)

	assert.Equal(t, VerdictForward, action.Verdict)
	assert.True(t, action.Verdict.Forwardable())
	assert.Equal(t, frame, action.Frame)

	stats := engine.Stats()
	assert.Equal(t, uint64(1), stats.Forwarded)
}

func TestEngineDropRule(t *testing.T) {
	ruleSet := mustRuleSet(t, []uint32{0x123}, nil, nil)
	engine, err := New(ruleSet, "can0", nil)
	require.NoError(t, err)

	action := engine.Evaluate(mustFrame(t, 0x123, nil, time.Now()))
	assert.Equal(t, VerdictDrop, action.Verdict)
	assert.False(t, action.Verdict.Forwardable())

	stats := engine.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(0), stats.Forwarded)
}

func TestEngineDropBeatsRemapAndLimit(t *testing.T) {
	// The same identifier carries a drop rule and a rate budget;
	// dropping wins and never touches the bucket
	ruleSet := mustRuleSet(t, []uint32{0x123}, nil,
		map[uint32]rules.Limit{0x123: {Rate: 50, Burst: 25}})
	engine, err := New(ruleSet, "can0", nil)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		action := engine.Evaluate(mustFrame(t, 0x123, nil, time.Now()))
		assert.Equal(t, VerdictDrop, action.Verdict)
	}

	stats := engine.Stats()
	assert.Equal(t, uint64(100), stats.Dropped)
	assert.Equal(t, uint64(0), stats.RateLimited)
	assert.Equal(t, 0, engine.Limiter().Len())
}

func TestEngineRemap(t *testing.T) {
	ruleSet := mustRuleSet(t, nil, map[uint32]uint32{0x456: 0x457}, nil)
	engine, err := New(ruleSet, "can0", nil)
	require.NoError(t, err)

	ts := time.Now()
	frame := mustFrame(t, 0x456, []byte{0xAA, 0xBB}, ts)
	action := engine.Evaluate(frame)

	assert.Equal(t, VerdictForwardRemapped, action.Verdict)
	assert.True(t, action.Verdict.Forwardable())

	// Only the identifier changes
	assert.Equal(t, uint32(0x457), action.Frame.ID)
	assert.Equal(t, []byte{0xAA, 0xBB}, action.Frame.Data)
	assert.Equal(t, ts, action.Frame.Timestamp)

	stats := engine.Stats()
	assert.Equal(t, uint64(1), stats.Remapped)
	assert.Equal(t, uint64(0), stats.Forwarded)
}

func TestEngineRateLimit(t *testing.T) {
	ruleSet := mustRuleSet(t, nil, nil,
		map[uint32]rules.Limit{0x123: {Rate: 50, Burst: 25}})
	engine, err := New(ruleSet, "can0", nil)
	require.NoError(t, err)

	now := time.Now()

	// The initial burst passes in full
	for i := 0; i < 25; i++ {
		action := engine.Evaluate(mustFrame(t, 0x123, nil, now))
		assert.Equal(t, VerdictForward, action.Verdict, "frame %d", i)
	}

	// The next frame at the same instant is rate limited
	action := engine.Evaluate(mustFrame(t, 0x123, nil, now))
	assert.Equal(t, VerdictRateLimited, action.Verdict)
	assert.False(t, action.Verdict.Forwardable())

	// At sustained configured rate every frame passes
	ts := now
	for i := 0; i < 100; i++ {
		ts = ts.Add(time.Second / 50)
		action := engine.Evaluate(mustFrame(t, 0x123, nil, ts))
		assert.Equal(t, VerdictForward, action.Verdict, "sustained frame %d", i)
	}

	stats := engine.Stats()
	assert.Equal(t, uint64(125), stats.Forwarded)
	assert.Equal(t, uint64(1), stats.RateLimited)
}

func TestEngineRateLimitKeyedOnOriginalIdentifier(t *testing.T) {
	// Budget is bound to the pre-remap identifier
	ruleSet := mustRuleSet(t, nil,
		map[uint32]uint32{0x456: 0x457},
		map[uint32]rules.Limit{0x456: {Rate: 10, Burst: 1}})
	engine, err := New(ruleSet, "can0", nil)
	require.NoError(t, err)

	now := time.Now()

	action := engine.Evaluate(mustFrame(t, 0x456, nil, now))
	assert.Equal(t, VerdictForwardRemapped, action.Verdict)
	assert.Equal(t, uint32(0x457), action.Frame.ID)

	action = engine.Evaluate(mustFrame(t, 0x456, nil, now))
	assert.Equal(t, VerdictRateLimited, action.Verdict)

	// Frames already carrying the remap target are not limited
	action = engine.Evaluate(mustFrame(t, 0x457, nil, now))
	assert.Equal(t, VerdictForward, action.Verdict)
}

func TestEngineSwap(t *testing.T) {
	engine, err := New(rules.Empty(), "can0", nil)
	require.NoError(t, err)

	action := engine.Evaluate(mustFrame(t, 0x123, nil, time.Now()))
	assert.Equal(t, VerdictForward, action.Verdict)

	// Swapping in a drop rule takes effect on the next evaluation
	require.NoError(t, engine.Swap(mustRuleSet(t, []uint32{0x123}, nil, nil)))

	action = engine.Evaluate(mustFrame(t, 0x123, nil, time.Now()))
	assert.Equal(t, VerdictDrop, action.Verdict)

	assert.ErrorIs(t, engine.Swap(nil), ErrNilRuleSet)
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "forward", VerdictForward.String())
	assert.Equal(t, "remap", VerdictForwardRemapped.String())
	assert.Equal(t, "drop", VerdictDrop.String())
	assert.Equal(t, "ratelimit", VerdictRateLimited.String())
}
