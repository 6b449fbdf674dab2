package canbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrame(t *testing.T) {
	ts := time.Now()
	frame, err := NewFrame(0x123, []byte{0xDE, 0xAD, 0xBE, 0xEF}, false, ts)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x123), frame.ID)
	assert.False(t, frame.Extended)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, frame.Data)
	assert.Equal(t, ts, frame.Timestamp)
}

func TestNewFrame_CopiesPayload(t *testing.T) {
	data := []byte{0x01, 0x02}
	frame, err := NewFrame(0x100, data, false, time.Now())
	require.NoError(t, err)

	// Mutating the caller's slice must not change the frame
	data[0] = 0xFF
	assert.Equal(t, []byte{0x01, 0x02}, frame.Data)
}

func TestNewFrame_PayloadTooLong(t *testing.T) {
	_, err := NewFrame(0x123, make([]byte, 9), false, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPayloadTooLong)
}

func TestNewFrame_IdentifierRange(t *testing.T) {
	// Standard frames are limited to 11 bits
	_, err := NewFrame(0x800, nil, false, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentifierRange)

	// The same identifier is valid as an extended frame
	frame, err := NewFrame(0x800, nil, true, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint32(0x800), frame.ID)

	// Extended frames are limited to 29 bits
	_, err = NewFrame(0x20000000, nil, true, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentifierRange)

	// 29-bit maximum is accepted
	_, err = NewFrame(0x1FFFFFFF, nil, true, time.Now())
	assert.NoError(t, err)
}

func TestFrameWithID(t *testing.T) {
	ts := time.Now()
	frame, err := NewFrame(0x456, []byte{0xAA, 0xBB}, false, ts)
	require.NoError(t, err)

	remapped := frame.WithID(0x457)

	// Only the identifier changes, payload and timestamp stay intact
	assert.Equal(t, uint32(0x457), remapped.ID)
	assert.Equal(t, frame.Data, remapped.Data)
	assert.Equal(t, frame.Timestamp, remapped.Timestamp)

	// The original frame is untouched
	assert.Equal(t, uint32(0x456), frame.ID)
}

func TestFormatID(t *testing.T) {
	assert.Equal(t, "0x123", FormatID(0x123))
	assert.Equal(t, "0x1FFFFFFF", FormatID(0x1FFFFFFF))
	assert.Equal(t, "0x0", FormatID(0))
}

func TestFrameString(t *testing.T) {
	frame, err := NewFrame(0x123, []byte{0xDE, 0xAD}, false, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "0x123 [2] DE AD", frame.String())
}
