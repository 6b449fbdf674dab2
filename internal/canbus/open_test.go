package canbus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemScheme(t *testing.T) {
	defer ReleasePipe("open-test")

	source, err := Open("mem:open-test")
	require.NoError(t, err)
	sink, err := OpenSink("mem:open-test")
	require.NoError(t, err)

	// Both descriptors resolve to the same shared endpoint
	frame, err := NewFrame(0x123, []byte{0x01}, false, time.Now())
	require.NoError(t, err)
	require.NoError(t, sink.Send(frame))

	received, err := source.Receive(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x123), received.ID)
}

func TestOpenFileScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.log")

	sink, err := OpenSink("file:" + path)
	require.NoError(t, err)

	frame, err := NewFrame(0x123, []byte{0xAB}, false, time.Now())
	require.NoError(t, err)
	require.NoError(t, sink.Send(frame))
	require.NoError(t, sink.Close())

	source, err := Open("file:" + path)
	require.NoError(t, err)
	defer source.Close()

	received, err := source.Receive(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x123), received.ID)
}

func TestOpenFileSchemeWritesIfaceLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.log")

	sink, err := OpenSink("file:" + path)
	require.NoError(t, err)

	frame, err := NewFrame(0x123, []byte{0xAB}, false, time.Unix(1638947543, 0))
	require.NoError(t, err)
	require.NoError(t, sink.Send(frame))
	require.NoError(t, sink.Close())

	// The candump interface column carries a bus name, never the file path
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))
	fields := strings.Fields(line)
	require.Len(t, fields, 3)
	assert.Equal(t, defaultIface, fields[1])
	assert.NotContains(t, line, path)
}

func TestOpenCaptureScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.cb")

	sink, err := OpenSink("capture:" + path)
	require.NoError(t, err)

	frame, err := NewFrame(0x456, []byte{0x01, 0x02}, false, time.Now())
	require.NoError(t, err)
	require.NoError(t, sink.Send(frame))
	require.NoError(t, sink.Close())

	source, err := Open("capture:" + path)
	require.NoError(t, err)
	defer source.Close()

	received, err := source.Receive(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x456), received.ID)
	assert.Equal(t, []byte{0x01, 0x02}, received.Data)
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open("socketcan:can0")
	assert.ErrorIs(t, err, ErrUnknownScheme)

	_, err = OpenSink("socketcan:can0")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestOpenMalformedSpec(t *testing.T) {
	cases := []string{"", "noscheme", ":target", "mem:"}
	for _, spec := range cases {
		_, err := Open(spec)
		assert.ErrorIs(t, err, ErrUnknownScheme, "spec %q should be rejected", spec)
	}
}
