package capnp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name  string
		arena Arena
		fails bool
	}{
		{name: "nil single segment", arena: SingleSegment(nil)},
		{name: "nil multi segment", arena: MultiSegment(nil)},
		{name: "read-only, misaligned cap", arena: readOnlyArena{SingleSegment(make([]byte, 0, 7))}, fails: true},
		{name: "read-only, room for root", arena: readOnlyArena{SingleSegment(make([]byte, 0, 8))}},
		{name: "first segment already has data", arena: MultiSegment([][]byte{make([]byte, 8)}), fails: true},
		{
			name:  "more than one segment already present",
			arena: MultiSegment([][]byte{make([]byte, 0, 16), make([]byte, 0)}),
			fails: true,
		},
	}
	for _, test := range tests {
		msg, seg, err := NewMessage(test.arena)
		if test.fails {
			require.Error(t, err, test.name)
			continue
		}
		require.NoError(t, err, test.name)
		require.EqualValues(t, 1, msg.NumSegments(), test.name)
		require.EqualValues(t, 0, seg.ID(), test.name)
		require.Len(t, seg.Data(), 8, test.name)
	}
}

func TestSingleSegmentGrowth(t *testing.T) {
	msg, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	for i := 0; i < 2000; i++ {
		_, _, err := alloc(seg, 8)
		require.NoErrorf(t, err, "alloc #%d", i)
	}
	require.EqualValues(t, 1, msg.NumSegments(), "single-segment arena must grow by reallocation")
}

func TestMultiSegmentGrowsByAppending(t *testing.T) {
	msg, seg, err := NewMessage(MultiSegment(nil))
	require.NoError(t, err)
	// Exhaust the first segment's minimal 8-KiB capacity, forcing the
	// arena to append a new segment instead of reallocating seg.data.
	for i := 0; i < 2000; i++ {
		_, _, err := alloc(seg, 8)
		require.NoErrorf(t, err, "alloc #%d", i)
	}
	require.Greater(t, msg.NumSegments(), int64(1), "multi-segment arena must not reallocate existing segments")
}

func TestReadLimiterDefault(t *testing.T) {
	msg := &Message{Arena: SingleSegment(nil)}
	rl := msg.ReadLimiter()
	require.True(t, rl.canRead(1<<20), "1 MiB read should fit under the default 64 MiB traversal budget")
}

func TestReadLimiterExhausts(t *testing.T) {
	msg := &Message{Arena: SingleSegment(nil), TraversalLimit: 16}
	rl := msg.ReadLimiter()
	require.True(t, rl.canRead(16), "first 16-byte read should succeed")
	require.False(t, rl.canRead(1), "read past the budget should fail")
}
