package batch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

func testBlock(n uint64) *seqtypes.Block {
	return &seqtypes.Block{Header: &seqtypes.Header{Number: n}}
}

func TestFlushesAtSizeLimit(t *testing.T) {
	b := New(3, 0, 0)

	require.False(t, b.Add(testBlock(1)))
	require.False(t, b.Add(testBlock(2)))
	require.True(t, b.Add(testBlock(3)))

	batch := b.Flush(100)
	require.Len(t, batch.Blocks, 3)
	require.Equal(t, uint64(100), batch.CreatedAt)
	require.Equal(t, 0, b.Len())
}

func TestFlushResetsAccumulator(t *testing.T) {
	b := New(1, 0, 0)
	require.True(t, b.Add(testBlock(1)))
	_ = b.Flush(1)

	require.False(t, b.Flushable())
	require.Equal(t, 0, b.Len())
}
