package forkchoice

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

func ref(n uint64) seqtypes.BlockRef {
	return seqtypes.BlockRef{Number: n, Hash: common.BigToHash(nil)}
}

func TestMonotonicAdvance(t *testing.T) {
	fc := New(ref(0))
	require.NoError(t, fc.SetUnsafe(ref(1)))
	require.NoError(t, fc.SetSafe(ref(1)))
	require.NoError(t, fc.SetFinalized(ref(1)))

	snap := fc.Snapshot()
	require.Equal(t, uint64(1), snap.Unsafe.Number)
	require.Equal(t, uint64(1), snap.Safe.Number)
	require.Equal(t, uint64(1), snap.Finalized.Number)
}

func TestFinalizedRewindIsFatal(t *testing.T) {
	fc := New(ref(0))
	require.NoError(t, fc.SetFinalized(ref(5)))

	err := fc.SetFinalized(ref(3))
	require.ErrorIs(t, err, ErrFinalizedRewind)
}

func TestSafeCannotGoBelowFinalized(t *testing.T) {
	fc := New(ref(0))
	require.NoError(t, fc.SetFinalized(ref(5)))

	err := fc.SetSafe(ref(3))
	require.Error(t, err)
}

func TestSafeAdvancePullsUnsafeForward(t *testing.T) {
	fc := New(ref(0))
	require.NoError(t, fc.SetSafe(ref(10)))

	snap := fc.Snapshot()
	require.Equal(t, uint64(10), snap.Unsafe.Number)
}
