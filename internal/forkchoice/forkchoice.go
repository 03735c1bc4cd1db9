// Package forkchoice tracks the three current block references the
// sequencing loop and L1-derivation worker coordinate through, per spec
// section 4.7. Exclusively owned by the sequencing loop; other workers
// obtain an atomic snapshot.
package forkchoice

import (
	"errors"
	"sync"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

// ErrFinalizedRewind is the fatal condition described in spec sections 4.7
// and 7: finalized must never move backward.
var ErrFinalizedRewind = errors.New("forkchoice: finalized rewind")

// State is the atomic {unsafe, safe, finalized} snapshot passed to the
// engine client and read by cross-worker callers (spec section 4.7).
type State struct {
	Unsafe    seqtypes.BlockRef
	Safe      seqtypes.BlockRef
	Finalized seqtypes.BlockRef
}

// ForkChoice holds the three current references under a single mutex;
// readers get a consistent snapshot even while the sequencing loop
// advances them (spec section 5: "the loop observes a rewind atomically
// via a single block-state transition").
type ForkChoice struct {
	mu    sync.RWMutex
	state State
}

// New constructs a fork-choice tracker rooted at genesis.
func New(genesis seqtypes.BlockRef) *ForkChoice {
	return &ForkChoice{state: State{Unsafe: genesis, Safe: genesis, Finalized: genesis}}
}

// SetUnsafe advances the unsafe head. It enforces height monotonicity: a
// block below the current unsafe height is rejected; one at the same
// height replaces the current unsafe head.
func (fc *ForkChoice) SetUnsafe(ref seqtypes.BlockRef) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if ref.Number < fc.state.Unsafe.Number {
		return errors.New("forkchoice: unsafe rewind")
	}
	fc.state.Unsafe = ref
	return nil
}

// SetSafe advances the safe head. Per spec section 4.7, safe height must
// never exceed what has been derived from L1; callers (the derivation
// pipeline) are responsible for only calling this with L1-derived
// references.
func (fc *ForkChoice) SetSafe(ref seqtypes.BlockRef) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if ref.Number < fc.state.Finalized.Number {
		return errors.New("forkchoice: safe below finalized")
	}
	fc.state.Safe = ref
	if ref.Number > fc.state.Unsafe.Number {
		fc.state.Unsafe = ref
	}
	return nil
}

// SetFinalized advances the finalized head. A rewind is the fatal
// condition from spec section 7 (FinalizedRewind) — the caller is
// expected to treat ErrFinalizedRewind as fatal and exit non-zero.
func (fc *ForkChoice) SetFinalized(ref seqtypes.BlockRef) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if ref.Number < fc.state.Finalized.Number {
		return ErrFinalizedRewind
	}
	fc.state.Finalized = ref
	return nil
}

// Snapshot returns a consistent copy of the current state.
func (fc *ForkChoice) Snapshot() State {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.state
}
