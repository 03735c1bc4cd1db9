// Package batch accumulates sequencer-built blocks until a flush
// condition fires, then hands off an immutable snapshot to the ExecuteTx
// builder (spec section 4.9).
package batch

import (
	"sync"
	"time"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

// Builder accumulates blocks and flushes when block_count >= size limit,
// or when the configured byte/time thresholds are exceeded. Each threshold,
// the count one included, is active only when positive (zero disables
// it), matching spec section 4.9's "implementation-
// defined; at minimum count-based".
type Builder struct {
	mu sync.Mutex

	sizeLimit  int
	byteLimit  int
	timeLimit  time.Duration

	blocks    []*seqtypes.Block
	bytes     int
	openedAt  time.Time
}

// New constructs a builder flushing at sizeLimit blocks. byteLimit and
// timeLimit are optional additional thresholds (zero disables each).
func New(sizeLimit, byteLimit int, timeLimit time.Duration) *Builder {
	return &Builder{sizeLimit: sizeLimit, byteLimit: byteLimit, timeLimit: timeLimit}
}

// Add appends a built block to the accumulator and reports whether the
// accumulator is now flushable.
func (b *Builder) Add(block *seqtypes.Block) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.blocks) == 0 {
		b.openedAt = time.Now()
	}
	b.blocks = append(b.blocks, block)
	for _, tx := range block.Transactions {
		b.bytes += estimateTxSize(tx)
	}

	return b.flushableLocked()
}

func (b *Builder) flushableLocked() bool {
	if len(b.blocks) == 0 {
		return false
	}
	if b.sizeLimit > 0 && len(b.blocks) >= b.sizeLimit {
		return true
	}
	if b.byteLimit > 0 && b.bytes >= b.byteLimit {
		return true
	}
	if b.timeLimit > 0 && time.Since(b.openedAt) >= b.timeLimit {
		return true
	}
	return false
}

// Flushable reports whether the accumulator currently satisfies a flush
// condition without mutating state.
func (b *Builder) Flushable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushableLocked()
}

// Flush produces an immutable batch snapshot and resets the accumulator
// to empty.
func (b *Builder) Flush(now uint64) *seqtypes.Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	blocks := b.blocks
	b.blocks = nil
	b.bytes = 0

	return &seqtypes.Batch{Blocks: blocks, CreatedAt: now}
}

// Len reports the number of blocks currently accumulated.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blocks)
}

func estimateTxSize(tx *seqtypes.Transaction) int {
	raw, err := seqtypes.Serialize(tx)
	if err != nil {
		return 0
	}
	return len(raw)
}
