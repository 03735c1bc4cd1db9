// Package derivation is the single-threaded L1 reader that turns L1
// blocks back into derived L2 transaction records, per spec section
// 4.12. It owns the derivation cursor exclusively; the sequencing loop
// only ever reads the safe head through a fork-choice snapshot.
package derivation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/blockblaz/rollup-sequencer/internal/forkchoice"
	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

// ErrFatalReorg is reported when a reorg would require rewinding the
// finalized head, per spec section 4.12 ("the pipeline reports a fatal
// inconsistency").
var ErrFatalReorg = errors.New("derivation: reorg would rewind finalized head")

// L1Reader is the narrow slice of the L1 client the pipeline needs,
// kept as an interface so it can be driven by a fake in tests.
type L1Reader interface {
	LatestBlock(ctx context.Context) (uint64, error)
	GetBlock(ctx context.Context, n uint64, withTxs bool) (*types.Block, error)
}

// DerivedBatch is a batch recovered from L1 calldata, tagged with the L1
// block it was found in.
type DerivedBatch struct {
	L1BlockNumber uint64
	L1BlockHash   common.Hash
	Batch         *seqtypes.Batch
}

// record is the bookkeeping kept per consumed L1 block height, used to
// detect reorgs and to know how far to rewind the safe head when one
// occurs.
type record struct {
	hash      common.Hash
	safeAfter seqtypes.BlockRef
}

// Pipeline derives L2 batches from L1 block calldata and advances the
// shared fork-choice tracker's safe head accordingly.
type Pipeline struct {
	l1      L1Reader
	inbox   *common.Address
	fc      *forkchoice.ForkChoice
	genesis seqtypes.BlockRef

	lastConsumed uint64
	safe         seqtypes.BlockRef
	records      map[uint64]record
}

// New constructs a derivation pipeline rooted at genesis. inbox may be
// nil, in which case every L1 transaction's calldata is attempted (spec
// section 4.12 step 2).
func New(l1 L1Reader, inbox *common.Address, fc *forkchoice.ForkChoice, genesisL1 uint64, genesis seqtypes.BlockRef) *Pipeline {
	return &Pipeline{
		l1:           l1,
		inbox:        inbox,
		fc:           fc,
		genesis:      genesis,
		lastConsumed: genesisL1,
		safe:         genesis,
		records:      map[uint64]record{genesisL1: {safeAfter: genesis}},
	}
}

// LastConsumed returns the highest L1 block height processed so far.
func (p *Pipeline) LastConsumed() uint64 { return p.lastConsumed }

// Safe returns the current derived safe head.
func (p *Pipeline) Safe() seqtypes.BlockRef { return p.safe }

// Advance processes every new L1 block since the last call and returns
// the batches recovered along the way, in L1 block order. A reorg is
// detected and unwound transparently unless it would require rewinding
// the finalized head, in which case ErrFatalReorg is returned and the
// caller must treat it as fatal (spec section 4.12, section 7).
func (p *Pipeline) Advance(ctx context.Context) ([]DerivedBatch, error) {
	latest, err := p.l1.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("derivation: latest block: %w", err)
	}

	// A replacement of the last consumed block itself leaves no newer
	// block whose parent hash could reveal it, so re-check it directly.
	if rec, ok := p.records[p.lastConsumed]; ok && rec.hash != (common.Hash{}) {
		head, err := p.l1.GetBlock(ctx, p.lastConsumed, false)
		if err != nil {
			return nil, fmt.Errorf("derivation: fetch block %d: %w", p.lastConsumed, err)
		}
		if head.Hash() != rec.hash {
			if err := p.rewind(ctx, p.lastConsumed); err != nil {
				return nil, err
			}
		}
	}

	var out []DerivedBatch
	for next := p.lastConsumed + 1; next <= latest; next++ {
		blk, err := p.l1.GetBlock(ctx, next, true)
		if err != nil {
			return out, fmt.Errorf("derivation: fetch block %d: %w", next, err)
		}

		if parentRec, ok := p.records[next-1]; ok && parentRec.hash != (common.Hash{}) && blk.ParentHash() != parentRec.hash {
			if err := p.rewind(ctx, next-1); err != nil {
				return out, err
			}
			next = p.lastConsumed
			continue
		}

		derived, err := p.processBlock(blk)
		if err != nil {
			return out, err
		}
		out = append(out, derived...)
	}
	return out, nil
}

// processBlock extracts and parses batch calldata from a single L1
// block, advances the cursor and, when the derived L2 height surpasses
// the current safe height, advances safe (spec section 4.12 steps 2-4).
func (p *Pipeline) processBlock(blk *types.Block) ([]DerivedBatch, error) {
	var derived []DerivedBatch
	for _, tx := range blk.Transactions() {
		if p.inbox != nil {
			to := tx.To()
			if to == nil || *to != *p.inbox {
				continue
			}
		}

		batch, err := seqtypes.DecodeBatch(tx.Data())
		if err != nil {
			// Not every candidate transaction carries valid batch
			// calldata, especially when no inbox address is
			// configured and every transaction is attempted.
			continue
		}
		if len(batch.Blocks) == 0 {
			continue
		}
		last := batch.Blocks[len(batch.Blocks)-1]
		candidate := seqtypes.BlockRef{Number: last.Number(), Hash: last.Hash()}
		if candidate.Number > p.safe.Number {
			p.safe = candidate
		}
		derived = append(derived, DerivedBatch{L1BlockNumber: blk.NumberU64(), L1BlockHash: blk.Hash(), Batch: batch})
	}

	p.lastConsumed = blk.NumberU64()
	p.records[p.lastConsumed] = record{hash: blk.Hash(), safeAfter: p.safe}
	delete(p.records, safeTrimHeight(p.lastConsumed))

	if err := p.fc.SetSafe(p.safe); err != nil {
		log.Warn("derivation: advancing safe head rejected", "safe", p.safe.Number, "err", err)
	}
	return derived, nil
}

// safeTrimHeight bounds record growth by discarding bookkeeping far
// enough behind the current cursor that no further reorg could reach
// it; 256 blocks mirrors the teacher's own reorg-depth assumption for
// L1-adjacent chains.
func safeTrimHeight(current uint64) uint64 {
	const window = 256
	if current <= window {
		return 0
	}
	return current - window
}

// rewind walks backward from height, re-fetching L1 blocks by number
// and comparing against previously observed hashes, until it finds the
// lowest common ancestor (spec section 4.12: "rewound to the lowest
// common ancestor"). It then rewinds the derivation cursor and the
// derived safe head to that ancestor's state.
func (p *Pipeline) rewind(ctx context.Context, height uint64) error {
	ancestor := height
	for ancestor > 0 {
		rec, ok := p.records[ancestor]
		if !ok {
			ancestor--
			continue
		}
		blk, err := p.l1.GetBlock(ctx, ancestor, false)
		if err != nil {
			return fmt.Errorf("derivation: reorg: fetch block %d: %w", ancestor, err)
		}
		if blk.Hash() == rec.hash {
			break
		}
		ancestor--
	}

	rewoundSafe := p.genesis
	if rec, ok := p.records[ancestor]; ok {
		rewoundSafe = rec.safeAfter
	}

	if rewoundSafe.Number < p.fc.Snapshot().Finalized.Number {
		return ErrFatalReorg
	}

	log.Warn("derivation: reorg detected, rewinding", "from", p.lastConsumed, "to", ancestor)
	for h := range p.records {
		if h > ancestor {
			delete(p.records, h)
		}
	}
	p.lastConsumed = ancestor
	p.safe = rewoundSafe
	return nil
}
