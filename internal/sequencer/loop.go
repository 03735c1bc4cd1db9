// Package sequencer is the fork-choice orchestrator described in spec
// section 4.8 and the overview table's "Fork-choice orchestrator" row: it
// coordinates the mempool, engine client, fork-choice tracker, batch
// builder, ExecuteTx builder, L1 client and derivation pipeline behind a
// single per-tick entry point, and exposes the admission operations the
// RPC front end calls. Structured the way the teacher's miner/worker.go
// drives its own generate-commit loop from a ticker plus a handful of
// collaborator interfaces.
package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/blockblaz/rollup-sequencer/internal/batch"
	"github.com/blockblaz/rollup-sequencer/internal/derivation"
	"github.com/blockblaz/rollup-sequencer/internal/engine"
	"github.com/blockblaz/rollup-sequencer/internal/executetx"
	"github.com/blockblaz/rollup-sequencer/internal/forkchoice"
	"github.com/blockblaz/rollup-sequencer/internal/l1client"
	"github.com/blockblaz/rollup-sequencer/internal/mempool"
	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

var (
	ticksTotal        = metrics.NewRegisteredCounter("sequencer/ticks", nil)
	emptyBlocksTotal  = metrics.NewRegisteredCounter("sequencer/emptyBlocks", nil)
	builtBlocksTotal  = metrics.NewRegisteredCounter("sequencer/builtBlocks", nil)
	engineErrorsTotal = metrics.NewRegisteredCounter("sequencer/engineErrors", nil)
	flushesTotal      = metrics.NewRegisteredCounter("sequencer/batchFlushes", nil)
	tickTimer         = metrics.NewRegisteredTimer("sequencer/tickDuration", nil)
)

// EngineClient is the narrow engine-API surface the loop drives (spec
// section 4.6); kept as an interface so the loop is testable against a
// fake without a live JSON-RPC transport.
type EngineClient interface {
	ForkchoiceUpdate(ctx context.Context, state engine.ForkchoiceState, attrs *engine.PayloadAttributes) (engine.ForkchoiceUpdatedResult, error)
	GetPayload(ctx context.Context, id engine.PayloadID) (engine.ExecutionPayload, error)
}

// L1Submitter is the narrow L1 surface the loop needs to hand off a built
// ExecuteTx (spec section 4.11).
type L1Submitter interface {
	SubmitRaw(ctx context.Context, raw []byte) (common.Hash, error)
}

// Config holds the static per-tick parameters an operator configures
// (spec section 6): gas limit, suggested coinbase, and the chain's
// genesis-relative tick cadence is driven externally by the caller's
// ticker, not by the loop itself.
type Config struct {
	BlockGasLimit uint64
	Coinbase      common.Address
	TxsPerPayload int
}

// Loop is the single-threaded sequencing-loop worker (spec section 5: "one
// dedicated sequencing-loop worker"). Tick holds the loop's mutex for its
// whole run, so concurrent Tick calls are serialized; admission workers and the
// derivation worker run independently and communicate only through the
// mempool and the fork-choice tracker's synchronized methods.
type Loop struct {
	cfg Config

	mu sync.Mutex // serializes parentHash/height bookkeeping against concurrent Tick calls

	pool       *mempool.Pool
	eng        EngineClient
	fc         *forkchoice.ForkChoice
	derivation *derivation.Pipeline
	batcher    *batch.Builder
	executetx  *executetx.Builder
	l1         L1Submitter

	parentHash common.Hash
	nextHeight uint64
}

// New constructs a sequencing loop rooted at the fork-choice tracker's
// current unsafe head.
func New(cfg Config, pool *mempool.Pool, eng EngineClient, fc *forkchoice.ForkChoice, deriv *derivation.Pipeline, batcher *batch.Builder, exBuilder *executetx.Builder, l1 L1Submitter) *Loop {
	snap := fc.Snapshot()
	return &Loop{
		cfg:        cfg,
		pool:       pool,
		eng:        eng,
		fc:         fc,
		derivation: deriv,
		batcher:    batcher,
		executetx:  exBuilder,
		l1:         l1,
		parentHash: snap.Unsafe.Hash,
		nextHeight: snap.Unsafe.Number + 1,
	}
}

// Tick runs exactly one iteration of the spec section 4.8 sequence and
// returns the block it installed as the new unsafe head (possibly
// empty); the block is nil only when an error is returned. It tolerates
// any individual step failing transiently: partial progress is allowed,
// an engine-client failure degrades to a locally produced empty block
// rather than aborting the tick, and a failed batch flush is logged
// without failing the tick; the blocks of that batch are not resubmitted
// (spec sections 4.8 and 5).
func (l *Loop) Tick(ctx context.Context) (*seqtypes.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	defer func() { tickTimer.UpdateSince(start) }()
	ticksTotal.Inc(1)

	// Step 1: poll L1 derivation; advancing safe happens inside Advance
	// itself via the shared fork-choice tracker.
	if l.derivation != nil {
		if _, err := l.derivation.Advance(ctx); err != nil {
			if err == derivation.ErrFatalReorg {
				return nil, err // fatal: caller must treat as a finalized-rewind error and exit
			}
			log.Warn("sequencer: derivation advance failed, continuing tick", "err", err)
		}
	}

	block, err := l.buildBlock(ctx)
	if err != nil {
		log.Warn("sequencer: engine payload request failed, producing empty block", "err", err)
		engineErrorsTotal.Inc(1)
		block = l.emptyBlock()
	}

	if err := l.fc.SetUnsafe(seqtypes.BlockRef{Number: block.Number(), Hash: block.Hash()}); err != nil {
		return nil, fmt.Errorf("sequencer: install unsafe head: %w", err)
	}
	l.parentHash = block.Hash()
	l.nextHeight = block.Number() + 1

	for _, hash := range block.TxHashes() {
		l.pool.Remove(hash)
	}

	if block.Empty() {
		emptyBlocksTotal.Inc(1)
		return block, nil
	}
	builtBlocksTotal.Inc(1)

	if flushable := l.batcher.Add(block); flushable {
		if err := l.flush(ctx); err != nil {
			log.Error("sequencer: batch flush failed", "err", err)
		}
	}

	return block, nil
}

// buildBlock asks the engine for a payload seeded from the mempool's
// current selection, retrieves it, and converts it into a Block (spec
// section 4.8 steps 2-3).
func (l *Loop) buildBlock(ctx context.Context) (*seqtypes.Block, error) {
	now := uint64(time.Now().Unix())
	selected := l.pool.Select(l.cfg.BlockGasLimit, l.cfg.TxsPerPayload, l.nextHeight, now)

	txBytes := make([]hexutil.Bytes, len(selected))
	for i, entry := range selected {
		raw, err := seqtypes.Serialize(entry.Tx)
		if err != nil {
			return nil, fmt.Errorf("serialize selected tx: %w", err)
		}
		txBytes[i] = raw
	}

	snap := l.fc.Snapshot()
	fcState := engine.ForkchoiceState{
		HeadBlockHash:      snap.Unsafe.Hash,
		SafeBlockHash:      snap.Safe.Hash,
		FinalizedBlockHash: snap.Finalized.Hash,
	}
	attrs := &engine.PayloadAttributes{
		Timestamp:             hexutil.Uint64(now),
		SuggestedFeeRecipient: l.cfg.Coinbase,
		Transactions:          txBytes,
	}

	result, err := l.eng.ForkchoiceUpdate(ctx, fcState, attrs)
	if err != nil {
		return nil, fmt.Errorf("forkchoiceUpdated: %w", err)
	}
	if result.PayloadID == nil {
		return nil, fmt.Errorf("forkchoiceUpdated: no payload id returned")
	}

	payload, err := l.eng.GetPayload(ctx, *result.PayloadID)
	if err != nil {
		return nil, fmt.Errorf("getPayload: %w", err)
	}

	return payloadToBlock(payload)
}

// emptyBlock synthesizes a locally produced block with no transactions,
// used when the engine is unreachable (spec section 4.8: "on engine
// disconnect the tick produces an empty block locally").
func (l *Loop) emptyBlock() *seqtypes.Block {
	header := &seqtypes.Header{
		Number:     l.nextHeight,
		ParentHash: l.parentHash,
		Timestamp:  uint64(time.Now().Unix()),
		GasLimit:   l.cfg.BlockGasLimit,
		Coinbase:   l.cfg.Coinbase,
	}
	return &seqtypes.Block{Header: header}
}

// flush builds an ExecuteTx from the accumulated batch and hands it to
// the L1 client (spec section 4.8 step 6). Witness generation is out of
// scope per spec section 9; the degenerate empty witness is used until a
// stateless-execution prover is wired in.
func (l *Loop) flush(ctx context.Context) error {
	flushesTotal.Inc(1)
	batchRecord := l.batcher.Flush(uint64(time.Now().Unix()))
	_, raw, err := l.executetx.Build(ctx, batchRecord, seqtypes.EmptyWitness())
	if err != nil {
		return fmt.Errorf("build executetx: %w", err)
	}
	hash, err := l.l1.SubmitRaw(ctx, raw)
	if err != nil {
		return fmt.Errorf("submit executetx: %w", err)
	}
	batchRecord.L1TxHash = hash
	batchRecord.Submitted = true
	log.Info("sequencer: submitted batch", "blocks", len(batchRecord.Blocks), "l1Hash", hash)
	return nil
}

func payloadToBlock(p engine.ExecutionPayload) (*seqtypes.Block, error) {
	txs := make([]*seqtypes.Transaction, len(p.Transactions))
	for i, raw := range p.Transactions {
		tx, err := seqtypes.ParseTransaction(raw)
		if err != nil {
			return nil, fmt.Errorf("parse payload tx %d: %w", i, err)
		}
		txs[i] = tx
	}

	var bloom [256]byte
	copy(bloom[:], p.LogsBloom)

	header := &seqtypes.Header{
		Number:       uint64(p.BlockNumber),
		ParentHash:   p.ParentHash,
		Timestamp:    uint64(p.Timestamp),
		GasUsed:      uint64(p.GasUsed),
		GasLimit:     uint64(p.GasLimit),
		StateRoot:    p.StateRoot,
		ReceiptsRoot: p.ReceiptsRoot,
		LogsBloom:    bloom,
		Coinbase:     p.FeeRecipient,
	}
	return &seqtypes.Block{Header: header, Transactions: txs}, nil
}

// ForkChoiceUpdateOnly issues a plain (no payload build) forkchoice
// notification, which keeps the engine client's own view synchronized
// without requesting a build. Tick does not call it.
func (l *Loop) ForkChoiceUpdateOnly(ctx context.Context) error {
	snap := l.fc.Snapshot()
	_, err := l.eng.ForkchoiceUpdate(ctx, engine.ForkchoiceState{
		HeadBlockHash:      snap.Unsafe.Hash,
		SafeBlockHash:      snap.Safe.Hash,
		FinalizedBlockHash: snap.Finalized.Hash,
	}, nil)
	return err
}
