package sequencer

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/blockblaz/rollup-sequencer/internal/forkchoice"
	"github.com/blockblaz/rollup-sequencer/internal/mempool"
	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
	"github.com/blockblaz/rollup-sequencer/internal/validator"
)

var (
	admittedCounter = metrics.NewRegisteredCounter("admission/admitted", nil)
	rejectedCounter = metrics.NewRegisteredCounter("admission/rejected", nil)
)

// Receipt is the small, implementation-defined structural receipt the
// spec's tx_receipt operation returns (spec sections 4, 6: "a small
// account/receipt cache whose concrete format is implementation-
// defined"). It is never exchanged across process boundaries.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	BlockHash   common.Hash
}

// Orchestrator is the single entry point the overview table's
// "Fork-choice orchestrator" row describes: it fronts admission
// (submit_raw, submit_conditional, tx_receipt, block_number) for the RPC
// layer and owns the periodic Tick the sequencing-loop worker drives.
type Orchestrator struct {
	pool      *mempool.Pool
	validator *validator.Validator
	fc        *forkchoice.ForkChoice
	loop      *Loop

	mu       sync.Mutex
	receipts map[common.Hash]Receipt
}

// NewOrchestrator constructs an orchestrator wiring the mempool,
// validator, fork-choice tracker and sequencing loop together.
func NewOrchestrator(pool *mempool.Pool, v *validator.Validator, fc *forkchoice.ForkChoice, loop *Loop) *Orchestrator {
	return &Orchestrator{
		pool:      pool,
		validator: v,
		fc:        fc,
		loop:      loop,
		receipts:  make(map[common.Hash]Receipt),
	}
}

// SubmitRaw decodes, validates and admits raw as a legacy or ExecuteTx
// transaction, per spec section 6's submit_raw: "decodes a legacy or
// type-0x05 transaction, admits it, returns its hash."
func (o *Orchestrator) SubmitRaw(ctx context.Context, raw []byte) (common.Hash, error) {
	return o.submit(ctx, raw, nil)
}

// SubmitConditional is submit_raw plus an attached conditional predicate
// (spec section 6).
func (o *Orchestrator) SubmitConditional(ctx context.Context, raw []byte, predicate *seqtypes.ConditionalPredicate) (common.Hash, error) {
	return o.submit(ctx, raw, predicate)
}

func (o *Orchestrator) submit(ctx context.Context, raw []byte, predicate *seqtypes.ConditionalPredicate) (common.Hash, error) {
	tx, err := seqtypes.ParseTransaction(raw)
	if err != nil {
		rejectedCounter.Inc(1)
		return common.Hash{}, err
	}

	if _, err := o.validator.Validate(ctx, tx); err != nil {
		rejectedCounter.Inc(1)
		return common.Hash{}, err
	}

	result, err := o.pool.Insert(tx, predicate)
	if err != nil {
		rejectedCounter.Inc(1)
		return common.Hash{}, err
	}

	switch result {
	case mempool.Inserted:
		admittedCounter.Inc(1)
		return tx.Hash(), nil
	case mempool.DuplicateHash:
		rejectedCounter.Inc(1)
		return common.Hash{}, mempool.ErrDuplicateHash
	case mempool.Full:
		rejectedCounter.Inc(1)
		return common.Hash{}, mempool.ErrFull
	default:
		return common.Hash{}, nil
	}
}

// TxReceipt returns the structural receipt recorded when hash's
// transaction was included in a block, or nil if none is known (spec
// section 6).
func (o *Orchestrator) TxReceipt(hash common.Hash) *Receipt {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.receipts[hash]
	if !ok {
		return nil
	}
	out := r
	return &out
}

// BlockNumber returns the current unsafe head height (spec section 6).
func (o *Orchestrator) BlockNumber() uint64 {
	return o.fc.Snapshot().Unsafe.Number
}

// Contains reports whether hash is still pending in the mempool.
func (o *Orchestrator) Contains(hash common.Hash) bool {
	return o.pool.Contains(hash)
}

// Tick runs one sequencing-loop iteration and records a structural
// receipt for every transaction the resulting block included.
func (o *Orchestrator) Tick(ctx context.Context) error {
	block, err := o.loop.Tick(ctx)
	if err != nil {
		return err
	}
	if block == nil || block.Empty() {
		return nil
	}

	o.mu.Lock()
	for _, hash := range block.TxHashes() {
		o.receipts[hash] = Receipt{TxHash: hash, BlockNumber: block.Number(), BlockHash: block.Hash()}
	}
	o.mu.Unlock()
	return nil
}
