// Package executetx assembles the signed ExecuteTx that carries a batch
// to L1, per spec section 4.10. The pre-state commitment is a real hash
// derived from the state oracle's read of the parent L2 block (SPEC_FULL's
// resolution of the spec's open question), never a placeholder.
package executetx

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

// NonceSource supplies the sequencer account's current L1 nonce, per spec
// section 4.10 ("queries L1 for the sequencer account's nonce").
type NonceSource interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// StateCommitmentSource supplies the descriptor the pre-state commitment
// is computed from: the parent L2 block's state root, per SPEC_FULL's
// decision on the spec's open question.
type StateCommitmentSource interface {
	BlockRefByNumber(ctx context.Context, number *big.Int) (seqtypes.BlockRef, common.Hash, uint64, error)
}

// Config holds the static parameters the builder needs beyond the batch
// itself: the configured stateless-execution target, fee parameters, and
// the sequencer's signing key (spec section 4.10, gated on presence per
// SPEC_FULL's decision 3 on the legacy-path open question).
type Config struct {
	ChainID    *big.Int
	Target     *common.Address
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	SigningKey *ecdsa.PrivateKey
}

// Builder assembles signed ExecuteTx values from batches.
type Builder struct {
	cfg    Config
	nonces NonceSource
	state  StateCommitmentSource
}

// New constructs a Builder.
func New(cfg Config, nonces NonceSource, state StateCommitmentSource) *Builder {
	return &Builder{cfg: cfg, nonces: nonces, state: state}
}

// Build produces a signed ExecuteTx for batch. witness may be
// seqtypes.EmptyWitness() as a valid degenerate case (spec section 4.10).
func (b *Builder) Build(ctx context.Context, batch *seqtypes.Batch, witness *seqtypes.Witness) (*seqtypes.Transaction, []byte, error) {
	if b.cfg.SigningKey == nil {
		return nil, nil, fmt.Errorf("executetx: no sequencer signing key configured")
	}
	first := batch.FirstBlock()
	if first == nil {
		return nil, nil, fmt.Errorf("executetx: cannot build from an empty batch")
	}

	sequencerAddr := crypto.PubkeyToAddress(b.cfg.SigningKey.PublicKey)
	nonce, err := b.nonces.NonceAt(ctx, sequencerAddr, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("executetx: query sequencer nonce: %w", err)
	}

	preState, err := b.preStateCommitment(ctx)
	if err != nil {
		return nil, nil, err
	}

	data, err := batch.Encode()
	if err != nil {
		return nil, nil, fmt.Errorf("executetx: encode batch: %w", err)
	}

	encodedWitness, err := witness.Encode()
	if err != nil {
		return nil, nil, fmt.Errorf("executetx: encode witness: %w", err)
	}

	tx := &seqtypes.ExecuteTx{
		ChainID:            b.cfg.ChainID,
		Nonce:              nonce,
		GasTipCap:          b.cfg.GasTipCap,
		GasFeeCap:          b.cfg.GasFeeCap,
		Gas:                b.cfg.Gas,
		To:                 b.cfg.Target,
		Value:              big.NewInt(0),
		Data:               data,
		PreStateCommitment: preState,
		Witness:            encodedWitness,
		WitnessSize:        uint64(len(encodedWitness)),
		Coinbase:    first.Header.Coinbase,
		BlockNumber: first.Header.Number,
		Timestamp:   first.Header.Timestamp,
	}

	if err := seqtypes.SignExecuteTx(tx, b.cfg.SigningKey); err != nil {
		return nil, nil, fmt.Errorf("executetx: sign: %w", err)
	}

	wrapped := seqtypes.NewTx(tx)
	raw, err := seqtypes.Serialize(wrapped)
	if err != nil {
		return nil, nil, fmt.Errorf("executetx: serialize: %w", err)
	}
	return wrapped, raw, nil
}

// preStateCommitment computes keccak256(rlp(parent state descriptor)) from
// the state oracle's read of the current parent L2 block, per SPEC_FULL's
// resolution of the spec's open question on this field.
func (b *Builder) preStateCommitment(ctx context.Context) (common.Hash, error) {
	ref, stateRoot, timestamp, err := b.state.BlockRefByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("executetx: query parent state: %w", err)
	}
	descriptor := []interface{}{ref.Number, ref.Hash, stateRoot, timestamp}
	enc, err := seqtypes.EncodeForCommitment(descriptor)
	if err != nil {
		return common.Hash{}, fmt.Errorf("executetx: encode pre-state descriptor: %w", err)
	}
	return crypto.Keccak256Hash(enc), nil
}
