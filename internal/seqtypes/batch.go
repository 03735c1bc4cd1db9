package seqtypes

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/blockblaz/rollup-sequencer/internal/codec"
)

// Batch is an ordered, immutable snapshot of blocks the batch builder
// accumulated, plus a creation timestamp (spec section 3). After
// submission, an L1 transaction hash and L1 block reference are attached.
type Batch struct {
	Blocks    []*Block
	CreatedAt uint64

	L1TxHash   common.Hash
	L1Block    BlockRef
	Submitted  bool
}

// FirstBlock returns the batch's first block, or nil for an empty batch.
// The ExecuteTx builder derives coinbase/block-number/timestamp fields
// from it (spec section 4.10).
func (b *Batch) FirstBlock() *Block {
	if len(b.Blocks) == 0 {
		return nil
	}
	return b.Blocks[0]
}

// TxCount returns the total number of L2 transactions carried by the
// batch, across all its blocks.
func (b *Batch) TxCount() int {
	n := 0
	for _, blk := range b.Blocks {
		n += len(blk.Transactions)
	}
	return n
}

// rlpBlock and rlpBatch are the on-wire shapes for batch calldata (spec
// section 4.12: the ExecuteTx builder's data field, and what L1
// derivation parses back out). Transactions are carried pre-serialized
// since Transaction itself caches unexported sender/hash state that RLP
// cannot round-trip directly.
type rlpBlock struct {
	Header          *Header
	RawTransactions [][]byte
}

type rlpBatch struct {
	Blocks    []rlpBlock
	CreatedAt uint64
}

// Encode serializes the batch's blocks and creation timestamp for
// carriage as an ExecuteTx's data field.
func (b *Batch) Encode() ([]byte, error) {
	rb := rlpBatch{CreatedAt: b.CreatedAt}
	for _, blk := range b.Blocks {
		raws := make([][]byte, len(blk.Transactions))
		for i, tx := range blk.Transactions {
			raw, err := Serialize(tx)
			if err != nil {
				return nil, err
			}
			raws[i] = raw
		}
		rb.Blocks = append(rb.Blocks, rlpBlock{Header: blk.Header, RawTransactions: raws})
	}
	return codec.EncodeToBytes(rb)
}

// DecodeBatch parses batch calldata back into its blocks, per spec
// section 4.12 step 3.
func DecodeBatch(data []byte) (*Batch, error) {
	var rb rlpBatch
	if err := codec.DecodeBytes(data, &rb); err != nil {
		return nil, err
	}
	batch := &Batch{CreatedAt: rb.CreatedAt}
	for _, rblk := range rb.Blocks {
		txs := make([]*Transaction, len(rblk.RawTransactions))
		for i, raw := range rblk.RawTransactions {
			tx, err := ParseTransaction(raw)
			if err != nil {
				return nil, err
			}
			txs[i] = tx
		}
		batch.Blocks = append(batch.Blocks, &Block{Header: rblk.Header, Transactions: txs})
	}
	return batch, nil
}
