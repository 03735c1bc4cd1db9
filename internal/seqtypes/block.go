package seqtypes

import (
	"github.com/ethereum/go-ethereum/common"
)

// Header carries the fields a Block's hash is derived from, per spec
// section 3. LogsBloom is a fixed 256-byte vector, matching the
// go-ethereum convention the teacher's header types follow.
type Header struct {
	Number       uint64
	ParentHash   common.Hash
	Timestamp    uint64
	GasUsed      uint64
	GasLimit     uint64
	StateRoot    common.Hash
	ReceiptsRoot common.Hash
	LogsBloom    [256]byte
	Coinbase     common.Address
}

// Hash derives a stable block identity from a stable serialization of the
// header fields, per spec section 3.
func (h *Header) Hash() common.Hash {
	return rlpHash([]interface{}{
		h.Number, h.ParentHash, h.Timestamp, h.GasUsed, h.GasLimit,
		h.StateRoot, h.ReceiptsRoot, h.LogsBloom, h.Coinbase,
	})
}

// Block is a sequenced L2 block: a header plus its ordered transaction
// list.
type Block struct {
	Header       *Header
	Transactions []*Transaction
}

func (b *Block) Number() uint64        { return b.Header.Number }
func (b *Block) Hash() common.Hash     { return b.Header.Hash() }
func (b *Block) ParentHash() common.Hash { return b.Header.ParentHash }
func (b *Block) Empty() bool           { return len(b.Transactions) == 0 }

// TxHashes returns the set of transaction hashes contained in the block,
// used by the sequencing loop to prune the mempool (spec section 4.8
// step 4) and by the orchestrator to record transaction receipts.
func (b *Block) TxHashes() []common.Hash {
	hashes := make([]common.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}
	return hashes
}

// BlockRef is a lightweight (number, hash) pointer used by fork-choice and
// derivation bookkeeping without requiring the full block body in memory.
type BlockRef struct {
	Number uint64
	Hash   common.Hash
}
