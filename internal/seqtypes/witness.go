package seqtypes

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/blockblaz/rollup-sequencer/internal/codec"
)

// HeaderRef is the minimal historical header record a witness carries for
// BLOCKHASH-style lookups during stateless re-execution.
type HeaderRef struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  uint64
}

// CodePair maps a code hash to its bytecode.
type CodePair struct {
	Hash common.Hash
	Code []byte
}

// StatePair maps a trie node hash to its encoded node bytes.
type StatePair struct {
	Hash common.Hash
	Node []byte
}

// Witness is the opaque-to-the-core bundle of prior state, code, and
// headers required for stateless re-execution of a batch (spec section
// 3). Per the design notes (spec section 9) witness generation itself is
// out of scope; the core treats a provided witness — including the
// degenerate all-empty witness — as an opaque blob it serializes and
// carries through the ExecuteTx envelope.
//
// RLP encoding is the triple (headers-list, code-pairs-list,
// state-pairs-list) described in spec section 3.
type Witness struct {
	Headers []*HeaderRef
	Codes   []CodePair
	State   []StatePair
}

// EmptyWitness returns the unbounded empty witness, a valid degenerate
// case per spec section 4.10.
func EmptyWitness() *Witness {
	return &Witness{}
}

// Encode serializes the witness as the RLP triple described in spec
// section 3.
func (w *Witness) Encode() ([]byte, error) {
	return codec.EncodeToBytes(w)
}

// DecodeWitness parses a witness blob produced by Encode.
func DecodeWitness(data []byte) (*Witness, error) {
	if len(data) == 0 {
		return EmptyWitness(), nil
	}
	var w Witness
	if err := codec.DecodeBytes(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
