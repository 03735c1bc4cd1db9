// Package mempool implements the indexed priority pool described in spec
// section 4.3: at-most-once admission by hash, priority-ordered
// (non-destructive) selection with conditional-predicate and gas-budget
// filtering, write-ahead logging, and per-sender nonce-gap handling. The
// internal synchronization mirrors the teacher's
// core/txpool/tx_vectorfee_pool.go (a single lock guarding maps indexed
// by hash and by sender), generalized with the priority ordering and WAL
// the spec requires.
package mempool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

// Entry is a single admitted mempool record (spec section 3): the parsed
// transaction, its recovered sender, a priority ordering key, the
// monotonic admission sequence used to break priority ties, and an
// optional conditional-inclusion predicate. Priority is carried as a
// uint256, the same conversion the teacher's tx_vectorfee_pool.go applies
// to a transaction's fee fields at the pool boundary.
type Entry struct {
	Tx        *seqtypes.Transaction
	Hash      common.Hash
	Sender    common.Address
	Priority  *uint256.Int
	Sequence  uint64 // monotonic admission counter, used as the "received-at" tiebreak
	Predicate *seqtypes.ConditionalPredicate
}

func (e *Entry) less(other *Entry) bool {
	if cmp := e.Priority.Cmp(other.Priority); cmp != 0 {
		return cmp > 0 // priority descending
	}
	return e.Sequence < other.Sequence // received-at ascending tiebreak
}
