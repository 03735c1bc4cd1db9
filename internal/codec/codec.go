// Package codec implements the RLP primitives and typed-transaction
// envelope framing described in spec section 4.1. It is a thin,
// purpose-built layer over github.com/ethereum/go-ethereum/rlp — the same
// canonical-RLP implementation the teacher uses throughout
// (core/rawdb/accessors_chain_rollup.go, core/types/vector_fee.go) — so
// the sequencer gets the teacher's non-canonical-integer and
// trailing-byte rejection behavior for free rather than re-deriving it.
package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

// ErrInvalidRLP is returned for any structural decoding failure:
// truncated input, non-canonical integers, or trailing bytes past the
// declared list length. It never escapes as a panic (spec section 4.1).
var ErrInvalidRLP = errors.New("invalid rlp")

// EncodeToBytes canonically RLP-encodes x.
func EncodeToBytes(x interface{}) ([]byte, error) {
	b, err := rlp.EncodeToBytes(x)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRLP, err)
	}
	return b, nil
}

// DecodeBytes decodes data into out, rejecting any trailing bytes past
// the declared structure (go-ethereum/rlp.DecodeBytes already enforces
// this) and non-canonical integer encodings.
func DecodeBytes(data []byte, out interface{}) error {
	if err := rlp.DecodeBytes(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRLP, err)
	}
	return nil
}

// NewStream wraps an io.Reader for incremental, streaming RLP decode —
// used by the WAL replay path to read one length-prefixed record after
// another without buffering the whole file.
func NewStream(r io.Reader, maxSize uint64) *rlp.Stream {
	return rlp.NewStream(r, maxSize)
}

// EnvelopeType byte for a typed transaction, or the sentinel LegacyEnvelope
// when the first byte indicates a bare RLP list (legacy transaction).
type EnvelopeType byte

// LegacyEnvelope is not an actual wire byte; it signals "no type prefix".
const LegacyEnvelope EnvelopeType = 0xff

const legacyListPrefixMin = 0xc0

// SplitEnvelope inspects the first byte of a raw transaction to determine
// whether it is legacy (first byte >= 0xc0, an RLP list) or typed
// (type_byte || rlp(body)), per spec section 4.1. It returns the type and
// the remaining bytes to RLP-decode as the body.
func SplitEnvelope(raw []byte) (EnvelopeType, []byte, error) {
	if len(raw) == 0 {
		return 0, nil, fmt.Errorf("%w: empty transaction", ErrInvalidRLP)
	}
	if raw[0] >= legacyListPrefixMin {
		return LegacyEnvelope, raw, nil
	}
	if len(raw) < 2 {
		return 0, nil, fmt.Errorf("%w: truncated typed transaction", ErrInvalidRLP)
	}
	return EnvelopeType(raw[0]), raw[1:], nil
}

// JoinEnvelope reassembles the wire form: the type byte followed by the
// RLP-encoded body, or the bare body for a legacy transaction.
func JoinEnvelope(typ EnvelopeType, body []byte) []byte {
	if typ == LegacyEnvelope {
		return body
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(typ))
	out = append(out, body...)
	return out
}
