package seqtypes

import (
	"fmt"

	"github.com/blockblaz/rollup-sequencer/internal/codec"
)

// ParseTransaction decodes a raw transaction envelope into its variant,
// per spec section 4.1: legacy (no type byte, first byte >= 0xc0) or type
// 0x05 (ExecuteTx). Structural failures are reported as ErrInvalidRLP and
// never panic.
func ParseTransaction(raw []byte) (*Transaction, error) {
	typ, body, err := codec.SplitEnvelope(raw)
	if err != nil {
		return nil, err
	}
	switch typ {
	case codec.LegacyEnvelope:
		var inner LegacyTx
		if err := codec.DecodeBytes(body, &inner); err != nil {
			return nil, err
		}
		return NewTx(&inner), nil
	case codec.EnvelopeType(ExecuteTxType):
		var inner ExecuteTx
		if err := codec.DecodeBytes(body, &inner); err != nil {
			return nil, err
		}
		return NewTx(&inner), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized transaction type 0x%02x", codec.ErrInvalidRLP, byte(typ))
	}
}

// EncodeForCommitment RLP-encodes an arbitrary field list for use as the
// input to a commitment hash (e.g. the ExecuteTx builder's pre-state
// commitment). It is a thin pass-through to the codec package, exported
// here so callers outside seqtypes never need to import codec directly
// for one-off commitment encodings.
func EncodeForCommitment(fields []interface{}) ([]byte, error) {
	return codec.EncodeToBytes(fields)
}

// Serialize re-encodes a Transaction to its canonical wire form:
// type_byte || rlp(body) for ExecuteTx, or the bare rlp(body) for legacy.
func Serialize(tx *Transaction) ([]byte, error) {
	switch inner := tx.inner.(type) {
	case *LegacyTx:
		body, err := codec.EncodeToBytes(inner)
		if err != nil {
			return nil, err
		}
		return codec.JoinEnvelope(codec.LegacyEnvelope, body), nil
	case *ExecuteTx:
		body, err := codec.EncodeToBytes(inner)
		if err != nil {
			return nil, err
		}
		return codec.JoinEnvelope(codec.EnvelopeType(ExecuteTxType), body), nil
	default:
		return nil, fmt.Errorf("%w: unknown tx body %T", codec.ErrInvalidRLP, inner)
	}
}
