package seqtypes

import (
	"errors"

	"github.com/blockblaz/rollup-sequencer/internal/codec"
)

// Validation error kinds (spec section 7, Validation class). These are
// returned to the admission caller and never cause a state change.
var (
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidNonce       = errors.New("invalid nonce")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidGasPrice    = errors.New("invalid gas price")
	ErrInvalidRLP         = codec.ErrInvalidRLP
	ErrDuplicateHash      = errors.New("duplicate transaction hash")

	// ErrNoStateSource is surfaced by the validator when neither the oracle
	// nor the local fallback cache can answer a query.
	ErrNoStateSource = errors.New("no state source available")
)
