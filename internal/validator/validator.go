// Package validator runs the pre-admission checks spec section 4.4
// requires before a transaction may enter the mempool: signature
// recovery, nonce and balance checks against the state oracle, and a
// local fallback cache for when the oracle is unreachable. Structured the
// way the teacher's txpool validates transactions before indexing them,
// generalized to query an external execution client instead of an
// in-process state database.
package validator

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

// StateReader is the subset of the state oracle the validator needs. A
// narrow interface keeps the validator testable against a fake oracle
// without pulling in JSON-RPC transport.
type StateReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

type cacheEntry struct {
	nonce   uint64
	balance *big.Int
}

// Validator checks a parsed transaction against observed sender state
// before admission.
type Validator struct {
	oracle StateReader

	mu    sync.Mutex
	cache map[common.Address]cacheEntry
}

// New constructs a validator backed by oracle.
func New(oracle StateReader) *Validator {
	return &Validator{oracle: oracle, cache: make(map[common.Address]cacheEntry)}
}

// Validate runs the full admission check set from spec section 4.4 and
// returns one of ErrInvalidSignature, ErrInvalidNonce,
// ErrInsufficientBalance, ErrInvalidGasPrice, or ErrNoStateSource, or nil
// if tx may be admitted.
func (v *Validator) Validate(ctx context.Context, tx *seqtypes.Transaction) (common.Address, error) {
	sender, err := tx.Sender()
	if err != nil {
		return common.Address{}, seqtypes.ErrInvalidSignature
	}

	if tx.GasPrice() == nil || tx.GasPrice().Sign() == 0 {
		return sender, seqtypes.ErrInvalidGasPrice
	}

	nonce, balance, err := v.readState(ctx, sender)
	if err != nil {
		return sender, err
	}

	if tx.Nonce() < nonce {
		return sender, seqtypes.ErrInvalidNonce
	}

	if tx.Value() != nil && tx.Value().Sign() > 0 {
		cost := new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(tx.Gas()))
		cost.Add(cost, tx.Value())
		if balance.Cmp(cost) < 0 {
			return sender, seqtypes.ErrInsufficientBalance
		}
	}

	return sender, nil
}

// readState queries the oracle for sender's current nonce and balance,
// falling back to the last-known cached values when the oracle is
// unreachable (spec section 4.4). Returns ErrNoStateSource if neither is
// available.
func (v *Validator) readState(ctx context.Context, sender common.Address) (uint64, *big.Int, error) {
	nonce, nonceErr := v.oracle.NonceAt(ctx, sender, nil)
	balance, balanceErr := v.oracle.BalanceAt(ctx, sender, nil)

	if nonceErr == nil && balanceErr == nil {
		v.mu.Lock()
		v.cache[sender] = cacheEntry{nonce: nonce, balance: new(big.Int).Set(balance)}
		v.mu.Unlock()
		return nonce, balance, nil
	}

	log.Warn("validator: state oracle unreachable, falling back to local cache", "sender", sender, "nonceErr", nonceErr, "balanceErr", balanceErr)

	v.mu.Lock()
	entry, ok := v.cache[sender]
	v.mu.Unlock()
	if !ok {
		return 0, nil, fmt.Errorf("%w: sender %s", seqtypes.ErrNoStateSource, sender)
	}
	return entry.nonce, entry.balance, nil
}
