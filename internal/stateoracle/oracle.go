// Package stateoracle is the read-only, request/response client the
// validator and ExecuteTx builder use to query the execution client's
// standard read protocol, per spec section 4.5. It follows the calling
// convention of the teacher's ethclient/ethclient_rollup.go (rpc.Client,
// hexutil-decoded results, context deadlines on every call).
package stateoracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

// DefaultTimeout bounds every oracle call per spec section 4.5 ("timeouts
// are bounded").
const DefaultTimeout = 3 * time.Second

// Oracle is a read-through client over the execution client's JSON-RPC
// surface.
type Oracle struct {
	c       *rpc.Client
	timeout time.Duration
}

// New wraps an already-dialed RPC client.
func New(c *rpc.Client) *Oracle {
	return &Oracle{c: c, timeout: DefaultTimeout}
}

func (o *Oracle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}

// BalanceAt returns the wei balance of account at the given block number
// (nil means latest).
func (o *Oracle) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	var result hexutil.Big
	if err := o.c.CallContext(ctx, &result, "eth_getBalance", account, toBlockNumArg(blockNumber)); err != nil {
		return nil, fmt.Errorf("stateoracle: eth_getBalance: %w", err)
	}
	return (*big.Int)(&result), nil
}

// NonceAt returns the next nonce the oracle has observed for account.
func (o *Oracle) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	var result hexutil.Uint64
	if err := o.c.CallContext(ctx, &result, "eth_getTransactionCount", account, toBlockNumArg(blockNumber)); err != nil {
		return 0, fmt.Errorf("stateoracle: eth_getTransactionCount: %w", err)
	}
	return uint64(result), nil
}

// CodeAt returns the deployed code at account.
func (o *Oracle) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	var result hexutil.Bytes
	if err := o.c.CallContext(ctx, &result, "eth_getCode", account, toBlockNumArg(blockNumber)); err != nil {
		return nil, fmt.Errorf("stateoracle: eth_getCode: %w", err)
	}
	return result, nil
}

// StorageAt returns the value stored at key within account's storage.
func (o *Oracle) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	var result hexutil.Bytes
	if err := o.c.CallContext(ctx, &result, "eth_getStorageAt", account, key, toBlockNumArg(blockNumber)); err != nil {
		return nil, fmt.Errorf("stateoracle: eth_getStorageAt: %w", err)
	}
	return result, nil
}

// rpcHeader is the subset of eth_getBlockByNumber's response this oracle
// cares about — enough to derive a parent-state descriptor for the
// ExecuteTx builder's pre-state commitment (spec section 4.10).
type rpcHeader struct {
	Number     hexutil.Uint64 `json:"number"`
	Hash       common.Hash    `json:"hash"`
	ParentHash common.Hash    `json:"parentHash"`
	StateRoot  common.Hash    `json:"stateRoot"`
	Timestamp  hexutil.Uint64 `json:"timestamp"`
}

// BlockRefByNumber returns the header identity fields for the block at
// number (nil for latest).
func (o *Oracle) BlockRefByNumber(ctx context.Context, number *big.Int) (seqtypes.BlockRef, common.Hash, uint64, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	var h rpcHeader
	if err := o.c.CallContext(ctx, &h, "eth_getBlockByNumber", toBlockNumArg(number), false); err != nil {
		return seqtypes.BlockRef{}, common.Hash{}, 0, fmt.Errorf("stateoracle: eth_getBlockByNumber: %w", err)
	}
	ref := seqtypes.BlockRef{Number: uint64(h.Number), Hash: h.Hash}
	return ref, h.StateRoot, uint64(h.Timestamp), nil
}

func toBlockNumArg(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	pending := big.NewInt(-1)
	if number.Cmp(pending) == 0 {
		return "pending"
	}
	finalized := big.NewInt(int64(rpc.FinalizedBlockNumber))
	if number.Cmp(finalized) == 0 {
		return "finalized"
	}
	safe := big.NewInt(int64(rpc.SafeBlockNumber))
	if number.Cmp(safe) == 0 {
		return "safe"
	}
	return hexutil.EncodeBig(number)
}
