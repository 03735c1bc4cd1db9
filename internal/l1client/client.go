// Package l1client submits and polls for signed L1 transactions, per spec
// section 4.11. It wraps go-ethereum's ethclient.Client for the standard
// reads (block number, receipts, block bodies) and drops to its
// underlying rpc.Client for the two raw-bytes submission methods the
// typed ethclient API doesn't expose, following the calling convention of
// the teacher's ethclient/ethclient_rollup.go (a thin method set layered
// directly on the embedded rpc client).
package l1client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultPollInterval bounds how often WaitForInclusion re-polls for a
// receipt (spec section 4.11: "polls with bounded interval").
const DefaultPollInterval = 2 * time.Second

// Client is the L1 JSON-RPC client.
type Client struct {
	ec           *ethclient.Client
	pollInterval time.Duration
}

// Dial connects to the L1 endpoint. The default configuration is
// unauthenticated (spec section 6).
func Dial(ctx context.Context, url string) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("l1client: dial: %w", err)
	}
	return &Client{ec: ec, pollInterval: DefaultPollInterval}, nil
}

// SubmitRaw submits a raw signed transaction via eth_sendRawTransaction.
func (c *Client) SubmitRaw(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	if err := c.ec.Client().CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, fmt.Errorf("l1client: eth_sendRawTransaction: %w", err)
	}
	return hash, nil
}

// ConditionalOptions carries the inclusive ceiling on inclusion block
// number a conditional submission bounds the mis-execution window with
// (spec section 4.11).
type ConditionalOptions struct {
	BlockNumberMax *uint64
}

// SubmitConditional submits raw via eth_sendRawTransactionConditional,
// modeled on op-espresso-integration's conditional-submission client
// (see DESIGN.md).
func (c *Client) SubmitConditional(ctx context.Context, raw []byte, opts ConditionalOptions) (common.Hash, error) {
	cond := make(map[string]interface{})
	if opts.BlockNumberMax != nil {
		cond["blockNumberMax"] = hexutil.Uint64(*opts.BlockNumberMax)
	}
	var hash common.Hash
	if err := c.ec.Client().CallContext(ctx, &hash, "eth_sendRawTransactionConditional", hexutil.Encode(raw), cond); err != nil {
		return common.Hash{}, fmt.Errorf("l1client: eth_sendRawTransactionConditional: %w", err)
	}
	return hash, nil
}

// TxReceipt returns the receipt for hash, or nil if it is not yet known
// (spec section 4.11: "missing receipts are treated as not-yet-included,
// not as failures").
func (c *Client) TxReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.ec.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("l1client: tx receipt: %w", err)
	}
	return receipt, nil
}

// LatestBlock returns the current L1 chain height.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := c.ec.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("l1client: block number: %w", err)
	}
	return n, nil
}

// NonceAt returns account's L1 transaction count, used by the ExecuteTx
// builder to determine the sequencer account's next L1 nonce (spec
// section 4.10: "queries L1 for the sequencer account's nonce").
func (c *Client) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	n, err := c.ec.NonceAt(ctx, account, blockNumber)
	if err != nil {
		return 0, fmt.Errorf("l1client: nonce at: %w", err)
	}
	return n, nil
}

// GetBlock fetches the block at height n, optionally with its full
// transaction bodies (spec section 4.11).
func (c *Client) GetBlock(ctx context.Context, n uint64, withTxs bool) (*types.Block, error) {
	number := new(big.Int).SetUint64(n)
	if withTxs {
		blk, err := c.ec.BlockByNumber(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("l1client: block by number: %w", err)
		}
		return blk, nil
	}
	header, err := c.ec.HeaderByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("l1client: header by number: %w", err)
	}
	return types.NewBlockWithHeader(header), nil
}

// WaitForInclusion polls until hash has at least confirmations
// confirmations, or timeout elapses (spec section 4.11).
func (c *Client) WaitForInclusion(ctx context.Context, hash common.Hash, confirmations uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.TxReceipt(ctx, hash)
		if err != nil {
			log.Warn("l1client: transient error polling for receipt", "hash", hash, "err", err)
		} else if receipt != nil {
			current, err := c.LatestBlock(ctx)
			if err == nil {
				included := receipt.BlockNumber.Uint64()
				if current >= included && current-included+1 >= confirmations {
					return nil
				}
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("l1client: wait for inclusion of %s: timed out", hash)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.ec.Close()
}
