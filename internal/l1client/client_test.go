package l1client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// fakeL1Server is a minimal JSON-RPC 2.0 responder exercising the handful
// of methods l1client.Client calls, following the teacher's own style of
// testing RPC-backed clients against an httptest server rather than a
// live node.
func fakeL1Server(t *testing.T, txHash common.Hash, receiptBlock uint64, latest uint64) *httptest.Server {
	header := map[string]interface{}{
		"number":           hexutil.EncodeUint64(latest),
		"hash":             common.HexToHash("0xaaaa").Hex(),
		"parentHash":       common.HexToHash("0xbbbb").Hex(),
		"nonce":            "0x0000000000000000",
		"mixHash":          common.Hash{}.Hex(),
		"sha3Uncles":       common.Hash{}.Hex(),
		"logsBloom":        "0x" + fmt.Sprintf("%0512x", 0),
		"transactionsRoot": common.Hash{}.Hex(),
		"stateRoot":        common.Hash{}.Hex(),
		"receiptsRoot":     common.Hash{}.Hex(),
		"miner":            common.Address{}.Hex(),
		"difficulty":       "0x0",
		"extraData":        "0x",
		"gasLimit":         "0x1c9c380",
		"gasUsed":          "0x0",
		"timestamp":        "0x0",
		"baseFeePerGas":    "0x1",
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case "eth_sendRawTransaction", "eth_sendRawTransactionConditional":
			resp.Result = txHash.Hex()
		case "eth_getTransactionReceipt":
			resp.Result = map[string]interface{}{
				"transactionHash":   txHash.Hex(),
				"blockHash":         common.HexToHash("0xaaaa").Hex(),
				"blockNumber":       hexutil.EncodeUint64(receiptBlock),
				"transactionIndex":  "0x0",
				"from":              common.Address{}.Hex(),
				"cumulativeGasUsed": "0x5208",
				"gasUsed":           "0x5208",
				"contractAddress":   nil,
				"logs":              []interface{}{},
				"logsBloom":         "0x" + fmt.Sprintf("%0512x", 0),
				"status":            "0x1",
			}
		case "eth_blockNumber":
			resp.Result = hexutil.EncodeUint64(latest)
		case "eth_getBlockByNumber":
			resp.Result = header
		case "eth_chainId":
			resp.Result = "0x1"
		default:
			resp.Error = &rpcErrorBody{Code: -32601, Message: "method not found: " + req.Method}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestSubmitRaw(t *testing.T) {
	want := common.HexToHash("0x1234")
	srv := fakeL1Server(t, want, 10, 20)
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.SubmitRaw(context.Background(), []byte{0x01, 0x02})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSubmitConditional(t *testing.T) {
	want := common.HexToHash("0x5678")
	srv := fakeL1Server(t, want, 10, 20)
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	max := uint64(50)
	got, err := c.SubmitConditional(context.Background(), []byte{0x01}, ConditionalOptions{BlockNumberMax: &max})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTxReceiptFound(t *testing.T) {
	hash := common.HexToHash("0xabcd")
	srv := fakeL1Server(t, hash, 15, 20)
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	receipt, err := c.TxReceipt(context.Background(), hash)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, uint64(15), receipt.BlockNumber.Uint64())
}

func TestLatestBlock(t *testing.T) {
	srv := fakeL1Server(t, common.Hash{}, 0, 42)
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	n, err := c.LatestBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), n)
}

func TestGetBlockWithoutTxs(t *testing.T) {
	srv := fakeL1Server(t, common.Hash{}, 0, 7)
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	blk, err := c.GetBlock(context.Background(), 7, false)
	require.NoError(t, err)
	require.Equal(t, uint64(7), blk.NumberU64())
}

func TestWaitForInclusionSucceedsOnceConfirmed(t *testing.T) {
	hash := common.HexToHash("0xdead")
	srv := fakeL1Server(t, hash, 10, 12)
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()
	c.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = c.WaitForInclusion(ctx, hash, 3, 500*time.Millisecond)
	require.NoError(t, err)
}

func TestWaitForInclusionTimesOutBeforeEnoughConfirmations(t *testing.T) {
	hash := common.HexToHash("0xfeed")
	srv := fakeL1Server(t, common.Hash{}, 10, 12)
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()
	c.pollInterval = 10 * time.Millisecond

	err = c.WaitForInclusion(context.Background(), hash, 5, 50*time.Millisecond)
	require.Error(t, err)
}
