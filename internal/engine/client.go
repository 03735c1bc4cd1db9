// Package engine is the authenticated client for the execution client's
// payload-building protocol (spec section 4.6): fork-choice updates,
// payload retrieval, and payload submission, all bearer-token
// authenticated per the Engine API's JWT scheme. Method names and request
// shapes mirror engine_forkchoiceUpdatedV3/engine_getPayloadV3/
// engine_newPayloadV3, following the calling convention the teacher and
// the wider pack use for engine-API JSON-RPC (CallContext with bounded
// deadlines, JSON-RPC error objects reclassified per spec section 7).
package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	methodForkchoiceUpdated = "engine_forkchoiceUpdatedV3"
	methodGetPayload        = "engine_getPayloadV3"
	methodNewPayload        = "engine_newPayloadV3"

	// defaultTimeout bounds every engine call; the sequencing loop aborts
	// the current tick on expiry and retries next tick (spec section 5).
	defaultTimeout = 2 * time.Second
)

// Client is the authenticated engine-API client.
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
}

// Dial connects to the execution client's authenticated engine endpoint,
// installing a JWT-minting transport derived from secret.
func Dial(ctx context.Context, url string, secret []byte) (*Client, error) {
	httpClient := &http.Client{Transport: newAuthTransport(nil, secret)}
	rpcClient, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, classifyErr(err)
	}
	return &Client{rpc: rpcClient, timeout: defaultTimeout}, nil
}

// ForkchoiceUpdate issues engine_forkchoiceUpdatedV3. attrs may be nil for
// a plain fork-choice notification with no payload build requested.
func (c *Client) ForkchoiceUpdate(ctx context.Context, state ForkchoiceState, attrs *PayloadAttributes) (ForkchoiceUpdatedResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result ForkchoiceUpdatedResult
	err := c.rpc.CallContext(ctx, &result, methodForkchoiceUpdated, state, attrs)
	if err != nil {
		return ForkchoiceUpdatedResult{}, classifyErr(err)
	}
	if result.PayloadStatus.Status == StatusInvalid && result.PayloadStatus.ValidationError != nil {
		log.Error("engine: forkchoiceUpdated returned INVALID", "validationError", *result.PayloadStatus.ValidationError)
	}
	return result, nil
}

// GetPayload retrieves the assembled payload for a previously requested
// build job.
func (c *Client) GetPayload(ctx context.Context, id PayloadID) (ExecutionPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result GetPayloadResponse
	if err := c.rpc.CallContext(ctx, &result, methodGetPayload, id); err != nil {
		return ExecutionPayload{}, classifyErr(err)
	}
	return result.ExecutionPayload, nil
}

// NewPayload submits a payload for validation/import.
func (c *Client) NewPayload(ctx context.Context, payload ExecutionPayload) (PayloadStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result PayloadStatus
	if err := c.rpc.CallContext(ctx, &result, methodNewPayload, payload); err != nil {
		return PayloadStatus{}, classifyErr(err)
	}
	if result.Status == StatusInvalid && result.ValidationError != nil {
		log.Error("engine: newPayload returned INVALID", "validationError", *result.ValidationError)
	}
	return result, nil
}

// Close releases the underlying transport.
func (c *Client) Close() {
	c.rpc.Close()
}
