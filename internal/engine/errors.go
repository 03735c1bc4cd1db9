package engine

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// EngineError wraps a JSON-RPC-style error object returned by the
// execution client (spec section 4.6: "Fails with EngineError carrying
// the returned code").
type EngineError struct {
	Code    int
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// ErrTransient classifies a connection failure the sequencing loop should
// treat as transient and degrade around (spec section 4.6/7).
var ErrTransient = errors.New("engine: transient connection failure")

// ErrInvalidPayload names the error kind for a peer-reported PayloadStatus
// INVALID. Client does not return it: ForkchoiceUpdate and NewPayload log
// the validation string and report INVALID through the returned status.
var ErrInvalidPayload = errors.New("engine: invalid payload")

// classifyErr maps a raw rpc error into EngineError (protocol) or
// ErrTransient (connection-level), per spec section 7's taxonomy.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &EngineError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
