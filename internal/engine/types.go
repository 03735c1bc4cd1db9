package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ForkchoiceState is the wire shape of the {head, safe, finalized} triple
// sent to engine_forkchoiceUpdatedV3 (spec section 4.6).
type ForkchoiceState struct {
	HeadBlockHash      common.Hash `json:"headBlockHash"`
	SafeBlockHash      common.Hash `json:"safeBlockHash"`
	FinalizedBlockHash common.Hash `json:"finalizedBlockHash"`
}

// PayloadAttributes carries the fields spec section 4.6 names for build
// requests: timestamp, randomness source, suggested coinbase, ordered
// injected transactions, and an optional beacon-root field.
type PayloadAttributes struct {
	Timestamp             hexutil.Uint64  `json:"timestamp"`
	Random                common.Hash     `json:"prevRandao"`
	SuggestedFeeRecipient common.Address  `json:"suggestedFeeRecipient"`
	Transactions          []hexutil.Bytes `json:"transactions,omitempty"`
	ParentBeaconBlockRoot  *common.Hash   `json:"parentBeaconBlockRoot,omitempty"`
}

// PayloadID identifies a payload build job in progress on the execution
// client. The engine API wire-encodes it as a "0x"-prefixed hex string
// (e.g. "payloadId":"0xa247243752eb10b4"), not the JSON number array
// encoding/json would otherwise give a byte array, so it needs its own
// text (un)marshalers — mirroring go-ethereum's own
// beacon/engine.PayloadID.
type PayloadID [8]byte

// MarshalText implements encoding.TextMarshaler.
func (p PayloadID) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(p[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PayloadID) UnmarshalText(text []byte) error {
	decoded, err := hexutil.Decode(string(text))
	if err != nil {
		return err
	}
	if len(decoded) != len(p) {
		return fmt.Errorf("invalid payload id %q: want %d bytes, have %d", text, len(p), len(decoded))
	}
	copy(p[:], decoded)
	return nil
}

// String renders the payload id the same way it appears on the wire.
func (p PayloadID) String() string {
	enc, _ := p.MarshalText()
	return string(enc)
}

// PayloadStatusValue is one of {VALID, INVALID, SYNCING, ACCEPTED}, per
// spec section 4.6.
type PayloadStatusValue string

const (
	StatusValid    PayloadStatusValue = "VALID"
	StatusInvalid  PayloadStatusValue = "INVALID"
	StatusSyncing  PayloadStatusValue = "SYNCING"
	StatusAccepted PayloadStatusValue = "ACCEPTED"
)

// PayloadStatus is the response envelope returned by all three engine
// operations.
type PayloadStatus struct {
	Status          PayloadStatusValue `json:"status"`
	LatestValidHash *common.Hash       `json:"latestValidHash"`
	ValidationError *string            `json:"validationError"`
}

// ForkchoiceUpdatedResult is the response shape of
// engine_forkchoiceUpdatedV3.
type ForkchoiceUpdatedResult struct {
	PayloadStatus PayloadStatus `json:"payloadStatus"`
	PayloadID     *PayloadID    `json:"payloadId"`
}

// ExecutionPayload is the block the execution client assembled, in the
// Engine API's wire shape (spec section 4.6 / 6).
type ExecutionPayload struct {
	ParentHash    common.Hash     `json:"parentHash"`
	FeeRecipient  common.Address  `json:"feeRecipient"`
	StateRoot     common.Hash     `json:"stateRoot"`
	ReceiptsRoot  common.Hash     `json:"receiptsRoot"`
	LogsBloom     hexutil.Bytes   `json:"logsBloom"`
	PrevRandao    common.Hash     `json:"prevRandao"`
	BlockNumber   hexutil.Uint64  `json:"blockNumber"`
	GasLimit      hexutil.Uint64  `json:"gasLimit"`
	GasUsed       hexutil.Uint64  `json:"gasUsed"`
	Timestamp     hexutil.Uint64  `json:"timestamp"`
	ExtraData     hexutil.Bytes   `json:"extraData"`
	BaseFeePerGas *hexutil.Big    `json:"baseFeePerGas"`
	BlockHash     common.Hash     `json:"blockHash"`
	Transactions  []hexutil.Bytes `json:"transactions"`
}

// GetPayloadResponse is the response envelope of engine_getPayloadV3.
type GetPayloadResponse struct {
	ExecutionPayload ExecutionPayload `json:"executionPayload"`
}
