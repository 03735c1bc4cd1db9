package seqtypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ExecuteTx is the typed-envelope (wire type 0x05) transaction that carries
// a batch plus the witness needed to execute it statelessly on L1, per
// spec sections 3 and 4.10.
type ExecuteTx struct {
	ChainID   *big.Int
	Nonce     uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
	Gas       uint64
	To        *common.Address `rlp:"nil"`
	Value     *big.Int
	Data      []byte

	PreStateCommitment common.Hash
	Witness             []byte
	WitnessSize         uint64
	WithdrawalsSize      uint64

	Coinbase    common.Address
	BlockNumber uint64
	Timestamp   uint64

	BlobHashes []common.Hash

	V, R, S *big.Int
}

func (tx *ExecuteTx) txType() TxType { return ExecuteTxType }

func (tx *ExecuteTx) copy() txData {
	cpy := &ExecuteTx{
		Nonce:           tx.Nonce,
		Gas:             tx.Gas,
		To:              copyAddr(tx.To),
		Data:            append([]byte(nil), tx.Data...),
		PreStateCommitment: tx.PreStateCommitment,
		Witness:         append([]byte(nil), tx.Witness...),
		WitnessSize:     tx.WitnessSize,
		WithdrawalsSize: tx.WithdrawalsSize,
		Coinbase:        tx.Coinbase,
		BlockNumber:     tx.BlockNumber,
		Timestamp:       tx.Timestamp,
		BlobHashes:      append([]common.Hash(nil), tx.BlobHashes...),
	}
	copyBigInt(&cpy.ChainID, tx.ChainID)
	copyBigInt(&cpy.GasTipCap, tx.GasTipCap)
	copyBigInt(&cpy.GasFeeCap, tx.GasFeeCap)
	copyBigInt(&cpy.Value, tx.Value)
	copyBigInt(&cpy.V, tx.V)
	copyBigInt(&cpy.R, tx.R)
	copyBigInt(&cpy.S, tx.S)
	return cpy
}

func (tx *ExecuteTx) chainID() *big.Int { return tx.ChainID }
func (tx *ExecuteTx) nonce() uint64     { return tx.Nonce }
func (tx *ExecuteTx) to() *common.Address { return tx.To }
func (tx *ExecuteTx) value() *big.Int   { return tx.Value }
func (tx *ExecuteTx) data() []byte      { return tx.Data }
func (tx *ExecuteTx) gas() uint64       { return tx.Gas }

// gasPrice returns the fee cap as the priority-ordering reference price;
// the mempool orders by this value directly and computes no effective tip.
func (tx *ExecuteTx) gasPrice() *big.Int { return tx.GasFeeCap }

func (tx *ExecuteTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }

func (tx *ExecuteTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.ChainID, tx.V, tx.R, tx.S = chainID, v, r, s
}
