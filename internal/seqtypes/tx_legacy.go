package seqtypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LegacyTx is the pre-EIP-2718 transaction form described in spec section 3:
// nonce, gas_price, gas_limit, optional recipient, value, data, signature.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

func (tx *LegacyTx) txType() TxType { return LegacyTxType }

func (tx *LegacyTx) copy() txData {
	cpy := &LegacyTx{
		Nonce: tx.Nonce,
		To:    copyAddr(tx.To),
		Data:  append([]byte(nil), tx.Data...),
		Gas:   tx.Gas,
	}
	copyBigInt(&cpy.GasPrice, tx.GasPrice)
	copyBigInt(&cpy.Value, tx.Value)
	copyBigInt(&cpy.V, tx.V)
	copyBigInt(&cpy.R, tx.R)
	copyBigInt(&cpy.S, tx.S)
	return cpy
}

func (tx *LegacyTx) chainID() *big.Int { return tx.chainIDFromV() }

// chainIDFromV derives the chain id implied by an EIP-155 V value, or nil
// for an unprotected (pre-155) legacy transaction.
func (tx *LegacyTx) chainIDFromV() *big.Int {
	if tx.V == nil || !isProtectedV(tx.V) {
		return nil
	}
	_, chainID := legacyRecoveryID(tx.V, true)
	return chainID
}

func (tx *LegacyTx) nonce() uint64       { return tx.Nonce }
func (tx *LegacyTx) to() *common.Address { return tx.To }
func (tx *LegacyTx) value() *big.Int     { return tx.Value }
func (tx *LegacyTx) data() []byte        { return tx.Data }
func (tx *LegacyTx) gas() uint64         { return tx.Gas }
func (tx *LegacyTx) gasPrice() *big.Int  { return tx.GasPrice }

func (tx *LegacyTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }

func (tx *LegacyTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.V, tx.R, tx.S = v, r, s
}

func copyAddr(a *common.Address) *common.Address {
	if a == nil {
		return nil
	}
	cpy := *a
	return &cpy
}

func copyBigInt(dst **big.Int, src *big.Int) {
	if src == nil {
		*dst = nil
		return
	}
	*dst = new(big.Int).Set(src)
}
