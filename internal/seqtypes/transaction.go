// Package seqtypes holds the core/types-style data model for the sequencer:
// the two recognized transaction variants (legacy and ExecuteTx), the
// witness container, blocks and batches, and the conditional-inclusion
// predicate. It plays the role the teacher's core/types package plays for
// go-ethereum itself, adapted to the rollup-sequencer's own wire formats.
package seqtypes

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType identifies which wire variant a Transaction carries.
type TxType byte

const (
	// LegacyTxType is not an on-wire type byte; legacy transactions have no
	// type prefix, the first encoded byte is the RLP list prefix (>= 0xc0).
	LegacyTxType TxType = 0
	// ExecuteTxType is the typed-envelope wire type for ExecuteTx, per
	// spec section 4.1: the outer wire form is (type_byte || rlp(body)).
	ExecuteTxType TxType = 0x05
)

// txData is implemented by each concrete transaction body (LegacyTx,
// ExecuteTx). It mirrors the shape of go-ethereum's core/types.TxData
// interface, trimmed to what the sequencer core needs.
type txData interface {
	txType() TxType
	copy() txData

	chainID() *big.Int
	nonce() uint64
	to() *common.Address
	value() *big.Int
	data() []byte
	gas() uint64
	gasPrice() *big.Int // effective fee-per-gas used for priority ordering

	rawSignatureValues() (v, r, s *big.Int)
	setSignatureValues(chainID, v, r, s *big.Int)
}

// Transaction is the parsed, sender-cached wrapper around a legacy or
// ExecuteTx body, analogous to go-ethereum's core/types.Transaction.
type Transaction struct {
	inner txData

	mu   sync.Mutex
	hash *common.Hash
	from *common.Address
}

// NewTx wraps a transaction body.
func NewTx(inner txData) *Transaction {
	return &Transaction{inner: inner}
}

func (tx *Transaction) Type() TxType        { return tx.inner.txType() }
func (tx *Transaction) ChainID() *big.Int   { return tx.inner.chainID() }
func (tx *Transaction) Nonce() uint64       { return tx.inner.nonce() }
func (tx *Transaction) To() *common.Address { return tx.inner.to() }
func (tx *Transaction) Value() *big.Int     { return tx.inner.value() }
func (tx *Transaction) Data() []byte        { return tx.inner.data() }
func (tx *Transaction) Gas() uint64         { return tx.inner.gas() }
func (tx *Transaction) GasPrice() *big.Int  { return tx.inner.gasPrice() }

// Hash returns the transaction identity: keccak256 of the signing digest
// for the transaction's variant, cached after first computation.
func (tx *Transaction) Hash() common.Hash {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.hash != nil {
		return *tx.hash
	}
	var h common.Hash
	switch inner := tx.inner.(type) {
	case *LegacyTx:
		h = legacySigningHash(inner, nil)
	case *ExecuteTx:
		h = executeTxSigningHash(inner)
	default:
		panic(fmt.Sprintf("seqtypes: unknown tx body %T", inner))
	}
	tx.hash = &h
	return h
}

// Sender recovers (and caches) the sender address via secp256k1 ECDSA
// recovery on the signing digest, per spec section 4.2.
func (tx *Transaction) Sender() (common.Address, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.from != nil {
		return *tx.from, nil
	}

	v, r, s := tx.inner.rawSignatureValues()
	if v == nil || r == nil || s == nil {
		return common.Address{}, seqErrInvalidSignature
	}

	var digest common.Hash
	var recID uint64
	switch inner := tx.inner.(type) {
	case *LegacyTx:
		protected := isProtectedV(v)
		digest = legacySigningHash(inner, nil)
		var chainID *big.Int
		recID, chainID = legacyRecoveryID(v, protected)
		if protected && inner.chainIDFromV() != nil && chainID != nil && inner.chainIDFromV().Cmp(chainID) != 0 {
			return common.Address{}, seqErrInvalidSignature
		}
	case *ExecuteTx:
		digest = executeTxSigningHash(inner)
		recID = v.Uint64()
	default:
		return common.Address{}, seqErrInvalidSignature
	}

	addr, err := recoverAddress(digest, r, s, recID)
	if err != nil {
		return common.Address{}, seqErrInvalidSignature
	}
	tx.from = &addr
	return addr, nil
}

var seqErrInvalidSignature = fmt.Errorf("seqtypes: %w", errInvalidSig)

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errInvalidSig = sentinelErr("invalid signature")

func recoverAddress(digest common.Hash, r, s *big.Int, recID uint64) (common.Address, error) {
	if recID > 1 {
		return common.Address{}, errInvalidSig
	}
	sig := make([]byte, 65)
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(recID)

	pub, err := crypto.Ecrecover(digest[:], sig)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(crypto.Keccak256(pub[1:])[12:]), nil
}

// isProtectedV reports whether v encodes an EIP-155 chain-id suffix
// (v >= 35) rather than the plain Homestead 27/28 convention.
func isProtectedV(v *big.Int) bool {
	if v.BitLen() <= 8 {
		vv := v.Uint64()
		return vv != 27 && vv != 28
	}
	return true
}

// legacyRecoveryID extracts the 0/1 recovery id and (if protected) the
// chain id encoded into v per EIP-155: v = recid + 35 + 2*chainid.
func legacyRecoveryID(v *big.Int, protected bool) (uint64, *big.Int) {
	if !protected {
		return v.Uint64() - 27, nil
	}
	chainIDMul := new(big.Int).Sub(v, big.NewInt(35))
	recID := new(big.Int).Mod(chainIDMul, big.NewInt(2))
	chainID := new(big.Int).Rsh(chainIDMul, 1)
	return recID.Uint64(), chainID
}

// legacySigningHash computes keccak256(rlp(body)) for a legacy
// transaction. The chain id is chainIDOverride or, when that is nil, the
// one implied by tx.V; when it is non-zero the EIP-155 suffix (chainid,
// 0, 0) replaces the signature fields per spec section 4.1, otherwise the
// unsigned pre-155 list is used.
func legacySigningHash(tx *LegacyTx, chainIDOverride *big.Int) common.Hash {
	chainID := chainIDOverride
	if chainID == nil {
		chainID = tx.chainIDFromV()
	}
	var fields []interface{}
	if chainID != nil && chainID.Sign() != 0 {
		fields = []interface{}{tx.Nonce, tx.GasPrice, tx.Gas, tx.To, tx.Value, tx.Data, chainID, uint(0), uint(0)}
	} else {
		fields = []interface{}{tx.Nonce, tx.GasPrice, tx.Gas, tx.To, tx.Value, tx.Data}
	}
	return rlpHash(fields)
}

// executeTxSigningHash computes keccak256(type_byte || rlp(unsigned_body))
// per spec section 4.1.
func executeTxSigningHash(tx *ExecuteTx) common.Hash {
	fields := []interface{}{
		tx.ChainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.Gas, tx.To, tx.Value, tx.Data,
		tx.PreStateCommitment, tx.Witness, tx.WitnessSize, tx.WithdrawalsSize,
		tx.Coinbase, tx.BlockNumber, tx.Timestamp, tx.BlobHashes,
	}
	return prefixedRlpHash(byte(ExecuteTxType), fields)
}

func rlpHash(x interface{}) (h common.Hash) {
	enc, err := rlp.EncodeToBytes(x)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

func prefixedRlpHash(prefix byte, x interface{}) (h common.Hash) {
	enc, err := rlp.EncodeToBytes(x)
	if err != nil {
		panic(err)
	}
	full := make([]byte, 0, len(enc)+1)
	full = append(full, prefix)
	full = append(full, enc...)
	return crypto.Keccak256Hash(full)
}
