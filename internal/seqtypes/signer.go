package seqtypes

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignLegacyTx signs tx with key under EIP-155 replay protection for the
// given chain id (pass nil for the unprotected pre-155 form) and writes the
// resulting v/r/s directly into tx, mirroring go-ethereum's
// signer.SignTx/WithSignature split collapsed into one call since the
// sequencer only ever signs with a single local key (spec section 4.5: the
// L1 client submits ExecuteTx signed by the sequencer's configured key; the
// same local-signer path covers any legacy tx the sequencer originates).
func SignLegacyTx(tx *LegacyTx, chainID *big.Int, key *ecdsa.PrivateKey) error {
	digest := legacySigningHash(tx, chainID)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	var v *big.Int
	if chainID != nil && chainID.Sign() != 0 {
		v = new(big.Int).Add(big.NewInt(int64(sig[64])), new(big.Int).Add(new(big.Int).Mul(chainID, big.NewInt(2)), big.NewInt(35)))
	} else {
		v = new(big.Int).Add(big.NewInt(int64(sig[64])), big.NewInt(27))
	}
	tx.V, tx.R, tx.S = v, r, s
	return nil
}

// SignExecuteTx signs tx with key, per spec section 4.1's ExecuteTx
// signing digest (keccak256(type_byte || rlp(unsigned_body))).
func SignExecuteTx(tx *ExecuteTx, key *ecdsa.PrivateKey) error {
	digest := executeTxSigningHash(tx)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetInt64(int64(sig[64]))
	return nil
}
