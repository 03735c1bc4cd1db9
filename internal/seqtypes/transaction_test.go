package seqtypes

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func signLegacyKey(t *testing.T, key *ecdsa.PrivateKey, tx *LegacyTx, chainID *big.Int) {
	t.Helper()
	require.NoError(t, SignLegacyTx(tx, chainID, key))
}

func signExecuteTxKey(t *testing.T, key *ecdsa.PrivateKey, tx *ExecuteTx) {
	t.Helper()
	require.NoError(t, SignExecuteTx(tx, key))
}

func TestLegacyTxRoundTripAndRecover(t *testing.T) {
	key, addr := newTestKey(t)

	to := common.HexToAddress("0x00000000000000000000000000000000001234")
	tx := &LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     nil,
	}
	signLegacyKey(t, key, tx, big.NewInt(1))

	wrapped := NewTx(tx)
	raw, err := Serialize(wrapped)
	require.NoError(t, err)

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)
	require.Equal(t, LegacyTxType, parsed.Type())
	require.Equal(t, uint64(0), parsed.Nonce())

	sender, err := parsed.Sender()
	require.NoError(t, err)
	require.Equal(t, addr, sender)
}

func TestLegacyTxUnprotected(t *testing.T) {
	key, addr := newTestKey(t)
	to := common.HexToAddress("0x00000000000000000000000000000000005678")
	tx := &LegacyTx{Nonce: 1, GasPrice: big.NewInt(2), Gas: 21000, To: &to, Value: big.NewInt(0)}
	signLegacyKey(t, key, tx, nil)

	wrapped := NewTx(tx)
	sender, err := wrapped.Sender()
	require.NoError(t, err)
	require.Equal(t, addr, sender)
}

func TestExecuteTxRoundTripAndRecover(t *testing.T) {
	key, addr := newTestKey(t)

	to := common.HexToAddress("0x0000000000000000000000000000000000cafe")
	tx := &ExecuteTx{
		ChainID:            big.NewInt(1),
		Nonce:              4,
		GasTipCap:          big.NewInt(2),
		GasFeeCap:          big.NewInt(100),
		Gas:                500000,
		To:                 &to,
		Value:              big.NewInt(0),
		Data:               []byte{0x01, 0x02},
		PreStateCommitment: common.HexToHash("0xdead"),
		Witness:            []byte{},
		Coinbase:           common.HexToAddress("0x1"),
		BlockNumber:        10,
		Timestamp:          1000,
	}
	signExecuteTxKey(t, key, tx)

	wrapped := NewTx(tx)
	raw, err := Serialize(wrapped)
	require.NoError(t, err)
	require.Equal(t, byte(ExecuteTxType), raw[0])

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)
	require.Equal(t, ExecuteTxType, parsed.Type())

	sender, err := parsed.Sender()
	require.NoError(t, err)
	require.Equal(t, addr, sender)
}

func TestParseTransactionRejectsTruncated(t *testing.T) {
	_, err := ParseTransaction([]byte{0x05})
	require.Error(t, err)

	_, err = ParseTransaction(nil)
	require.Error(t, err)
}

func TestConditionalPredicateSatisfied(t *testing.T) {
	max := uint64(100)
	p := &ConditionalPredicate{BlockNumberMax: &max}
	require.True(t, p.Satisfied(100, 0))
	require.False(t, p.Satisfied(101, 0))
	require.True(t, (*ConditionalPredicate)(nil).Satisfied(1_000_000, 0))
}

func TestWitnessEncodeDecodeRoundTrip(t *testing.T) {
	w := &Witness{
		Headers: []*HeaderRef{{Number: 1, Hash: common.HexToHash("0x1")}},
		Codes:   []CodePair{{Hash: common.HexToHash("0x2"), Code: []byte{0xfe}}},
		State:   []StatePair{{Hash: common.HexToHash("0x3"), Node: []byte{0x01}}},
	}
	enc, err := w.Encode()
	require.NoError(t, err)

	dec, err := DecodeWitness(enc)
	require.NoError(t, err)
	require.Equal(t, w.Headers[0].Hash, dec.Headers[0].Hash)
	require.Equal(t, w.Codes[0].Code, dec.Codes[0].Code)
}

func TestEmptyWitnessDegenerateCase(t *testing.T) {
	dec, err := DecodeWitness(nil)
	require.NoError(t, err)
	require.Empty(t, dec.Headers)
	require.Empty(t, dec.Codes)
	require.Empty(t, dec.State)
}
