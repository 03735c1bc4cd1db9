package validator

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

type fakeOracle struct {
	nonce      uint64
	balance    *big.Int
	unreachable bool
}

func (f *fakeOracle) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	if f.unreachable {
		return 0, errors.New("connection refused")
	}
	return f.nonce, nil
}

func (f *fakeOracle) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	if f.unreachable {
		return nil, errors.New("connection refused")
	}
	return f.balance, nil
}

func newSignedTx(t *testing.T, nonce uint64, gasPrice, value int64) *seqtypes.Transaction {
	t.Helper()
	key, _ := newKey(t)
	return signedTxFromKey(t, key, nonce, gasPrice, value)
}

func signedTxFromKey(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, gasPrice, value int64) *seqtypes.Transaction {
	t.Helper()
	to := common.HexToAddress("0xbeef")
	tx := &seqtypes.LegacyTx{Nonce: nonce, GasPrice: big.NewInt(gasPrice), Gas: 21000, To: &to, Value: big.NewInt(value)}
	require.NoError(t, seqtypes.SignLegacyTx(tx, big.NewInt(1), key))
	return seqtypes.NewTx(tx)
}

func TestValidateAcceptsWellFormedTx(t *testing.T) {
	oracle := &fakeOracle{nonce: 0, balance: big.NewInt(1_000_000_000_000_000_000)}
	v := New(oracle)

	tx := newSignedTx(t, 0, 1, 0)
	_, err := v.Validate(context.Background(), tx)
	require.NoError(t, err)
}

func TestValidateRejectsStaleNonce(t *testing.T) {
	oracle := &fakeOracle{nonce: 5, balance: big.NewInt(1e18)}
	v := New(oracle)

	tx := newSignedTx(t, 3, 1, 0)
	_, err := v.Validate(context.Background(), tx)
	require.ErrorIs(t, err, seqtypes.ErrInvalidNonce)
}

func TestValidateAdmitsNonceGap(t *testing.T) {
	oracle := &fakeOracle{nonce: 0, balance: big.NewInt(1e18)}
	v := New(oracle)

	// nonce = current_nonce + 1 is admitted, per spec section 4.4.
	tx := newSignedTx(t, 1, 1, 0)
	_, err := v.Validate(context.Background(), tx)
	require.NoError(t, err)
}

func TestValidateRejectsInsufficientBalance(t *testing.T) {
	oracle := &fakeOracle{nonce: 0, balance: big.NewInt(1)}
	v := New(oracle)

	tx := newSignedTx(t, 0, 1, 1_000_000)
	_, err := v.Validate(context.Background(), tx)
	require.ErrorIs(t, err, seqtypes.ErrInsufficientBalance)
}

func TestValidateRejectsZeroGasPrice(t *testing.T) {
	oracle := &fakeOracle{nonce: 0, balance: big.NewInt(1e18)}
	v := New(oracle)

	tx := newSignedTx(t, 0, 0, 0)
	_, err := v.Validate(context.Background(), tx)
	require.ErrorIs(t, err, seqtypes.ErrInvalidGasPrice)
}

func TestValidateFallsBackToCacheWhenOracleUnreachable(t *testing.T) {
	oracle := &fakeOracle{nonce: 0, balance: big.NewInt(1e18)}
	v := New(oracle)
	key, _ := newKey(t)

	warm := signedTxFromKey(t, key, 0, 1, 0)
	_, err := v.Validate(context.Background(), warm)
	require.NoError(t, err)

	oracle.unreachable = true
	tx := signedTxFromKey(t, key, 1, 1, 0)
	_, err = v.Validate(context.Background(), tx)
	require.NoError(t, err)
}

func TestValidateNoStateSourceWhenNeverCached(t *testing.T) {
	oracle := &fakeOracle{unreachable: true}
	v := New(oracle)

	tx := newSignedTx(t, 0, 1, 0)
	_, err := v.Validate(context.Background(), tx)
	require.ErrorIs(t, err, seqtypes.ErrNoStateSource)
}
