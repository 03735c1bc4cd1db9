package executetx

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

type fakeNonceSource struct{ nonce uint64 }

func (f *fakeNonceSource) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	return f.nonce, nil
}

type fakeStateSource struct {
	ref       seqtypes.BlockRef
	stateRoot common.Hash
	timestamp uint64
}

func (f *fakeStateSource) BlockRefByNumber(context.Context, *big.Int) (seqtypes.BlockRef, common.Hash, uint64, error) {
	return f.ref, f.stateRoot, f.timestamp, nil
}

func TestBuildProducesSignedExecuteTx(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	batch := &seqtypes.Batch{
		Blocks: []*seqtypes.Block{
			{Header: &seqtypes.Header{Number: 10, Timestamp: 123}},
		},
		CreatedAt: 1000,
	}

	cfg := Config{
		ChainID:    big.NewInt(1),
		GasTipCap:  big.NewInt(1),
		GasFeeCap:  big.NewInt(100),
		Gas:        1_000_000,
		SigningKey: key,
	}
	b := New(cfg, &fakeNonceSource{nonce: 5}, &fakeStateSource{
		ref:       seqtypes.BlockRef{Number: 9, Hash: common.HexToHash("0xabc")},
		stateRoot: common.HexToHash("0xdef"),
		timestamp: 122,
	})

	tx, raw, err := b.Build(context.Background(), batch, seqtypes.EmptyWitness())
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.Equal(t, seqtypes.ExecuteTxType, tx.Type())
	require.Equal(t, uint64(5), tx.Nonce())

	sender, err := tx.Sender()
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)

	parsed, err := seqtypes.ParseTransaction(raw)
	require.NoError(t, err)
	parsedSender, err := parsed.Sender()
	require.NoError(t, err)
	require.Equal(t, sender, parsedSender)
}

func TestBuildRejectsEmptyBatch(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg := Config{ChainID: big.NewInt(1), SigningKey: key}
	b := New(cfg, &fakeNonceSource{}, &fakeStateSource{})

	_, _, err = b.Build(context.Background(), &seqtypes.Batch{}, seqtypes.EmptyWitness())
	require.Error(t, err)
}

func TestBuildRequiresSigningKey(t *testing.T) {
	cfg := Config{ChainID: big.NewInt(1)}
	b := New(cfg, &fakeNonceSource{}, &fakeStateSource{})

	batch := &seqtypes.Batch{Blocks: []*seqtypes.Block{{Header: &seqtypes.Header{Number: 1}}}}
	_, _, err := b.Build(context.Background(), batch, seqtypes.EmptyWitness())
	require.Error(t, err)
}
