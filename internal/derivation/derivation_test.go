package derivation

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/require"

	"github.com/blockblaz/rollup-sequencer/internal/forkchoice"
	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
)

var inboxAddr = common.HexToAddress("0x00000000000000000000000000000000001234")

type fakeL1 struct {
	blocks map[uint64]*types.Block
	latest uint64
}

func (f *fakeL1) LatestBlock(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeL1) GetBlock(_ context.Context, n uint64, _ bool) (*types.Block, error) {
	blk, ok := f.blocks[n]
	if !ok {
		return nil, fmt.Errorf("no block at height %d", n)
	}
	return blk, nil
}

func mkBlock(t *testing.T, number uint64, parent common.Hash, txs []*types.Transaction) *types.Block {
	header := &types.Header{
		Number:     big.NewInt(int64(number)),
		ParentHash: parent,
		Time:       number,
		Extra:      []byte{byte(number)},
		TxHash:     types.DeriveSha(types.Transactions(txs), trie.NewStackTrie(nil)),
	}
	return types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs})
}

func batchCalldata(t *testing.T, l2Number uint64) []byte {
	batch := &seqtypes.Batch{
		Blocks: []*seqtypes.Block{
			{Header: &seqtypes.Header{Number: l2Number}},
		},
		CreatedAt: 1,
	}
	data, err := batch.Encode()
	require.NoError(t, err)
	return data
}

func TestAdvanceDerivesBatchAndAdvancesSafe(t *testing.T) {
	genesis := seqtypes.BlockRef{}
	fc := forkchoice.New(genesis)

	tx := types.NewTransaction(0, inboxAddr, big.NewInt(0), 100000, big.NewInt(1), batchCalldata(t, 5))
	genesisBlock := mkBlock(t, 0, common.Hash{}, nil)
	b1 := mkBlock(t, 1, genesisBlock.Hash(), []*types.Transaction{tx})

	f := &fakeL1{blocks: map[uint64]*types.Block{0: genesisBlock, 1: b1}, latest: 1}
	p := New(f, &inboxAddr, fc, 0, genesis)

	derived, err := p.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, derived, 1)
	require.Equal(t, uint64(1), derived[0].L1BlockNumber)
	require.Equal(t, uint64(5), p.Safe().Number)
	require.Equal(t, uint64(5), fc.Snapshot().Safe.Number)
}

func TestAdvanceIgnoresNonInboxTransactions(t *testing.T) {
	genesis := seqtypes.BlockRef{}
	fc := forkchoice.New(genesis)

	other := common.HexToAddress("0x0000000000000000000000000000000000aaaa")
	tx := types.NewTransaction(0, other, big.NewInt(0), 100000, big.NewInt(1), batchCalldata(t, 5))
	genesisBlock := mkBlock(t, 0, common.Hash{}, nil)
	b1 := mkBlock(t, 1, genesisBlock.Hash(), []*types.Transaction{tx})

	f := &fakeL1{blocks: map[uint64]*types.Block{0: genesisBlock, 1: b1}, latest: 1}
	p := New(f, &inboxAddr, fc, 0, genesis)

	derived, err := p.Advance(context.Background())
	require.NoError(t, err)
	require.Empty(t, derived)
	require.Equal(t, uint64(0), p.Safe().Number)
}

func TestAdvanceDetectsReorgAndRewinds(t *testing.T) {
	genesis := seqtypes.BlockRef{}
	fc := forkchoice.New(genesis)

	genesisBlock := mkBlock(t, 0, common.Hash{}, nil)
	tx1 := types.NewTransaction(0, inboxAddr, big.NewInt(0), 100000, big.NewInt(1), batchCalldata(t, 1))
	b1 := mkBlock(t, 1, genesisBlock.Hash(), []*types.Transaction{tx1})

	f := &fakeL1{blocks: map[uint64]*types.Block{0: genesisBlock, 1: b1}, latest: 1}
	p := New(f, &inboxAddr, fc, 0, genesis)

	_, err := p.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), p.Safe().Number)

	// Replace block 1 with a competing fork and append block 2 atop it.
	tx1b := types.NewTransaction(0, inboxAddr, big.NewInt(0), 100000, big.NewInt(1), batchCalldata(t, 2))
	b1Fork := mkBlock(t, 1, genesisBlock.Hash(), []*types.Transaction{tx1b})
	b2 := mkBlock(t, 2, b1Fork.Hash(), nil)
	f.blocks[1] = b1Fork
	f.blocks[2] = b2
	f.latest = 2

	derived, err := p.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, derived, 1)
	require.Equal(t, uint64(2), p.Safe().Number)
}

func TestAdvanceReportsFatalOnFinalizedRewind(t *testing.T) {
	genesis := seqtypes.BlockRef{}
	fc := forkchoice.New(genesis)

	genesisBlock := mkBlock(t, 0, common.Hash{}, nil)
	tx1 := types.NewTransaction(0, inboxAddr, big.NewInt(0), 100000, big.NewInt(1), batchCalldata(t, 1))
	b1 := mkBlock(t, 1, genesisBlock.Hash(), []*types.Transaction{tx1})

	f := &fakeL1{blocks: map[uint64]*types.Block{0: genesisBlock, 1: b1}, latest: 1}
	p := New(f, &inboxAddr, fc, 0, genesis)

	_, err := p.Advance(context.Background())
	require.NoError(t, err)
	require.NoError(t, fc.SetFinalized(p.Safe()))

	b1Fork := mkBlock(t, 1, genesisBlock.Hash(), nil)
	f.blocks[1] = b1Fork

	_, err = p.Advance(context.Background())
	require.ErrorIs(t, err, ErrFatalReorg)
}
