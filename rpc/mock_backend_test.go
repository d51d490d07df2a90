package rpc

import (
	"math/big"

	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/trie"
)

// mockBackend is a minimal in-memory Backend used by the rpc package's own
// tests. It keeps a single genesis-only chain and a real MemoryStateDB so
// handlers exercise the same code paths they would against a live node.
type mockBackend struct {
	chainID *big.Int
	header  *types.Header
	block   *types.Block
	state   *state.MemoryStateDB
	sent    []*types.Transaction
}

func newMockBackend() *mockBackend {
	header := &types.Header{
		Number:     big.NewInt(0),
		Difficulty: new(big.Int),
		GasLimit:   8_000_000,
	}
	block := types.NewBlock(header, &types.Body{})
	return &mockBackend{
		chainID: big.NewInt(1337),
		header:  header,
		block:   block,
		state:   state.NewMemoryStateDB(),
	}
}

func (m *mockBackend) HeaderByNumber(number BlockNumber) *types.Header {
	if number == LatestBlockNumber || number == PendingBlockNumber || int64(number) == m.header.Number.Int64() {
		return m.header
	}
	return nil
}

func (m *mockBackend) HeaderByHash(hash types.Hash) *types.Header {
	if hash == m.header.Hash() {
		return m.header
	}
	return nil
}

func (m *mockBackend) BlockByNumber(number BlockNumber) *types.Block {
	if m.HeaderByNumber(number) == nil {
		return nil
	}
	return m.block
}

func (m *mockBackend) BlockByHash(hash types.Hash) *types.Block {
	if hash == m.block.Hash() {
		return m.block
	}
	return nil
}

func (m *mockBackend) CurrentHeader() *types.Header { return m.header }

func (m *mockBackend) ChainID() *big.Int { return m.chainID }

func (m *mockBackend) StateAt(root types.Hash) (state.StateDB, error) {
	return m.state.Copy(), nil
}

func (m *mockBackend) SendTransaction(tx *types.Transaction) error {
	m.sent = append(m.sent, tx)
	return nil
}

func (m *mockBackend) GetTransaction(hash types.Hash) (*types.Transaction, uint64, uint64) {
	for _, tx := range m.sent {
		if tx.Hash() == hash {
			return tx, m.header.Number.Uint64(), 0
		}
	}
	return nil, 0, 0
}

func (m *mockBackend) SuggestGasPrice() *big.Int { return big.NewInt(DefaultGasPrice) }

func (m *mockBackend) GetReceipts(blockHash types.Hash) []*types.Receipt { return nil }

func (m *mockBackend) GetLogs(blockHash types.Hash) []*types.Log { return nil }

func (m *mockBackend) GetBlockReceipts(number uint64) []*types.Receipt { return nil }

func (m *mockBackend) GetProof(addr types.Address, storageKeys []types.Hash, blockNumber BlockNumber) (*trie.AccountProof, error) {
	return nil, nil
}

func (m *mockBackend) EVMCall(from types.Address, to *types.Address, data []byte, gas uint64, value *big.Int, blockNumber BlockNumber) ([]byte, uint64, error) {
	return nil, 0, nil
}

var _ Backend = (*mockBackend)(nil)
