package node

import (
	"fmt"
	"math/big"

	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/core/vm"
	"github.com/evmcore/evmcore/rpc"
	"github.com/evmcore/evmcore/trie"
)

// nodeBackend adapts the Node to the rpc.Backend interface.
type nodeBackend struct {
	node *Node
}

func newNodeBackend(n *Node) rpc.Backend {
	return &nodeBackend{node: n}
}

func (b *nodeBackend) HeaderByNumber(number rpc.BlockNumber) *types.Header {
	bc := b.node.blockchain
	switch number {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber:
		blk := bc.CurrentBlock()
		if blk != nil {
			return blk.Header()
		}
		return nil
	case rpc.EarliestBlockNumber:
		blk := bc.GetBlockByNumber(0)
		if blk != nil {
			return blk.Header()
		}
		return nil
	default:
		blk := bc.GetBlockByNumber(uint64(number))
		if blk != nil {
			return blk.Header()
		}
		return nil
	}
}

func (b *nodeBackend) HeaderByHash(hash types.Hash) *types.Header {
	blk := b.node.blockchain.GetBlock(hash)
	if blk != nil {
		return blk.Header()
	}
	return nil
}

func (b *nodeBackend) BlockByNumber(number rpc.BlockNumber) *types.Block {
	bc := b.node.blockchain
	switch number {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber:
		return bc.CurrentBlock()
	case rpc.EarliestBlockNumber:
		return bc.GetBlockByNumber(0)
	default:
		return bc.GetBlockByNumber(uint64(number))
	}
}

func (b *nodeBackend) BlockByHash(hash types.Hash) *types.Block {
	return b.node.blockchain.GetBlock(hash)
}

func (b *nodeBackend) CurrentHeader() *types.Header {
	blk := b.node.blockchain.CurrentBlock()
	if blk != nil {
		return blk.Header()
	}
	return nil
}

func (b *nodeBackend) ChainID() *big.Int {
	return b.node.blockchain.Config().ChainID
}

func (b *nodeBackend) StateAt(root types.Hash) (state.StateDB, error) {
	return b.node.blockchain.StateAtRoot(root)
}

func (b *nodeBackend) GetProof(addr types.Address, storageKeys []types.Hash, blockNumber rpc.BlockNumber) (*trie.AccountProof, error) {
	header := b.HeaderByNumber(blockNumber)
	if header == nil {
		return nil, fmt.Errorf("block not found")
	}

	statedb, err := b.StateAt(header.Root)
	if err != nil {
		return nil, err
	}

	// Type-assert to MemoryStateDB to access trie-building methods.
	memState, ok := statedb.(*state.MemoryStateDB)
	if !ok {
		return nil, fmt.Errorf("state does not support proof generation")
	}

	// Build the full state trie from all accounts.
	stateTrie := memState.BuildStateTrie()

	// Build the storage trie for the requested account.
	storageTrie := memState.BuildStorageTrie(addr)

	// Generate account proof with storage proofs.
	return trie.ProveAccountWithStorage(stateTrie, addr, storageTrie, storageKeys)
}

// SendTransaction builds, executes, and inserts a single-transaction block
// atop the current head. There is no mempool: the transaction is included
// synchronously, so its receipt is available as soon as this call returns.
func (b *nodeBackend) SendTransaction(tx *types.Transaction) error {
	n := b.node
	n.chainMu.Lock()
	defer n.chainMu.Unlock()

	head := n.blockchain.CurrentBlock()
	block, _, err := n.builder.BuildBlock(head.Coinbase(), head.Time()+1, []*types.Transaction{tx})
	if err != nil {
		return fmt.Errorf("build block: %w", err)
	}
	return n.blockchain.InsertBlock(block)
}

func (b *nodeBackend) GetTransaction(hash types.Hash) (*types.Transaction, uint64, uint64) {
	tx, blockNum, txIndex, found := b.node.blockchain.GetTransactionLookup(hash)
	if !found {
		return nil, 0, 0
	}
	return tx, blockNum, txIndex
}

func (b *nodeBackend) SuggestGasPrice() *big.Int {
	return big.NewInt(rpc.DefaultGasPrice)
}

func (b *nodeBackend) GetReceipts(blockHash types.Hash) []*types.Receipt {
	return b.node.blockchain.GetReceipts(blockHash)
}

func (b *nodeBackend) GetLogs(blockHash types.Hash) []*types.Log {
	return b.node.blockchain.GetLogs(blockHash)
}

func (b *nodeBackend) GetBlockReceipts(number uint64) []*types.Receipt {
	return b.node.blockchain.GetBlockReceipts(number)
}

func (b *nodeBackend) EVMCall(from types.Address, to *types.Address, data []byte, gas uint64, value *big.Int, blockNumber rpc.BlockNumber) ([]byte, uint64, error) {
	bc := b.node.blockchain

	// Resolve block header.
	var header *types.Header
	switch blockNumber {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber:
		blk := bc.CurrentBlock()
		if blk != nil {
			header = blk.Header()
		}
	default:
		blk := bc.GetBlockByNumber(uint64(blockNumber))
		if blk != nil {
			header = blk.Header()
		}
	}
	if header == nil {
		return nil, 0, fmt.Errorf("block not found")
	}

	// Get state at this block.
	statedb, err := b.StateAt(header.Root)
	if err != nil {
		return nil, 0, fmt.Errorf("state not found: %w", err)
	}

	// Default gas to 50M if zero.
	if gas == 0 {
		gas = 50_000_000
	}
	if value == nil {
		value = new(big.Int)
	}

	blockCtx := vm.BlockContext{
		GetHash:     bc.GetHashFn(),
		Coinbase:    header.Coinbase,
		BlockNumber: header.Number,
		Time:        header.Time,
		GasLimit:    header.GasLimit,
		Difficulty:  header.Difficulty,
		ChainID:     bc.Config().ChainID,
	}
	txCtx := vm.TxContext{
		Origin:   from,
		GasPrice: big.NewInt(rpc.DefaultGasPrice),
	}
	rules := &vm.ChainRules{ChainID: bc.Config().ChainID}

	evm := vm.NewEVM(blockCtx, txCtx, statedb, rules, vm.Config{})

	if to == nil {
		// Contract creation call - just return empty.
		return nil, gas, nil
	}

	ret, gasLeft, err := evm.Call(from, *to, data, gas, value)
	return ret, gasLeft, err
}
