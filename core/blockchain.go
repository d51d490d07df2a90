package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/evmcore/evmcore/core/rawdb"
	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/rlp"
)

var (
	ErrNoGenesis      = errors.New("genesis block not provided")
	ErrGenesisExists  = errors.New("genesis already initialized")
	ErrBlockNotFound  = errors.New("block not found")
	ErrInvalidChain   = errors.New("invalid chain: blocks not contiguous")
	ErrFutureBlock2   = errors.New("block number too high")
	ErrStateNotFound  = errors.New("state not found for block")
)

// Blockchain manages the canonical chain of blocks, applying state
// transitions and persisting data to the underlying database.
type Blockchain struct {
	mu        sync.RWMutex
	config    *ChainConfig
	db        rawdb.Database
	hc        *HeaderChain
	processor *StateProcessor
	validator *BlockValidator

	// Block cache: hash -> block.
	blockCache map[types.Hash]*types.Block

	// Canonical number -> hash for quick lookups.
	canonCache map[uint64]types.Hash

	// Genesis state (used as base for re-execution).
	genesisState *state.MemoryStateDB

	// Current state after processing the head block.
	currentState *state.MemoryStateDB

	// The genesis block.
	genesis *types.Block

	// Current head block.
	currentBlock *types.Block

	// Receipts by block hash, populated as blocks are inserted.
	receipts map[types.Hash][]*types.Receipt

	// Transaction hash -> (block hash, index within block).
	txLookup map[types.Hash]txLocation
}

// txLocation records where a transaction was included.
type txLocation struct {
	blockHash types.Hash
	index     uint64
}

// NewBlockchain creates a new blockchain initialized with the given genesis block.
// The statedb should contain the genesis state (pre-funded accounts, etc.).
func NewBlockchain(config *ChainConfig, genesis *types.Block, statedb *state.MemoryStateDB, db rawdb.Database) (*Blockchain, error) {
	if genesis == nil {
		return nil, ErrNoGenesis
	}

	bc := &Blockchain{
		config:       config,
		db:           db,
		processor:    NewStateProcessor(config),
		validator:    NewBlockValidator(config),
		blockCache:   make(map[types.Hash]*types.Block),
		canonCache:   make(map[uint64]types.Hash),
		genesisState: statedb,
		currentState: statedb.Copy(),
		genesis:      genesis,
		currentBlock: genesis,
		receipts:     make(map[types.Hash][]*types.Receipt),
		txLookup:     make(map[types.Hash]txLocation),
	}

	// Create HeaderChain from genesis header.
	bc.hc = NewHeaderChain(config, genesis.Header())

	// Store genesis in caches.
	hash := genesis.Hash()
	bc.blockCache[hash] = genesis
	bc.canonCache[genesis.NumberU64()] = hash

	// Persist genesis to rawdb.
	bc.writeBlock(genesis)
	rawdb.WriteCanonicalHash(db, genesis.NumberU64(), hash)
	rawdb.WriteHeadBlockHash(db, hash)
	rawdb.WriteHeadHeaderHash(db, hash)

	return bc, nil
}

// InsertBlock validates, executes, and inserts a single block.
func (bc *Blockchain) InsertBlock(block *types.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.insertBlock(block)
}

// insertBlock is the internal insert without locking.
func (bc *Blockchain) insertBlock(block *types.Block) error {
	hash := block.Hash()

	// Skip if already known.
	if _, ok := bc.blockCache[hash]; ok {
		return nil
	}

	header := block.Header()

	// Find parent.
	parent := bc.blockCache[header.ParentHash]
	if parent == nil {
		return fmt.Errorf("%w: parent %v", ErrUnknownParent, header.ParentHash)
	}

	// Validate header against parent.
	parentHeader := parent.Header()
	if err := bc.validator.ValidateHeader(header, parentHeader); err != nil {
		return err
	}

	// Validate body.
	if err := bc.validator.ValidateBody(block); err != nil {
		return err
	}

	// Build state for execution by re-executing from genesis.
	statedb, err := bc.stateAt(parent)
	if err != nil {
		return fmt.Errorf("state at parent %d: %w", parent.NumberU64(), err)
	}

	// Execute transactions.
	receipts, err := bc.processor.Process(block, statedb)
	if err != nil {
		return fmt.Errorf("process block %d: %w", block.NumberU64(), err)
	}

	// Store in block cache.
	bc.blockCache[hash] = block
	bc.receipts[hash] = receipts
	for i, tx := range block.Transactions() {
		bc.txLookup[tx.Hash()] = txLocation{blockHash: hash, index: uint64(i)}
	}
	bc.writeReceipts(hash, block.NumberU64(), receipts)

	// Update canonical chain if this extends the head.
	num := block.NumberU64()
	if num > bc.currentBlock.NumberU64() {
		bc.canonCache[num] = hash
		bc.currentBlock = block
		bc.currentState = statedb.(*state.MemoryStateDB)

		// Persist to rawdb.
		bc.writeBlock(block)
		rawdb.WriteCanonicalHash(bc.db, num, hash)
		rawdb.WriteHeadBlockHash(bc.db, hash)
		rawdb.WriteHeadHeaderHash(bc.db, hash)

		// Update header chain.
		bc.hc.InsertHeaders([]*types.Header{header})
	}

	return nil
}

// writeReceipts persists a block's receipts to rawdb and records each
// transaction's lookup entry.
func (bc *Blockchain) writeReceipts(blockHash types.Hash, number uint64, receipts []*types.Receipt) {
	if enc, err := rlp.EncodeToBytes(receipts); err == nil {
		rawdb.WriteReceipts(bc.db, number, blockHash, enc)
	}
	for _, r := range receipts {
		rawdb.WriteTxLookup(bc.db, r.TxHash, number)
	}
}

// GetReceipts returns the receipts for a block by hash.
func (bc *Blockchain) GetReceipts(blockHash types.Hash) []*types.Receipt {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.receipts[blockHash]
}

// GetBlockReceipts returns the receipts for the canonical block at the given number.
func (bc *Blockchain) GetBlockReceipts(number uint64) []*types.Receipt {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	hash, ok := bc.canonCache[number]
	if !ok {
		return nil
	}
	return bc.receipts[hash]
}

// GetLogs returns all logs emitted by the transactions of a block.
func (bc *Blockchain) GetLogs(blockHash types.Hash) []*types.Log {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	var logs []*types.Log
	for _, receipt := range bc.receipts[blockHash] {
		logs = append(logs, receipt.Logs...)
	}
	return logs
}

// GetTransactionLookup returns the transaction, its containing block's
// number, its index within that block, and whether it was found. It returns
// (nil, 0, 0, false) if the transaction is unknown.
func (bc *Blockchain) GetTransactionLookup(txHash types.Hash) (*types.Transaction, uint64, uint64, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	loc, ok := bc.txLookup[txHash]
	if !ok {
		return nil, 0, 0, false
	}
	block := bc.blockCache[loc.blockHash]
	if block == nil {
		return nil, 0, 0, false
	}
	for _, tx := range block.Transactions() {
		if tx.Hash() == txHash {
			return tx, block.NumberU64(), loc.index, true
		}
	}
	return nil, 0, 0, false
}

// StateAtRoot returns the state database for the given state root, if it
// matches either the genesis or the current head state root.
func (bc *Blockchain) StateAtRoot(root types.Hash) (state.StateDB, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if root == bc.genesis.Root() {
		return bc.genesisState.Copy(), nil
	}
	if root == bc.currentBlock.Root() {
		return bc.currentState.Copy(), nil
	}
	return nil, fmt.Errorf("%w: root %v", ErrStateNotFound, root)
}

// InsertChain inserts a chain of blocks sequentially.
// Blocks must be in ascending order but need not be contiguous with the head
// at the time of the call (though each must connect to its parent).
func (bc *Blockchain) InsertChain(blocks []*types.Block) (int, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	for i, block := range blocks {
		if err := bc.insertBlock(block); err != nil {
			return i, err
		}
	}
	return len(blocks), nil
}

// GetBlock retrieves a block by hash, or nil if not found.
func (bc *Blockchain) GetBlock(hash types.Hash) *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blockCache[hash]
}

// GetBlockByNumber retrieves the canonical block for a given number.
func (bc *Blockchain) GetBlockByNumber(number uint64) *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	hash, ok := bc.canonCache[number]
	if !ok {
		return nil
	}
	return bc.blockCache[hash]
}

// CurrentBlock returns the head of the canonical chain.
func (bc *Blockchain) CurrentBlock() *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.currentBlock
}

// HasBlock checks if a block with the given hash exists.
func (bc *Blockchain) HasBlock(hash types.Hash) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	_, ok := bc.blockCache[hash]
	return ok
}

// SetHead rewinds the canonical chain to the given block number.
// Blocks above the target number are removed from the canonical index.
func (bc *Blockchain) SetHead(number uint64) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	target, ok := bc.canonCache[number]
	if !ok {
		return fmt.Errorf("%w: no canonical block at %d", ErrBlockNotFound, number)
	}

	// Remove canonical entries above target.
	current := bc.currentBlock.NumberU64()
	for n := current; n > number; n-- {
		if hash, ok := bc.canonCache[n]; ok {
			rawdb.DeleteCanonicalHash(bc.db, n)
			delete(bc.canonCache, n)
			// Remove from block cache too.
			delete(bc.blockCache, hash)
		}
	}

	// Set new head.
	bc.currentBlock = bc.blockCache[target]

	// Re-derive state by re-executing from genesis.
	statedb, err := bc.stateAt(bc.currentBlock)
	if err != nil {
		return fmt.Errorf("re-derive state at %d: %w", number, err)
	}
	bc.currentState = statedb.(*state.MemoryStateDB)

	// Update rawdb pointers.
	hash := bc.currentBlock.Hash()
	rawdb.WriteHeadBlockHash(bc.db, hash)
	rawdb.WriteHeadHeaderHash(bc.db, hash)

	// Rewind header chain.
	bc.hc.SetHead(number)

	return nil
}

// GetHashFn returns a GetHashFunc that resolves block number -> hash
// for the BLOCKHASH opcode. It resolves any canonical block number; it does
// not itself limit lookups to the most recent 256 blocks.
func (bc *Blockchain) GetHashFn() func(uint64) types.Hash {
	return func(number uint64) types.Hash {
		bc.mu.RLock()
		defer bc.mu.RUnlock()
		if hash, ok := bc.canonCache[number]; ok {
			return hash
		}
		return types.Hash{}
	}
}

// Genesis returns the genesis block.
func (bc *Blockchain) Genesis() *types.Block {
	return bc.genesis
}

// Config returns the chain configuration.
func (bc *Blockchain) Config() *ChainConfig {
	return bc.config
}

// State returns a copy of the current state.
func (bc *Blockchain) State() *state.MemoryStateDB {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.currentState.Copy()
}

// stateAt returns the state after executing up to (and including) the given block.
// For the genesis block, this is the genesis state directly.
func (bc *Blockchain) stateAt(block *types.Block) (state.StateDB, error) {
	if block.Hash() == bc.genesis.Hash() {
		return bc.genesisState.Copy(), nil
	}

	// Collect the chain of blocks from genesis to this block.
	var chain []*types.Block
	current := block
	for current.Hash() != bc.genesis.Hash() {
		chain = append(chain, current)
		parent, ok := bc.blockCache[current.ParentHash()]
		if !ok {
			return nil, fmt.Errorf("%w: missing ancestor at %v", ErrStateNotFound, current.ParentHash())
		}
		current = parent
	}

	// Re-execute from genesis.
	statedb := bc.genesisState.Copy()
	for i := len(chain) - 1; i >= 0; i-- {
		b := chain[i]
		if _, err := bc.processor.Process(b, statedb); err != nil {
			return nil, fmt.Errorf("re-execute block %d: %w", b.NumberU64(), err)
		}
	}
	return statedb, nil
}

// writeBlock persists a block's header and body encoding to rawdb.
func (bc *Blockchain) writeBlock(block *types.Block) {
	num := block.NumberU64()
	hash := block.Hash()
	if enc, err := block.Header().EncodeRLP(); err == nil {
		rawdb.WriteHeader(bc.db, num, hash, enc)
	}
	if enc, err := block.EncodeRLP(); err == nil {
		rawdb.WriteBody(bc.db, num, hash, enc)
	}
}

// ChainLength returns the length of the canonical chain (genesis = 1).
func (bc *Blockchain) ChainLength() uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.currentBlock.NumberU64() + 1
}
