package core

import (
	"math/big"

	"github.com/evmcore/evmcore/core/rawdb"
	"github.com/evmcore/evmcore/core/state"
	"github.com/evmcore/evmcore/core/types"
)

// GenesisAccount represents an account in the genesis allocation.
type GenesisAccount struct {
	Balance *big.Int
	Code    []byte
	Nonce   uint64
	Storage map[types.Hash]types.Hash
}

// GenesisAlloc is the genesis allocation map: address -> account.
type GenesisAlloc map[types.Address]GenesisAccount

// Genesis specifies the header fields and pre-funded accounts of a genesis block.
type Genesis struct {
	Config     *ChainConfig
	Nonce      uint64
	Timestamp  uint64
	ExtraData  []byte
	GasLimit   uint64
	Difficulty *big.Int
	Coinbase   types.Address
	Alloc      GenesisAlloc

	Number     uint64
	GasUsed    uint64
	ParentHash types.Hash
}

// ToBlock creates a genesis block from the spec.
func (g *Genesis) ToBlock() *types.Block {
	head := &types.Header{
		ParentHash:  g.ParentHash,
		Coinbase:    g.Coinbase,
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		Difficulty:  g.Difficulty,
		Number:      new(big.Int).SetUint64(g.Number),
		GasLimit:    g.GasLimit,
		GasUsed:     g.GasUsed,
		Time:        g.Timestamp,
		Nonce:       types.BlockNonce{},
	}

	if g.Nonce != 0 {
		n := g.Nonce
		for i := 7; i >= 0; i-- {
			head.Nonce[i] = byte(n)
			n >>= 8
		}
	}

	if len(g.ExtraData) > 0 {
		head.Extra = make([]byte, len(g.ExtraData))
		copy(head.Extra, g.ExtraData)
	}

	if g.Difficulty == nil {
		head.Difficulty = new(big.Int)
	}

	return types.NewBlock(head, nil)
}

// SetupGenesisBlock initializes a genesis block's state. It applies the genesis
// allocation (balances, code, nonces, storage) to the given state and returns
// the genesis block with its state root set.
func (g *Genesis) SetupGenesisBlock(statedb *state.MemoryStateDB) *types.Block {
	for addr, account := range g.Alloc {
		statedb.CreateAccount(addr)
		if account.Balance != nil {
			statedb.AddBalance(addr, account.Balance)
		}
		if account.Nonce > 0 {
			statedb.SetNonce(addr, account.Nonce)
		}
		if len(account.Code) > 0 {
			statedb.SetCode(addr, account.Code)
		}
		for key, val := range account.Storage {
			statedb.SetState(addr, key, val)
		}
	}

	stateRoot := statedb.GetRoot()

	block := g.ToBlock()
	header := block.Header()
	header.Root = stateRoot
	return types.NewBlock(header, block.Body())
}

// CommitGenesis initializes the database with the genesis block and state.
// Returns the initialized blockchain.
func (g *Genesis) CommitGenesis(db rawdb.Database) (*Blockchain, error) {
	statedb := state.NewMemoryStateDB()
	block := g.SetupGenesisBlock(statedb)

	config := g.Config
	if config == nil {
		config = DefaultChainConfig
	}

	return NewBlockchain(config, block, statedb, db)
}

// DefaultGenesisBlock returns a development genesis specification: low
// difficulty, a generous block gas limit, and an empty allocation ready for
// the caller to fund test accounts into.
func DefaultGenesisBlock() *Genesis {
	return &Genesis{
		Config:     DefaultChainConfig,
		Nonce:      66,
		GasLimit:   30_000_000,
		Difficulty: big.NewInt(1),
		Alloc:      GenesisAlloc{},
	}
}
