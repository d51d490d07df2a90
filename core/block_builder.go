package core

import (
	"fmt"
	"math/big"

	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/trie"
)

// BlockBuilder assembles and executes a new block on top of the current
// chain head. Unlike a consensus-driven block builder, it has no payload
// attributes, withdrawals, or blob sidecars to assemble: it simply applies
// a list of transactions atop the parent state and seals the result.
type BlockBuilder struct {
	config *ChainConfig
	chain  *Blockchain
}

// NewBlockBuilder creates a block builder bound to a chain.
func NewBlockBuilder(config *ChainConfig, chain *Blockchain) *BlockBuilder {
	return &BlockBuilder{config: config, chain: chain}
}

// BuildBlock executes txs atop the current chain head and returns the
// resulting block together with its receipts. The block is not inserted
// into the chain; the caller is responsible for that.
func (bb *BlockBuilder) BuildBlock(coinbase types.Address, timestamp uint64, txs []*types.Transaction) (*types.Block, []*types.Receipt, error) {
	parent := bb.chain.CurrentBlock().Header()

	statedb, err := bb.chain.StateAtRoot(parent.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("block builder: state at parent root: %w", err)
	}

	header := &types.Header{
		ParentHash: parent.Hash(),
		Coinbase:   coinbase,
		Difficulty: new(big.Int).Set(parent.Difficulty),
		Number:     new(big.Int).Add(parent.Number, big.NewInt(1)),
		GasLimit:   parent.GasLimit,
		Time:       timestamp,
	}

	body := &types.Body{Transactions: txs}
	provisional := types.NewBlock(header, body)

	processor := NewStateProcessor(bb.config)
	processor.SetGetHash(bb.chain.GetHashFn())
	receipts, err := processor.Process(provisional, statedb)
	if err != nil {
		return nil, nil, err
	}

	var gasUsed uint64
	if n := len(receipts); n > 0 {
		gasUsed = receipts[n-1].CumulativeGasUsed
	}

	header.GasUsed = gasUsed
	header.TxHash = trie.DeriveSha(txsDerivable(txs))
	header.ReceiptHash = trie.DeriveSha(receiptsDerivable(receipts))
	header.Bloom = types.CreateBloom(receipts)

	root, err := statedb.Commit()
	if err != nil {
		return nil, nil, fmt.Errorf("block builder: commit state: %w", err)
	}
	header.Root = root

	block := types.NewBlock(header, body)

	// The provisional block's hash was sealed against a header missing
	// Root/TxHash/ReceiptHash/Bloom/GasUsed, so receipts produced by Process
	// carry a stale block hash. Re-derive the inclusion fields against the
	// final, sealed block.
	types.DeriveReceiptFields(receipts, block.Hash(), block.NumberU64(), txs)

	return block, receipts, nil
}

// txsDerivable adapts a transaction list to trie.DerivableList for
// transaction-root computation.
type txsDerivable []*types.Transaction

func (s txsDerivable) Len() int { return len(s) }
func (s txsDerivable) EncodeIndex(i int) ([]byte, error) { return s[i].EncodeRLP() }

// receiptsDerivable adapts a receipt list to trie.DerivableList for
// receipt-root computation.
type receiptsDerivable []*types.Receipt

func (s receiptsDerivable) Len() int { return len(s) }
func (s receiptsDerivable) EncodeIndex(i int) ([]byte, error) { return s[i].EncodeRLP() }
