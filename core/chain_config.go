package core

import "math/big"

// ChainConfig holds the chain-level parameters for this EVM provider. There
// is a single fixed instruction set and no fork ladder: every block runs
// against the same rules, so there is nothing here to schedule.
type ChainConfig struct {
	ChainID *big.Int
}

// DefaultChainConfig is the chain config used unless a caller supplies its own.
var DefaultChainConfig = &ChainConfig{
	ChainID: big.NewInt(1337),
}
