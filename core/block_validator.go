package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/evmcore/evmcore/core/types"
)

// Block validation errors.
var (
	ErrUnknownParent   = errors.New("unknown parent")
	ErrFutureBlock     = errors.New("block in the future")
	ErrInvalidNumber   = errors.New("invalid block number")
	ErrInvalidGasLimit = errors.New("invalid gas limit")
	ErrInvalidGasUsed  = errors.New("gas used exceeds gas limit")
	ErrInvalidTimestamp = errors.New("timestamp not greater than parent")
	ErrExtraDataTooLong = errors.New("extra data too long")
)

const (
	// MaxExtraDataSize is the maximum allowed extra data in a block header.
	MaxExtraDataSize = 32

	// GasLimitBoundDivisor is the divisor for max gas limit change per block.
	GasLimitBoundDivisor uint64 = 1024

	// MinGasLimit is the minimum gas limit.
	MinGasLimit uint64 = 5000

	// MaxGasLimit is the maximum gas limit (2^63 - 1).
	MaxGasLimit uint64 = 1<<63 - 1
)

// BlockValidator validates block headers and bodies against this provider's
// (fork-less) consensus rules: parent linkage, timestamp/number progression,
// and gas-limit bounds. There is no PoW/PoS, no uncles, and no fee market.
type BlockValidator struct {
	config *ChainConfig
}

// NewBlockValidator creates a new block validator.
func NewBlockValidator(config *ChainConfig) *BlockValidator {
	return &BlockValidator{config: config}
}

// ValidateHeader checks whether a header conforms to the consensus rules.
// The parent header must be provided for validation.
func (v *BlockValidator) ValidateHeader(header, parent *types.Header) error {
	if header.ParentHash != parent.Hash() {
		return fmt.Errorf("%w: want %v, got %v", ErrUnknownParent, parent.Hash(), header.ParentHash)
	}
	if len(header.Extra) > MaxExtraDataSize {
		return fmt.Errorf("%w: %d > %d", ErrExtraDataTooLong, len(header.Extra), MaxExtraDataSize)
	}
	if header.Time <= parent.Time {
		return fmt.Errorf("%w: child %d <= parent %d", ErrInvalidTimestamp, header.Time, parent.Time)
	}

	expected := new(big.Int).Add(parent.Number, big.NewInt(1))
	if header.Number.Cmp(expected) != 0 {
		return fmt.Errorf("%w: want %v, got %v", ErrInvalidNumber, expected, header.Number)
	}

	if err := verifyGasLimit(parent.GasLimit, header.GasLimit); err != nil {
		return err
	}
	if header.GasUsed > header.GasLimit {
		return fmt.Errorf("%w: %d > %d", ErrInvalidGasUsed, header.GasUsed, header.GasLimit)
	}

	return nil
}

// ValidateBody checks the block body against the header.
func (v *BlockValidator) ValidateBody(block *types.Block) error {
	return nil
}

// verifyGasLimit checks that the gas limit change is within bounds.
func verifyGasLimit(parentGasLimit, headerGasLimit uint64) error {
	if headerGasLimit < MinGasLimit {
		return fmt.Errorf("%w: %d < minimum %d", ErrInvalidGasLimit, headerGasLimit, MinGasLimit)
	}
	if headerGasLimit > MaxGasLimit {
		return fmt.Errorf("%w: %d > maximum %d", ErrInvalidGasLimit, headerGasLimit, MaxGasLimit)
	}

	var diff uint64
	if headerGasLimit < parentGasLimit {
		diff = parentGasLimit - headerGasLimit
	} else {
		diff = headerGasLimit - parentGasLimit
	}
	limit := parentGasLimit / GasLimitBoundDivisor
	if diff >= limit {
		return fmt.Errorf("%w: change %d exceeds limit %d", ErrInvalidGasLimit, diff, limit)
	}
	return nil
}
