package vm

import (
	"math/big"

	"github.com/evmcore/evmcore/core/types"
)

// Contract represents one EVM frame's executable context: the code being
// run, the account it runs as, and the caller/value that invoked it.
type Contract struct {
	Caller    types.Address
	Address   types.Address
	Code      []byte
	CodeHash  types.Hash
	Input     []byte
	Value     *big.Int
	Gas       uint64
	DelegateCall bool // true under DELEGATECALL or CALLCODE: Code comes from another account, while Address is the account whose storage is used

	jumpdests map[uint64]struct{}
}

// NewContract creates a new contract execution frame.
func NewContract(caller, address types.Address, value *big.Int, gas uint64) *Contract {
	return &Contract{
		Caller:  caller,
		Address: address,
		Value:   value,
		Gas:     gas,
	}
}

// SetCallCode binds the code and its hash to this contract frame.
func (c *Contract) SetCallCode(code []byte, hash types.Hash) {
	c.Code = code
	c.CodeHash = hash
}

// GetOp returns the opcode at position n, or STOP past the end of code.
func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

// UseGas deducts amount from the contract's remaining gas. Returns false if
// there isn't enough gas (the caller must then treat the frame as out of gas).
func (c *Contract) UseGas(amount uint64) bool {
	if c.Gas < amount {
		return false
	}
	c.Gas -= amount
	return true
}

// validJumpdest reports whether dest is a JUMPDEST not embedded in PUSH data.
func (c *Contract) validJumpdest(dest *big.Int) bool {
	udest := dest.Uint64()
	if dest.BitLen() > 63 || udest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[udest]) != JUMPDEST {
		return false
	}
	return c.isCode(udest)
}

// isCode reports whether position pos is a genuine instruction, lazily
// analyzing the code to skip over PUSH immediate-data regions.
func (c *Contract) isCode(pos uint64) bool {
	if c.jumpdests == nil {
		c.jumpdests = analyzeJumpdests(c.Code)
	}
	_, ok := c.jumpdests[pos]
	return ok
}

// analyzeJumpdests walks the bytecode once, recording every byte offset that
// is a genuine instruction start (i.e. not a PUSH immediate byte).
func analyzeJumpdests(code []byte) map[uint64]struct{} {
	positions := make(map[uint64]struct{}, len(code))
	for pc := uint64(0); pc < uint64(len(code)); pc++ {
		positions[pc] = struct{}{}
		op := OpCode(code[pc])
		if op.IsPush() {
			pc += uint64(op.PushSize())
		}
	}
	return positions
}
