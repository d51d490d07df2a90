package vm

import (
	"math/big"

	"github.com/evmcore/evmcore/core/types"
)

// GetHashFunc returns the block hash of the given number, for the BLOCKHASH
// opcode. It returns the zero hash for out-of-range lookups.
type GetHashFunc func(number uint64) types.Hash

// BlockContext carries block-level data that's constant for every
// transaction and call executed against one block.
type BlockContext struct {
	GetHash     GetHashFunc
	Coinbase    types.Address
	GasLimit    uint64
	BlockNumber *big.Int
	Time        uint64
	Difficulty  *big.Int
	ChainID     *big.Int
}

// TxContext carries transaction-level data, constant across every call frame
// spawned by one transaction.
type TxContext struct {
	Origin   types.Address
	GasPrice *big.Int
}

// StateDB is the subset of world-state operations the interpreter needs.
// It is satisfied by MemoryStateDB in core/state.
type StateDB interface {
	GetBalance(addr types.Address) *big.Int
	AddBalance(addr types.Address, amount *big.Int)
	SubBalance(addr types.Address, amount *big.Int)

	GetNonce(addr types.Address) uint64
	SetNonce(addr types.Address, nonce uint64)

	GetCodeHash(addr types.Address) types.Hash
	GetCode(addr types.Address) []byte
	SetCode(addr types.Address, code []byte)
	GetCodeSize(addr types.Address) int

	GetState(addr types.Address, key types.Hash) types.Hash
	SetState(addr types.Address, key, value types.Hash)

	CreateAccount(addr types.Address)
	Exist(addr types.Address) bool
	Empty(addr types.Address) bool
	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool

	Snapshot() int
	RevertToSnapshot(id int)

	AddLog(log *types.Log)
	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64
}

// Config tunes interpreter behavior not otherwise determined by the fixed
// instruction set.
type Config struct {
	NoRecursion bool // makes CREATE push zero without running init code; CALL-family opcodes and CREATE2 do not check it
}

// ScopeContext groups the per-frame mutable state the running interpreter
// threads through a single Run invocation.
type ScopeContext struct {
	Memory   *Memory
	Stack    *Stack
	Contract *Contract
}

// EVM ties together one block's context, one transaction's context, the
// world state, and the fixed jump table, and is the entry point for running
// top-level calls and nested CALL/CREATE frames.
type EVM struct {
	BlockContext
	TxContext
	StateDB StateDB

	chainConfig *ChainRules
	jumpTable   *JumpTable
	interpreter *Interpreter

	depth int

	Config Config
}

// ChainRules are the handful of chain parameters the VM consults directly.
type ChainRules struct {
	ChainID *big.Int
}

// NewEVM constructs an EVM bound to one block's execution.
func NewEVM(blockCtx BlockContext, txCtx TxContext, statedb StateDB, rules *ChainRules, cfg Config) *EVM {
	evm := &EVM{
		BlockContext: blockCtx,
		TxContext:    txCtx,
		StateDB:      statedb,
		chainConfig:  rules,
		jumpTable:    NewJumpTable(),
		Config:       cfg,
	}
	evm.interpreter = NewInterpreter(evm)
	return evm
}

// Interpreter executes contract bytecode against a single EVM instance.
type Interpreter struct {
	evm       *EVM
	jumpTable *JumpTable

	returnData []byte
}

// NewInterpreter builds an interpreter bound to evm's jump table.
func NewInterpreter(evm *EVM) *Interpreter {
	return &Interpreter{evm: evm, jumpTable: evm.jumpTable}
}

// Run executes contract's code against the given calldata input, returning
// the frame's output bytes. readOnly marks a STATICCALL context, in which
// any state-writing opcode is rejected.
func (in *Interpreter) Run(contract *Contract, input []byte, readOnly bool) ([]byte, error) {
	contract.Input = input

	var (
		pc     = uint64(0)
		stack  = newStack()
		memory = newMemory()
		scope  = &ScopeContext{Memory: memory, Stack: stack, Contract: contract}
	)

	for {
		op := contract.GetOp(pc)
		operation := in.jumpTable[op]
		if operation == nil || !operation.valid {
			return nil, ErrInvalidOpCode
		}

		if err := validateStack(stack, operation); err != nil {
			return nil, err
		}

		if readOnly && operation.writes {
			return nil, ErrWriteProtection
		}

		var memSize uint64
		if operation.memorySize != nil {
			size, overflow := operation.memorySize(stack)
			if overflow {
				return nil, ErrOutOfGas
			}
			wordSize := toWordSize(size)
			memSize = wordSize * 32
			if memSize > uint64(memory.Len()) {
				cost := memoryGasCost(memSize) - memoryGasCost(uint64(memory.Len()))
				if !contract.UseGas(cost) {
					return nil, ErrOutOfGas
				}
				memory.Resize(memSize)
			}
		}

		if !contract.UseGas(operation.constantGas) {
			return nil, ErrOutOfGas
		}
		if operation.dynamicGas != nil {
			cost, err := operation.dynamicGas(in, scope, memSize)
			if err != nil {
				return nil, err
			}
			if !contract.UseGas(cost) {
				return nil, ErrOutOfGas
			}
		}

		ret, err := operation.execute(&pc, in, scope)
		if err != nil {
			return ret, err
		}
		if operation.halts {
			return ret, nil
		}
		if !operation.jumps {
			pc++
		}
	}
}

func validateStack(st *Stack, op *operation) error {
	if st.Len() < op.minStack {
		return ErrStackUnderflow
	}
	if st.Len() > op.maxStack {
		return ErrStackOverflow
	}
	return nil
}

// toWordSize rounds size up to the nearest multiple of 32 bytes, measured in
// words, saturating rather than overflowing on pathological inputs.
func toWordSize(size uint64) uint64 {
	if size > (^uint64(0)-31)/1 {
		return (^uint64(0)) / 32
	}
	return (size + 31) / 32
}
