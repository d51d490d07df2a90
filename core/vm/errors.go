package vm

import "errors"

// Frame-local errors. Each halts the current frame, consuming all of its
// remaining gas except ErrExecutionReverted, which hands the unused gas back
// to the caller. Each is recovered at the frame boundary:
// the caller observes a zero return value rather than a propagated error.
var (
	ErrOutOfGas              = errors.New("vm: out of gas")
	ErrStackOverflow         = errors.New("vm: stack overflow")
	ErrStackUnderflow        = errors.New("vm: stack underflow")
	ErrInvalidJump           = errors.New("vm: invalid jump destination")
	ErrInvalidOpCode         = errors.New("vm: invalid opcode")
	ErrWriteProtection       = errors.New("vm: write protection (static call)")
	ErrExecutionReverted     = errors.New("vm: execution reverted")
	ErrMaxCallDepthExceeded  = errors.New("vm: max call depth exceeded")
	ErrInsufficientBalance   = errors.New("vm: insufficient balance for transfer")
	ErrContractAddrCollision = errors.New("vm: contract address collision")
	ErrReturnDataOutOfBounds = errors.New("vm: return data out of bounds")
	ErrMaxCodeSizeExceeded   = errors.New("vm: max code size exceeded")
	ErrMaxInitCodeSizeExceeded = errors.New("vm: max init code size exceeded")
)
