package vm

import (
	"math/big"

	"github.com/evmcore/evmcore/core/types"
	"github.com/holiman/uint256"
)

// gasMemoryExpansion covers opcodes whose only dynamic cost is the memory
// expansion already charged by the interpreter's generic memorySize path;
// the memory charge itself happens before dynamicGas runs, so these return 0.
func gasMemoryExpansion(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	return 0, nil
}

func memoryMload(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), big.NewInt(32))
}

func memoryMstore(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), big.NewInt(32))
}

func memoryMstore8(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), big.NewInt(1))
}

func gasExp(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	exponent := scope.Stack.Back(1)
	byteLen := (exponent.BitLen() + 7) / 8
	return uint64(byteLen) * ExpByteGas, nil
}

func gasSha3(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	size := scope.Stack.Back(1)
	words := toWordSize(size.Uint64())
	return words * Sha3WordGas, nil
}

func memorySha3(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), st.Back(1))
}

func gasMemoryCopy(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	size := scope.Stack.Back(2)
	words := toWordSize(size.Uint64())
	return words * GasFastestStep, nil
}

func memoryCopy(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), st.Back(2))
}

func memoryExtCodeCopy(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(1), st.Back(3))
}

func gasSstore(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	key, newVal := scope.Stack.Back(0), scope.Stack.Back(1)
	addr := scope.Contract.Address
	current := in.evm.StateDB.GetState(addr, bigToHash(key))
	newHash := bigToHash(newVal)

	if current == newHash {
		return SstoreSentryGas, nil
	}
	if current.IsZero() {
		return SstoreSetGas, nil
	}
	if newHash.IsZero() {
		in.evm.StateDB.AddRefund(SstoreClearRefund)
	}
	return SstoreResetGas, nil
}

func gasLog(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	size := scope.Stack.Back(1)
	if !size.IsUint64() {
		return 0, ErrOutOfGas
	}
	return size.Uint64() * LogDataGas, nil
}

func memoryLog(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), st.Back(1))
}

func gasCreate(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	return 0, nil
}

func memoryCreate(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(1), st.Back(2))
}

func gasCreate2(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	size := scope.Stack.Back(2)
	words := toWordSize(size.Uint64())
	return words * Sha3WordGas, nil
}

func gasCall(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	value := scope.Stack.Back(2)
	addr := scope.Stack.Back(1)
	var cost uint64
	if value.Sign() != 0 {
		cost += CallValueTransferGas
		target := addrFromWord(addr)
		if in.evm.StateDB.Empty(target) {
			cost += CallNewAccountGas
		}
	}
	return cost, nil
}

func gasCallCode(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	value := scope.Stack.Back(2)
	var cost uint64
	if value.Sign() != 0 {
		cost += CallValueTransferGas
	}
	return cost, nil
}

func memoryCall(st *Stack) (uint64, bool) {
	a, aOverflow := calcMemSize(st.Back(3), st.Back(4))
	b, bOverflow := calcMemSize(st.Back(5), st.Back(6))
	if aOverflow || bOverflow {
		return 0, true
	}
	if a > b {
		return a, false
	}
	return b, false
}

func gasDelegateCall(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	return 0, nil
}

func gasStaticCall(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	return 0, nil
}

func memoryDelegateCall(st *Stack) (uint64, bool) {
	a, aOverflow := calcMemSize(st.Back(2), st.Back(3))
	b, bOverflow := calcMemSize(st.Back(4), st.Back(5))
	if aOverflow || bOverflow {
		return 0, true
	}
	if a > b {
		return a, false
	}
	return b, false
}

func memoryReturn(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), st.Back(1))
}

func gasSelfdestruct(in *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	beneficiary := addrFromWord(scope.Stack.Back(0))
	if in.evm.StateDB.Empty(beneficiary) && in.evm.StateDB.GetBalance(scope.Contract.Address).Sign() != 0 {
		return CreateGas, nil
	}
	return 0, nil
}

func addrFromWord(w *big.Int) types.Address {
	return types.BytesToAddress(w.Bytes())
}

// calcMemSize computes offset+size as the byte count memory must cover,
// reporting overflow for pathological (non-uint64-representable) operands.
// calcMemSize computes the byte offset one past the end of the memory range
// [offset, offset+size), reporting overflow instead of wrapping. It uses
// fixed-width 256-bit arithmetic since offset and size come directly off
// the stack and can be arbitrary 32-byte words before any bounds check.
func calcMemSize(offset, size *big.Int) (uint64, bool) {
	if size.Sign() == 0 {
		return 0, false
	}
	if !offset.IsUint64() || !size.IsUint64() {
		return 0, true
	}
	off, overflow := uint256.FromBig(offset)
	if overflow {
		return 0, true
	}
	sz, overflow := uint256.FromBig(size)
	if overflow {
		return 0, true
	}
	end, overflow := new(uint256.Int).AddOverflow(off, sz)
	if overflow || !end.IsUint64() {
		return 0, true
	}
	return end.Uint64(), false
}
