package vm

import (
	"math/big"

	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/crypto"
)

func hashToBig(h types.Hash) *big.Int { return new(big.Int).SetBytes(h.Bytes()) }

func bigToHash(b *big.Int) types.Hash {
	var h types.Hash
	bytes := u256(new(big.Int).Set(b)).Bytes()
	h.SetBytes(bytes)
	return h
}

// --- arithmetic ---

func opStop(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) { return nil, nil }

func opAdd(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Set(u256(x.Add(x, y)))
	return nil, nil
}

func opMul(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Set(u256(x.Mul(x, y)))
	return nil, nil
}

func opSub(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Set(u256(x.Sub(x, y)))
	return nil, nil
}

func opDiv(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	if y.Sign() == 0 {
		y.SetUint64(0)
	} else {
		y.Set(u256(x.Div(x, y)))
	}
	return nil, nil
}

func opSdiv(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := s256(scope.Stack.Pop()), s256(scope.Stack.Peek())
	if y.Sign() == 0 {
		y.SetUint64(0)
		return nil, nil
	}
	res := new(big.Int).Quo(x, y)
	y.Set(u256(res))
	return nil, nil
}

func opMod(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	if y.Sign() == 0 {
		y.SetUint64(0)
	} else {
		y.Set(u256(x.Mod(x, y)))
	}
	return nil, nil
}

func opSmod(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := s256(scope.Stack.Pop()), s256(scope.Stack.Peek())
	if y.Sign() == 0 {
		y.SetUint64(0)
		return nil, nil
	}
	res := new(big.Int).Rem(x, y)
	y.Set(u256(res))
	return nil, nil
}

func opAddmod(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y, z := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Peek()
	if z.Sign() == 0 {
		z.SetUint64(0)
	} else {
		res := new(big.Int).Add(x, y)
		z.Set(u256(res.Mod(res, z)))
	}
	return nil, nil
}

func opMulmod(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y, z := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Peek()
	if z.Sign() == 0 {
		z.SetUint64(0)
	} else {
		res := new(big.Int).Mul(x, y)
		z.Set(u256(res.Mod(res, z)))
	}
	return nil, nil
}

func opExp(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	base, exponent := scope.Stack.Pop(), scope.Stack.Peek()
	exponent.Set(u256(new(big.Int).Exp(base, exponent, tt256)))
	return nil, nil
}

func opSignExtend(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	back, num := scope.Stack.Pop(), scope.Stack.Peek()
	if back.Cmp(big.NewInt(31)) < 0 {
		bit := uint(back.Uint64()*8 + 7)
		mask := new(big.Int).Lsh(big.NewInt(1), bit)
		mask.Sub(mask, big.NewInt(1))
		if num.Bit(int(bit)) > 0 {
			num.Or(num, new(big.Int).Not(mask))
			num.Set(u256(num))
		} else {
			num.And(num, mask)
		}
	}
	return nil, nil
}

// --- comparisons and bitwise ---

func opLt(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Set(boolToWord(x.Cmp(y) < 0))
	return nil, nil
}

func opGt(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Set(boolToWord(x.Cmp(y) > 0))
	return nil, nil
}

func opSlt(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := s256(scope.Stack.Pop()), s256(scope.Stack.Peek())
	res := boolToWord(x.Cmp(y) < 0)
	scope.Stack.Peek().Set(res)
	return nil, nil
}

func opSgt(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := s256(scope.Stack.Pop()), s256(scope.Stack.Peek())
	res := boolToWord(x.Cmp(y) > 0)
	scope.Stack.Peek().Set(res)
	return nil, nil
}

func opEq(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Set(boolToWord(x.Cmp(y) == 0))
	return nil, nil
}

func opIszero(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x := scope.Stack.Peek()
	x.Set(boolToWord(x.Sign() == 0))
	return nil, nil
}

func opAnd(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.And(x, y)
	return nil, nil
}

func opOr(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Or(x, y)
	return nil, nil
}

func opXor(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Xor(x, y)
	return nil, nil
}

func opNot(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x := scope.Stack.Peek()
	x.Set(u256(new(big.Int).Not(x)))
	return nil, nil
}

func opByte(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	th, val := scope.Stack.Pop(), scope.Stack.Peek()
	if th.Cmp(big.NewInt(32)) >= 0 {
		val.SetUint64(0)
		return nil, nil
	}
	b := new(big.Int).Rsh(val, uint(8*(31-th.Uint64())))
	val.SetUint64(b.Uint64() & 0xff)
	return nil, nil
}

func opShl(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	shift, value := scope.Stack.Pop(), scope.Stack.Peek()
	if shift.Cmp(big.NewInt(256)) >= 0 {
		value.SetUint64(0)
		return nil, nil
	}
	value.Set(u256(value.Lsh(value, uint(shift.Uint64()))))
	return nil, nil
}

func opShr(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	shift, value := scope.Stack.Pop(), scope.Stack.Peek()
	if shift.Cmp(big.NewInt(256)) >= 0 {
		value.SetUint64(0)
		return nil, nil
	}
	value.Rsh(value, uint(shift.Uint64()))
	return nil, nil
}

func opSar(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	shift := scope.Stack.Pop()
	value := s256(scope.Stack.Peek())
	if shift.Cmp(big.NewInt(256)) >= 0 {
		if value.Sign() >= 0 {
			scope.Stack.Peek().SetUint64(0)
		} else {
			scope.Stack.Peek().Set(u256(big.NewInt(-1)))
		}
		return nil, nil
	}
	res := new(big.Int).Rsh(value, uint(shift.Uint64()))
	scope.Stack.Peek().Set(u256(res))
	return nil, nil
}

// --- sha3 ---

func opSha3(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, size := scope.Stack.Pop(), scope.Stack.Peek()
	data := scope.Memory.GetPtr(offset.Int64(), size.Int64())
	hash := crypto.Keccak256(data)
	size.SetBytes(hash)
	return nil, nil
}

// --- environment ---

func opAddress(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).SetBytes(scope.Contract.Address.Bytes()))
	return nil, nil
}

func opBalance(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	slot := scope.Stack.Peek()
	addr := types.BytesToAddress(slot.Bytes())
	slot.Set(in.evm.StateDB.GetBalance(addr))
	return nil, nil
}

func opOrigin(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).SetBytes(in.evm.TxContext.Origin.Bytes()))
	return nil, nil
}

func opCaller(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).SetBytes(scope.Contract.Caller.Bytes()))
	return nil, nil
}

func opCallValue(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).Set(scope.Contract.Value))
	return nil, nil
}

func opCallDataLoad(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	x := scope.Stack.Peek()
	off := x.Uint64()
	data := make([]byte, 32)
	if off < uint64(len(scope.Contract.Input)) {
		copy(data, scope.Contract.Input[off:])
	}
	x.SetBytes(data)
	return nil, nil
}

func opCallDataSize(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(big.NewInt(int64(len(scope.Contract.Input))))
	return nil, nil
}

func opCallDataCopy(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	memOff, dataOff, length := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	data := getDataSlice(scope.Contract.Input, dataOff.Uint64(), length.Uint64())
	scope.Memory.Set(memOff.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opCodeSize(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(big.NewInt(int64(len(scope.Contract.Code))))
	return nil, nil
}

func opCodeCopy(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	memOff, codeOff, length := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	data := getDataSlice(scope.Contract.Code, codeOff.Uint64(), length.Uint64())
	scope.Memory.Set(memOff.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opGasprice(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).Set(in.evm.TxContext.GasPrice))
	return nil, nil
}

func opExtCodeSize(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	slot := scope.Stack.Peek()
	addr := types.BytesToAddress(slot.Bytes())
	slot.SetUint64(uint64(in.evm.StateDB.GetCodeSize(addr)))
	return nil, nil
}

func opExtCodeCopy(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	addrWord, memOff, codeOff, length := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	addr := types.BytesToAddress(addrWord.Bytes())
	code := in.evm.StateDB.GetCode(addr)
	data := getDataSlice(code, codeOff.Uint64(), length.Uint64())
	scope.Memory.Set(memOff.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opReturnDataSize(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(big.NewInt(int64(len(in.returnData))))
	return nil, nil
}

func opReturnDataCopy(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	memOff, dataOff, length := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	end := new(big.Int).Add(dataOff, length)
	if !end.IsUint64() || end.Uint64() > uint64(len(in.returnData)) {
		return nil, ErrReturnDataOutOfBounds
	}
	data := in.returnData[dataOff.Uint64():end.Uint64()]
	scope.Memory.Set(memOff.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opExtCodeHash(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	slot := scope.Stack.Peek()
	addr := types.BytesToAddress(slot.Bytes())
	if !in.evm.StateDB.Exist(addr) || in.evm.StateDB.Empty(addr) {
		slot.SetUint64(0)
		return nil, nil
	}
	slot.Set(hashToBig(in.evm.StateDB.GetCodeHash(addr)))
	return nil, nil
}

// getDataSlice returns length bytes of data starting at offset, zero-padded
// past the end, without panicking on out-of-range offsets.
func getDataSlice(data []byte, offset, length uint64) []byte {
	out := make([]byte, length)
	if offset >= uint64(len(data)) {
		return out
	}
	end := offset + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[offset:end])
	return out
}

// --- block ---

func opBlockhash(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	num := scope.Stack.Peek()
	if in.evm.BlockContext.GetHash == nil || !num.IsUint64() {
		num.SetUint64(0)
		return nil, nil
	}
	h := in.evm.BlockContext.GetHash(num.Uint64())
	num.Set(hashToBig(h))
	return nil, nil
}

func opCoinbase(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).SetBytes(in.evm.BlockContext.Coinbase.Bytes()))
	return nil, nil
}

func opTimestamp(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).SetUint64(in.evm.BlockContext.Time))
	return nil, nil
}

func opNumber(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).Set(in.evm.BlockContext.BlockNumber))
	return nil, nil
}

func opDifficulty(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).Set(in.evm.BlockContext.Difficulty))
	return nil, nil
}

func opGasLimit(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).SetUint64(in.evm.BlockContext.GasLimit))
	return nil, nil
}

func opChainID(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).Set(in.evm.BlockContext.ChainID))
	return nil, nil
}

func opSelfBalance(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(in.evm.StateDB.GetBalance(scope.Contract.Address))
	return nil, nil
}

// --- stack, memory, storage, flow ---

func opPop(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Pop()
	return nil, nil
}

func opMload(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	v := scope.Stack.Peek()
	offset := v.Uint64()
	v.SetBytes(scope.Memory.GetPtr(int64(offset), 32))
	return nil, nil
}

func opMstore(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, value := scope.Stack.Pop(), scope.Stack.Pop()
	scope.Memory.Set32(offset.Uint64(), value.Bytes())
	return nil, nil
}

func opMstore8(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, value := scope.Stack.Pop(), scope.Stack.Pop()
	scope.Memory.store[offset.Uint64()] = byte(value.Uint64())
	return nil, nil
}

func opSload(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	slot := scope.Stack.Peek()
	key := bigToHash(slot)
	val := in.evm.StateDB.GetState(scope.Contract.Address, key)
	slot.Set(hashToBig(val))
	return nil, nil
}

func opSstore(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	key, val := scope.Stack.Pop(), scope.Stack.Pop()
	in.evm.StateDB.SetState(scope.Contract.Address, bigToHash(key), bigToHash(val))
	return nil, nil
}

func opJump(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	dest := scope.Stack.Pop()
	if !scope.Contract.validJumpdest(dest) {
		return nil, ErrInvalidJump
	}
	*pc = dest.Uint64()
	return nil, nil
}

func opJumpi(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	dest, cond := scope.Stack.Pop(), scope.Stack.Pop()
	if cond.Sign() != 0 {
		if !scope.Contract.validJumpdest(dest) {
			return nil, ErrInvalidJump
		}
		*pc = dest.Uint64()
	} else {
		*pc++
	}
	return nil, nil
}

func opPc(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).SetUint64(*pc))
	return nil, nil
}

func opMsize(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(big.NewInt(int64(scope.Memory.Len())))
	return nil, nil
}

func opGas(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int).SetUint64(scope.Contract.Gas))
	return nil, nil
}

func opJumpdest(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) { return nil, nil }

func opPush0(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(new(big.Int))
	return nil, nil
}

func makePush(size int) executionFunc {
	return func(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
		start := *pc + 1
		data := getDataSlice(scope.Contract.Code, start, uint64(size))
		scope.Stack.Push(new(big.Int).SetBytes(data))
		*pc += uint64(size)
		return nil, nil
	}
}

func makeDup(n int) executionFunc {
	return func(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
		scope.Stack.Dup(n)
		return nil, nil
	}
}

func makeSwap(n int) executionFunc {
	return func(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
		scope.Stack.Swap(n)
		return nil, nil
	}
}

func makeLog(topicCount int) executionFunc {
	return func(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
		offset, size := scope.Stack.Pop(), scope.Stack.Pop()
		topics := make([]types.Hash, topicCount)
		for i := 0; i < topicCount; i++ {
			topics[i] = bigToHash(scope.Stack.Pop())
		}
		data := scope.Memory.GetPtr(offset.Int64(), size.Int64())
		logCopy := make([]byte, len(data))
		copy(logCopy, data)
		in.evm.StateDB.AddLog(&types.Log{
			Address: scope.Contract.Address,
			Topics:  topics,
			Data:    logCopy,
		})
		return nil, nil
	}
}

// --- system ---

func opCreate(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	value, offset, size := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	input := scope.Memory.Get(offset.Int64(), size.Int64())

	if in.evm.Config.NoRecursion {
		scope.Stack.Push(bigFalse())
		return nil, nil
	}

	ret, addr, returnGas, err := in.evm.Create(scope.Contract.Address, input, scope.Contract.Gas, value)
	scope.Contract.Gas = returnGas
	in.returnData = ret

	if err != nil && err != ErrExecutionReverted {
		scope.Stack.Push(bigFalse())
	} else {
		scope.Stack.Push(new(big.Int).SetBytes(addr.Bytes()))
	}
	return nil, nil
}

func opCreate2(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	value, offset, size, salt := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	input := scope.Memory.Get(offset.Int64(), size.Int64())

	ret, addr, returnGas, err := in.evm.Create2(scope.Contract.Address, input, scope.Contract.Gas, value, salt)
	scope.Contract.Gas = returnGas
	in.returnData = ret

	if err != nil && err != ErrExecutionReverted {
		scope.Stack.Push(bigFalse())
	} else {
		scope.Stack.Push(new(big.Int).SetBytes(addr.Bytes()))
	}
	return nil, nil
}

func opCall(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	gas, addrWord, value := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	inOffset, inSize, retOffset, retSize := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()

	addr := types.BytesToAddress(addrWord.Bytes())
	input := scope.Memory.Get(inOffset.Int64(), inSize.Int64())

	callGas := callGasBudget(scope.Contract.Gas, gas.Uint64(), value.Sign() != 0)
	ret, returnGas, err := in.evm.Call(scope.Contract.Address, addr, input, callGas, value)
	scope.Contract.Gas += returnGas
	in.returnData = ret

	if err != nil {
		scope.Stack.Push(bigFalse())
	} else {
		scope.Stack.Push(bigTrue())
	}
	if err == nil || err == ErrExecutionReverted {
		scope.Memory.Set(retOffset.Uint64(), minUint64(retSize.Uint64(), uint64(len(ret))), ret)
	}
	return nil, nil
}

func opCallCode(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	gas, addrWord, value := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	inOffset, inSize, retOffset, retSize := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()

	addr := types.BytesToAddress(addrWord.Bytes())
	input := scope.Memory.Get(inOffset.Int64(), inSize.Int64())

	callGas := callGasBudget(scope.Contract.Gas, gas.Uint64(), value.Sign() != 0)
	ret, returnGas, err := in.evm.CallCode(scope.Contract.Address, addr, input, callGas, value)
	scope.Contract.Gas += returnGas
	in.returnData = ret

	if err != nil {
		scope.Stack.Push(bigFalse())
	} else {
		scope.Stack.Push(bigTrue())
	}
	if err == nil || err == ErrExecutionReverted {
		scope.Memory.Set(retOffset.Uint64(), minUint64(retSize.Uint64(), uint64(len(ret))), ret)
	}
	return nil, nil
}

func opDelegateCall(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	gas, addrWord := scope.Stack.Pop(), scope.Stack.Pop()
	inOffset, inSize, retOffset, retSize := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()

	addr := types.BytesToAddress(addrWord.Bytes())
	input := scope.Memory.Get(inOffset.Int64(), inSize.Int64())

	callGas := callGasBudget(scope.Contract.Gas, gas.Uint64(), false)
	ret, returnGas, err := in.evm.DelegateCall(scope.Contract.Caller, scope.Contract.Address, addr, input, callGas, scope.Contract.Value)
	scope.Contract.Gas += returnGas
	in.returnData = ret

	if err != nil {
		scope.Stack.Push(bigFalse())
	} else {
		scope.Stack.Push(bigTrue())
	}
	if err == nil || err == ErrExecutionReverted {
		scope.Memory.Set(retOffset.Uint64(), minUint64(retSize.Uint64(), uint64(len(ret))), ret)
	}
	return nil, nil
}

func opStaticCall(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	gas, addrWord := scope.Stack.Pop(), scope.Stack.Pop()
	inOffset, inSize, retOffset, retSize := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()

	addr := types.BytesToAddress(addrWord.Bytes())
	input := scope.Memory.Get(inOffset.Int64(), inSize.Int64())

	callGas := callGasBudget(scope.Contract.Gas, gas.Uint64(), false)
	ret, returnGas, err := in.evm.StaticCall(scope.Contract.Address, addr, input, callGas)
	scope.Contract.Gas += returnGas
	in.returnData = ret

	if err != nil {
		scope.Stack.Push(bigFalse())
	} else {
		scope.Stack.Push(bigTrue())
	}
	if err == nil || err == ErrExecutionReverted {
		scope.Memory.Set(retOffset.Uint64(), minUint64(retSize.Uint64(), uint64(len(ret))), ret)
	}
	return nil, nil
}

func opReturn(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, size := scope.Stack.Pop(), scope.Stack.Pop()
	return scope.Memory.Get(offset.Int64(), size.Int64()), nil
}

func opRevert(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, size := scope.Stack.Pop(), scope.Stack.Pop()
	return scope.Memory.Get(offset.Int64(), size.Int64()), ErrExecutionReverted
}

func opSelfdestruct(pc *uint64, in *Interpreter, scope *ScopeContext) ([]byte, error) {
	beneficiaryWord := scope.Stack.Pop()
	beneficiary := types.BytesToAddress(beneficiaryWord.Bytes())
	balance := in.evm.StateDB.GetBalance(scope.Contract.Address)
	in.evm.StateDB.AddBalance(beneficiary, balance)
	in.evm.StateDB.SelfDestruct(scope.Contract.Address)
	return nil, nil
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// callGasBudget applies the classic "63/64ths" call-forwarding rule together
// with the fixed-stipend top-up for value-carrying calls.
func callGasBudget(available, requested uint64, hasValue bool) uint64 {
	capped := available - available/64
	if requested < capped {
		capped = requested
	}
	if hasValue {
		capped += CallStipend
	}
	return capped
}
