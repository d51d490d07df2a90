package vm

import (
	"math/big"

	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/crypto"
	"github.com/evmcore/evmcore/rlp"
)

// frame describes one call frame: the contract being run and whether it is
// read-only. The call path does not use it: Call, CallCode, DelegateCall,
// StaticCall, Create and Create2 each run the interpreter through a nested Go
// call, and call depth is bounded by evm.depth against MaxCallDepth.
type frame struct {
	contract *Contract
	readOnly bool
}

// Call executes the contract at addr with the given input and value,
// transferring value from caller to addr before running its code.
func (evm *EVM) Call(caller types.Address, addr types.Address, input []byte, gas uint64, value *big.Int) ([]byte, uint64, error) {
	return evm.call(caller, addr, input, gas, value, false, false)
}

// CallCode executes addr's code in the context of caller's storage and
// balance, transferring value from caller to itself.
func (evm *EVM) CallCode(caller types.Address, addr types.Address, input []byte, gas uint64, value *big.Int) ([]byte, uint64, error) {
	return evm.call(caller, addr, input, gas, value, true, false)
}

// StaticCall executes addr's code read-only: no balance transfer, and any
// state-writing opcode aborts the frame.
func (evm *EVM) StaticCall(caller types.Address, addr types.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	return evm.call(caller, addr, input, gas, new(big.Int), false, true)
}

func (evm *EVM) call(caller types.Address, addr types.Address, input []byte, gas uint64, value *big.Int, useCallerStorage bool, readOnly bool) ([]byte, uint64, error) {
	if evm.depth >= MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if value.Sign() != 0 && readOnly {
		return nil, gas, ErrWriteProtection
	}
	if value.Sign() != 0 && !useCallerStorage {
		if evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
			return nil, gas, ErrInsufficientBalance
		}
	}

	snapshot := evm.StateDB.Snapshot()

	execAddr := addr
	if useCallerStorage {
		execAddr = caller
	}

	if !evm.StateDB.Exist(addr) {
		evm.StateDB.CreateAccount(addr)
	}
	if value.Sign() != 0 && !useCallerStorage {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(addr, value)
	}

	if p, ok := isPrecompile(addr); ok {
		return runPrecompile(p, input, gas)
	}

	code := evm.StateDB.GetCode(addr)
	contract := NewContract(caller, execAddr, value, gas)
	contract.SetCallCode(code, evm.StateDB.GetCodeHash(addr))
	contract.DelegateCall = useCallerStorage

	evm.depth++
	ret, err := evm.interpreter.Run(contract, input, readOnly)
	evm.depth--

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	return ret, contract.Gas, err
}

// DelegateCall executes addr's code with caller's original caller, value,
// and storage identity preserved (used for library-style delegation).
func (evm *EVM) DelegateCall(originalCaller types.Address, self types.Address, addr types.Address, input []byte, gas uint64, value *big.Int) ([]byte, uint64, error) {
	if evm.depth >= MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if p, ok := isPrecompile(addr); ok {
		return runPrecompile(p, input, gas)
	}

	snapshot := evm.StateDB.Snapshot()

	code := evm.StateDB.GetCode(addr)
	contract := NewContract(originalCaller, self, value, gas)
	contract.SetCallCode(code, evm.StateDB.GetCodeHash(addr))
	contract.DelegateCall = true

	evm.depth++
	ret, err := evm.interpreter.Run(contract, input, false)
	evm.depth--

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	return ret, contract.Gas, err
}

// Create deploys init-code code as a new contract, owned by caller, at the
// legacy nonce-derived address.
func (evm *EVM) Create(caller types.Address, code []byte, gas uint64, value *big.Int) ([]byte, types.Address, uint64, error) {
	nonce := evm.StateDB.GetNonce(caller)
	addr := createAddress(caller, nonce)
	return evm.create(caller, code, gas, value, addr)
}

// Create2 deploys init-code code as a new contract at a salt-derived address
// that's independent of caller's nonce, per CREATE2 semantics.
func (evm *EVM) Create2(caller types.Address, code []byte, gas uint64, value *big.Int, salt *big.Int) ([]byte, types.Address, uint64, error) {
	addr := createAddress2(caller, salt, code)
	return evm.create(caller, code, gas, value, addr)
}

func (evm *EVM) create(caller types.Address, code []byte, gas uint64, value *big.Int, addr types.Address) ([]byte, types.Address, uint64, error) {
	if evm.depth >= MaxCallDepth {
		return nil, types.Address{}, gas, ErrMaxCallDepthExceeded
	}
	if value.Sign() != 0 && evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
		return nil, types.Address{}, gas, ErrInsufficientBalance
	}
	if len(code) > MaxInitCodeSize {
		return nil, types.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}

	evm.StateDB.SetNonce(caller, evm.StateDB.GetNonce(caller)+1)

	if evm.StateDB.Exist(addr) && (evm.StateDB.GetCodeSize(addr) != 0 || evm.StateDB.GetNonce(addr) != 0) {
		return nil, addr, gas, ErrContractAddrCollision
	}

	snapshot := evm.StateDB.Snapshot()
	evm.StateDB.CreateAccount(addr)
	evm.StateDB.SetNonce(addr, 1)
	if value.Sign() != 0 {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(addr, value)
	}

	contract := NewContract(caller, addr, value, gas)
	contract.SetCallCode(code, types.Hash{})

	evm.depth++
	ret, err := evm.interpreter.Run(contract, nil, false)
	evm.depth--

	if err == nil && len(ret) > MaxCodeSize {
		err = ErrMaxCodeSizeExceeded
	}
	if err == nil {
		createDataGas := uint64(len(ret)) * CreateDataGas
		if !contract.UseGas(createDataGas) {
			err = ErrOutOfGas
		} else {
			evm.StateDB.SetCode(addr, ret)
		}
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
		return ret, addr, contract.Gas, err
	}
	return ret, addr, contract.Gas, nil
}

// createAddress derives the legacy CREATE contract address:
// keccak256(rlp([sender, nonce]))[12:].
func createAddress(sender types.Address, nonce uint64) types.Address {
	data, _ := rlp.EncodeToBytes([]interface{}{sender.Bytes(), nonce})
	hash := crypto.Keccak256(data)
	var addr types.Address
	copy(addr[:], hash[12:])
	return addr
}

// createAddress2 derives the CREATE2 contract address:
// keccak256(0xff ++ sender ++ salt ++ keccak256(initcode))[12:].
func createAddress2(sender types.Address, salt *big.Int, initcode []byte) types.Address {
	codeHash := crypto.Keccak256(initcode)
	saltBytes := make([]byte, 32)
	salt.FillBytes(saltBytes)

	input := make([]byte, 0, 1+20+32+32)
	input = append(input, 0xff)
	input = append(input, sender.Bytes()...)
	input = append(input, saltBytes...)
	input = append(input, codeHash...)

	hash := crypto.Keccak256(input)
	var addr types.Address
	copy(addr[:], hash[12:])
	return addr
}
