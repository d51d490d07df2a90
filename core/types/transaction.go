package types

import (
	"math/big"
	"sync/atomic"
	"unsafe"
)

// LegacyTxType is the only transaction type this provider accepts: a
// pre-EIP-1559 transaction with a single gas price and an EIP-155 signature.
const LegacyTxType = 0x00

// Transaction represents a signed transaction.
type Transaction struct {
	nonce    uint64
	gasPrice *big.Int
	gas      uint64
	to       *Address // nil means contract creation
	value    *big.Int
	data     []byte
	v, r, s  *big.Int

	hash atomic.Pointer[Hash]
	size atomic.Uint64
	from atomic.Pointer[Address] // cached sender address
}

// NewTransaction creates a new transaction from its fields.
func NewTransaction(nonce uint64, to *Address, value *big.Int, gas uint64, gasPrice *big.Int, data []byte) *Transaction {
	tx := &Transaction{
		nonce: nonce,
		to:    copyAddressPtr(to),
		gas:   gas,
		data:  copyBytes(data),
	}
	if value != nil {
		tx.value = new(big.Int).Set(value)
	} else {
		tx.value = new(big.Int)
	}
	if gasPrice != nil {
		tx.gasPrice = new(big.Int).Set(gasPrice)
	} else {
		tx.gasPrice = new(big.Int)
	}
	return tx
}

// NewContractCreation creates a new contract-creation transaction (To == nil).
func NewContractCreation(nonce uint64, value *big.Int, gas uint64, gasPrice *big.Int, data []byte) *Transaction {
	return NewTransaction(nonce, nil, value, gas, gasPrice, data)
}

// SetSender caches the sender address on the transaction.
func (tx *Transaction) SetSender(addr Address) {
	a := addr
	tx.from.Store(&a)
}

// Sender returns the cached sender address, or nil if not yet set.
func (tx *Transaction) Sender() *Address {
	return tx.from.Load()
}

// Type returns the transaction type. There is only one.
func (tx *Transaction) Type() uint8 { return LegacyTxType }

// ChainId returns the chain ID derived from the EIP-155 V value.
func (tx *Transaction) ChainId() *big.Int { return deriveChainID(tx.v) }

// AccessList is always empty: this provider has no EIP-2930 access lists.
func (tx *Transaction) AccessList() AccessList { return nil }

// AccessList is a list of address-slot pairs. Kept for RPC call-object
// compatibility; transactions never carry a populated one.
type AccessList []AccessTuple

// AccessTuple is a single address and its accessed storage slots.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// Data returns the input data of the transaction.
func (tx *Transaction) Data() []byte { return tx.data }

// Gas returns the gas limit of the transaction.
func (tx *Transaction) Gas() uint64 { return tx.gas }

// GasPrice returns the gas price of the transaction.
func (tx *Transaction) GasPrice() *big.Int { return tx.gasPrice }

// Value returns the value transfer amount of the transaction.
func (tx *Transaction) Value() *big.Int { return tx.value }

// Nonce returns the nonce of the transaction.
func (tx *Transaction) Nonce() uint64 { return tx.nonce }

// To returns the recipient address, or nil for contract creation.
func (tx *Transaction) To() *Address { return tx.to }

// SetSignatureValues sets the V, R, S signature values of the transaction.
func (tx *Transaction) SetSignatureValues(v, r, s *big.Int) {
	tx.v, tx.r, tx.s = v, r, s
}

// RawSignatureValues returns the V, R, S signature values of the transaction.
func (tx *Transaction) RawSignatureValues() (v, r, s *big.Int) {
	return tx.v, tx.r, tx.s
}

// Copy returns a deep copy of the transaction.
func (tx *Transaction) Copy() *Transaction {
	cpy := &Transaction{
		nonce: tx.nonce,
		gas:   tx.gas,
		to:    copyAddressPtr(tx.to),
		data:  copyBytes(tx.data),
	}
	if tx.gasPrice != nil {
		cpy.gasPrice = new(big.Int).Set(tx.gasPrice)
	}
	if tx.value != nil {
		cpy.value = new(big.Int).Set(tx.value)
	}
	if tx.v != nil {
		cpy.v = new(big.Int).Set(tx.v)
	}
	if tx.r != nil {
		cpy.r = new(big.Int).Set(tx.r)
	}
	if tx.s != nil {
		cpy.s = new(big.Int).Set(tx.s)
	}
	return cpy
}

// Hash returns the transaction hash (Keccak-256 of RLP encoding), caching on first call.
func (tx *Transaction) Hash() Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	h := tx.hashRLP()
	tx.hash.Store(&h)
	return h
}

// Size returns the approximate memory footprint of the transaction.
func (tx *Transaction) Size() uint64 {
	if cached := tx.size.Load(); cached != 0 {
		return cached
	}
	s := uint64(unsafe.Sizeof(*tx)) + uint64(len(tx.data))
	tx.size.Store(s)
	return s
}

// Helpers

func copyAddressPtr(a *Address) *Address {
	if a == nil {
		return nil
	}
	cpy := *a
	return &cpy
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cpy := make([]byte, len(b))
	copy(cpy, b)
	return cpy
}

// deriveChainID derives the chain ID from a legacy V value.
func deriveChainID(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	if v.BitLen() <= 8 {
		val := v.Uint64()
		if val == 27 || val == 28 {
			return new(big.Int)
		}
	}
	// v = chainID * 2 + 35 => chainID = (v - 35) / 2
	chainID := new(big.Int).Sub(v, big.NewInt(35))
	chainID.Div(chainID, big.NewInt(2))
	return chainID
}
