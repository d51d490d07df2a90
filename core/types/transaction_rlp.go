package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/evmcore/evmcore/rlp"
	"golang.org/x/crypto/sha3"
)

var errEmptyTx = errors.New("empty transaction data")

// legacyTxRLP is the RLP encoding layout for a transaction.
// Fields: [nonce, gasPrice, gasLimit, to, value, data, v, r, s]
type legacyTxRLP struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       []byte // empty for contract creation, 20 bytes otherwise
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

// EncodeRLP returns the RLP encoding of the transaction.
func (tx *Transaction) EncodeRLP() ([]byte, error) {
	enc := legacyTxRLP{
		Nonce:    tx.nonce,
		GasPrice: bigOrZero(tx.gasPrice),
		Gas:      tx.gas,
		To:       addressPtrToBytes(tx.to),
		Value:    bigOrZero(tx.value),
		Data:     tx.data,
		V:        bigOrZero(tx.v),
		R:        bigOrZero(tx.r),
		S:        bigOrZero(tx.s),
	}
	return rlp.EncodeToBytes(enc)
}

// DecodeTxRLP decodes an RLP-encoded transaction.
func DecodeTxRLP(data []byte) (*Transaction, error) {
	if len(data) == 0 {
		return nil, errEmptyTx
	}
	var dec legacyTxRLP
	if err := rlp.DecodeBytes(data, &dec); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	tx := NewTransaction(dec.Nonce, bytesToAddressPtr(dec.To), dec.Value, dec.Gas, dec.GasPrice, dec.Data)
	tx.v, tx.r, tx.s = dec.V, dec.R, dec.S
	return tx, nil
}

func addressPtrToBytes(a *Address) []byte {
	if a == nil {
		return nil
	}
	return a[:]
}

func bytesToAddressPtr(b []byte) *Address {
	if len(b) == 0 {
		return nil
	}
	a := BytesToAddress(b)
	return &a
}

// bigOrZero returns i if non-nil, otherwise a zero big.Int.
func bigOrZero(i *big.Int) *big.Int {
	if i != nil {
		return i
	}
	return new(big.Int)
}

// hashRLP computes Keccak-256 of the transaction's RLP encoding.
func (tx *Transaction) hashRLP() Hash {
	enc, err := tx.EncodeRLP()
	if err != nil {
		return Hash{}
	}
	d := sha3.NewLegacyKeccak256()
	d.Write(enc)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// SigningHash returns the hash that was signed to produce the transaction's
// signature: Keccak256(RLP([nonce, gasPrice, gas, to, value, data])) for a
// pre-EIP-155 signature, or with (chainID, 0, 0) appended for EIP-155.
func (tx *Transaction) SigningHash() Hash {
	chainID := deriveChainID(tx.v)
	toBytes := make([]byte, 0)
	if tx.to != nil {
		toBytes = tx.to[:]
	}

	var items [][]byte
	enc := func(v interface{}) {
		b, _ := rlp.EncodeToBytes(v)
		items = append(items, b)
	}

	enc(tx.nonce)
	enc(tx.gasPrice)
	enc(tx.gas)
	enc(toBytes)
	enc(tx.value)
	enc(tx.data)

	if chainID != nil && chainID.Sign() > 0 {
		enc(chainID)
		enc(uint(0))
		enc(uint(0))
	}

	var payload []byte
	for _, item := range items {
		payload = append(payload, item...)
	}
	encoded := rlp.WrapList(payload)

	d := sha3.NewLegacyKeccak256()
	d.Write(encoded)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}
