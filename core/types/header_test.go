package types

import (
	"math/big"
	"testing"
)

func TestHeaderFields(t *testing.T) {
	parentHash := HexToHash("0x1111")
	uncleHash := EmptyUncleHash
	coinbase := HexToAddress("0xaabbcc")

	h := &Header{
		ParentHash:  parentHash,
		UncleHash:   uncleHash,
		Coinbase:    coinbase,
		Root:        EmptyRootHash,
		TxHash:      EmptyRootHash,
		ReceiptHash: EmptyRootHash,
		Difficulty:  big.NewInt(0),
		Number:      big.NewInt(100),
		GasLimit:    30_000_000,
		GasUsed:     21_000,
		Time:        1700000000,
		Extra:       []byte("evmcore"),
	}

	if h.ParentHash != parentHash {
		t.Fatal("ParentHash mismatch")
	}
	if h.UncleHash != uncleHash {
		t.Fatal("UncleHash mismatch")
	}
	if h.Coinbase != coinbase {
		t.Fatal("Coinbase mismatch")
	}
	if h.Number.Int64() != 100 {
		t.Fatal("Number mismatch")
	}
	if h.GasLimit != 30_000_000 {
		t.Fatal("GasLimit mismatch")
	}
	if h.GasUsed != 21_000 {
		t.Fatal("GasUsed mismatch")
	}
	if h.Time != 1700000000 {
		t.Fatal("Time mismatch")
	}
	if string(h.Extra) != "evmcore" {
		t.Fatal("Extra mismatch")
	}
}

func TestHeaderHash(t *testing.T) {
	h := &Header{
		Difficulty: big.NewInt(0),
		Number:     big.NewInt(1),
	}
	hash1 := h.Hash()
	hash2 := h.Hash()
	if hash1 != hash2 {
		t.Fatal("Hash() should be consistent")
	}
}

func TestHeaderSize(t *testing.T) {
	h := &Header{
		Difficulty: big.NewInt(1),
		Number:     big.NewInt(1),
		Extra:      make([]byte, 32),
	}
	size := h.Size()
	if size == 0 {
		t.Fatal("Header size should be non-zero")
	}
	size2 := h.Size()
	if size != size2 {
		t.Fatal("Header size should be cached")
	}
}
