package types

import (
	"bytes"
	"math/big"
	"testing"
)

func TestLegacyTxRoundTrip(t *testing.T) {
	to := HexToAddress("0xdead")
	tx := NewTransaction(1, &to, big.NewInt(1_000_000_000_000_000_000), 21000, big.NewInt(20_000_000_000), []byte{0xca, 0xfe})
	tx.SetSignatureValues(big.NewInt(37), big.NewInt(123456789), big.NewInt(987654321))

	enc, err := tx.EncodeRLP()
	if err != nil {
		t.Fatalf("EncodeRLP: %v", err)
	}
	// Legacy tx encoding should start with an RLP list prefix (>= 0xc0).
	if enc[0] < 0xc0 {
		t.Fatalf("legacy tx encoding should start with list prefix, got 0x%02x", enc[0])
	}

	decoded, err := DecodeTxRLP(enc)
	if err != nil {
		t.Fatalf("DecodeTxRLP: %v", err)
	}
	assertTxEqual(t, tx, decoded)
}

func TestLegacyTxContractCreationRoundTrip(t *testing.T) {
	tx := NewContractCreation(0, big.NewInt(0), 100000, big.NewInt(1), []byte{0x60, 0x80, 0x60, 0x40, 0x52})
	tx.SetSignatureValues(big.NewInt(27), big.NewInt(1), big.NewInt(1))

	enc, err := tx.EncodeRLP()
	if err != nil {
		t.Fatalf("EncodeRLP: %v", err)
	}

	decoded, err := DecodeTxRLP(enc)
	if err != nil {
		t.Fatalf("DecodeTxRLP: %v", err)
	}
	if decoded.To() != nil {
		t.Fatal("decoded contract creation should have nil To")
	}
	if !bytes.Equal(decoded.Data(), tx.Data()) {
		t.Fatal("Data mismatch")
	}
}

func TestEmptyDataRoundTrip(t *testing.T) {
	to := HexToAddress("0xdead")
	tx := NewTransaction(0, &to, big.NewInt(0), 21000, big.NewInt(1), nil)
	tx.SetSignatureValues(big.NewInt(27), big.NewInt(1), big.NewInt(1))

	enc, err := tx.EncodeRLP()
	if err != nil {
		t.Fatalf("EncodeRLP: %v", err)
	}

	decoded, err := DecodeTxRLP(enc)
	if err != nil {
		t.Fatalf("DecodeTxRLP: %v", err)
	}
	// nil and empty []byte are equivalent in RLP.
	if len(decoded.Data()) != 0 {
		t.Fatal("decoded empty data should have length 0")
	}
}

func TestTransactionHashConsistency(t *testing.T) {
	to := HexToAddress("0xdead")
	tx := NewTransaction(42, &to, big.NewInt(1_000_000), 21000, big.NewInt(100_000_000_000), []byte{0x01, 0x02})
	tx.SetSignatureValues(big.NewInt(0), big.NewInt(12345), big.NewInt(67890))

	h1 := tx.Hash()
	h2 := tx.Hash()
	if h1 != h2 {
		t.Fatal("Hash() should return consistent results")
	}
	if h1.IsZero() {
		t.Fatal("hash should not be zero")
	}

	enc, err := tx.EncodeRLP()
	if err != nil {
		t.Fatalf("EncodeRLP: %v", err)
	}
	decoded, err := DecodeTxRLP(enc)
	if err != nil {
		t.Fatalf("DecodeTxRLP: %v", err)
	}
	if decoded.Hash() != h1 {
		t.Fatal("decoded transaction should produce the same hash")
	}
}

func TestTransactionHashIsKeccak(t *testing.T) {
	to := HexToAddress("0xdead")
	tx := NewTransaction(1, &to, big.NewInt(500), 21000, big.NewInt(100), nil)
	tx.SetSignatureValues(big.NewInt(27), big.NewInt(1), big.NewInt(1))
	h := tx.Hash()

	// Keccak-256 produces 32 bytes; verify non-zero and length.
	if len(h) != 32 {
		t.Fatalf("expected 32-byte hash, got %d", len(h))
	}
	if h.IsZero() {
		t.Fatal("hash should not be zero")
	}
}

func TestLegacyTxZeroValues(t *testing.T) {
	tx := NewTransaction(0, nil, big.NewInt(0), 0, big.NewInt(0), nil)
	tx.SetSignatureValues(big.NewInt(0), big.NewInt(0), big.NewInt(0))

	enc, err := tx.EncodeRLP()
	if err != nil {
		t.Fatalf("EncodeRLP: %v", err)
	}

	decoded, err := DecodeTxRLP(enc)
	if err != nil {
		t.Fatalf("DecodeTxRLP: %v", err)
	}
	if decoded.Nonce() != 0 {
		t.Fatal("nonce mismatch")
	}
	if decoded.Gas() != 0 {
		t.Fatal("gas mismatch")
	}
	if decoded.To() != nil {
		t.Fatal("To should be nil")
	}
}

func TestDecodeInvalidData(t *testing.T) {
	_, err := DecodeTxRLP(nil)
	if err == nil {
		t.Fatal("expected error for nil data")
	}
	_, err = DecodeTxRLP([]byte{})
	if err == nil {
		t.Fatal("expected error for empty data")
	}
}

// assertTxEqual compares two transactions' core fields.
func assertTxEqual(t *testing.T, expected, actual *Transaction) {
	t.Helper()
	if expected.Type() != actual.Type() {
		t.Fatalf("Type: expected %d, got %d", expected.Type(), actual.Type())
	}
	if expected.Nonce() != actual.Nonce() {
		t.Fatalf("Nonce: expected %d, got %d", expected.Nonce(), actual.Nonce())
	}
	if expected.Gas() != actual.Gas() {
		t.Fatalf("Gas: expected %d, got %d", expected.Gas(), actual.Gas())
	}
	if cmpBigInt(expected.GasPrice(), actual.GasPrice()) != 0 {
		t.Fatalf("GasPrice: expected %s, got %s", expected.GasPrice(), actual.GasPrice())
	}
	if cmpBigInt(expected.Value(), actual.Value()) != 0 {
		t.Fatalf("Value: expected %s, got %s", expected.Value(), actual.Value())
	}
	if !bytes.Equal(expected.Data(), actual.Data()) {
		t.Fatalf("Data: expected %x, got %x", expected.Data(), actual.Data())
	}
	if expected.To() == nil && actual.To() != nil {
		t.Fatal("To: expected nil, got non-nil")
	}
	if expected.To() != nil && actual.To() == nil {
		t.Fatal("To: expected non-nil, got nil")
	}
	if expected.To() != nil && *expected.To() != *actual.To() {
		t.Fatalf("To: expected %s, got %s", expected.To(), actual.To())
	}
}

func cmpBigInt(a, b *big.Int) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -b.Sign()
	}
	if b == nil {
		return a.Sign()
	}
	return a.Cmp(b)
}
