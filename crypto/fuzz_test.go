package crypto

import (
	"testing"
)

// FuzzKeccak256 hashes random data with Keccak-256.
// It must never panic and must always return exactly 32 bytes.
func FuzzKeccak256(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add([]byte{0xff})
	f.Add([]byte("hello world"))
	f.Add(make([]byte, 32))
	f.Add(make([]byte, 256))

	f.Fuzz(func(t *testing.T, data []byte) {
		h := Keccak256(data)
		if len(h) != 32 {
			t.Fatalf("Keccak256 output length: got %d, want 32", len(h))
		}

		// Determinism: same input always produces same output.
		h2 := Keccak256(data)
		for i := range h {
			if h[i] != h2[i] {
				t.Fatalf("Keccak256 non-deterministic at byte %d", i)
			}
		}

		// Multi-part hash: Keccak256(a, b) == Keccak256(concat(a, b)).
		if len(data) >= 2 {
			mid := len(data) / 2
			multi := Keccak256(data[:mid], data[mid:])
			single := Keccak256(data)
			for i := range multi {
				if multi[i] != single[i] {
					t.Fatalf("Keccak256 multi-part mismatch at byte %d", i)
				}
			}
		}

		// KeccakHash wrapper must also produce 32 bytes.
		hh := Keccak256Hash(data)
		if len(hh) != 32 {
			t.Fatalf("Keccak256Hash output length: got %d, want 32", len(hh))
		}
	})
}
