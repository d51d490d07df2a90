// proof_verifier.go provides standalone Merkle Patricia Trie proof
// verification. It is designed as a stateless verifier: no trie database
// is needed, only the root hash and the proof data.
package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/evmcore/evmcore/core/types"
)

// Proof verification errors.
var (
	ErrProofEmpty        = errors.New("proof_verifier: empty proof")
	ErrProofNilInput     = errors.New("proof_verifier: nil input")
	ErrRootMismatch      = errors.New("proof_verifier: root hash mismatch")
	ErrProofTruncated    = errors.New("proof_verifier: proof is truncated")
	ErrMultiProofInvalid = errors.New("proof_verifier: multi-proof verification failed")
)

// MPTProofResult holds the result of an MPT proof verification.
type MPTProofResult struct {
	// Key that was proven.
	Key []byte
	// Value at the key (nil for absence proofs).
	Value []byte
	// Exists indicates whether the key exists in the trie.
	Exists bool
}

// VerifyMPTProof verifies a Merkle Patricia Trie inclusion or exclusion proof.
// It returns the value if the key exists, or nil if the proof demonstrates
// absence. An error is returned if the proof is structurally invalid.
func VerifyMPTProof(rootHash types.Hash, key []byte, proof [][]byte) (*MPTProofResult, error) {
	if key == nil {
		return nil, ErrProofNilInput
	}

	result := &MPTProofResult{Key: key}

	// Empty proof is valid only for the empty trie root.
	if len(proof) == 0 {
		if rootHash == emptyRoot {
			result.Exists = false
			return result, nil
		}
		return nil, ErrProofEmpty
	}

	// Delegate to the existing VerifyProof for the core logic.
	val, err := VerifyProof(rootHash, key, proof)
	if err != nil {
		return nil, fmt.Errorf("proof_verifier: MPT verification failed: %w", err)
	}

	result.Value = val
	result.Exists = val != nil
	return result, nil
}

// MultiProofItem represents one key-value pair in a multi-proof.
type MultiProofItem struct {
	Key   []byte
	Value []byte
	Proof [][]byte
}

// MultiProofResult holds per-key verification results.
type MultiProofResult struct {
	Results []MPTProofResult
}

// VerifyMultiProof verifies multiple MPT proofs against the same root hash.
// Each item contains a key and its corresponding proof. All proofs must
// verify against the provided root hash. Returns all results or an error
// if any individual proof is invalid.
func VerifyMultiProof(rootHash types.Hash, items []MultiProofItem) (*MultiProofResult, error) {
	if len(items) == 0 {
		return nil, ErrProofEmpty
	}

	result := &MultiProofResult{
		Results: make([]MPTProofResult, len(items)),
	}

	for i, item := range items {
		if item.Key == nil {
			return nil, fmt.Errorf("%w: item %d has nil key", ErrProofNilInput, i)
		}

		r, err := VerifyMPTProof(rootHash, item.Key, item.Proof)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d (%x): %v", ErrMultiProofInvalid, i, item.Key, err)
		}

		result.Results[i] = *r

		// If caller provided an expected value, cross-check it.
		if item.Value != nil && r.Value != nil {
			if !bytes.Equal(item.Value, r.Value) {
				return nil, fmt.Errorf("%w: item %d value mismatch", ErrMultiProofInvalid, i)
			}
		}
	}

	return result, nil
}

// VerifyMPTAbsence is a convenience function to verify that a key does NOT
// exist in the trie. Returns nil on success (proven absent) or an error.
func VerifyMPTAbsence(rootHash types.Hash, key []byte, proof [][]byte) error {
	r, err := VerifyMPTProof(rootHash, key, proof)
	if err != nil {
		return err
	}
	if r.Exists {
		return fmt.Errorf("proof_verifier: key exists with value, expected absence")
	}
	return nil
}
