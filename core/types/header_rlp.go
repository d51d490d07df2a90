package types

import (
	"math/big"

	"github.com/evmcore/evmcore/rlp"
	"golang.org/x/crypto/sha3"
)

// EncodeRLP returns the RLP encoding of the header in Yellow Paper field order:
// [ParentHash, UncleHash, Coinbase, Root, TxHash, ReceiptHash, Bloom,
//
//	Difficulty, Number, GasLimit, GasUsed, Time, Extra, MixDigest, Nonce]
func (h *Header) EncodeRLP() ([]byte, error) {
	items := []interface{}{
		h.ParentHash,
		h.UncleHash,
		h.Coinbase,
		h.Root,
		h.TxHash,
		h.ReceiptHash,
		h.Bloom,
		bigIntOrZero(h.Difficulty),
		bigIntOrZero(h.Number),
		h.GasLimit,
		h.GasUsed,
		h.Time,
		h.Extra,
		h.MixDigest,
		h.Nonce,
	}
	return encodeRLPList(items)
}

// encodeRLPList encodes a list of items as an RLP list by encoding each item
// and wrapping the concatenated payload.
func encodeRLPList(items []interface{}) ([]byte, error) {
	var payload []byte
	for _, item := range items {
		enc, err := rlp.EncodeToBytes(item)
		if err != nil {
			return nil, err
		}
		payload = append(payload, enc...)
	}
	return rlp.WrapList(payload), nil
}

// bigIntOrZero returns v if non-nil, otherwise a zero big.Int.
func bigIntOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// DecodeHeaderRLP decodes an RLP-encoded header.
func DecodeHeaderRLP(data []byte) (*Header, error) {
	s := rlp.NewStreamFromBytes(data)
	if _, err := s.List(); err != nil {
		return nil, err
	}

	h := &Header{}
	var err error

	if err = decodeHash(s, &h.ParentHash); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.UncleHash); err != nil {
		return nil, err
	}
	if err = decodeAddress(s, &h.Coinbase); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.Root); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.TxHash); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.ReceiptHash); err != nil {
		return nil, err
	}
	if err = decodeBloom(s, &h.Bloom); err != nil {
		return nil, err
	}
	h.Difficulty, err = s.BigInt()
	if err != nil {
		return nil, err
	}
	h.Number, err = s.BigInt()
	if err != nil {
		return nil, err
	}
	h.GasLimit, err = s.Uint64()
	if err != nil {
		return nil, err
	}
	h.GasUsed, err = s.Uint64()
	if err != nil {
		return nil, err
	}
	h.Time, err = s.Uint64()
	if err != nil {
		return nil, err
	}
	h.Extra, err = s.Bytes()
	if err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.MixDigest); err != nil {
		return nil, err
	}
	if err = decodeBlockNonce(s, &h.Nonce); err != nil {
		return nil, err
	}

	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return h, nil
}

// decodeHash reads an RLP string into a Hash.
func decodeHash(s *rlp.Stream, h *Hash) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(h[HashLength-len(b):], b)
	return nil
}

// decodeAddress reads an RLP string into an Address.
func decodeAddress(s *rlp.Stream, a *Address) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(a[AddressLength-len(b):], b)
	return nil
}

// decodeBloom reads an RLP string into a Bloom.
func decodeBloom(s *rlp.Stream, bl *Bloom) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(bl[BloomLength-len(b):], b)
	return nil
}

// decodeBlockNonce reads an RLP string into a BlockNonce.
func decodeBlockNonce(s *rlp.Stream, n *BlockNonce) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(n[NonceLength-len(b):], b)
	return nil
}

// computeHeaderHash computes the Keccak-256 hash of the RLP-encoded header.
func computeHeaderHash(h *Header) Hash {
	enc, err := h.EncodeRLP()
	if err != nil {
		return Hash{}
	}
	d := sha3.NewLegacyKeccak256()
	d.Write(enc)
	var hash Hash
	copy(hash[:], d.Sum(nil))
	return hash
}
