package types

import (
	"errors"
	"math/big"

	dcrecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/evmcore/evmcore/rlp"
	"golang.org/x/crypto/sha3"
)

var (
	errInvalidSig     = errors.New("invalid transaction signature")
	errNoRecovery     = errors.New("public key recovery failed")
)

// secp256k1N is the order of the secp256k1 curve, used to bound-check
// signature components before recovery.
var secp256k1N, _ = new(big.Int).SetString(
	"fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16,
)

// Signer hashes transactions for signing and recovers their sender.
type Signer interface {
	// ChainID returns the chain ID this signer operates on.
	ChainID() uint64

	// Hash returns the signing hash for the given transaction.
	Hash(tx *Transaction) Hash

	// Sender recovers the sender address from the transaction's signature.
	Sender(tx *Transaction) (Address, error)
}

// EIP155Signer implements Signer for EIP-155 replay-protected transactions.
type EIP155Signer struct {
	chainID uint64
}

// NewEIP155Signer creates a signer for the given chain ID.
func NewEIP155Signer(chainID uint64) EIP155Signer {
	return EIP155Signer{chainID: chainID}
}

// ChainID returns the chain ID.
func (s EIP155Signer) ChainID() uint64 { return s.chainID }

// Hash returns the signing hash for a transaction.
func (s EIP155Signer) Hash(tx *Transaction) Hash {
	return tx.SigningHash()
}

// Sender recovers the sender address from a transaction's signature.
func (s EIP155Signer) Sender(tx *Transaction) (Address, error) {
	v, r, ss := tx.RawSignatureValues()
	if v == nil || r == nil || ss == nil {
		return Address{}, errInvalidSig
	}

	var recovery byte
	vVal := v.Uint64()
	switch {
	case vVal == 27 || vVal == 28:
		recovery = byte(vVal - 27)
	case s.chainID != 0:
		// EIP-155: V = chainID*2 + 35 + recoveryID
		recovery = byte(vVal - 35 - 2*s.chainID)
	default:
		return Address{}, errInvalidSig
	}
	if recovery > 1 {
		return Address{}, errInvalidSig
	}

	sigHash := tx.SigningHash()
	return RecoverPlain(sigHash, r, ss, recovery)
}

// LatestSigner returns the signer used for the given chain ID.
func LatestSigner(chainID uint64) Signer {
	return NewEIP155Signer(chainID)
}

// MakeSigner returns the signer for a given chain ID and tx type.
func MakeSigner(chainID uint64, txType uint8) Signer {
	return NewEIP155Signer(chainID)
}

// RecoverPlain recovers the sender address from an ECDSA signature over
// sighash using the secp256k1 curve. v is the recovery ID (0 or 1).
func RecoverPlain(sighash Hash, r, s *big.Int, v byte) (Address, error) {
	if v > 1 {
		return Address{}, errInvalidSig
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return Address{}, errInvalidSig
	}
	if r.Cmp(secp256k1N) >= 0 || s.Cmp(secp256k1N) >= 0 {
		return Address{}, errInvalidSig
	}

	// dcrd's RecoverCompact expects [recovery-id+27 || R(32) || S(32)].
	compact := make([]byte, 65)
	compact[0] = v + 27
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(compact[1+32-len(rBytes):33], rBytes)
	copy(compact[33+32-len(sBytes):65], sBytes)

	pub, _, err := dcrecdsa.RecoverCompact(compact, sighash[:])
	if err != nil {
		return Address{}, errNoRecovery
	}

	pubBytes := pub.SerializeUncompressed() // [0x04 || X(32) || Y(32)]
	d := sha3.NewLegacyKeccak256()
	d.Write(pubBytes[1:])
	hash := d.Sum(nil)
	return BytesToAddress(hash[12:]), nil
}

// SigningHash computes the EIP-155 signing hash for a transaction from its
// individual fields: Keccak256(RLP([nonce, gasPrice, gas, to, value, data, chainID, 0, 0])).
func SigningHash(chainID uint64, nonce uint64, gasPrice *big.Int, to *Address, value *big.Int,
	gas uint64, data []byte) Hash {

	toBytes := make([]byte, 0)
	if to != nil {
		toBytes = to[:]
	}

	var items [][]byte
	enc := func(v interface{}) {
		b, _ := rlp.EncodeToBytes(v)
		items = append(items, b)
	}

	enc(nonce)
	enc(bigOrZero(gasPrice))
	enc(gas)
	enc(toBytes)
	enc(bigOrZero(value))
	enc(data)

	chainBig := new(big.Int).SetUint64(chainID)
	if chainBig.Sign() > 0 {
		enc(chainBig)
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

var _ Signer = EIP155Signer{}
