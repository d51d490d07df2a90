package vm

import (
	"crypto/sha256"
	"math/big"

	"github.com/evmcore/evmcore/core/types"
	"golang.org/x/crypto/ripemd160"
)

// precompiledContract is a native contract that runs host code instead of
// interpreted bytecode. The four here are the ones present since Frontier;
// the pairing/hash-function precompiles added by later hardforks depend on
// BN254/BLAKE2/KZG machinery this core does not carry.
type precompiledContract interface {
	// RequiredGas returns the gas cost of running the contract on input.
	RequiredGas(input []byte) uint64
	// Run executes the contract, returning its output.
	Run(input []byte) ([]byte, error)
}

// precompiles maps the reserved precompile addresses 0x01-0x04 to their
// implementations.
var precompiles = map[types.Address]precompiledContract{
	precompileAddr(1): &ecrecoverPrecompile{},
	precompileAddr(2): &sha256Precompile{},
	precompileAddr(3): &ripemd160Precompile{},
	precompileAddr(4): &identityPrecompile{},
}

func precompileAddr(n byte) types.Address {
	var addr types.Address
	addr[len(addr)-1] = n
	return addr
}

// isPrecompile reports whether addr names one of the native contracts.
func isPrecompile(addr types.Address) (precompiledContract, bool) {
	p, ok := precompiles[addr]
	return p, ok
}

// runPrecompile charges gas for and executes a precompiled contract call.
func runPrecompile(p precompiledContract, input []byte, gas uint64) ([]byte, uint64, error) {
	cost := p.RequiredGas(input)
	if gas < cost {
		return nil, 0, ErrOutOfGas
	}
	out, err := p.Run(input)
	if err != nil {
		return nil, 0, err
	}
	return out, gas - cost, nil
}

const (
	ecrecoverGas  uint64 = 3000
	sha256BaseGas uint64 = 60
	sha256WordGas uint64 = 12
	ripemdBaseGas uint64 = 600
	ripemdWordGas uint64 = 120
	identityBaseGas uint64 = 15
	identityWordGas uint64 = 3
)

// wordsFor returns the number of 32-byte words needed for n bytes, rounded up.
func wordsFor(n int) uint64 {
	return (uint64(n) + 31) / 32
}

// ecrecoverPrecompile implements address 0x01: ECDSA public key recovery.
// Input is 128 bytes: hash(32) || v(32) || r(32) || s(32). Output is the
// recovered address left-padded to 32 bytes, or empty on failure.
type ecrecoverPrecompile struct{}

func (c *ecrecoverPrecompile) RequiredGas(input []byte) uint64 { return ecrecoverGas }

func (c *ecrecoverPrecompile) Run(input []byte) ([]byte, error) {
	input = rightPad(input, 128)

	var sigHash types.Hash
	copy(sigHash[:], input[:32])

	v := new(big.Int).SetBytes(input[32:64])
	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])

	if v.Cmp(big.NewInt(27)) != 0 && v.Cmp(big.NewInt(28)) != 0 {
		return []byte{}, nil
	}
	recovery := byte(v.Uint64() - 27)

	addr, err := types.RecoverPlain(sigHash, r, s, recovery)
	if err != nil {
		return []byte{}, nil
	}

	out := make([]byte, 32)
	copy(out[12:], addr[:])
	return out, nil
}

// sha256Precompile implements address 0x02.
type sha256Precompile struct{}

func (c *sha256Precompile) RequiredGas(input []byte) uint64 {
	return sha256BaseGas + wordsFor(len(input))*sha256WordGas
}

func (c *sha256Precompile) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// ripemd160Precompile implements address 0x03. Output is left-padded to 32
// bytes, matching the Yellow Paper's ABI for this precompile.
type ripemd160Precompile struct{}

func (c *ripemd160Precompile) RequiredGas(input []byte) uint64 {
	return ripemdBaseGas + wordsFor(len(input))*ripemdWordGas
}

func (c *ripemd160Precompile) Run(input []byte) ([]byte, error) {
	d := ripemd160.New()
	d.Write(input)
	sum := d.Sum(nil)
	out := make([]byte, 32)
	copy(out[32-len(sum):], sum)
	return out, nil
}

// identityPrecompile implements address 0x04: a verbatim copy of its input.
type identityPrecompile struct{}

func (c *identityPrecompile) RequiredGas(input []byte) uint64 {
	return identityBaseGas + wordsFor(len(input))*identityWordGas
}

func (c *identityPrecompile) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

// rightPad returns input extended with trailing zero bytes to length n, or
// input unchanged if it is already at least that long.
func rightPad(input []byte, n int) []byte {
	if len(input) >= n {
		return input
	}
	out := make([]byte, n)
	copy(out, input)
	return out
}
