package vm

import "math/big"

// tt256 is 2**256, used to wrap arithmetic results back into the EVM's
// 256-bit unsigned word space.
var tt256 = new(big.Int).Lsh(big.NewInt(1), 256)
var tt256m1 = new(big.Int).Sub(tt256, big.NewInt(1))
var tt255 = new(big.Int).Lsh(big.NewInt(1), 255)

// u256 truncates x into an unsigned 256-bit word, matching EVM wraparound.
func u256(x *big.Int) *big.Int {
	return x.And(x, tt256m1)
}

// s256 interprets x (already a canonical unsigned 256-bit word) as a
// two's-complement signed value.
func s256(x *big.Int) *big.Int {
	if x.Cmp(tt255) < 0 {
		return x
	}
	return new(big.Int).Sub(x, tt256)
}

// bigFalse/bigTrue are the canonical 0/1 EVM boolean words.
func bigFalse() *big.Int { return new(big.Int) }
func bigTrue() *big.Int  { return big.NewInt(1) }

func boolToWord(b bool) *big.Int {
	if b {
		return bigTrue()
	}
	return bigFalse()
}
