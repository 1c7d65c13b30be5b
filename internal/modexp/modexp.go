// Package modexp computes modular powers without intermediate overflow.
package modexp

import (
	"fmt"
	"math/big"
	"math/bits"

	"nthprime/internal/domain"
)

var one = big.NewInt(1)

// Pow returns base^exponent mod modulus using left-to-right square-and-multiply.
// Every product is reduced before the next step, so no intermediate exceeds
// modulus^2. All arguments must be non-negative and modulus must be at least 1.
func Pow(base, exponent, modulus *big.Int) (*big.Int, error) {
	if base == nil || exponent == nil || modulus == nil {
		return nil, fmt.Errorf("%w: nil operand", domain.ErrInvalidArgument)
	}
	if modulus.Sign() <= 0 {
		return nil, fmt.Errorf("%w: modulus must be >= 1, got %s", domain.ErrInvalidArgument, modulus)
	}
	if base.Sign() < 0 || exponent.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative operand", domain.ErrInvalidArgument)
	}
	if modulus.Cmp(one) == 0 {
		return new(big.Int), nil
	}

	b := new(big.Int).Mod(base, modulus)
	result := big.NewInt(1)
	for i := exponent.BitLen() - 1; i >= 0; i-- {
		result.Mul(result, result)
		result.Mod(result, modulus)
		if exponent.Bit(i) == 1 {
			result.Mul(result, b)
			result.Mod(result, modulus)
		}
	}
	return result, nil
}

// PowUint64 is Pow on machine words. Products are formed in 128 bits.
func PowUint64(base, exponent, modulus uint64) (uint64, error) {
	if modulus == 0 {
		return 0, fmt.Errorf("%w: modulus must be >= 1, got 0", domain.ErrInvalidArgument)
	}
	if modulus == 1 {
		return 0, nil
	}
	result := uint64(1)
	b := base % modulus
	for e := exponent; e > 0; e >>= 1 {
		if e&1 == 1 {
			result = MulModUint64(result, b, modulus)
		}
		b = MulModUint64(b, b, modulus)
	}
	return result, nil
}

// MulModUint64 returns a*b mod m. m must be non-zero.
func MulModUint64(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	// Unlike Div64, Rem64 tolerates a quotient wider than 64 bits.
	return bits.Rem64(hi, lo, m)
}
