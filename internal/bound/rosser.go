// Package bound estimates where the n-th prime lies.
//
// Upper is Rosser's inequality p_n < n(ln n + ln ln n), proven for n >= 6.
// It is advisory. The counting search only uses it to size its circuit
// breaker and never trusts it for the answer. Logarithms are float64; the
// result is rounded up and one is added, which absorbs the rounding error of
// float64 for any n a search can reach.
package bound

import (
	"fmt"
	"math"
	"math/big"

	"nthprime/internal/domain"
)

// RosserMin is the smallest n for which Rosser's inequality holds.
const RosserMin = 6

// DusartMin is the smallest n for which the Dusart (2018) refinements hold.
const DusartMin = 688383

// smallUpper[n] is strictly greater than p_n for n < RosserMin.
var smallUpper = [RosserMin]int64{0, 3, 4, 6, 8, 12}

// smallPrimes[n] is p_n for n < RosserMin.
var smallPrimes = [RosserMin]int64{0, 2, 3, 5, 7, 11}

func validate(n *big.Int) error {
	if n == nil || n.Sign() <= 0 {
		return fmt.Errorf("%w: n must be >= 1, got %v", domain.ErrInvalidArgument, n)
	}
	return nil
}

// logs returns ln n and ln ln n. n >= 6.
func logs(n *big.Int) (float64, float64, float64) {
	f, _ := new(big.Float).SetInt(n).Float64()
	ln := math.Log(f)
	return f, ln, math.Log(ln)
}

func tooLarge(n *big.Int) error {
	return fmt.Errorf("%w: n has %d bits, beyond float64 range", domain.ErrInvalidArgument, n.BitLen())
}

// ceilPlusOne converts x to the smallest integer >= x, plus one.
func ceilPlusOne(n *big.Int, x float64) (*big.Int, error) {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return nil, tooLarge(n)
	}
	i, _ := big.NewFloat(math.Ceil(x)).Int(nil)
	return i.Add(i, big.NewInt(1)), nil
}

// floor converts x to the largest integer <= x.
func floor(n *big.Int, x float64) (*big.Int, error) {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return nil, tooLarge(n)
	}
	i, _ := big.NewFloat(math.Floor(x)).Int(nil)
	return i, nil
}

// Upper returns B with p_n < B.
func Upper(n *big.Int) (*big.Int, error) {
	if err := validate(n); err != nil {
		return nil, err
	}
	if n.Cmp(big.NewInt(RosserMin)) < 0 {
		return big.NewInt(smallUpper[n.Int64()]), nil
	}
	f, ln, lnln := logs(n)
	return ceilPlusOne(n, f*(ln+lnln))
}

// Lower returns L with L <= p_n.
func Lower(n *big.Int) (*big.Int, error) {
	if err := validate(n); err != nil {
		return nil, err
	}
	if n.Cmp(big.NewInt(RosserMin)) < 0 {
		return big.NewInt(smallPrimes[n.Int64()]), nil
	}
	f, ln, lnln := logs(n)
	if n.Cmp(big.NewInt(DusartMin)) >= 0 {
		corr := (lnln*lnln - 6*lnln + 11.321) / (2 * ln * ln)
		return floor(n, f*(ln+lnln-1+(lnln-2)/ln-corr))
	}
	return floor(n, f*(ln+lnln-1))
}

// Window returns the location estimate of p_n: the Dusart window when it
// applies, Rosser's otherwise, together with the Rosser upper bound.
func Window(n *big.Int) (domain.Window, error) {
	upper, err := Upper(n)
	if err != nil {
		return domain.Window{}, err
	}
	lower, err := Lower(n)
	if err != nil {
		return domain.Window{}, err
	}
	w := domain.Window{N: new(big.Int).Set(n), Lower: lower, Upper: upper, Rosser: upper}
	if n.Cmp(big.NewInt(DusartMin)) >= 0 {
		f, ln, lnln := logs(n)
		corr := (lnln*lnln - 6*lnln) / (2 * ln * ln)
		if w.Upper, err = ceilPlusOne(n, f*(ln+lnln-1+(lnln-2)/ln-corr)); err != nil {
			return domain.Window{}, err
		}
	}
	return w, nil
}

// Limit returns the circuit breaker threshold bound*multiplier, rounded up.
// A multiplier <= 0 disables the breaker and yields nil.
func Limit(bound *big.Int, multiplier float64) *big.Int {
	if bound == nil || multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return nil
	}
	if multiplier < 1 {
		multiplier = 1
	}
	prod := new(big.Float).Mul(new(big.Float).SetInt(bound), big.NewFloat(multiplier))
	limit, acc := prod.Int(nil)
	if acc == big.Below {
		limit.Add(limit, big.NewInt(1))
	}
	return limit
}
