package bound

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nthprime/internal/domain"
)

// known n-th primes.
var knownPrimes = []struct {
	n, p int64
}{
	{1, 2}, {2, 3}, {3, 5}, {4, 7}, {5, 11}, {6, 13}, {7, 17}, {10, 29},
	{100, 541}, {1000, 7919}, {10000, 104729}, {12345, 132241},
	{100000, 1299709}, {123456, 1632899}, {1000000, 15485863},
	{1234567, 19394489}, {10000000, 179424673},
}

func TestUpperIsSound(t *testing.T) {
	for _, kp := range knownPrimes {
		b, err := Upper(big.NewInt(kp.n))
		require.NoError(t, err)
		assert.Equal(t, 1, b.Cmp(big.NewInt(kp.p)), "n=%d bound=%s p=%d", kp.n, b, kp.p)
	}
}

func TestLowerIsSound(t *testing.T) {
	for _, kp := range knownPrimes {
		l, err := Lower(big.NewInt(kp.n))
		require.NoError(t, err)
		assert.LessOrEqual(t, l.Int64(), kp.p, "n=%d", kp.n)
	}
}

func TestWindowContainsPrime(t *testing.T) {
	for _, kp := range knownPrimes {
		w, err := Window(big.NewInt(kp.n))
		require.NoError(t, err)
		p := big.NewInt(kp.p)
		assert.True(t, w.Lower.Cmp(p) <= 0 && p.Cmp(w.Upper) < 0, "n=%d window=[%s,%s)", kp.n, w.Lower, w.Upper)
		assert.True(t, w.Upper.Cmp(w.Rosser) <= 0, "n=%d", kp.n)
	}
}

func TestUpperSmallTable(t *testing.T) {
	want := []int64{3, 4, 6, 8, 12}
	for i, w := range want {
		b, err := Upper(big.NewInt(int64(i + 1)))
		require.NoError(t, err)
		assert.Equal(t, w, b.Int64())
	}
}

func TestUpperRosserValue(t *testing.T) {
	// 6 * (ln 6 + ln ln 6) = 14.2495...
	b, err := Upper(big.NewInt(6))
	require.NoError(t, err)
	assert.Equal(t, int64(16), b.Int64())
}

func TestInvalidN(t *testing.T) {
	for _, n := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		_, err := Upper(n)
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = Lower(n)
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = Window(n)
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	}

	ten := big.NewInt(10)
	for _, n := range []*big.Int{
		new(big.Int).Lsh(big.NewInt(1), 2000),
		// finite as a float64, but n(ln n + ln ln n) is not
		new(big.Int).Exp(ten, big.NewInt(306), nil),
		new(big.Int).Exp(ten, big.NewInt(307), nil),
		new(big.Int).Exp(ten, big.NewInt(308), nil),
	} {
		_, err := Upper(n)
		require.ErrorIs(t, err, domain.ErrInvalidArgument, n.BitLen())
		_, err = Window(n)
		require.ErrorIs(t, err, domain.ErrInvalidArgument, n.BitLen())
	}

	_, err := Lower(new(big.Int).Exp(ten, big.NewInt(308), nil))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUpperLargeN(t *testing.T) {
	n := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	b, err := Upper(n)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Cmp(n))
}

func TestLimit(t *testing.T) {
	assert.Nil(t, Limit(big.NewInt(100), 0))
	assert.Nil(t, Limit(big.NewInt(100), -2))
	assert.Nil(t, Limit(nil, 2))
	assert.Equal(t, int64(200), Limit(big.NewInt(100), 2).Int64())
	assert.Equal(t, int64(151), Limit(big.NewInt(101), 1.495).Int64())
	assert.Equal(t, int64(100), Limit(big.NewInt(100), 0.5).Int64())
}
