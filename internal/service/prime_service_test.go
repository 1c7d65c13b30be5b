package service

import (
	"bytes"
	"context"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nthprime/internal/detector"
	"nthprime/internal/domain"
	"nthprime/internal/logging"
	"nthprime/internal/metrics"
)

func newService(t *testing.T, settings Settings) (*PrimeServiceImpl, *metrics.Basic) {
	t.Helper()
	collector := &metrics.Basic{}
	svc, err := NewPrimeService(detector.DefaultPolicy(), settings, logging.Noop(), collector)
	require.NoError(t, err)
	return svc, collector
}

func TestNthPrime(t *testing.T) {
	svc, m := newService(t, DefaultSettings())

	p, err := svc.NthPrime(context.Background(), big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(541), p.Int64())

	_, err = svc.NthPrime(context.Background(), big.NewInt(0))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.SearchCount)
	assert.Equal(t, int64(1), s.SearchErrors)
	assert.Equal(t, uint64(540), s.Candidates)
}

func TestNthPrimeDetectorMisconfigured(t *testing.T) {
	// Every odd candidate above the ceiling errors out of the detector.
	policy := detector.Policy{Deterministic: detector.Deterministic{Set: detector.WitnessSet{
		Witnesses: []uint64{2},
		Ceiling:   big.NewInt(20),
	}}}
	svc, err := NewPrimeService(policy, DefaultSettings(), nil, nil)
	require.NoError(t, err)

	_, err = svc.NthPrime(context.Background(), big.NewInt(50))
	require.ErrorIs(t, err, domain.ErrOutOfRange)
}

func TestIsPrime(t *testing.T) {
	svc, m := newService(t, DefaultSettings())

	c, err := svc.IsPrime(context.Background(), big.NewInt(104729))
	require.NoError(t, err)
	assert.True(t, c.Prime)
	assert.True(t, c.Exact)

	c, err = svc.IsPrime(context.Background(), big.NewInt(104730))
	require.NoError(t, err)
	assert.False(t, c.Prime)

	_, err = svc.IsPrime(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.TestCount)
	assert.Equal(t, int64(1), s.TestPrimes)
	assert.Equal(t, int64(1), s.TestErrors)
}

func TestBounds(t *testing.T) {
	svc, _ := newService(t, DefaultSettings())
	w, err := svc.Bounds(big.NewInt(100))
	require.NoError(t, err)
	assert.LessOrEqual(t, w.Lower.Int64(), int64(541))
	assert.Greater(t, w.Upper.Int64(), int64(541))

	_, err = svc.Bounds(big.NewInt(-4))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestBatchPreservesOrder(t *testing.T) {
	svc, m := newService(t, Settings{SafetyMultiplier: 2, Parallelism: 3})
	ns := []*big.Int{big.NewInt(1000), big.NewInt(1), big.NewInt(100), big.NewInt(6), big.NewInt(10)}
	want := []int64{7919, 2, 541, 13, 29}

	res, err := svc.Batch(context.Background(), ns)
	require.NoError(t, err)
	require.Len(t, res, len(ns))
	for i, r := range res {
		assert.Equal(t, 0, r.N.Cmp(ns[i]))
		assert.Equal(t, want[i], r.Prime.Int64())
	}
	assert.Equal(t, int64(1), m.Snapshot().BatchCount)
	assert.Equal(t, int64(5), m.Snapshot().SearchCount)
}

func TestBatchFailsFast(t *testing.T) {
	svc, m := newService(t, Settings{SafetyMultiplier: 2, Parallelism: 1})
	_, err := svc.Batch(context.Background(), []*big.Int{big.NewInt(5), big.NewInt(-1), big.NewInt(7)})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, int64(1), m.Snapshot().BatchErrors)
}

func TestProgressIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWriter(&buf, "json", slog.LevelDebug)
	require.NoError(t, err)
	svc, err := NewPrimeService(detector.DefaultPolicy(), Settings{SafetyMultiplier: 2, ProgressInterval: 100, Parallelism: 1}, logger, nil)
	require.NoError(t, err)

	_, err = svc.NthPrime(context.Background(), big.NewInt(200))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"search progress"`)
	assert.Contains(t, buf.String(), `"msg":"search completed"`)
	assert.Contains(t, buf.String(), `"prime":"1223"`)
}

func TestNewPrimeServiceRejectsBadPolicy(t *testing.T) {
	_, err := NewPrimeService(detector.Policy{}, DefaultSettings(), nil, nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
