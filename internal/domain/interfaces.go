package domain

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrInvalidArgument is returned for caller supplied values outside an
	// operation's domain (n < 1, a zero modulus, bad detector parameters).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInternalInconsistency signals that a search ran far past its analytic
	// bound. It points at a defect, usually in the detector, and must not be retried.
	ErrInternalInconsistency = errors.New("internal inconsistency")

	// ErrOutOfRange is returned when a deterministic witness set is asked about
	// a candidate at or above its proven ceiling and no fallback is configured.
	ErrOutOfRange = errors.New("candidate outside detector range")
)

// Detector classifies a single candidate as prime or composite.
type Detector interface {
	IsPrime(k *big.Int) (bool, error)
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(k *big.Int) (bool, error)

// IsPrime calls f(k).
func (f DetectorFunc) IsPrime(k *big.Int) (bool, error) { return f(k) }

// Progress is the restartable scan state of a counting search: Count primes
// were found in [2, LastCandidate].
type Progress struct {
	LastCandidate *big.Int
	Count         *big.Int
}

// Start is the progress of a search that has not tested anything yet.
func Start() Progress {
	return Progress{LastCandidate: big.NewInt(1), Count: big.NewInt(0)}
}

// Clone returns a deep copy so callers can keep a snapshot.
func (p Progress) Clone() Progress {
	c := Progress{LastCandidate: new(big.Int), Count: new(big.Int)}
	if p.LastCandidate != nil {
		c.LastCandidate.Set(p.LastCandidate)
	}
	if p.Count != nil {
		c.Count.Set(p.Count)
	}
	return c
}

// Window is the informational location estimate of the n-th prime.
type Window struct {
	N     *big.Int
	Lower *big.Int
	Upper *big.Int
	// Rosser is the advisory upper bound the search uses as its circuit breaker.
	Rosser *big.Int
}

// Classification is the outcome of a single primality query.
type Classification struct {
	K     *big.Int
	Prime bool
	// Exact is false when the answer relies on random witnesses.
	Exact bool
}

// BatchResult is one entry of a batch computation, in input order.
type BatchResult struct {
	N     *big.Int
	Prime *big.Int
}

// PrimeService defines the operations exposed by the application core.
type PrimeService interface {
	NthPrime(ctx context.Context, n *big.Int) (*big.Int, error)
	IsPrime(ctx context.Context, k *big.Int) (Classification, error)
	Bounds(n *big.Int) (Window, error)
	Batch(ctx context.Context, ns []*big.Int) ([]BatchResult, error)
}
