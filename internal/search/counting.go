// Package search inverts the prime counting function: it walks candidates
// upward from 2, counts the primes a detector reports and stops at the n-th.
package search

import (
	"context"
	"fmt"
	"math/big"

	"nthprime/internal/bound"
	"nthprime/internal/domain"
)

// DefaultSafetyMultiplier scales the Rosser bound into the circuit breaker limit.
const DefaultSafetyMultiplier = 2.0

// BoundExceededError reports a search that ran past Limit without finding p_N.
type BoundExceededError struct {
	N         *big.Int
	Bound     *big.Int
	Limit     *big.Int
	Candidate *big.Int
}

func (e *BoundExceededError) Error() string {
	return fmt.Sprintf("search for prime #%s reached %s, beyond limit %s (bound %s)", e.N, e.Candidate, e.Limit, e.Bound)
}

func (e *BoundExceededError) Unwrap() error { return domain.ErrInternalInconsistency }

// ProgressFunc observes the scan state. It must not retain p without cloning it.
type ProgressFunc func(p domain.Progress)

// Options configures a Searcher.
type Options struct {
	// SafetyMultiplier times the Rosser bound is the candidate at which the
	// search gives up with a BoundExceededError. Zero disables the breaker.
	SafetyMultiplier float64
	// ProgressInterval is the number of candidates between OnProgress calls.
	ProgressInterval uint64
	OnProgress       ProgressFunc
}

// Option mutates Options.
type Option func(*Options)

// WithSafetyMultiplier sets Options.SafetyMultiplier.
func WithSafetyMultiplier(m float64) Option {
	return func(o *Options) { o.SafetyMultiplier = m }
}

// WithProgress reports progress every interval candidates.
func WithProgress(interval uint64, fn ProgressFunc) Option {
	return func(o *Options) {
		o.ProgressInterval = interval
		o.OnProgress = fn
	}
}

// Searcher runs counting searches with one detector. The detector is
// called sequentially; a Searcher must not be shared between goroutines
// unless its detector is safe for that.
type Searcher struct {
	detector domain.Detector
	opts     Options
}

// New returns a Searcher over detector.
func New(detector domain.Detector, opts ...Option) *Searcher {
	o := Options{SafetyMultiplier: DefaultSafetyMultiplier}
	for _, fn := range opts {
		fn(&o)
	}
	return &Searcher{detector: detector, opts: o}
}

// NthPrime returns the n-th prime, 1-indexed.
func (s *Searcher) NthPrime(ctx context.Context, n *big.Int) (*big.Int, error) {
	p, _, err := s.Resume(ctx, domain.Start(), n)
	return p, err
}

// Resume continues a search from progress and returns p_n along with the
// final progress. Passing back a progress returned by an earlier call (or
// reported through OnProgress) yields the same answer as a fresh search.
func (s *Searcher) Resume(ctx context.Context, progress domain.Progress, n *big.Int) (*big.Int, domain.Progress, error) {
	if n == nil || n.Sign() <= 0 {
		return nil, progress, fmt.Errorf("%w: n must be >= 1, got %v", domain.ErrInvalidArgument, n)
	}
	if progress.LastCandidate == nil || progress.Count == nil {
		return nil, progress, fmt.Errorf("%w: incomplete progress", domain.ErrInvalidArgument)
	}
	if progress.LastCandidate.Sign() <= 0 || progress.Count.Sign() < 0 {
		return nil, progress, fmt.Errorf("%w: progress out of range", domain.ErrInvalidArgument)
	}
	if progress.Count.Cmp(n) >= 0 {
		return nil, progress, fmt.Errorf("%w: progress already counted %s primes, n=%s", domain.ErrInvalidArgument, progress.Count, n)
	}

	b, err := bound.Upper(n)
	if err != nil {
		return nil, progress, err
	}
	limit := bound.Limit(b, s.opts.SafetyMultiplier)

	state := progress.Clone()
	k, count := state.LastCandidate, state.Count
	one := big.NewInt(1)
	var steps uint64
	for {
		if err := ctx.Err(); err != nil {
			return nil, progress, err
		}
		k.Add(k, one)
		if limit != nil && k.Cmp(limit) > 0 {
			return nil, progress, &BoundExceededError{N: new(big.Int).Set(n), Bound: b, Limit: limit, Candidate: new(big.Int).Set(k)}
		}
		prime, err := s.detector.IsPrime(k)
		if err != nil {
			return nil, progress, fmt.Errorf("testing candidate %s: %w", k, err)
		}
		if prime {
			count.Add(count, one)
			if count.Cmp(n) == 0 {
				return new(big.Int).Set(k), state.Clone(), nil
			}
		}
		steps++
		if s.opts.OnProgress != nil && s.opts.ProgressInterval > 0 && steps%s.opts.ProgressInterval == 0 {
			s.opts.OnProgress(state)
		}
	}
}
