// Package detector implements the Miller-Rabin primality test.
//
// The test runs in one of two modes. Deterministic uses a fixed witness set
// and is exact below the set's proven ceiling. Probabilistic draws random
// witnesses; each round bounds the false positive rate by 1/4, so r rounds
// give an error of at most 4^-r. A Policy combines the two and picks a mode
// from the magnitude of each candidate.
package detector

import (
	"fmt"
	"math"
	"math/big"
	"math/rand"

	"nthprime/internal/domain"
	"nthprime/internal/modexp"
)

var (
	bigOne   = big.NewInt(1)
	bigTwo   = big.NewInt(2)
	bigThree = big.NewInt(3)
)

// Mode selects how witnesses are chosen. It is either Deterministic or
// Probabilistic.
type Mode interface {
	isMode()
}

// Deterministic tests a fixed witness set.
type Deterministic struct {
	Set WitnessSet
	// Adaptive picks the smallest entry of KnownSets that covers k, falling
	// back to Set's ceiling as the upper limit.
	Adaptive bool
}

// Probabilistic tests randomly drawn witnesses.
type Probabilistic struct {
	Rounds int
	// ErrorBound, when non-zero, raises Rounds until 4^-Rounds <= ErrorBound.
	ErrorBound float64
	Seed       int64
}

func (Deterministic) isMode() {}
func (Probabilistic) isMode() {}

// Ceiling is the exclusive upper limit of the mode's exactness.
func (d Deterministic) Ceiling() *big.Int {
	if d.Set.Ceiling == nil && d.Adaptive {
		return DefaultSet().Ceiling
	}
	return d.Set.Ceiling
}

// EffectiveRounds returns the number of witnesses drawn per candidate.
func (p Probabilistic) EffectiveRounds() (int, error) {
	rounds := p.Rounds
	if p.ErrorBound != 0 {
		if p.ErrorBound <= 0 || p.ErrorBound >= 1 || math.IsNaN(p.ErrorBound) {
			return 0, fmt.Errorf("%w: error bound must be in (0, 1), got %g", domain.ErrInvalidArgument, p.ErrorBound)
		}
		need := int(math.Ceil(math.Log(1/p.ErrorBound) / math.Log(4)))
		if need > rounds {
			rounds = need
		}
	}
	if rounds < 1 {
		return 0, fmt.Errorf("%w: probabilistic mode needs at least one round", domain.ErrInvalidArgument)
	}
	return rounds, nil
}

// Policy is the composer's choice of mode by candidate magnitude: the
// deterministic set below its ceiling, Fallback above it. A nil Fallback makes
// candidates above the ceiling an error. A zero Deterministic with a Fallback
// tests every candidate probabilistically.
type Policy struct {
	Deterministic Deterministic
	Fallback      *Probabilistic
}

// DefaultPolicy is the widest deterministic set with a 1e-12 fallback.
func DefaultPolicy() Policy {
	return Policy{
		Deterministic: Deterministic{Set: DefaultSet()},
		Fallback:      &Probabilistic{ErrorBound: 1e-12, Seed: 1},
	}
}

// MillerRabin is a configured detector. It owns its random source and is not
// safe for concurrent use; build one per search.
type MillerRabin struct {
	policy Policy
	rounds int
	rng    *rand.Rand
}

// New validates policy and returns a detector for it.
func New(policy Policy) (*MillerRabin, error) {
	det := policy.Deterministic
	if det.Ceiling() == nil && policy.Fallback == nil {
		return nil, fmt.Errorf("%w: policy has neither witness set nor fallback", domain.ErrInvalidArgument)
	}
	if det.Ceiling() != nil {
		if det.Ceiling().Sign() <= 0 {
			return nil, fmt.Errorf("%w: witness ceiling must be positive", domain.ErrInvalidArgument)
		}
		if !det.Adaptive && len(det.Set.Witnesses) == 0 {
			return nil, fmt.Errorf("%w: witness set is empty", domain.ErrInvalidArgument)
		}
	}
	m := &MillerRabin{policy: policy}
	if policy.Fallback != nil {
		rounds, err := policy.Fallback.EffectiveRounds()
		if err != nil {
			return nil, err
		}
		m.rounds = rounds
		m.rng = rand.New(rand.NewSource(policy.Fallback.Seed))
	}
	return m, nil
}

// ModeFor returns the mode the policy applies to k.
func (m *MillerRabin) ModeFor(k *big.Int) (Mode, error) {
	det := m.policy.Deterministic
	if c := det.Ceiling(); c != nil && k.Cmp(c) < 0 {
		return det, nil
	}
	if m.policy.Fallback != nil {
		p := *m.policy.Fallback
		p.Rounds = m.rounds
		p.ErrorBound = 0
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s >= %s", domain.ErrOutOfRange, k, det.Ceiling())
}

// IsPrime implements domain.Detector.
func (m *MillerRabin) IsPrime(k *big.Int) (bool, error) {
	c, err := m.Classify(k)
	return c.Prime, err
}

// Classify reports whether k is prime and whether the answer is exact.
func (m *MillerRabin) Classify(k *big.Int) (domain.Classification, error) {
	out := domain.Classification{K: k, Exact: true}
	if k == nil {
		return out, fmt.Errorf("%w: nil candidate", domain.ErrInvalidArgument)
	}
	if prime, decided := trivial(k); decided {
		out.Prime = prime
		return out, nil
	}
	mode, err := m.ModeFor(k)
	if err != nil {
		return out, err
	}
	_, out.Exact = mode.(Deterministic)
	out.Prime, err = Test(k, mode, m.rng)
	return out, err
}

// Test runs Miller-Rabin on k with an explicit mode. rng is required for
// Probabilistic and ignored otherwise.
func Test(k *big.Int, mode Mode, rng *rand.Rand) (bool, error) {
	if k == nil {
		return false, fmt.Errorf("%w: nil candidate", domain.ErrInvalidArgument)
	}
	if prime, decided := trivial(k); decided {
		return prime, nil
	}

	var witnesses []*big.Int
	switch md := mode.(type) {
	case Deterministic:
		set := md.Set
		if md.Adaptive {
			var ok bool
			if set, ok = smallestCovering(k); !ok || k.Cmp(md.Ceiling()) >= 0 {
				return false, fmt.Errorf("%w: %s >= %s", domain.ErrOutOfRange, k, md.Ceiling())
			}
		}
		if set.Ceiling == nil || k.Cmp(set.Ceiling) >= 0 {
			return false, fmt.Errorf("%w: %s >= %v", domain.ErrOutOfRange, k, set.Ceiling)
		}
		witnesses = fixedWitnesses(set.Witnesses)
	case Probabilistic:
		rounds, err := md.EffectiveRounds()
		if err != nil {
			return false, err
		}
		if rng == nil {
			return false, fmt.Errorf("%w: probabilistic mode needs a random source", domain.ErrInvalidArgument)
		}
		witnesses = randomWitnesses(k, rounds, rng)
	default:
		return false, fmt.Errorf("%w: unknown mode %T", domain.ErrInvalidArgument, mode)
	}

	if k.IsUint64() {
		return testUint64(k.Uint64(), witnesses), nil
	}
	return testBig(k, witnesses)
}

// trivial decides k < 2, k in {2, 3} and even k without witness work.
func trivial(k *big.Int) (prime, decided bool) {
	switch {
	case k.Cmp(bigTwo) < 0:
		return false, true
	case k.Cmp(bigThree) <= 0:
		return true, true
	case k.Bit(0) == 0:
		return false, true
	}
	return false, false
}

func fixedWitnesses(ws []uint64) []*big.Int {
	out := make([]*big.Int, len(ws))
	for i, w := range ws {
		out[i] = new(big.Int).SetUint64(w)
	}
	return out
}

// randomWitnesses draws n bases uniformly from [2, k-2]. k must be odd and >= 5.
func randomWitnesses(k *big.Int, n int, rng *rand.Rand) []*big.Int {
	span := new(big.Int).Sub(k, bigThree)
	out := make([]*big.Int, n)
	for i := range out {
		a := new(big.Int).Rand(rng, span)
		out[i] = a.Add(a, bigTwo)
	}
	return out
}

// inRange reports whether a lies in [2, k-2]; other bases prove nothing.
func inRange(a, kMinusOne *big.Int) bool {
	return a.Cmp(bigTwo) >= 0 && a.Cmp(kMinusOne) < 0
}

func testUint64(k uint64, witnesses []*big.Int) bool {
	kMinusOne := k - 1
	s := uint(0)
	d := kMinusOne
	for d%2 == 0 {
		d /= 2
		s++
	}
	bk := new(big.Int).SetUint64(kMinusOne)
	for _, w := range witnesses {
		if !inRange(w, bk) {
			continue
		}
		if !strongProbablePrime64(k, d, s, w.Uint64()) {
			return false
		}
	}
	return true
}

func strongProbablePrime64(k, d uint64, s uint, a uint64) bool {
	// k > 1 here, so PowUint64 cannot fail.
	x, _ := modexp.PowUint64(a, d, k)
	if x == 1 || x == k-1 {
		return true
	}
	for i := uint(1); i < s; i++ {
		x = modexp.MulModUint64(x, x, k)
		if x == k-1 {
			return true
		}
	}
	return false
}

func testBig(k *big.Int, witnesses []*big.Int) (bool, error) {
	kMinusOne := new(big.Int).Sub(k, bigOne)
	s := kMinusOne.TrailingZeroBits()
	d := new(big.Int).Rsh(kMinusOne, s)
	for _, w := range witnesses {
		if !inRange(w, kMinusOne) {
			continue
		}
		ok, err := strongProbablePrime(k, kMinusOne, d, s, w)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func strongProbablePrime(k, kMinusOne, d *big.Int, s uint, a *big.Int) (bool, error) {
	x, err := modexp.Pow(a, d, k)
	if err != nil {
		return false, err
	}
	if x.Cmp(bigOne) == 0 || x.Cmp(kMinusOne) == 0 {
		return true, nil
	}
	for i := uint(1); i < s; i++ {
		x.Mul(x, x)
		x.Mod(x, k)
		if x.Cmp(kMinusOne) == 0 {
			return true, nil
		}
	}
	return false, nil
}
