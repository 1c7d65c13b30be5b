package detector

import "math/big"

// WitnessSet is a fixed list of bases proven to decide primality exactly for
// every odd k below Ceiling.
type WitnessSet struct {
	Witnesses []uint64
	Ceiling   *big.Int
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("detector: bad ceiling literal " + s)
	}
	return v
}

// KnownSets lists the published deterministic witness sets, ordered by ceiling.
var KnownSets = []WitnessSet{
	{Witnesses: []uint64{2, 3}, Ceiling: mustBig("1373653")},
	{Witnesses: []uint64{2, 3, 5}, Ceiling: mustBig("25326001")},
	{Witnesses: []uint64{2, 3, 5, 7}, Ceiling: mustBig("3215031751")},
	{Witnesses: []uint64{2, 3, 5, 7, 11}, Ceiling: mustBig("2152302898747")},
	{Witnesses: []uint64{2, 3, 5, 7, 11, 13}, Ceiling: mustBig("3474749660383")},
	{Witnesses: []uint64{2, 3, 5, 7, 11, 13, 17}, Ceiling: mustBig("341550071728321")},
	{Witnesses: []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23}, Ceiling: mustBig("3825123056546413051")},
	{Witnesses: []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}, Ceiling: mustBig("318665857834031151167461")},
	{Witnesses: []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41}, Ceiling: mustBig("3317044064679887385961981")},
}

// DefaultSet is the widest entry of KnownSets.
func DefaultSet() WitnessSet {
	return KnownSets[len(KnownSets)-1]
}

// smallestCovering returns the cheapest known set valid for k, if any.
func smallestCovering(k *big.Int) (WitnessSet, bool) {
	for _, s := range KnownSets {
		if k.Cmp(s.Ceiling) < 0 {
			return s, true
		}
	}
	return WitnessSet{}, false
}
