package metrics

import (
	"sync/atomic"
	"time"
)

// Collector receives operational metrics from the service layer.
type Collector interface {
	// RecordSearch is called after each n-th prime search. candidates is the
	// number of values the search examined, err is nil on success.
	RecordSearch(duration time.Duration, candidates uint64, err error)

	// RecordPrimalityTest is called after each standalone primality query.
	RecordPrimalityTest(duration time.Duration, prime bool, err error)

	// RecordBatch is called after each batch with its size.
	RecordBatch(size int, duration time.Duration, err error)
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) RecordSearch(time.Duration, uint64, error)      {}
func (Noop) RecordPrimalityTest(time.Duration, bool, error) {}
func (Noop) RecordBatch(int, time.Duration, error)          {}

// Basic keeps simple in-memory counters.
type Basic struct {
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	Candidates       atomic.Uint64
	TestCount        atomic.Int64
	TestPrimes       atomic.Int64
	TestErrors       atomic.Int64
	BatchCount       atomic.Int64
	BatchItems       atomic.Int64
	BatchErrors      atomic.Int64
}

// RecordSearch implements Collector.
func (b *Basic) RecordSearch(duration time.Duration, candidates uint64, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.Candidates.Add(candidates)
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordPrimalityTest implements Collector.
func (b *Basic) RecordPrimalityTest(_ time.Duration, prime bool, err error) {
	b.TestCount.Add(1)
	if err != nil {
		b.TestErrors.Add(1)
		return
	}
	if prime {
		b.TestPrimes.Add(1)
	}
}

// RecordBatch implements Collector.
func (b *Basic) RecordBatch(size int, _ time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchItems.Add(int64(size))
	if err != nil {
		b.BatchErrors.Add(1)
	}
}

// Stats is a point-in-time copy of Basic.
type Stats struct {
	SearchCount   int64
	SearchErrors  int64
	AvgSearchTime time.Duration
	Candidates    uint64
	TestCount     int64
	TestPrimes    int64
	TestErrors    int64
	BatchCount    int64
	BatchItems    int64
	BatchErrors   int64
}

// Snapshot returns the current counters.
func (b *Basic) Snapshot() Stats {
	s := Stats{
		SearchCount:  b.SearchCount.Load(),
		SearchErrors: b.SearchErrors.Load(),
		Candidates:   b.Candidates.Load(),
		TestCount:    b.TestCount.Load(),
		TestPrimes:   b.TestPrimes.Load(),
		TestErrors:   b.TestErrors.Load(),
		BatchCount:   b.BatchCount.Load(),
		BatchItems:   b.BatchItems.Load(),
		BatchErrors:  b.BatchErrors.Load(),
	}
	if s.SearchCount > 0 {
		s.AvgSearchTime = time.Duration(b.SearchTotalNanos.Load() / s.SearchCount)
	}
	return s
}
