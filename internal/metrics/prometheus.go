package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus exports Collector events as Prometheus series.
type Prometheus struct {
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	candidates     prometheus.Counter
	tests          *prometheus.CounterVec
	testDuration   prometheus.Histogram
	batches        *prometheus.CounterVec
	batchSize      prometheus.Histogram
}

// NewPrometheus registers the nthprime series on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nthprime",
			Name:      "searches_total",
			Help:      "Total n-th prime searches by outcome",
		}, []string{"outcome"}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nthprime",
			Name:      "search_duration_seconds",
			Help:      "Duration of n-th prime searches",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
		}),
		candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: "nthprime",
			Name:      "candidates_total",
			Help:      "Candidates examined by counting searches",
		}),
		tests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nthprime",
			Name:      "primality_tests_total",
			Help:      "Standalone primality queries by result",
		}, []string{"result"}),
		testDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nthprime",
			Name:      "primality_test_duration_seconds",
			Help:      "Duration of standalone primality queries",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nthprime",
			Name:      "batches_total",
			Help:      "Batch computations by outcome",
		}, []string{"outcome"}),
		batchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nthprime",
			Name:      "batch_size",
			Help:      "Number of n values per batch",
			Buckets:   prometheus.LinearBuckets(1, 8, 8),
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordSearch implements Collector.
func (p *Prometheus) RecordSearch(duration time.Duration, candidates uint64, err error) {
	p.searches.WithLabelValues(outcome(err)).Inc()
	p.searchDuration.Observe(duration.Seconds())
	p.candidates.Add(float64(candidates))
}

// RecordPrimalityTest implements Collector.
func (p *Prometheus) RecordPrimalityTest(duration time.Duration, prime bool, err error) {
	result := "composite"
	switch {
	case err != nil:
		result = "error"
	case prime:
		result = "prime"
	}
	p.tests.WithLabelValues(result).Inc()
	p.testDuration.Observe(duration.Seconds())
}

// RecordBatch implements Collector.
func (p *Prometheus) RecordBatch(size int, _ time.Duration, err error) {
	p.batches.WithLabelValues(outcome(err)).Inc()
	p.batchSize.Observe(float64(size))
}

// Multi fans events out to several collectors.
type Multi []Collector

func (m Multi) RecordSearch(d time.Duration, candidates uint64, err error) {
	for _, c := range m {
		c.RecordSearch(d, candidates, err)
	}
}

func (m Multi) RecordPrimalityTest(d time.Duration, prime bool, err error) {
	for _, c := range m {
		c.RecordPrimalityTest(d, prime, err)
	}
}

func (m Multi) RecordBatch(size int, d time.Duration, err error) {
	for _, c := range m {
		c.RecordBatch(size, d, err)
	}
}
