package service

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"nthprime/internal/bound"
	"nthprime/internal/detector"
	"nthprime/internal/domain"
	"nthprime/internal/logging"
	"nthprime/internal/metrics"
	"nthprime/internal/search"
)

// Settings are the search knobs of the service.
type Settings struct {
	SafetyMultiplier float64
	ProgressInterval uint64
	Parallelism      int
}

// DefaultSettings mirrors the package defaults.
func DefaultSettings() Settings {
	return Settings{SafetyMultiplier: search.DefaultSafetyMultiplier, ProgressInterval: 1_000_000, Parallelism: 4}
}

type PrimeServiceImpl struct {
	policy   detector.Policy
	settings Settings
	logger   *logging.Logger
	metrics  metrics.Collector
	tracer   trace.Tracer
}

var _ domain.PrimeService = (*PrimeServiceImpl)(nil)

func NewPrimeService(policy detector.Policy, settings Settings, logger *logging.Logger, collector metrics.Collector) (*PrimeServiceImpl, error) {
	if _, err := detector.New(policy); err != nil {
		return nil, err
	}
	if settings.Parallelism < 1 {
		settings.Parallelism = 1
	}
	if logger == nil {
		logger = logging.Noop()
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &PrimeServiceImpl{
		policy:   policy,
		settings: settings,
		logger:   logger.WithComponent("service"),
		metrics:  collector,
		tracer:   otel.Tracer("nthprime/internal/service"),
	}, nil
}

// newDetector builds the per-call detector. Every call gets its own so no
// random state leaks between calls.
func (s *PrimeServiceImpl) newDetector() (*detector.MillerRabin, error) {
	return detector.New(s.policy)
}

func (s *PrimeServiceImpl) NthPrime(ctx context.Context, n *big.Int) (*big.Int, error) {
	ctx, span := s.tracer.Start(ctx, "NthPrime", trace.WithAttributes(attribute.String("n", n.String())))
	defer span.End()

	start := time.Now()
	var candidates atomic.Uint64
	p, err := s.nthPrime(ctx, n, &candidates)
	elapsed := time.Since(start)

	s.metrics.RecordSearch(elapsed, candidates.Load(), err)
	s.logger.LogSearch(ctx, n, p, elapsed, err)
	span.SetAttributes(attribute.Int64("candidates", int64(candidates.Load())))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("prime", p.String()))
	return p, nil
}

func (s *PrimeServiceImpl) nthPrime(ctx context.Context, n *big.Int, candidates *atomic.Uint64) (*big.Int, error) {
	mr, err := s.newDetector()
	if err != nil {
		return nil, err
	}
	counted := domain.DetectorFunc(func(k *big.Int) (bool, error) {
		candidates.Add(1)
		return mr.IsPrime(k)
	})
	searcher := search.New(counted,
		search.WithSafetyMultiplier(s.settings.SafetyMultiplier),
		search.WithProgress(s.settings.ProgressInterval, func(p domain.Progress) {
			s.logger.LogProgress(ctx, p.LastCandidate, p.Count)
		}),
	)
	return searcher.NthPrime(ctx, n)
}

func (s *PrimeServiceImpl) IsPrime(ctx context.Context, k *big.Int) (domain.Classification, error) {
	ctx, span := s.tracer.Start(ctx, "IsPrime", trace.WithAttributes(attribute.String("k", k.String())))
	defer span.End()

	start := time.Now()
	c, err := s.classify(k)
	s.metrics.RecordPrimalityTest(time.Since(start), c.Prime, err)
	s.logger.LogClassify(ctx, k, c.Prime, c.Exact, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Classification{}, err
	}
	span.SetAttributes(attribute.Bool("prime", c.Prime), attribute.Bool("exact", c.Exact))
	return c, nil
}

func (s *PrimeServiceImpl) classify(k *big.Int) (domain.Classification, error) {
	if k == nil {
		return domain.Classification{}, fmt.Errorf("%w: nil candidate", domain.ErrInvalidArgument)
	}
	mr, err := s.newDetector()
	if err != nil {
		return domain.Classification{}, err
	}
	return mr.Classify(k)
}

func (s *PrimeServiceImpl) Bounds(n *big.Int) (domain.Window, error) {
	return bound.Window(n)
}

// Batch computes p_n for every n concurrently, at most Parallelism at a time.
// The first failure cancels the remaining searches.
func (s *PrimeServiceImpl) Batch(ctx context.Context, ns []*big.Int) ([]domain.BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "Batch", trace.WithAttributes(attribute.Int("size", len(ns))))
	defer span.End()

	start := time.Now()
	results := make([]domain.BatchResult, len(ns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Parallelism)
	for i, n := range ns {
		g.Go(func() error {
			p, err := s.NthPrime(gctx, n)
			if err != nil {
				return fmt.Errorf("n=%s: %w", n, err)
			}
			results[i] = domain.BatchResult{N: n, Prime: p}
			return nil
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)

	s.metrics.RecordBatch(len(ns), elapsed, err)
	s.logger.LogBatch(ctx, len(ns), elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return results, nil
}
