package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"loan-risk/domain"
	"loan-risk/events"
	"loan-risk/repository"
	"loan-risk/simulation"
)

// Options are the defaults applied to requests that omit a field.
type Options struct {
	Simulations int
	Workers     int
}

type SimulationService struct {
	portfolios repository.PortfolioRepository
	runs       repository.RunRepository
	cache      repository.CacheRepository
	publisher  events.Publisher
	ai         *AIService
	opts       Options

	now     func() time.Time
	newSeed func() uint64
}

// NewSimulationService wires the service. ai may be nil, in which case runs
// asking for an explanation get none.
func NewSimulationService(
	portfolios repository.PortfolioRepository,
	runs repository.RunRepository,
	cache repository.CacheRepository,
	publisher events.Publisher,
	ai *AIService,
	opts Options,
) *SimulationService {
	if opts.Simulations <= 0 {
		opts.Simulations = DefaultSimulations
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &SimulationService{
		portfolios: portfolios,
		runs:       runs,
		cache:      cache,
		publisher:  publisher,
		ai:         ai,
		opts:       opts,
		now:        time.Now,
		newSeed: func() uint64 {
			return rand.Uint64N(maxGeneratedSeed)
		},
	}
}

// RunSimulation simulates the request's portfolio, or the configured one when
// the request carries no loans, and records the run.
func (s *SimulationService) RunSimulation(ctx context.Context, req domain.SimulationRequest) (domain.SimulationRun, error) {
	start := time.Now()

	run, err := s.runSimulation(ctx, req)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		runsMetrics.WithLabelValues(resultInvalid).Inc()
		return domain.SimulationRun{}, err
	case errors.Is(err, domain.ErrDataUnavailable):
		runsMetrics.WithLabelValues(resultUnavailable).Inc()
		return domain.SimulationRun{}, err
	case err != nil:
		runsMetrics.WithLabelValues(resultError).Inc()
		return domain.SimulationRun{}, err
	}

	if req.Explain && s.ai != nil {
		run.Explanation = s.ai.ExplainRun(ctx, run)
	}
	run.Duration = time.Since(start)

	if run.Cached {
		runsMetrics.WithLabelValues(resultCached).Inc()
	} else {
		runsMetrics.WithLabelValues(resultOK).Inc()
		trialsMetrics.Add(float64(run.NumSimulations))
	}
	runDurationMetrics.Observe(run.Duration.Seconds())

	// Guardar la corrida (no crítico si falla)
	if err := s.runs.Save(ctx, run); err != nil {
		log.WithError(err).WithField("run_id", run.ID).Warn("failed to save simulation run")
	}
	// Publicar el evento (no crítico si falla)
	if err := s.publisher.PublishRunCompleted(ctx, run); err != nil {
		log.WithError(err).WithField("run_id", run.ID).Warn("failed to publish simulation run")
	}

	log.WithFields(log.Fields{
		"run_id":      run.ID,
		"simulations": run.NumSimulations,
		"loans":       run.LoanCount,
		"seed":        run.Seed,
		"cached":      run.Cached,
		"duration":    run.Duration,
	}).Info("simulation run completed")
	return run, nil
}

func (s *SimulationService) runSimulation(ctx context.Context, req domain.SimulationRequest) (domain.SimulationRun, error) {
	n := s.opts.Simulations
	if req.NumSimulations != nil {
		n = *req.NumSimulations
	}
	if n <= 0 {
		return domain.SimulationRun{}, errors.Wrapf(domain.ErrInvalidInput, "num_simulations must be positive, got %d", n)
	}
	if n > MaxSimulations {
		return domain.SimulationRun{}, errors.Wrapf(domain.ErrInvalidInput, "num_simulations %d exceeds the maximum of %d", n, MaxSimulations)
	}

	workers := req.Workers
	if workers == 0 {
		workers = s.opts.Workers
	}
	if workers < 0 || workers > MaxWorkers {
		return domain.SimulationRun{}, errors.Wrapf(domain.ErrInvalidInput, "workers must be between 1 and %d, got %d", MaxWorkers, workers)
	}

	portfolio := req.Loans
	if len(portfolio) == 0 {
		loaded, err := s.portfolios.Load(ctx)
		if err != nil {
			return domain.SimulationRun{}, err
		}
		portfolio = loaded
	}
	if len(portfolio) > MaxLoans {
		return domain.SimulationRun{}, errors.Wrapf(domain.ErrInvalidInput, "portfolio has %d loans, the maximum is %d", len(portfolio), MaxLoans)
	}
	if draws := int64(n) * int64(len(portfolio)); draws > MaxDraws {
		return domain.SimulationRun{}, errors.Wrapf(domain.ErrInvalidInput,
			"%d simulations of %d loans exceed the maximum of %d draws per run", n, len(portfolio), int64(MaxDraws))
	}
	if err := portfolio.Validate(); err != nil {
		return domain.SimulationRun{}, err
	}
	if maxLoss := portfolio.MaxLoss(); maxLoss > math.MaxFloat64/2/float64(n) {
		return domain.SimulationRun{}, errors.Wrapf(domain.ErrInvalidInput,
			"%d simulations of a portfolio losing up to %v overflow the cumulative loss", n, maxLoss)
	}

	run := domain.SimulationRun{
		ID:             uuid.NewString(),
		NumSimulations: n,
		Workers:        workers,
		LoanCount:      len(portfolio),
		TotalExposure:  portfolio.TotalExposure(),
		CreatedAt:      s.now().UTC(),
	}
	if req.Seed != nil {
		run.Seed, run.Seeded = *req.Seed, true
	} else {
		run.Seed = s.newSeed()
	}

	var key string
	if run.Seeded {
		key = Fingerprint(portfolio, n, run.Seed, workers > 1)
		if summary, ok := s.cachedSummary(ctx, key); ok {
			cacheHitMetrics.Inc()
			run.Summary, run.Cached = summary, true
			return run, nil
		}
	}

	sample, err := simulate(ctx, portfolio, n, run.Seed, workers)
	if err != nil {
		return domain.SimulationRun{}, err
	}
	summary, err := simulation.Summarize(sample)
	if err != nil {
		return domain.SimulationRun{}, err
	}
	run.Summary = summary

	if run.Seeded {
		s.storeSummary(ctx, key, summary)
	}
	return run, nil
}

// simulate runs one stream when workers <= 1 and per-trial streams otherwise.
// Both are reproducible for a seed but they do not produce the same sample.
func simulate(ctx context.Context, portfolio domain.Portfolio, n int, seed uint64, workers int) (domain.LossSample, error) {
	if workers <= 1 {
		return simulation.Simulate(portfolio, n, simulation.NewSource(seed))
	}
	return simulation.SimulateParallel(ctx, portfolio, n, seed, workers)
}

func (s *SimulationService) cachedSummary(ctx context.Context, key string) (domain.SummaryStatistics, bool) {
	if s.cache == nil {
		return domain.SummaryStatistics{}, false
	}
	val, ok := s.cache.Get(ctx, key)
	if !ok {
		return domain.SummaryStatistics{}, false
	}
	var summary domain.SummaryStatistics
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		log.WithError(err).WithField("key", key).Warn("discarding corrupt cached summary")
		return domain.SummaryStatistics{}, false
	}
	return summary, true
}

func (s *SimulationService) storeSummary(ctx context.Context, key string, summary domain.SummaryStatistics) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		log.WithError(err).Warn("failed to encode summary for cache")
		return
	}
	// Guardar en caché (no crítico si falla)
	if err := s.cache.Set(ctx, key, string(data)); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to cache summary")
	}
}

// Fingerprint identifies a seeded run: same loans, trial count, seed and mode
// always yield the same summary.
func Fingerprint(portfolio domain.Portfolio, n int, seed uint64, parallel bool) string {
	h := sha256.New()
	buf := make([]byte, 8)
	write := func(v uint64) {
		binary.LittleEndian.PutUint64(buf, v)
		h.Write(buf)
	}

	write(uint64(len(portfolio)))
	for _, l := range portfolio {
		write(math.Float64bits(l.LoanAmount))
		write(math.Float64bits(l.DefaultProbability))
		write(math.Float64bits(l.RecoveryRate))
	}
	write(uint64(n))
	write(seed)
	if parallel {
		write(1)
	} else {
		write(0)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *SimulationService) GetRun(ctx context.Context, id string) (domain.SimulationRun, error) {
	return s.runs.FindByID(ctx, id)
}

// ListRuns returns the latest runs without their loss samples.
func (s *SimulationService) ListRuns(ctx context.Context, limit int) ([]domain.SimulationRun, error) {
	if limit < 0 {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].Summary = runs[i].Summary.WithoutLosses()
	}
	return runs, nil
}
