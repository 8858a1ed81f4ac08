// Package simulation runs Monte Carlo default trials over a loan portfolio and
// reduces the resulting loss sample to summary statistics.
//
// Every trial draws one uniform variate per loan and books the loan's loss given
// default when the variate falls below its default probability. Defaults are
// independent across loans and across trials.
package simulation

import (
	"context"
	"math/rand/v2"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"loan-risk/domain"
)

// NewSource returns a generator for the given seed. Two generators built from
// the same seed produce the same sequence.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

// Simulate runs numSimulations trials over the portfolio using rng and returns
// one aggregate loss per trial.
//
// A nil rng means a freshly seeded generator, so results vary from run to run.
// Pass a generator from NewSource to get bit-identical samples across calls.
// Inputs are validated before the first draw.
func Simulate(portfolio domain.Portfolio, numSimulations int, rng *rand.Rand) (domain.LossSample, error) {
	if err := validate(portfolio, numSimulations); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	losses := make(domain.LossSample, numSimulations)
	for i := range losses {
		losses[i] = trialLoss(portfolio, rng)
	}
	return losses, nil
}

// SimulateParallel spreads the trials over workers goroutines. Trial i always
// draws from its own stream seeded with (seed, i), so the sample only depends on
// the seed and never on the number of workers or their scheduling.
func SimulateParallel(ctx context.Context, portfolio domain.Portfolio, numSimulations int, seed uint64, workers int) (domain.LossSample, error) {
	if err := validate(portfolio, numSimulations); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	if workers > numSimulations {
		workers = numSimulations
	}

	losses := make(domain.LossSample, numSimulations)
	chunk := (numSimulations + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < numSimulations; start += chunk {
		end := min(start+chunk, numSimulations)
		g.Go(func() error {
			src := rand.NewPCG(seed, 0)
			rng := rand.New(src)
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				src.Seed(seed, uint64(i))
				losses[i] = trialLoss(portfolio, rng)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return losses, nil
}

// trialLoss reduces the per-loan Bernoulli outcomes of one trial to a loss.
// Every loan consumes exactly one draw.
func trialLoss(portfolio domain.Portfolio, rng *rand.Rand) float64 {
	loss := 0.0
	for _, loan := range portfolio {
		if rng.Float64() < loan.DefaultProbability {
			loss += loan.LossGivenDefault()
		}
	}
	return loss
}

func validate(portfolio domain.Portfolio, numSimulations int) error {
	if numSimulations <= 0 {
		return errors.Wrapf(domain.ErrInvalidInput, "num_simulations must be positive, got %d", numSimulations)
	}
	return portfolio.Validate()
}
