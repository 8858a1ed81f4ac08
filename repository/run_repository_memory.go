package repository

import (
	"context"
	"slices"
	"sync"

	"loan-risk/domain"
)

// Default bounds of NewRunRepositoryMemory.
const (
	DefaultMemoryRuns    = 500
	DefaultMemorySamples = 20
)

// RunRepositoryMemory is an in-memory implementation of RunRepository. It
// keeps the newest maxRuns runs; older ones are evicted on Save. Only the
// newest maxSamples runs keep their loss sample.
type RunRepositoryMemory struct {
	mu         sync.RWMutex
	data       []domain.SimulationRun
	maxRuns    int
	maxSamples int
}

// NewRunRepositoryMemory creates a new in-memory run repository with the
// default bounds.
func NewRunRepositoryMemory() *RunRepositoryMemory {
	return NewBoundedRunRepositoryMemory(DefaultMemoryRuns, DefaultMemorySamples)
}

func NewBoundedRunRepositoryMemory(maxRuns, maxSamples int) *RunRepositoryMemory {
	return &RunRepositoryMemory{
		data:       []domain.SimulationRun{},
		maxRuns:    max(maxRuns, 1),
		maxSamples: max(maxSamples, 0),
	}
}

// Save stores the run in memory.
func (r *RunRepositoryMemory) Save(_ context.Context, run domain.SimulationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data = append(r.data, run)
	if over := len(r.data) - r.maxRuns; over > 0 {
		r.data = slices.Delete(r.data, 0, over)
	}
	// el run que sale de la ventana pierde sus pérdidas
	if i := len(r.data) - 1 - r.maxSamples; i >= 0 {
		r.data[i].Summary = r.data[i].Summary.WithoutLosses()
	}
	return nil
}

func (r *RunRepositoryMemory) FindByID(_ context.Context, id string) (domain.SimulationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, run := range r.data {
		if run.ID == id {
			return run, nil
		}
	}
	return domain.SimulationRun{}, ErrRunNotFound
}

func (r *RunRepositoryMemory) List(_ context.Context, limit int) ([]domain.SimulationRun, error) {
	if limit <= 0 {
		return []domain.SimulationRun{}, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SimulationRun, 0, min(limit, len(r.data)))
	for i := len(r.data) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.data[i])
	}
	return out, nil
}
