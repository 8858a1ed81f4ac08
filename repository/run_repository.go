package repository

import (
	"context"

	"github.com/pkg/errors"

	"loan-risk/domain"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("simulation run not found")

type RunRepository interface {
	Save(ctx context.Context, run domain.SimulationRun) error
	FindByID(ctx context.Context, id string) (domain.SimulationRun, error)
	// List returns the most recent runs first.
	List(ctx context.Context, limit int) ([]domain.SimulationRun, error)
}
