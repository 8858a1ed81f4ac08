package domain

import "github.com/pkg/errors"

var (
	// ErrInvalidInput marks out-of-range portfolio fields, a non-positive trial
	// count or an empty loss sample. It is always raised before any trial runs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDataUnavailable is returned by ingestion when the portfolio source
	// cannot be located or read.
	ErrDataUnavailable = errors.New("data unavailable")
)
