package domain

import "time"

// LossSample holds one aggregate portfolio loss per trial, in trial order.
type LossSample []float64

// SummaryStatistics is the reduction of a LossSample.
type SummaryStatistics struct {
	NumSimulations int        `json:"num_simulations"`
	MeanLoss       float64    `json:"mean_loss"`
	MedianLoss     float64    `json:"median_loss"`
	StdLoss        float64    `json:"std_loss"`
	MinLoss        float64    `json:"min_loss"`
	MaxLoss        float64    `json:"max_loss"`
	VaR95          float64    `json:"var_95"`
	VaR99          float64    `json:"var_99"`
	Losses         LossSample `json:"losses,omitempty"`
}

// WithoutLosses returns a copy with the raw sample dropped, for listings and events.
func (s SummaryStatistics) WithoutLosses() SummaryStatistics {
	s.Losses = nil
	return s
}

// SimulationRequest is what a caller asks the service to run. A nil
// NumSimulations means the configured default; an explicit value must be positive.
type SimulationRequest struct {
	Loans          Portfolio `json:"loans,omitempty"`
	NumSimulations *int      `json:"num_simulations,omitempty"`
	Seed           *uint64   `json:"seed,omitempty"`
	Workers        int       `json:"workers,omitempty"`
	Explain        bool      `json:"explain,omitempty"`
}

// SimulationRun is the record of one completed simulation.
type SimulationRun struct {
	ID             string            `json:"id"`
	NumSimulations int               `json:"num_simulations"`
	Seed           uint64            `json:"seed"`
	Seeded         bool              `json:"seeded"`
	Workers        int               `json:"workers"`
	LoanCount      int               `json:"loan_count"`
	TotalExposure  float64           `json:"total_exposure"`
	Summary        SummaryStatistics `json:"summary"`
	Explanation    string            `json:"explanation,omitempty"`
	Cached         bool              `json:"cached"`
	Duration       time.Duration     `json:"duration"`
	CreatedAt      time.Time         `json:"created_at"`
}
