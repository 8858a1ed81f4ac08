package domain

import (
	"math"

	"github.com/pkg/errors"
)

// Loan is one row of portfolio input.
type Loan struct {
	LoanAmount         float64 `json:"loan_amount"`
	DefaultProbability float64 `json:"default_probability"`
	RecoveryRate       float64 `json:"recovery_rate"`
}

// LossGivenDefault is the amount lost when the loan defaults.
func (l Loan) LossGivenDefault() float64 {
	return l.LoanAmount * (1 - l.RecoveryRate)
}

// Validate checks the loan fields against their allowed ranges.
func (l Loan) Validate() error {
	if math.IsNaN(l.LoanAmount) || math.IsInf(l.LoanAmount, 0) || l.LoanAmount < 0 {
		return errors.Wrapf(ErrInvalidInput, "loan_amount %v must be a finite value >= 0", l.LoanAmount)
	}
	if !inUnitInterval(l.DefaultProbability) {
		return errors.Wrapf(ErrInvalidInput, "default_probability %v outside [0, 1]", l.DefaultProbability)
	}
	if !inUnitInterval(l.RecoveryRate) {
		return errors.Wrapf(ErrInvalidInput, "recovery_rate %v outside [0, 1]", l.RecoveryRate)
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Portfolio is an ordered collection of loans. The order is kept stable for
// diagnostics; it has no effect on the simulated losses.
type Portfolio []Loan

// Validate rejects empty portfolios and reports the first invalid loan by index.
// The portfolio totals must also be finite so every trial loss is a real number.
func (p Portfolio) Validate() error {
	if len(p) == 0 {
		return errors.Wrap(ErrInvalidInput, "portfolio is empty")
	}
	for i, loan := range p {
		if err := loan.Validate(); err != nil {
			return errors.WithMessagef(err, "loan %d", i)
		}
	}
	if math.IsInf(p.MaxLoss(), 0) || math.IsInf(p.TotalExposure(), 0) {
		return errors.Wrap(ErrInvalidInput, "total portfolio exposure overflows a float64")
	}
	return nil
}

// MaxLoss is the portfolio loss when every loan defaults.
func (p Portfolio) MaxLoss() float64 {
	total := 0.0
	for _, loan := range p {
		total += loan.LossGivenDefault()
	}
	return total
}

// TotalExposure is the sum of loan amounts.
func (p Portfolio) TotalExposure() float64 {
	total := 0.0
	for _, loan := range p {
		total += loan.LoanAmount
	}
	return total
}
