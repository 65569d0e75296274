package service

import (
	"math"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
)

// Range is an inclusive bound. The zero Range accepts any finite value.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r Range) check(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &dosing.InvalidInputError{Field: field, Value: v, Min: r.Min, Max: r.Max}
	}
	if r.Min == 0 && r.Max == 0 {
		return nil
	}
	if v < r.Min || v > r.Max {
		return &dosing.InvalidInputError{Field: field, Value: v, Min: r.Min, Max: r.Max}
	}
	return nil
}

// Limits bound operator inputs before estimation.
type Limits struct {
	Turbidity Range `json:"turbidity" yaml:"turbidity"`
	PH        Range `json:"ph" yaml:"ph"`
	Flow      Range `json:"flow" yaml:"flow"`
}

// DefaultLimits mirrors the plant's operator form.
func DefaultLimits() Limits {
	return Limits{
		Turbidity: Range{Min: 0.1, Max: 4000},
		PH:        Range{Min: 5.0, Max: 9.5},
		Flow:      Range{Min: 150, Max: 300},
	}
}

// Validate returns the first out-of-range input as *dosing.InvalidInputError.
func (l Limits) Validate(q Query) error {
	if err := l.Turbidity.check("turbidity", q.Turbidity); err != nil {
		return err
	}
	if err := l.PH.check("ph", q.PH); err != nil {
		return err
	}
	return l.Flow.check("flow", q.Flow)
}
