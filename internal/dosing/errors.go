package dosing

import (
	"errors"
	"fmt"
)

// ErrFitFailed signals a numerical failure of the spline fit (singular or
// ill-conditioned system, non-finite coefficients). It is the only spline error
// that triggers the linear fallback.
var ErrFitFailed = errors.New("spline fit failed")

// EmptyDatasetError indicates no usable numeric rows remained after cleaning.
type EmptyDatasetError struct {
	Rows     int // rows received
	Rejected int // rows dropped as non-numeric or out of model bounds
}

func (e *EmptyDatasetError) Error() string {
	if e.Rows == 0 {
		return "empty dataset: table has no rows"
	}
	return fmt.Sprintf("empty dataset: all %d rows rejected (non-numeric turbidity/dose or out of range)", e.Rejected)
}

// NoFlowDataError indicates the table carries no usable flow values.
type NoFlowDataError struct {
	Rows int
}

func (e *NoFlowDataError) Error() string {
	return fmt.Sprintf("no flow data: none of %d usable rows has a numeric flow", e.Rows)
}

// EstimationFailedError indicates neither the spline nor the linear interpolation
// could produce a finite dose.
type EstimationFailedError struct {
	Flow      float64
	Turbidity float64
	Points    int
	Err       error
}

func (e *EstimationFailedError) Error() string {
	return fmt.Sprintf("estimation failed at %.4g NTU (flow regime %.4g L/s, %d points): %v", e.Turbidity, e.Flow, e.Points, e.Err)
}

func (e *EstimationFailedError) Unwrap() error { return e.Err }

// InvalidInputError indicates an operator input outside its accepted range.
type InvalidInputError struct {
	Field    string
	Value    float64
	Min, Max float64
}

func (e *InvalidInputError) Error() string {
	if e.Min == 0 && e.Max == 0 {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid %s: %v (accepted range %g to %g)", e.Field, e.Value, e.Min, e.Max)
}
