package dosing

import (
	"errors"
	"fmt"
	"math"
)

// Method names the fitting strategy that produced a dose.
type Method string

const (
	SplineCubic         Method = "spline_cubic"
	LinearInterpolation Method = "linear_interpolation"
)

// Label returns a human-readable name for the method.
func (m Method) Label() string {
	switch m {
	case SplineCubic:
		return "cubic spline"
	case LinearInterpolation:
		return "linear interpolation"
	}
	return string(m)
}

// Category is the operational turbidity band of a query.
type Category string

const (
	Low      Category = "low"
	Normal   Category = "normal"
	VeryHigh Category = "very_high"
)

// Turbidity band limits in NTU. Both limits belong to the Normal band.
const (
	LowTurbidityLimit  = 10.0
	HighTurbidityLimit = 1000.0
)

// Label returns a human-readable name for the category.
func (c Category) Label() string {
	switch c {
	case Low:
		return "Low turbidity"
	case Normal:
		return "Normal turbidity"
	case VeryHigh:
		return "Very high turbidity"
	}
	return string(c)
}

// Result is the outcome of one dose estimation.
type Result struct {
	Dose           float64  `json:"dose" yaml:"dose"`
	Method         Method   `json:"method" yaml:"method"`
	Category       Category `json:"category" yaml:"category"`
	Recommendation string   `json:"recommendation" yaml:"recommendation"`
}

// Classify maps a turbidity reading to its band and operator recommendation.
func Classify(turbidity float64) (Category, string) {
	switch {
	case turbidity < LowTurbidityLimit:
		return Low, "Verify fine adjustment of the dose. At low turbidity small variations can be significant."
	case turbidity > HighTurbidityLimit:
		return VeryHigh, "Supervise the process and evaluate staged dosing or pre-sedimentation."
	default:
		return Normal, "Standard operating conditions. Keep routine process monitoring."
	}
}

// Estimate fits the regime and evaluates it at queryTurbidity. The cubic spline is
// tried when the regime has enough points; it falls back to linear interpolation
// only on ErrFitFailed.
func Estimate(ds FlowRegimeDataset, queryTurbidity float64) (Result, error) {
	fail := func(err error) (Result, error) {
		return Result{}, &EstimationFailedError{Flow: ds.Flow, Turbidity: queryTurbidity, Points: ds.Len(), Err: err}
	}
	if !finite(queryTurbidity) {
		return fail(fmt.Errorf("query turbidity is not a finite number"))
	}
	xs, ys := ds.XY()

	var (
		raw    float64
		method Method
	)
	if len(xs) >= MinSplinePoints {
		v, err := splineAt(xs, ys, queryTurbidity)
		switch {
		case err == nil:
			raw, method = v, SplineCubic
		case errors.Is(err, ErrFitFailed):
			// fall through to linear
		default:
			return fail(err)
		}
	}
	if method == "" {
		lin, err := FitLinear(xs, ys)
		if err != nil {
			return fail(err)
		}
		raw = lin.At(queryTurbidity)
		if !finite(raw) {
			return fail(fmt.Errorf("linear interpolation produced %v", raw))
		}
		method = LinearInterpolation
	}

	cat, rec := Classify(queryTurbidity)
	return Result{
		Dose:           math.Max(raw, 0),
		Method:         method,
		Category:       cat,
		Recommendation: rec,
	}, nil
}

func splineAt(xs, ys []float64, x float64) (float64, error) {
	s, err := FitCubicSpline(xs, ys)
	if err != nil {
		return 0, err
	}
	v := s.At(x)
	if !finite(v) {
		return 0, fmt.Errorf("%w: spline evaluated to %v", ErrFitFailed, v)
	}
	return v, nil
}

// Outcome is a full query: the operator inputs, the regime used and the result.
type Outcome struct {
	Turbidity     float64 `json:"turbidity" yaml:"turbidity"`
	PH            float64 `json:"ph" yaml:"ph"`
	RequestedFlow float64 `json:"flow" yaml:"flow"`
	RegimeFlow    float64 `json:"regime_flow" yaml:"regime_flow"`
	RegimePoints  int     `json:"regime_points" yaml:"regime_points"`
	Result        `yaml:",inline"`
}

// Run prepares the table for flow and estimates the dose at turbidity. pH is
// reported back unchanged; it does not take part in the computation.
func Run(table []OperatingPoint, turbidity, pH, flow float64) (Outcome, error) {
	ds, err := Prepare(table, flow)
	if err != nil {
		return Outcome{}, err
	}
	res, err := Estimate(ds, turbidity)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Turbidity:     turbidity,
		PH:            pH,
		RequestedFlow: flow,
		RegimeFlow:    ds.Flow,
		RegimePoints:  ds.Len(),
		Result:        res,
	}, nil
}
