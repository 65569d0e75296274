package dosing

import "fmt"

// Linear is a piecewise-linear interpolant that extrapolates linearly past both ends.
type Linear struct {
	xs, ys []float64
}

// FitLinear builds a piecewise-linear interpolant. xs must be strictly increasing.
func FitLinear(xs, ys []float64) (*Linear, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("linear: %d x values but %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("linear: need at least 2 points, got %d", len(xs))
	}
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return nil, fmt.Errorf("linear: x values must be strictly increasing (x[%d]=%g, x[%d]=%g)", i-1, xs[i-1], i, xs[i])
		}
	}
	return &Linear{
		xs: append([]float64(nil), xs...),
		ys: append([]float64(nil), ys...),
	}, nil
}

// At evaluates the interpolant at x.
func (l *Linear) At(x float64) float64 {
	i := segment(l.xs, x)
	x0, y0 := l.xs[i], l.ys[i]
	x1, y1 := l.xs[i+1], l.ys[i+1]
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}
