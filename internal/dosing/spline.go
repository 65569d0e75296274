package dosing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// MinSplinePoints is the number of distinct points a cubic spline needs (order + 1).
const MinSplinePoints = 4

// CubicSpline is a cubic interpolating spline with not-a-knot end conditions.
// Outside the knot range it continues the first or last polynomial piece.
type CubicSpline struct {
	xs, ys []float64
	m      []float64 // second derivative at each knot
}

// FitCubicSpline fits a spline through (xs[i], ys[i]). xs must be strictly
// increasing. Numerical failures wrap ErrFitFailed; malformed input does not.
func FitCubicSpline(xs, ys []float64) (*CubicSpline, error) {
	n := len(xs)
	if n != len(ys) {
		return nil, fmt.Errorf("spline: %d x values but %d y values", n, len(ys))
	}
	if n < MinSplinePoints {
		return nil, fmt.Errorf("spline: need at least %d points, got %d", MinSplinePoints, n)
	}
	h := make([]float64, n-1)
	for i := range h {
		h[i] = xs[i+1] - xs[i]
		if !(h[i] > 0) {
			return nil, fmt.Errorf("spline: knots must be strictly increasing (x[%d]=%g, x[%d]=%g)", i, xs[i], i+1, xs[i+1])
		}
	}

	a := mat.NewDense(n, n, nil)
	b := mat.NewVecDense(n, nil)
	// Third derivative continuous across the second and the second-to-last knot.
	a.Set(0, 0, h[1])
	a.Set(0, 1, -(h[0] + h[1]))
	a.Set(0, 2, h[0])
	for i := 1; i < n-1; i++ {
		a.Set(i, i-1, h[i-1])
		a.Set(i, i, 2*(h[i-1]+h[i]))
		a.Set(i, i+1, h[i])
		b.SetVec(i, 6*((ys[i+1]-ys[i])/h[i]-(ys[i]-ys[i-1])/h[i-1]))
	}
	a.Set(n-1, n-3, h[n-2])
	a.Set(n-1, n-2, -(h[n-3] + h[n-2]))
	a.Set(n-1, n-1, h[n-3])

	var m mat.VecDense
	if err := m.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}
	s := &CubicSpline{
		xs: append([]float64(nil), xs...),
		ys: append([]float64(nil), ys...),
		m:  make([]float64, n),
	}
	for i := range s.m {
		s.m[i] = m.AtVec(i)
		if !finite(s.m[i]) {
			return nil, fmt.Errorf("%w: non-finite coefficient at knot %d", ErrFitFailed, i)
		}
	}
	return s, nil
}

// At evaluates the spline at x.
func (s *CubicSpline) At(x float64) float64 {
	i := segment(s.xs, x)
	h := s.xs[i+1] - s.xs[i]
	l := s.xs[i+1] - x
	r := x - s.xs[i]
	return s.m[i]*l*l*l/(6*h) + s.m[i+1]*r*r*r/(6*h) +
		(s.ys[i]/h-s.m[i]*h/6)*l + (s.ys[i+1]/h-s.m[i+1]*h/6)*r
}

// segment returns the index of the interval holding x, clamped to the first and
// last interval so that out-of-range values extrapolate.
func segment(xs []float64, x float64) int {
	i := sort.Search(len(xs), func(k int) bool { return xs[k] > x }) - 1
	if i < 0 {
		i = 0
	}
	if i > len(xs)-2 {
		i = len(xs) - 2
	}
	return i
}
