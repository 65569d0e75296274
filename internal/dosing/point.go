package dosing

import "math"

// OperatingPoint is one row of the experimental dosing table.
// A field that could not be read as a number is NaN.
type OperatingPoint struct {
	Flow      float64 `json:"flow"`      // L/s
	Turbidity float64 `json:"turbidity"` // NTU
	Dose      float64 `json:"dose"`      // mg/L
}

// Usable reports whether turbidity and dose are finite and inside the data model
// (turbidity > 0, dose >= 0).
func (p OperatingPoint) Usable() bool {
	if !finite(p.Turbidity) || !finite(p.Dose) {
		return false
	}
	return p.Turbidity > 0 && p.Dose >= 0
}

// RegimePoint is a deduplicated (turbidity, dose) pair inside one flow regime.
type RegimePoint struct {
	Turbidity float64 `json:"turbidity"`
	Dose      float64 `json:"dose"`
}

// FlowRegimeDataset is the subset of the table sharing one flow value, sorted
// ascending by turbidity with unique turbidities.
type FlowRegimeDataset struct {
	Flow   float64       `json:"flow"`
	Points []RegimePoint `json:"points"`
	// Merged counts rows folded into another row with the same turbidity.
	Merged int `json:"merged"`
}

// Len returns the number of distinct turbidity points.
func (d FlowRegimeDataset) Len() int { return len(d.Points) }

// XY returns the turbidity and dose columns as separate slices.
func (d FlowRegimeDataset) XY() (xs, ys []float64) {
	xs = make([]float64, len(d.Points))
	ys = make([]float64, len(d.Points))
	for i, p := range d.Points {
		xs[i] = p.Turbidity
		ys[i] = p.Dose
	}
	return xs, ys
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
