package dosing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Prepare cleans the table, selects the flow regime nearest to requestedFlow and
// averages repeated turbidity readings. The input slice is not modified.
func Prepare(table []OperatingPoint, requestedFlow float64) (FlowRegimeDataset, error) {
	if !finite(requestedFlow) {
		return FlowRegimeDataset{}, &InvalidInputError{Field: "flow", Value: requestedFlow}
	}
	clean := make([]OperatingPoint, 0, len(table))
	for _, p := range table {
		if p.Usable() {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return FlowRegimeDataset{}, &EmptyDatasetError{Rows: len(table), Rejected: len(table)}
	}

	flows := DistinctFlows(clean)
	if len(flows) == 0 {
		return FlowRegimeDataset{}, &NoFlowDataError{Rows: len(clean)}
	}
	regime := NearestFlow(flows, requestedFlow)

	rows := make([]OperatingPoint, 0, len(clean))
	for _, p := range clean {
		if p.Flow == regime {
			rows = append(rows, p)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Turbidity < rows[j].Turbidity })

	ds := FlowRegimeDataset{Flow: regime, Points: make([]RegimePoint, 0, len(rows))}
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && rows[j].Turbidity == rows[i].Turbidity {
			j++
		}
		doses := make([]float64, 0, j-i)
		for _, r := range rows[i:j] {
			doses = append(doses, r.Dose)
		}
		ds.Points = append(ds.Points, RegimePoint{Turbidity: rows[i].Turbidity, Dose: stat.Mean(doses, nil)})
		ds.Merged += j - i - 1
		i = j
	}
	return ds, nil
}

// DistinctFlows returns the finite flow values present in the table, ascending.
func DistinctFlows(table []OperatingPoint) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for _, p := range table {
		if !finite(p.Flow) {
			continue
		}
		if _, ok := seen[p.Flow]; ok {
			continue
		}
		seen[p.Flow] = struct{}{}
		out = append(out, p.Flow)
	}
	sort.Float64s(out)
	return out
}

// NearestFlow picks the flow closest to requested. flows must be ascending and
// non-empty; on a tie the lower flow wins.
func NearestFlow(flows []float64, requested float64) float64 {
	best := flows[0]
	bestDist := math.Abs(best - requested)
	for _, f := range flows[1:] {
		if d := math.Abs(f - requested); d < bestDist {
			best, bestDist = f, d
		}
	}
	return best
}
