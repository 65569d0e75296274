package history

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
)

// Trend aggregates a window of history.
type Trend struct {
	Count         int                     `json:"count"`
	First         *time.Time              `json:"first,omitempty"`
	Last          *time.Time              `json:"last,omitempty"`
	ByCategory    map[dosing.Category]int `json:"by_category"`
	ByMethod      map[dosing.Method]int   `json:"by_method"`
	DoseMean      float64                 `json:"dose_mean"`
	DoseStdDev    float64                 `json:"dose_stddev"`
	DoseMin       float64                 `json:"dose_min"`
	DoseMax       float64                 `json:"dose_max"`
	TurbidityMean float64                 `json:"turbidity_mean"`
	// DosePerNTU is the least-squares slope of dose against turbidity.
	DosePerNTU float64 `json:"dose_per_ntu"`
}

// Summarize computes a Trend over entries in any order.
func Summarize(entries []Entry) Trend {
	t := Trend{
		Count:      len(entries),
		ByCategory: map[dosing.Category]int{},
		ByMethod:   map[dosing.Method]int{},
	}
	if len(entries) == 0 {
		return t
	}
	doses := make([]float64, len(entries))
	turb := make([]float64, len(entries))
	first, last := entries[0].RecordedAt, entries[0].RecordedAt
	for i, e := range entries {
		doses[i], turb[i] = e.Dose, e.Turbidity
		t.ByCategory[e.Category]++
		t.ByMethod[e.Method]++
		if e.RecordedAt.Before(first) {
			first = e.RecordedAt
		}
		if e.RecordedAt.After(last) {
			last = e.RecordedAt
		}
	}
	t.First, t.Last = &first, &last
	t.DoseMean = stat.Mean(doses, nil)
	t.TurbidityMean = stat.Mean(turb, nil)
	if len(entries) > 1 {
		t.DoseStdDev = stat.StdDev(doses, nil)
		if stat.Variance(turb, nil) > 0 {
			_, t.DosePerNTU = stat.LinearRegression(turb, doses, nil, false)
		}
	}
	sorted := append([]float64(nil), doses...)
	sort.Float64s(sorted)
	t.DoseMin, t.DoseMax = sorted[0], sorted[len(sorted)-1]
	return t
}

// Markdown renders the trend in the same bracketed layout as table summaries.
func (t Trend) Markdown() string {
	var b strings.Builder
	b.WriteString("[DOSING HISTORY TREND]\n")
	b.WriteString(fmt.Sprintf("Estimates: %d\n", t.Count))
	if t.Count == 0 {
		return b.String()
	}
	if t.First != nil && t.Last != nil {
		b.WriteString(fmt.Sprintf("Window: %s to %s\n", t.First.Format(time.RFC3339), t.Last.Format(time.RFC3339)))
	}
	b.WriteString(fmt.Sprintf("Dose: mean %.2f mg/L, stddev %.2f, min %.2f, max %.2f\n", t.DoseMean, t.DoseStdDev, t.DoseMin, t.DoseMax))
	b.WriteString(fmt.Sprintf("Turbidity: mean %.2f NTU\n", t.TurbidityMean))
	if t.DosePerNTU != 0 && !math.IsNaN(t.DosePerNTU) {
		b.WriteString(fmt.Sprintf("Dose per NTU: %.4f mg/L\n", t.DosePerNTU))
	}
	b.WriteString("\n[CATEGORIES]\n")
	for _, c := range []dosing.Category{dosing.Low, dosing.Normal, dosing.VeryHigh} {
		if n := t.ByCategory[c]; n > 0 {
			b.WriteString(fmt.Sprintf("- %s: %d\n", c.Label(), n))
		}
	}
	b.WriteString("\n[METHODS]\n")
	for _, m := range []dosing.Method{dosing.SplineCubic, dosing.LinearInterpolation} {
		if n := t.ByMethod[m]; n > 0 {
			b.WriteString(fmt.Sprintf("- %s: %d\n", m.Label(), n))
		}
	}
	return b.String()
}
