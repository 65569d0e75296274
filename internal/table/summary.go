package table

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
)

// Summary describes the flow regimes available in a table.
type Summary struct {
	Name     string          `json:"name"`
	Rows     int             `json:"rows"`
	Usable   int             `json:"usable"`
	Rejected int             `json:"rejected"`
	Regimes  []RegimeSummary `json:"regimes"`
	Warnings []string        `json:"warnings,omitempty"`
}

// RegimeSummary captures one flow regime after preparation.
type RegimeSummary struct {
	Flow           float64       `json:"flow"`
	Rows           int           `json:"rows"`
	Points         int           `json:"points"`
	Merged         int           `json:"merged"`
	TurbidityMin   float64       `json:"turbidity_min"`
	TurbidityMax   float64       `json:"turbidity_max"`
	DoseMin        float64       `json:"dose_min"`
	DoseMax        float64       `json:"dose_max"`
	Method         dosing.Method `json:"method"`
	Interpolatable bool          `json:"interpolatable"`
}

// Inspect prepares every flow regime in t and reports its shape.
func Inspect(t *Table) Summary {
	s := Summary{Name: t.Name, Rows: len(t.Points), Warnings: t.Warnings}
	usable := make([]dosing.OperatingPoint, 0, len(t.Points))
	for _, p := range t.Points {
		if p.Usable() {
			usable = append(usable, p)
		}
	}
	s.Usable = len(usable)
	s.Rejected = s.Rows - s.Usable
	for _, flow := range dosing.DistinctFlows(usable) {
		ds, err := dosing.Prepare(usable, flow)
		if err != nil {
			continue
		}
		rs := RegimeSummary{
			Flow:         flow,
			Points:       ds.Len(),
			Merged:       ds.Merged,
			Rows:         ds.Len() + ds.Merged,
			TurbidityMin: math.Inf(1), TurbidityMax: math.Inf(-1),
			DoseMin: math.Inf(1), DoseMax: math.Inf(-1),
		}
		for _, p := range ds.Points {
			rs.TurbidityMin = math.Min(rs.TurbidityMin, p.Turbidity)
			rs.TurbidityMax = math.Max(rs.TurbidityMax, p.Turbidity)
			rs.DoseMin = math.Min(rs.DoseMin, p.Dose)
			rs.DoseMax = math.Max(rs.DoseMax, p.Dose)
		}
		switch {
		case ds.Len() >= dosing.MinSplinePoints:
			rs.Method, rs.Interpolatable = dosing.SplineCubic, true
		case ds.Len() >= 2:
			rs.Method, rs.Interpolatable = dosing.LinearInterpolation, true
		}
		s.Regimes = append(s.Regimes, rs)
	}
	return s
}

// Markdown renders a compact summary for the terminal or a report file.
func (s Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[DOSING TABLE SUMMARY]\n")
	if s.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", s.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d (usable %d, rejected %d)\n", s.Rows, s.Usable, s.Rejected))
	b.WriteString(fmt.Sprintf("Flow regimes: %d\n", len(s.Regimes)))
	if len(s.Regimes) > 0 {
		b.WriteString("\n[FLOW REGIMES]\n")
		for _, r := range s.Regimes {
			b.WriteString(fmt.Sprintf("- %g L/s: %d points", r.Flow, r.Points))
			if r.Merged > 0 {
				b.WriteString(fmt.Sprintf(" (%d duplicates averaged)", r.Merged))
			}
			b.WriteString(fmt.Sprintf(", turbidity %.4g to %.4g NTU, dose %.4g to %.4g mg/L", r.TurbidityMin, r.TurbidityMax, r.DoseMin, r.DoseMax))
			if r.Interpolatable {
				b.WriteString(fmt.Sprintf("; %s", r.Method.Label()))
			} else {
				b.WriteString("; not enough points to interpolate")
			}
			b.WriteString("\n")
		}
	}
	if len(s.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range s.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}
