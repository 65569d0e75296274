package dosing

import (
	"errors"
	"math"
	"testing"
)

var plantTable = []OperatingPoint{
	pt(150, 5, 7), pt(150, 10, 11), pt(150, 50, 20), pt(150, 100, 27), pt(150, 500, 41),
	pt(200, 5, 8), pt(200, 10, 12), pt(200, 50, 22), pt(200, 100, 30), pt(200, 500, 45), pt(200, 1000, 55),
	pt(250, 10, 14), pt(250, 100, 33), pt(250, 1000, 60),
}

func regime(t *testing.T, flow float64) FlowRegimeDataset {
	t.Helper()
	ds, err := Prepare(plantTable, flow)
	if err != nil {
		t.Fatalf("prepare %v: %v", flow, err)
	}
	return ds
}

func TestEstimateUsesSplineWithFourOrMorePoints(t *testing.T) {
	res, err := Estimate(regime(t, 200), 75)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if res.Method != SplineCubic {
		t.Fatalf("expected spline, got %s", res.Method)
	}
	if res.Dose < 22 || res.Dose > 30 {
		t.Fatalf("dose %.3f outside neighbouring table values", res.Dose)
	}
}

func TestEstimateFallsBackToLinearBelowFourPoints(t *testing.T) {
	ds := regime(t, 250)
	if ds.Len() != 3 {
		t.Fatalf("fixture: expected 3 points, got %d", ds.Len())
	}
	res, err := Estimate(ds, 55)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if res.Method != LinearInterpolation {
		t.Fatalf("expected linear, got %s", res.Method)
	}
	// 14 + (55-10)*(33-14)/(100-10)
	want := 14 + 45*19.0/90
	if math.Abs(res.Dose-want) > 1e-9 {
		t.Fatalf("dose=%v want %v", res.Dose, want)
	}
}

func TestEstimateFallsBackToLinearWhenSplineFitFails(t *testing.T) {
	ds := FlowRegimeDataset{Flow: 200, Points: []RegimePoint{{1, 0}, {2, 1e308}, {3, 0}, {4, 0}}}
	xs, ys := ds.XY()
	if _, err := FitCubicSpline(xs, ys); !errors.Is(err, ErrFitFailed) {
		t.Fatalf("fixture: expected spline fit failure, got %v", err)
	}
	cases := []struct {
		q    float64
		want float64
	}{
		{3.5, 0},
		{1.5, 5e307},
	}
	for _, c := range cases {
		res, err := Estimate(ds, c.q)
		if err != nil {
			t.Fatalf("q=%v: estimate: %v", c.q, err)
		}
		if res.Method != LinearInterpolation {
			t.Fatalf("q=%v: expected linear after fit failure, got %s", c.q, res.Method)
		}
		if math.Abs(res.Dose-c.want) > 1e-9*math.Max(1, c.want) {
			t.Fatalf("q=%v: dose=%v want %v", c.q, res.Dose, c.want)
		}
	}
}

func TestEstimateLinearExtrapolates(t *testing.T) {
	ds := FlowRegimeDataset{Flow: 200, Points: []RegimePoint{{10, 12}, {50, 22}, {100, 30}}}
	res, err := Estimate(ds, 200)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if want := 30 + 100*8.0/50; math.Abs(res.Dose-want) > 1e-9 {
		t.Fatalf("dose=%v want %v", res.Dose, want)
	}
	res, err = Estimate(ds, 2)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if want := 12 - 8*10.0/40; math.Abs(res.Dose-want) > 1e-9 {
		t.Fatalf("dose=%v want %v", res.Dose, want)
	}
}

func TestEstimateClampsNegativeDose(t *testing.T) {
	falling := FlowRegimeDataset{Flow: 200, Points: []RegimePoint{{10, 20}, {20, 10}, {30, 5}}}
	res, err := Estimate(falling, 100)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if res.Dose != 0 {
		t.Fatalf("expected clamp to 0, got %v", res.Dose)
	}
}

func TestEstimateDoseNeverNegative(t *testing.T) {
	sets := []FlowRegimeDataset{
		regime(t, 150),
		regime(t, 200),
		regime(t, 250),
		{Flow: 1, Points: []RegimePoint{{1, 50}, {2, 10}, {3, 40}, {4, 1}, {5, 30}}},
	}
	queries := []float64{1e-9, 0.1, 3, 9.999, 10, 400, 1000, 1000.001, 4000, 1e5, 1e9}
	for _, ds := range sets {
		for _, q := range queries {
			res, err := Estimate(ds, q)
			if err != nil {
				t.Fatalf("flow %v q %v: %v", ds.Flow, q, err)
			}
			if res.Dose < 0 || math.IsNaN(res.Dose) {
				t.Fatalf("flow %v q %v: dose %v", ds.Flow, q, res.Dose)
			}
		}
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		turbidity float64
		want      Category
	}{
		{0.1, Low},
		{9.999, Low},
		{10, Normal},
		{500, Normal},
		{1000, Normal},
		{1000.001, VeryHigh},
		{4000, VeryHigh},
	}
	for _, c := range cases {
		got, rec := Classify(c.turbidity)
		if got != c.want {
			t.Errorf("Classify(%v) = %s, want %s", c.turbidity, got, c.want)
		}
		if rec == "" {
			t.Errorf("Classify(%v): empty recommendation", c.turbidity)
		}
	}
}

func TestEstimateCategoryIgnoresCurve(t *testing.T) {
	res, err := Estimate(regime(t, 200), 9.999)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if res.Category != Low {
		t.Fatalf("expected Low, got %s", res.Category)
	}
	res, err = Estimate(regime(t, 200), 1000.001)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if res.Category != VeryHigh {
		t.Fatalf("expected VeryHigh, got %s", res.Category)
	}
}

func TestEstimateIsIdempotent(t *testing.T) {
	ds := regime(t, 200)
	a, err := Estimate(ds, 320)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	b, err := Estimate(ds, 320)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if a != b {
		t.Fatalf("results differ: %+v vs %+v", a, b)
	}
}

func TestEstimateFailsLoudly(t *testing.T) {
	cases := map[string]struct {
		ds FlowRegimeDataset
		q  float64
	}{
		"single point":  {FlowRegimeDataset{Flow: 200, Points: []RegimePoint{{10, 5}}}, 10},
		"no points":     {FlowRegimeDataset{Flow: 200}, 10},
		"nan query":     {regime(t, 200), math.NaN()},
		"inf query":     {regime(t, 200), math.Inf(1)},
		"nan dose":      {FlowRegimeDataset{Flow: 200, Points: []RegimePoint{{1, 1}, {2, math.NaN()}, {3, 3}, {4, 4}}}, 2.5},
		"unsorted data": {FlowRegimeDataset{Flow: 200, Points: []RegimePoint{{5, 1}, {2, 2}, {3, 3}, {4, 4}}}, 2.5},
	}
	for name, c := range cases {
		res, err := Estimate(c.ds, c.q)
		var e *EstimationFailedError
		if !errors.As(err, &e) {
			t.Fatalf("%s: expected EstimationFailedError, got res=%+v err=%v", name, res, err)
		}
	}
}

func TestRunIgnoresPH(t *testing.T) {
	for _, q := range []float64{3, 75, 1200} {
		base, err := Run(plantTable, q, 7.2, 205)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		for _, ph := range []float64{5.0, 6.5, 9.5} {
			got, err := Run(plantTable, q, ph, 205)
			if err != nil {
				t.Fatalf("run ph=%v: %v", ph, err)
			}
			if got.Result != base.Result || got.RegimeFlow != base.RegimeFlow {
				t.Fatalf("pH %v changed the result: %+v vs %+v", ph, got.Result, base.Result)
			}
			if got.PH != ph {
				t.Fatalf("pH not reported back: %v", got.PH)
			}
		}
	}
}

func TestRunReportsRegime(t *testing.T) {
	out, err := Run(plantTable, 100, 7, 210)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.RegimeFlow != 200 || out.RequestedFlow != 210 || out.RegimePoints != 6 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
