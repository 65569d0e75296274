package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
	"github.com/KaramelBytes/dosifier-cli/internal/history"
	"github.com/KaramelBytes/dosifier-cli/internal/service"
	"github.com/KaramelBytes/dosifier-cli/internal/table"
)

func plantTable() (*table.Table, error) {
	rows := [][3]float64{
		{200, 5, 8}, {200, 10, 12}, {200, 50, 22}, {200, 100, 30}, {200, 500, 45}, {200, 1000, 55},
		{250, 10, 14}, {250, 100, 33}, {250, 1000, 60},
	}
	t := &table.Table{Name: "plant.csv", Rows: len(rows)}
	for _, r := range rows {
		t.Points = append(t.Points, dosing.OperatingPoint{Flow: r[0], Turbidity: r[1], Dose: r[2]})
	}
	return t, nil
}

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	store, err := history.OpenCSV(filepath.Join(t.TempDir(), "history.csv"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc, err := service.New(plantTable, store, service.Options{Limits: service.DefaultLimits()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return New(Config{Port: 0, BearerToken: token}, svc)
}

func do(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, "secret")
	w := do(s, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected healthz: %d %s", w.Code, w.Body.String())
	}
}

func TestEstimateEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	w := do(s, http.MethodPost, "/api/v1/estimate", `{"turbidity": 1500, "flow": 240}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			Dose       float64         `json:"dose"`
			Method     dosing.Method   `json:"method"`
			Category   dosing.Category `json:"category"`
			PH         float64         `json:"ph"`
			RegimeFlow float64         `json:"regime_flow"`
			EntryID    string          `json:"entry_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	d := resp.Data
	if d.RegimeFlow != 250 || d.Method != dosing.LinearInterpolation || d.Category != dosing.VeryHigh {
		t.Fatalf("unexpected estimate: %+v", d)
	}
	if d.PH != defaultPH || d.Dose < 60 || d.EntryID == "" {
		t.Fatalf("unexpected estimate: %+v", d)
	}

	w = do(s, http.MethodGet, "/api/v1/history", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":1`) {
		t.Fatalf("unexpected history: %d %s", w.Code, w.Body.String())
	}
	w = do(s, http.MethodGet, "/api/v1/history/stats", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"very_high":1`) {
		t.Fatalf("unexpected stats: %d %s", w.Code, w.Body.String())
	}
}

func TestEstimateEndpointErrors(t *testing.T) {
	s := newTestServer(t, "")
	cases := []struct {
		body string
		code int
	}{
		{`{"flow": 200}`, http.StatusBadRequest},
		{`{"turbidity": "high"}`, http.StatusBadRequest},
		{`{"turbidity": 50, "ph": 11}`, http.StatusBadRequest},
		{`{"turbidity": 50, "flow": 400}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		w := do(s, http.MethodPost, "/api/v1/estimate", c.body, nil)
		if w.Code != c.code {
			t.Errorf("body %s: expected %d, got %d (%s)", c.body, c.code, w.Code, w.Body.String())
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&dosing.InvalidInputError{Field: "ph"}, http.StatusBadRequest},
		{&dosing.EmptyDatasetError{}, http.StatusUnprocessableEntity},
		{&dosing.NoFlowDataError{}, http.StatusUnprocessableEntity},
		{&dosing.EstimationFailedError{}, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.code {
			t.Errorf("statusFor(%T) = %d, want %d", c.err, got, c.code)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, "secret")
	if w := do(s, http.MethodGet, "/api/v1/table", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := do(s, http.MethodGet, "/api/v1/table", "", map[string]string{"Authorization": "Bearer nope"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w := do(s, http.MethodGet, "/api/v1/table", "", map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"regimes"`) {
		t.Fatalf("unexpected table response: %d %s", w.Code, w.Body.String())
	}
	if w := do(s, http.MethodOptions, "/api/v1/estimate", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected CORS preflight 204, got %d", w.Code)
	}
}

func TestHistoryExport(t *testing.T) {
	s := newTestServer(t, "")
	for _, body := range []string{`{"turbidity": 5}`, `{"turbidity": 50}`} {
		if w := do(s, http.MethodPost, "/api/v1/estimate", body, nil); w.Code != http.StatusOK {
			t.Fatalf("estimate %s: %d %s", body, w.Code, w.Body.String())
		}
	}
	w := do(s, http.MethodGet, "/api/v1/history/export?limit=5", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	recs, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 3 || recs[0][0] != "id" {
		t.Fatalf("unexpected export: %v", recs)
	}
	if w := do(s, http.MethodGet, "/api/v1/history?limit=-2", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestTableReload(t *testing.T) {
	s := newTestServer(t, "")
	w := do(s, http.MethodPost, "/api/v1/table/reload", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"rows":9`) {
		t.Fatalf("unexpected reload: %d %s", w.Code, w.Body.String())
	}
}
