package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
)

var base = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func sampleEntries() []Entry {
	mk := func(h int, turb, dose float64, m dosing.Method, c dosing.Category) Entry {
		return Entry{
			ID:         "e" + time.Duration(h*int(time.Hour)).String(),
			RecordedAt: base.Add(time.Duration(h) * time.Hour),
			Turbidity:  turb,
			PH:         7.2,
			Flow:       210,
			RegimeFlow: 200,
			Dose:       dose,
			Method:     m,
			Category:   c,
		}
	}
	return []Entry{
		mk(0, 5, 8, dosing.SplineCubic, dosing.Low),
		mk(1, 50, 22, dosing.SplineCubic, dosing.Normal),
		mk(2, 100, 30, dosing.LinearInterpolation, dosing.Normal),
		mk(3, 1500, 62, dosing.SplineCubic, dosing.VeryHigh),
	}
}

// exerciseStore runs the same contract against every backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for _, e := range sampleEntries() {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("append %s: %v", e.ID, err)
		}
	}

	all, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	if !all[0].RecordedAt.Equal(base.Add(3*time.Hour)) || !all[3].RecordedAt.Equal(base) {
		t.Fatalf("expected newest first, got %v .. %v", all[0].RecordedAt, all[3].RecordedAt)
	}
	if all[0].Category != dosing.VeryHigh || all[0].Method != dosing.SplineCubic || all[0].Dose != 62 || all[0].PH != 7.2 {
		t.Fatalf("unexpected round trip: %+v", all[0])
	}

	win, err := s.List(ctx, Filter{Since: base.Add(time.Hour), Until: base.Add(3 * time.Hour)})
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(win) != 2 || win[0].Dose != 30 || win[1].Dose != 22 {
		t.Fatalf("unexpected window: %+v", win)
	}

	lim, err := s.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("list limit: %v", err)
	}
	if len(lim) != 1 || lim[0].Dose != 62 {
		t.Fatalf("unexpected limited list: %+v", lim)
	}

	n, err := s.Prune(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pruned, got %d", n)
	}
	rest, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list after prune: %v", err)
	}
	if len(rest) != 2 || rest[1].Dose != 30 {
		t.Fatalf("unexpected entries after prune: %+v", rest)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "db", "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestCSVStore(t *testing.T) {
	p := filepath.Join(t.TempDir(), "historial.csv")
	s, err := Open("csv", p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)

	// A reopened store sees the same file.
	again, err := OpenCSV(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := again.List(context.Background(), Filter{})
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 entries after reopen, got %d (%v)", len(got), err)
	}
}

func TestCSVStoreEmpty(t *testing.T) {
	s, err := OpenCSV(filepath.Join(t.TempDir(), "missing.csv"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := s.List(context.Background(), Filter{})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v (%v)", got, err)
	}
	if n, err := s.Prune(context.Background(), base); err != nil || n != 0 {
		t.Fatalf("expected nothing pruned, got %d (%v)", n, err)
	}
}

func TestOpenDrivers(t *testing.T) {
	s, err := Open("none", "")
	if err != nil {
		t.Fatalf("open none: %v", err)
	}
	if _, ok := s.(Nop); !ok {
		t.Fatalf("expected Nop store, got %T", s)
	}
	if err := s.Append(context.Background(), Entry{}); err != nil {
		t.Fatalf("nop append: %v", err)
	}
	if _, err := Open("mongo", "x"); err == nil || !strings.Contains(err.Error(), "unknown history driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
	if _, err := Open("postgres", ""); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}

func TestNewEntry(t *testing.T) {
	o := dosing.Outcome{
		Turbidity: 75, PH: 6.8, RequestedFlow: 210, RegimeFlow: 200, RegimePoints: 6,
		Result: dosing.Result{Dose: 25.3, Method: dosing.SplineCubic, Category: dosing.Normal},
	}
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("UTC-3", -3*3600))
	e := NewEntry(o, at)
	if e.ID == "" || len(e.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", e.ID)
	}
	if e.RecordedAt.Location() != time.UTC || !e.RecordedAt.Equal(at) {
		t.Fatalf("expected UTC timestamp equal to input, got %v", e.RecordedAt)
	}
	if e.Flow != 210 || e.RegimeFlow != 200 || e.Dose != 25.3 || e.PH != 6.8 {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if NewEntry(o, at).ID == e.ID {
		t.Fatalf("expected distinct ids")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleEntries()[:2]); err != nil {
		t.Fatalf("write: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 3 || recs[0][0] != "id" || recs[0][6] != "dose" {
		t.Fatalf("unexpected csv: %v", recs)
	}
	if recs[2][1] != "2025-03-01T09:00:00Z" || recs[2][6] != "22" || recs[2][8] != "normal" {
		t.Fatalf("unexpected row: %v", recs[2])
	}
}
