package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
)

var csvHeader = []string{"id", "recorded_at", "turbidity", "ph", "flow", "regime_flow", "dose", "method", "category"}

// WriteCSV writes entries with a header row.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(toRecord(e)); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func toRecord(e Entry) []string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	return []string{
		e.ID,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
		f(e.Turbidity),
		f(e.PH),
		f(e.Flow),
		f(e.RegimeFlow),
		f(e.Dose),
		string(e.Method),
		string(e.Category),
	}
}

func fromRecord(rec []string) (Entry, error) {
	if len(rec) != len(csvHeader) {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", len(csvHeader), len(rec))
	}
	at, err := time.Parse(time.RFC3339Nano, rec[1])
	if err != nil {
		return Entry{}, fmt.Errorf("recorded_at: %w", err)
	}
	e := Entry{
		ID:         rec[0],
		RecordedAt: at.UTC(),
		Method:     dosing.Method(rec[7]),
		Category:   dosing.Category(rec[8]),
	}
	for i, dst := range []*float64{&e.Turbidity, &e.PH, &e.Flow, &e.RegimeFlow, &e.Dose} {
		v, err := strconv.ParseFloat(rec[i+2], 64)
		if err != nil {
			return Entry{}, fmt.Errorf("%s: %w", csvHeader[i+2], err)
		}
		*dst = v
	}
	return e, nil
}
