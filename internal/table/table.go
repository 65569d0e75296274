package table

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
)

// Options controls how a dosing table is read.
type Options struct {
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t' from the header line.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// XLSX sheet selection; SheetIndex is 1-based and used when SheetName is empty.
	SheetName  string
	SheetIndex int
	// UnitNormalize converts header units (g/L, m3/h, ...) to mg/L and L/s.
	UnitNormalize bool
}

// DefaultOptions returns reasonable defaults for plant tables.
func DefaultOptions() Options {
	return Options{
		MaxRows:       100000,
		SheetIndex:    1,
		UnitNormalize: true,
	}
}

// Table is a loaded dosing table.
type Table struct {
	Name     string
	Rows     int
	Columns  Columns
	Points   []dosing.OperatingPoint
	Warnings []string
}

// Columns records which header cells were matched, with their units.
type Columns struct {
	Flow, Turbidity, Dose             int // -1 when absent
	FlowUnit, TurbidityUnit, DoseUnit string
}

var aliases = map[string][]string{
	"flow":      {"caudal", "flow", "flow_rate", "flowrate", "q", "caudal_l_s", "flow_l_s"},
	"turbidity": {"turbiedad", "turbidez", "turbidity", "ntu", "turbidity_ntu", "turbiedad_ntu"},
	"dose":      {"dosis_mg_l", "dosis", "dose", "dose_mg_l", "dosage", "alum_dose"},
}

// Load reads a CSV/TSV or XLSX table, picking the reader by extension.
func Load(path string, opt Options) (*Table, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return LoadXLSX(path, opt)
	}
	return LoadCSV(path, opt)
}

// LoadCSV reads a delimited dosing table.
func LoadCSV(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	br := bufio.NewReader(f)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path, br)
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: %s is empty", filepath.Base(path))
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	b, err := newBuilder(filepath.Base(path), header, opt)
	if err != nil {
		return nil, err
	}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", b.t.Rows+1, err)
		}
		if !b.add(rec) {
			break
		}
	}
	return b.finish(), nil
}

// LoadXLSX reads a dosing table from one sheet of a workbook.
func LoadXLSX(path string, opt Options) (*Table, error) {
	rows, err := readXLSXRows(path, opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read header: %s has no rows", filepath.Base(path))
	}
	b, err := newBuilder(filepath.Base(path), rows[0], opt)
	if err != nil {
		return nil, err
	}
	for _, rec := range rows[1:] {
		if !b.add(rec) {
			break
		}
	}
	return b.finish(), nil
}

type builder struct {
	t        *Table
	opt      Options
	maxRows  int
	rejected int
}

func newBuilder(name string, header []string, opt Options) (*builder, error) {
	cols := Columns{Flow: -1, Turbidity: -1, Dose: -1}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		clean, unit := splitUnits(strings.TrimSpace(h))
		key := strings.ToLower(strings.Join(strings.Fields(clean), "_"))
		switch {
		case cols.Flow < 0 && matches("flow", key):
			cols.Flow, cols.FlowUnit = i, unit
		case cols.Turbidity < 0 && matches("turbidity", key):
			cols.Turbidity, cols.TurbidityUnit = i, unit
		case cols.Dose < 0 && matches("dose", key):
			cols.Dose, cols.DoseUnit = i, unit
		}
	}
	if cols.Turbidity < 0 {
		return nil, fmt.Errorf("table %s: no turbidity column (header: %s)", name, strings.Join(header, ", "))
	}
	if cols.Dose < 0 {
		return nil, fmt.Errorf("table %s: no dose column (header: %s)", name, strings.Join(header, ", "))
	}
	t := &Table{Name: name, Columns: cols}
	if cols.Flow < 0 {
		t.Warnings = append(t.Warnings, "no flow column found; flow regimes cannot be selected")
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	return &builder{t: t, opt: opt, maxRows: maxRows}, nil
}

func matches(field, key string) bool {
	for _, a := range aliases[field] {
		if key == a {
			return true
		}
	}
	return false
}

// add converts one record; it returns false once MaxRows is reached.
func (b *builder) add(rec []string) bool {
	if b.t.Rows >= b.maxRows {
		b.t.Warnings = append(b.t.Warnings, fmt.Sprintf("read only the first %d rows due to MaxRows", b.maxRows))
		return false
	}
	if isBlank(rec) {
		return true
	}
	b.t.Rows++
	c := b.t.Columns
	p := dosing.OperatingPoint{
		Flow:      b.cell(rec, c.Flow, c.FlowUnit),
		Turbidity: b.cell(rec, c.Turbidity, c.TurbidityUnit),
		Dose:      b.cell(rec, c.Dose, c.DoseUnit),
	}
	if math.IsNaN(p.Turbidity) || math.IsNaN(p.Dose) {
		b.rejected++
	}
	b.t.Points = append(b.t.Points, p)
	return true
}

func (b *builder) cell(rec []string, idx int, unit string) float64 {
	if idx < 0 || idx >= len(rec) {
		return math.NaN()
	}
	x, ok := parseNumeric(rec[idx], b.opt)
	if !ok {
		return math.NaN()
	}
	if b.opt.UnitNormalize && unit != "" {
		if nx, _, ok := normalizeUnit(x, unit); ok {
			x = nx
		}
	}
	return x
}

func (b *builder) finish() *Table {
	if b.opt.UnitNormalize {
		c := &b.t.Columns
		for _, u := range []*string{&c.FlowUnit, &c.TurbidityUnit, &c.DoseUnit} {
			if _, nu, ok := normalizeUnit(1, *u); ok {
				*u = nu
			}
		}
	}
	if b.rejected > 0 {
		b.t.Warnings = append(b.t.Warnings, fmt.Sprintf("%d rows with non-numeric turbidity or dose", b.rejected))
	}
	return b.t
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter trusts a .tsv extension, otherwise counts candidates in the header line.
func sniffDelimiter(path string, br *bufio.Reader) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	line, _ := br.Peek(4096)
	if i := strings.IndexByte(string(line), '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(string(line), string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.ReplaceAll(s, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normalizeUnit converts concentration units to mg/L and flow units to L/s.
func normalizeUnit(x float64, unit string) (float64, string, bool) {
	switch strings.ToLower(strings.ReplaceAll(unit, " ", "")) {
	case "g/l":
		return x * 1000, "mg/L", true
	case "ug/l", "µg/l":
		return x / 1000, "mg/L", true
	case "ppm":
		return x, "mg/L", true
	case "m3/s", "m³/s":
		return x * 1000, "L/s", true
	case "m3/h", "m³/h":
		return x / 3.6, "L/s", true
	case "l/min":
		return x / 60, "L/s", true
	default:
		return x, unit, false
	}
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Dose (mg/L)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Flow [L/s]
	{regexp.MustCompile(`^(.*?)[_\s-]+(mg/L|g/L|ug/L|ppm|NTU|L/s|m3/h|m3/s)$`), 2},
}

func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}
