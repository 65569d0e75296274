package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
	"github.com/KaramelBytes/dosifier-cli/internal/history"
	"github.com/KaramelBytes/dosifier-cli/internal/table"
)

// Loader produces a fresh copy of the dosing table.
type Loader func() (*table.Table, error)

// FileLoader loads path with opt on every call.
func FileLoader(path string, opt table.Options) Loader {
	return func() (*table.Table, error) { return table.Load(path, opt) }
}

// Query is one operator request.
type Query struct {
	Turbidity float64 `json:"turbidity"`
	PH        float64 `json:"ph"`
	Flow      float64 `json:"flow"`
	// SkipHistory estimates without logging.
	SkipHistory bool `json:"skip_history,omitempty"`
}

// Estimate is an outcome plus its history bookkeeping.
type Estimate struct {
	dosing.Outcome `yaml:",inline"`
	RecordedAt     time.Time `json:"recorded_at" yaml:"recorded_at"`
	EntryID        string    `json:"entry_id,omitempty" yaml:"entry_id,omitempty"`
	// HistoryError is set when the estimate succeeded but logging did not.
	HistoryError string `json:"history_error,omitempty" yaml:"history_error,omitempty"`
}

// Options configures a Dosifier.
type Options struct {
	Limits Limits
	Logger *log.Logger
	// Debug logs every estimate.
	Debug bool
	Now   func() time.Time
}

// Dosifier serves estimates from a reloadable table snapshot and logs them.
type Dosifier struct {
	load   Loader
	store  history.Store
	limits Limits
	logger *log.Logger
	debug  bool
	now    func() time.Time

	mu       sync.RWMutex
	tab      *table.Table
	loadedAt time.Time
}

// New loads the table once and returns a ready Dosifier. A nil store logs nothing.
func New(load Loader, store history.Store, opt Options) (*Dosifier, error) {
	if load == nil {
		return nil, errors.New("dosifier: nil table loader")
	}
	if store == nil {
		store = history.Nop{}
	}
	d := &Dosifier{
		load:   load,
		store:  store,
		limits: opt.Limits,
		logger: opt.Logger,
		debug:  opt.Debug,
		now:    opt.Now,
	}
	if d.logger == nil {
		d.logger = log.New(io.Discard, "", 0)
	}
	if d.now == nil {
		d.now = time.Now
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload swaps in a freshly loaded table. On failure the previous snapshot stays.
func (d *Dosifier) Reload() error {
	t, err := d.load()
	if err != nil {
		return fmt.Errorf("load table: %w", err)
	}
	d.mu.Lock()
	d.tab = t
	d.loadedAt = d.now()
	d.mu.Unlock()
	d.logger.Printf("table %s loaded: %d rows", t.Name, t.Rows)
	for _, w := range t.Warnings {
		d.logger.Printf("table %s: %s", t.Name, w)
	}
	return nil
}

// Table returns the current snapshot and when it was loaded. Callers must not modify it.
func (d *Dosifier) Table() (*table.Table, time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tab, d.loadedAt
}

// Limits returns the configured input limits.
func (d *Dosifier) Limits() Limits { return d.limits }

// Estimate validates q, runs the dosing core against the current table and
// appends the result to history unless q.SkipHistory is set.
func (d *Dosifier) Estimate(ctx context.Context, q Query) (Estimate, error) {
	if err := d.limits.Validate(q); err != nil {
		return Estimate{}, err
	}
	t, _ := d.Table()
	out, err := dosing.Run(t.Points, q.Turbidity, q.PH, q.Flow)
	if err != nil {
		return Estimate{}, err
	}
	now := d.now()
	est := Estimate{Outcome: out, RecordedAt: now.UTC()}
	if d.debug {
		d.logger.Printf("estimate turbidity=%g ph=%g flow=%g regime=%g dose=%.3f method=%s category=%s",
			q.Turbidity, q.PH, q.Flow, out.RegimeFlow, out.Dose, out.Method, out.Category)
	}
	if q.SkipHistory {
		return est, nil
	}
	e := history.NewEntry(out, now)
	if err := d.store.Append(ctx, e); err != nil {
		d.logger.Printf("history append failed: %v", err)
		est.HistoryError = err.Error()
		return est, nil
	}
	est.EntryID = e.ID
	est.RecordedAt = e.RecordedAt
	return est, nil
}

// History lists logged estimates, newest first.
func (d *Dosifier) History(ctx context.Context, f history.Filter) ([]history.Entry, error) {
	return d.store.List(ctx, f)
}

// Trend summarizes logged estimates in the filter window.
func (d *Dosifier) Trend(ctx context.Context, f history.Filter) (history.Trend, error) {
	entries, err := d.store.List(ctx, f)
	if err != nil {
		return history.Trend{}, err
	}
	return history.Summarize(entries), nil
}

// Prune drops history older than retention.
func (d *Dosifier) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("prune: retention must be positive, got %s", retention)
	}
	n, err := d.store.Prune(ctx, d.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		d.logger.Printf("pruned %d history entries older than %s", n, retention)
	}
	return n, nil
}

// Close releases the history store.
func (d *Dosifier) Close() error { return d.store.Close() }
