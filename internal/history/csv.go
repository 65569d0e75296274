package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// CSVStore appends entries to a flat CSV file.
type CSVStore struct {
	mu   sync.Mutex
	path string
}

// OpenCSV prepares path for appending; the file is created on first write.
func OpenCSV(path string) (*CSVStore, error) {
	if path == "" {
		return nil, errors.New("open history: csv requires a file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &CSVStore{path: path}, nil
}

// Append writes e, adding the header when the file is new.
func (s *CSVStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}
	if err := w.Write(toRecord(e)); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List reads the whole file and returns matching entries, newest first.
func (s *CSVStore) List(_ context.Context, f Filter) ([]Entry, error) {
	s.mu.Lock()
	all, err := s.readAll()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if f.match(e.RecordedAt) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Prune rewrites the file without entries recorded before the cutoff.
func (s *CSVStore) Prune(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return 0, err
	}
	kept := all[:0]
	for _, e := range all {
		if !e.RecordedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	removed := int64(len(all) - len(kept))
	if removed == 0 {
		return 0, nil
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	if err := WriteCSV(f, kept); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("prune history: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("prune history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return removed, nil
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) readAll() ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var out []Entry
	line := 0
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read history: %w", err)
		}
		line++
		if line == 1 && len(rec) > 0 && rec[0] == csvHeader[0] {
			continue
		}
		e, err := fromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("read history line %d: %w", line, err)
		}
		out = append(out, e)
	}
	return out, nil
}
