package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	cfgpkg "github.com/KaramelBytes/dosifier-cli/internal/config"
	"github.com/KaramelBytes/dosifier-cli/internal/history"
	"github.com/KaramelBytes/dosifier-cli/internal/service"
	"github.com/KaramelBytes/dosifier-cli/internal/table"
	"github.com/KaramelBytes/dosifier-cli/internal/utils"
)

func requireConfig() error {
	if cfg != nil {
		return nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// tableOptions maps config separators and sheet onto loader options.
func tableOptions(c *cfgpkg.Global) (table.Options, error) {
	opt := table.DefaultOptions()
	switch c.TableDelimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case ";":
		opt.Delimiter = ';'
	case "\t", "tab":
		opt.Delimiter = '\t'
	default:
		return opt, fmt.Errorf("unsupported table_delimiter: %q", c.TableDelimiter)
	}
	switch strings.ToLower(strings.TrimSpace(c.TableDecimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported table_decimal: %s (use '.'|'comma')", c.TableDecimal)
	}
	opt.SheetName = c.TableSheet
	return opt, nil
}

func limitsFromConfig(c *cfgpkg.Global) service.Limits {
	return service.Limits{
		Turbidity: service.Range{Min: c.TurbidityMin, Max: c.TurbidityMax},
		PH:        service.Range{Min: c.PHMin, Max: c.PHMax},
		Flow:      service.Range{Min: c.FlowMin, Max: c.FlowMax},
	}
}

// loadTable resolves the configured table path and loads it. maxRows > 0
// overrides the loader default.
func loadTable(maxRows int) (*table.Table, string, error) {
	opt, err := tableOptions(cfg)
	if err != nil {
		return nil, "", err
	}
	if maxRows > 0 {
		opt.MaxRows = maxRows
	}
	path, err := utils.ResolveTablePath(cfg.TablePath, "")
	if err != nil {
		return nil, "", err
	}
	t, err := table.Load(path, opt)
	if err != nil {
		return nil, path, err
	}
	return t, path, nil
}

func openHistory() (history.Store, error) {
	return history.Open(cfg.HistoryDriver, cfg.HistoryTarget())
}

func serviceLogger() *log.Logger {
	if debug {
		return log.New(os.Stderr, "[dosifier] ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// openDosifier wires table, history and limits from the loaded config.
func openDosifier(logger *log.Logger) (*service.Dosifier, error) {
	if err := requireConfig(); err != nil {
		return nil, err
	}
	opt, err := tableOptions(cfg)
	if err != nil {
		return nil, err
	}
	path, err := utils.ResolveTablePath(cfg.TablePath, "")
	if err != nil {
		return nil, err
	}
	store, err := openHistory()
	if err != nil {
		return nil, err
	}
	d, err := service.New(service.FileLoader(path, opt), store, service.Options{
		Limits: limitsFromConfig(cfg),
		Logger: logger,
		Debug:  debug,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}

// parseWindow builds a history filter from --since/--until (RFC3339 or
// YYYY-MM-DD) and --last-days.
func parseWindow(since, until string, lastDays, limit int) (history.Filter, error) {
	f := history.Filter{Limit: limit}
	if lastDays > 0 {
		f.Since = time.Now().UTC().Add(-time.Duration(lastDays) * 24 * time.Hour)
	}
	parse := func(s string) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), nil
		}
		return time.ParseInLocation("2006-01-02", s, time.Local)
	}
	if since != "" {
		t, err := parse(since)
		if err != nil {
			return f, fmt.Errorf("invalid --since: %s", since)
		}
		f.Since = t
	}
	if until != "" {
		t, err := parse(until)
		if err != nil {
			return f, fmt.Errorf("invalid --until: %s", until)
		}
		f.Until = t
	}
	return f, nil
}
