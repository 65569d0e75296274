package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	oldHome := os.Getenv("HOME")
	t.Cleanup(func() { os.Setenv("HOME", oldHome) })
	os.Setenv("HOME", home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := withHome(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.TablePath != filepath.Join("data", "tabla_dosificacion.csv") {
		t.Fatalf("unexpected table_path: %s", c.TablePath)
	}
	if c.TurbidityMin != 0.1 || c.TurbidityMax != 4000 || c.PHMin != 5 || c.PHMax != 9.5 || c.FlowMin != 150 || c.FlowMax != 300 {
		t.Fatalf("unexpected limits: %+v", c)
	}
	if c.HistoryDriver != "sqlite" || c.HistoryTarget() != filepath.Join(home, ".dosifier", "history.db") {
		t.Fatalf("unexpected history defaults: %s %s", c.HistoryDriver, c.HistoryDSN)
	}
	if c.ServerPort != 8080 {
		t.Fatalf("unexpected port: %d", c.ServerPort)
	}
}

func TestSaveAndReload(t *testing.T) {
	withHome(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for k, v := range map[string]string{
		"table_path":     "/plant/tabla.xlsx",
		"history_driver": "CSV",
		"flow_max":       "320",
		"server_port":    "9090",
	} {
		if err := c.Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := Save(c, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load("")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.TablePath != "/plant/tabla.xlsx" || got.FlowMax != 320 || got.ServerPort != 9090 {
		t.Fatalf("unexpected reloaded config: %+v", got)
	}
	if got.HistoryDriver != "csv" || got.HistoryDSN != "" || filepath.Base(got.HistoryTarget()) != "history.csv" {
		t.Fatalf("expected csv history with default path, got %s %s", got.HistoryDriver, got.HistoryTarget())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := withHome(t)
	cfgFile := filepath.Join(home, "custom.yaml")
	if err := os.WriteFile(cfgFile, []byte("ph_max: 9.0\nhistory_driver: none\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DOSIFIER_PH_MAX", "8.5")
	c, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.PHMax != 8.5 {
		t.Fatalf("expected env override 8.5, got %v", c.PHMax)
	}
	if c.HistoryDriver != "none" || c.HistoryTarget() != "" {
		t.Fatalf("expected none driver without dsn, got %s %q", c.HistoryDriver, c.HistoryTarget())
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	cases := map[string]string{
		"flow_min":               "abc",
		"server_port":            "-1",
		"history_driver":         "mongo",
		"table_decimal":          ";",
		"history_retention_days": "x",
		"nope":                   "1",
	}
	for k, v := range cases {
		if err := c.Set(k, v); err == nil {
			t.Errorf("expected error for %s=%s", k, v)
		}
	}
	if err := c.Set("table_delimiter", "tab"); err != nil || c.TableDelimiter != "\t" {
		t.Fatalf("expected tab delimiter, got %q (%v)", c.TableDelimiter, err)
	}
	for in, want := range map[string]string{"comma": ",", "Dot": ".", ",": ",", "": ""} {
		if err := c.Set("table_decimal", in); err != nil || c.TableDecimal != want {
			t.Fatalf("table_decimal %q: got %q (%v), want %q", in, c.TableDecimal, err, want)
		}
	}
}
