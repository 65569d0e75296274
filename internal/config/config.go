package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Dosing table
	TablePath      string `mapstructure:"table_path" yaml:"table_path"`
	TableDelimiter string `mapstructure:"table_delimiter" yaml:"table_delimiter"`
	TableDecimal   string `mapstructure:"table_decimal" yaml:"table_decimal"`
	TableSheet     string `mapstructure:"table_sheet" yaml:"table_sheet"`

	// History logging
	HistoryDriver        string `mapstructure:"history_driver" yaml:"history_driver"`
	HistoryDSN           string `mapstructure:"history_dsn" yaml:"history_dsn"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days" yaml:"history_retention_days"`

	// Operator input limits
	TurbidityMin float64 `mapstructure:"turbidity_min" yaml:"turbidity_min"`
	TurbidityMax float64 `mapstructure:"turbidity_max" yaml:"turbidity_max"`
	PHMin        float64 `mapstructure:"ph_min" yaml:"ph_min"`
	PHMax        float64 `mapstructure:"ph_max" yaml:"ph_max"`
	FlowMin      float64 `mapstructure:"flow_min" yaml:"flow_min"`
	FlowMax      float64 `mapstructure:"flow_max" yaml:"flow_max"`

	// HTTP API and scheduled jobs
	ServerPort     int    `mapstructure:"server_port" yaml:"server_port"`
	APIBearerToken string `mapstructure:"api_bearer_token" yaml:"api_bearer_token"`
	ReloadSchedule string `mapstructure:"reload_schedule" yaml:"reload_schedule"`
	PruneSchedule  string `mapstructure:"prune_schedule" yaml:"prune_schedule"`
}

// Dir returns ~/.dosifier.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dosifier"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dosifier/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from .env, file, env, and defaults.
// Precedence: env > config file (cfgFile or ~/.dosifier/config.yaml) > defaults.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load() // ignore missing .env

	v := viper.New()
	v.SetEnvPrefix("DOSIFIER")
	v.AutomaticEnv()

	v.SetDefault("table_path", filepath.Join("data", "tabla_dosificacion.csv"))
	v.SetDefault("table_delimiter", "")
	v.SetDefault("table_decimal", "")
	v.SetDefault("table_sheet", "")
	v.SetDefault("history_driver", "sqlite")
	v.SetDefault("history_dsn", "")
	v.SetDefault("history_retention_days", 0)
	// Bounds of the plant's operator form
	v.SetDefault("turbidity_min", 0.1)
	v.SetDefault("turbidity_max", 4000.0)
	v.SetDefault("ph_min", 5.0)
	v.SetDefault("ph_max", 9.5)
	v.SetDefault("flow_min", 150.0)
	v.SetDefault("flow_max", 300.0)
	v.SetDefault("server_port", 8080)
	v.SetDefault("api_bearer_token", "")
	v.SetDefault("reload_schedule", "@every 15m")
	v.SetDefault("prune_schedule", "@daily")

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// HistoryTarget returns history_dsn, or the default file under ~/.dosifier
// for the sqlite and csv drivers when it is unset.
func (c *Global) HistoryTarget() string {
	if c.HistoryDSN != "" {
		return c.HistoryDSN
	}
	dir, err := Dir()
	if err != nil {
		return ""
	}
	switch strings.ToLower(c.HistoryDriver) {
	case "sqlite", "sqlite3":
		return filepath.Join(dir, "history.db")
	case "csv":
		return filepath.Join(dir, "history.csv")
	default:
		return ""
	}
}

// Set assigns key from its string form, validating numbers and enums.
func (c *Global) Set(key, val string) error {
	float := func(dst *float64) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %v", key, val)
		}
		*dst = f
		return nil
	}
	integer := func(dst *int) error {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*dst = i
		return nil
	}
	switch key {
	case "table_path":
		c.TablePath = val
	case "table_delimiter":
		switch val {
		case "", ",", ";", "\t", "tab":
			if val == "tab" {
				val = "\t"
			}
			c.TableDelimiter = val
		default:
			return fmt.Errorf("invalid table_delimiter: %q (use , ; or tab)", val)
		}
	case "table_decimal":
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "", ".", ",":
			c.TableDecimal = strings.TrimSpace(val)
		case "dot":
			c.TableDecimal = "."
		case "comma":
			c.TableDecimal = ","
		default:
			return fmt.Errorf("invalid table_decimal: %q (use . , dot or comma)", val)
		}
	case "table_sheet":
		c.TableSheet = val
	case "history_driver":
		switch strings.ToLower(val) {
		case "sqlite", "sqlite3":
			c.HistoryDriver = "sqlite"
		case "postgres", "postgresql":
			c.HistoryDriver = "postgres"
		case "csv", "none":
			c.HistoryDriver = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid history_driver: %s (use sqlite, postgres, csv or none)", val)
		}
	case "history_dsn":
		c.HistoryDSN = val
	case "history_retention_days":
		return integer(&c.HistoryRetentionDays)
	case "turbidity_min":
		return float(&c.TurbidityMin)
	case "turbidity_max":
		return float(&c.TurbidityMax)
	case "ph_min":
		return float(&c.PHMin)
	case "ph_max":
		return float(&c.PHMax)
	case "flow_min":
		return float(&c.FlowMin)
	case "flow_max":
		return float(&c.FlowMax)
	case "server_port":
		return integer(&c.ServerPort)
	case "api_bearer_token":
		c.APIBearerToken = val
	case "reload_schedule":
		c.ReloadSchedule = val
	case "prune_schedule":
		c.PruneSchedule = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}
