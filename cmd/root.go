package cmd

import (
	"fmt"
	"log"
	"os"

	cfgpkg "github.com/KaramelBytes/dosifier-cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Overrides for table and history settings
	flagTablePath     string
	flagHistoryDriver string
	flagHistoryDSN    string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "dosifier",
	Short: "Dosifier CLI: estimate aluminum sulfate doses from a plant dosing table",
	Long: `Dosifier estimates the coagulant (aluminum sulfate) dose for a water-treatment plant from raw-water
turbidity, pH and flow by interpolating over the plant's jar-test dosing table, and keeps a history of
every estimate for trend review.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.dosifier/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagTablePath, "table", "", "dosing table CSV/TSV/XLSX (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagHistoryDriver, "history-driver", "", "history backend: sqlite|postgres|csv|none (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagHistoryDSN, "history-dsn", "", "history database path or connection string (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("table") && flagTablePath != "" {
		cfg.TablePath = flagTablePath
	}
	if f.Changed("history-driver") && flagHistoryDriver != "" {
		if err := cfg.Set("history_driver", flagHistoryDriver); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
		}
	}
	if f.Changed("history-dsn") {
		cfg.HistoryDSN = flagHistoryDSN
	}
	if debug {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	}
}
