package cmd

import (
	"fmt"
	"net/url"

	cfgpkg "github.com/KaramelBytes/dosifier-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Dosifier configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("table_path: %s\n", cfg.TablePath)
		if cfg.TableDelimiter != "" {
			fmt.Printf("table_delimiter: %q\n", cfg.TableDelimiter)
		}
		if cfg.TableDecimal != "" {
			fmt.Printf("table_decimal: %s\n", cfg.TableDecimal)
		}
		if cfg.TableSheet != "" {
			fmt.Printf("table_sheet: %s\n", cfg.TableSheet)
		}
		fmt.Printf("history_driver: %s\n", cfg.HistoryDriver)
		if dsn := cfg.HistoryTarget(); dsn != "" {
			fmt.Printf("history_dsn: %s\n", maskDSN(dsn))
		}
		fmt.Printf("history_retention_days: %d\n", cfg.HistoryRetentionDays)
		fmt.Printf("turbidity range: %g to %g NTU\n", cfg.TurbidityMin, cfg.TurbidityMax)
		fmt.Printf("ph range: %g to %g\n", cfg.PHMin, cfg.PHMax)
		fmt.Printf("flow range: %g to %g L/s\n", cfg.FlowMin, cfg.FlowMax)
		fmt.Printf("server_port: %d\n", cfg.ServerPort)
		fmt.Printf("api_bearer_token: %s\n", mask(cfg.APIBearerToken))
		fmt.Printf("reload_schedule: %s\n", cfg.ReloadSchedule)
		fmt.Printf("prune_schedule: %s\n", cfg.PruneSchedule)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}

// maskDSN hides the password of a postgres URL.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
