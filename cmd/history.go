package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/dosifier-cli/internal/history"
	"github.com/KaramelBytes/dosifier-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	histSince       string
	histUntil       string
	histLastDays    int
	histListLimit   int
	histExportLimit int
	histListFormat  string
	histStatsFormat string
	histOutput      string
	histOlderThan   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Review, export or prune the estimate history",
}

// withHistory opens the configured store for the duration of fn.
func withHistory(fn func(ctx context.Context, s history.Store) error) error {
	if err := requireConfig(); err != nil {
		return err
	}
	s, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(context.Background(), s)
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged estimates, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := parseWindow(histSince, histUntil, histLastDays, histListLimit)
		if err != nil {
			return err
		}
		return withHistory(func(ctx context.Context, s history.Store) error {
			entries, err := s.List(ctx, f)
			if err != nil {
				return err
			}
			if strings.EqualFold(histListFormat, "json") {
				if entries == nil {
					entries = []history.Entry{}
				}
				b, err := utils.PrettyJSON(entries)
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}
			if len(entries) == 0 {
				fmt.Println("(no estimates logged)")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("- %s  turbidity %g NTU, pH %g, flow %g L/s (regime %g) -> %.2f mg/L [%s, %s]\n",
					e.RecordedAt.Local().Format("2006-01-02 15:04"), e.Turbidity, e.PH, e.Flow, e.RegimeFlow,
					e.Dose, e.Method, e.Category)
			}
			return nil
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export logged estimates as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := parseWindow(histSince, histUntil, histLastDays, histExportLimit)
		if err != nil {
			return err
		}
		return withHistory(func(ctx context.Context, s history.Store) error {
			entries, err := s.List(ctx, f)
			if err != nil {
				return err
			}
			if histOutput == "" {
				return history.WriteCSV(os.Stdout, entries)
			}
			var buf bytes.Buffer
			if err := history.WriteCSV(&buf, entries); err != nil {
				return err
			}
			if err := utils.SafeWriteFile(histOutput, buf.Bytes()); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Printf("✓ Exported %d estimates to %s\n", len(entries), histOutput)
			return nil
		})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize dose trends over the logged estimates",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := parseWindow(histSince, histUntil, histLastDays, 0)
		if err != nil {
			return err
		}
		return withHistory(func(ctx context.Context, s history.Store) error {
			entries, err := s.List(ctx, f)
			if err != nil {
				return err
			}
			tr := history.Summarize(entries)
			if strings.EqualFold(histStatsFormat, "json") {
				b, err := utils.PrettyJSON(tr)
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}
			fmt.Print(tr.Markdown())
			return nil
		})
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete estimates older than a number of days",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		days := histOlderThan
		if !cmd.Flags().Changed("older-than-days") {
			days = cfg.HistoryRetentionDays
		}
		if days <= 0 {
			return fmt.Errorf("--older-than-days must be positive (or set history_retention_days)")
		}
		cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
		return withHistory(func(ctx context.Context, s history.Store) error {
			n, err := s.Prune(ctx, cutoff)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Pruned %d estimates older than %d days\n", n, days)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyExportCmd, historyStatsCmd, historyPruneCmd)
	for _, c := range []*cobra.Command{historyListCmd, historyExportCmd, historyStatsCmd} {
		c.Flags().StringVar(&histSince, "since", "", "only estimates at or after this time (RFC3339 or YYYY-MM-DD)")
		c.Flags().StringVar(&histUntil, "until", "", "only estimates before this time (RFC3339 or YYYY-MM-DD)")
		c.Flags().IntVar(&histLastDays, "last-days", 0, "only estimates from the last N days")
	}
	historyListCmd.Flags().IntVarP(&histListLimit, "limit", "n", 20, "maximum entries to show (0 = all)")
	historyExportCmd.Flags().IntVarP(&histExportLimit, "limit", "n", 0, "maximum entries to export (0 = all)")
	historyListCmd.Flags().StringVarP(&histListFormat, "format", "f", "text", "output format: text|json")
	historyStatsCmd.Flags().StringVarP(&histStatsFormat, "format", "f", "markdown", "output format: markdown|json")
	historyExportCmd.Flags().StringVarP(&histOutput, "output", "o", "", "write CSV to this path instead of stdout")
	historyPruneCmd.Flags().IntVar(&histOlderThan, "older-than-days", 0, "delete estimates older than N days (default history_retention_days)")
}
