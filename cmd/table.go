package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/dosifier-cli/internal/table"
	"github.com/KaramelBytes/dosifier-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	tblOutputPath string
	tblFormat     string
	tblMaxRows    int
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Work with the dosing table",
}

var tableInspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Summarize flow regimes and usable points of a dosing table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.TablePath = args[0]
		}
		t, _, err := loadTable(tblMaxRows)
		if err != nil {
			return err
		}
		sum := table.Inspect(t)

		var out string
		switch strings.ToLower(tblFormat) {
		case "json":
			b, err := utils.PrettyJSON(sum)
			if err != nil {
				return err
			}
			out = string(b) + "\n"
		case "markdown", "md", "":
			out = sum.Markdown()
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown|json)", tblFormat)
		}
		if tblOutputPath != "" {
			if err := utils.SafeWriteFile(tblOutputPath, []byte(out)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote table summary for %s to %s\n", filepath.Base(t.Name), tblOutputPath)
			return nil
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tableCmd)
	tableCmd.AddCommand(tableInspectCmd)
	tableInspectCmd.Flags().StringVarP(&tblOutputPath, "output", "o", "", "optional path to write the summary")
	tableInspectCmd.Flags().StringVarP(&tblFormat, "format", "f", "markdown", "output format: markdown|json")
	tableInspectCmd.Flags().IntVar(&tblMaxRows, "max-rows", 0, "maximum rows to read (0 = loader default)")
}
