package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/dosifier-cli/internal/service"
	"github.com/KaramelBytes/dosifier-cli/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	estTurbidity float64
	estPH        float64
	estFlow      float64
	estNoLog     bool
	estFormat    string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the coagulant dose for the current raw-water conditions",
	Example: `  dosifier estimate --turbidity 75 --flow 210
  dosifier estimate --turbidity 1500 --ph 6.9 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("turbidity") {
			return fmt.Errorf("--turbidity is required")
		}
		format := strings.ToLower(strings.TrimSpace(estFormat))
		switch format {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unsupported --format: %s (use text|json|yaml)", estFormat)
		}
		d, err := openDosifier(serviceLogger())
		if err != nil {
			return err
		}
		defer d.Close()

		est, err := d.Estimate(context.Background(), service.Query{
			Turbidity:   estTurbidity,
			PH:          estPH,
			Flow:        estFlow,
			SkipHistory: estNoLog,
		})
		if err != nil {
			return err
		}
		switch format {
		case "json":
			b, err := utils.PrettyJSON(est)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
		case "yaml":
			b, err := yaml.Marshal(est)
			if err != nil {
				return fmt.Errorf("marshal yaml: %w", err)
			}
			fmt.Print(string(b))
		default:
			printEstimate(est)
		}
		if est.HistoryError != "" {
			fmt.Fprintf(os.Stderr, "⚠ Warning: estimate not saved to history: %s\n", est.HistoryError)
		}
		return nil
	},
}

func printEstimate(est service.Estimate) {
	fmt.Printf("✓ Recommended dose: %.2f mg/L\n", est.Dose)
	fmt.Printf("  Inputs: turbidity %g NTU, pH %g, flow %g L/s\n", est.Turbidity, est.PH, est.RequestedFlow)
	fmt.Printf("  Method: %s (flow regime %g L/s, %d points)\n", est.Method.Label(), est.RegimeFlow, est.RegimePoints)
	fmt.Printf("  Category: %s\n", est.Category.Label())
	fmt.Printf("  Recommendation: %s\n", est.Recommendation)
	if est.EntryID != "" {
		fmt.Printf("  Logged: %s (%s)\n", est.RecordedAt.Local().Format("2006-01-02 15:04:05"), est.EntryID)
	}
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateCmd.Flags().Float64VarP(&estTurbidity, "turbidity", "t", 100, "raw-water turbidity in NTU")
	estimateCmd.Flags().Float64Var(&estPH, "ph", 7.2, "raw-water pH (reported, does not change the dose)")
	estimateCmd.Flags().Float64VarP(&estFlow, "flow", "q", 200, "plant flow in L/s")
	estimateCmd.Flags().BoolVar(&estNoLog, "no-log", false, "do not record the estimate in history")
	estimateCmd.Flags().StringVarP(&estFormat, "format", "f", "text", "output format: text|json|yaml")
}
