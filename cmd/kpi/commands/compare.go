package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/databokers/backoffice/internal/kpi"
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare [metric_code]",
	Short: "Compare a KPI against the previous period",
	Long: `Loads (or computes) the snapshot for the period and relates
it to the latest prior snapshot of the same metric and segment.

Example:
  go run ./cmd/kpi compare conversion_rate --segment residential
  go run ./cmd/kpi compare roi --segment commercial --year 2025 --month 3`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

var (
	compareSegment string
	compareYear    int
	compareMonth   int
)

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&compareSegment, "segment", "", "segment to compare (required)")
	compareCmd.Flags().IntVar(&compareYear, "year", 0, "period year (default: current)")
	compareCmd.Flags().IntVar(&compareMonth, "month", 0, "period month 1-12 (default: current)")
	compareCmd.MarkFlagRequired("segment")
}

func runCompare(cmd *cobra.Command, args []string) error {
	code := args[0]

	d, err := initEngine()
	if err != nil {
		return err
	}
	defer d.Close()

	period := flagPeriod(compareYear, compareMonth)
	segment := kpi.Segment(compareSegment)

	comparison, err := d.engine.Compare(context.Background(), code, segment, period)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	fmt.Printf("=== %s for %s ===\n\n", code, segment)
	fmt.Printf("Current  (%s): %.2f %s\n",
		comparison.Current.Period, comparison.Current.Value, comparison.Current.Unit)

	if comparison.Previous == nil {
		fmt.Println("Previous: none (first computed period)")
		return nil
	}

	fmt.Printf("Previous (%s): %.2f %s\n",
		comparison.Previous.Period, comparison.Previous.Value, comparison.Previous.Unit)
	fmt.Printf("Delta: %+.2f\n", comparison.AbsoluteDelta)

	if comparison.PercentageDelta != nil {
		fmt.Printf("Variation: %+.2f%%\n", *comparison.PercentageDelta)
	} else {
		fmt.Println("Variation: undefined (previous value is zero)")
	}

	return nil
}
