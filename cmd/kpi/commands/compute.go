package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/databokers/backoffice/internal/kpi"
)

// computeCmd represents the compute command
var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute all KPIs for a segment on demand",
	Long: `Runs every registered calculator for one segment and period
without persisting, printing the values. Defaults to the current
calendar month.

Example:
  go run ./cmd/kpi compute --segment residential
  go run ./cmd/kpi compute --segment commercial --year 2025 --month 3`,
	RunE: runCompute,
}

var (
	computeSegment string
	computeYear    int
	computeMonth   int
)

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().StringVar(&computeSegment, "segment", "", "segment to compute (required)")
	computeCmd.Flags().IntVar(&computeYear, "year", 0, "period year (default: current)")
	computeCmd.Flags().IntVar(&computeMonth, "month", 0, "period month 1-12 (default: current)")
	computeCmd.MarkFlagRequired("segment")
}

// flagPeriod resolves the year/month flags into a calendar-month
// period, defaulting to the current month.
func flagPeriod(year, month int) kpi.Period {
	if year == 0 || month == 0 {
		return kpi.MonthOf(time.Now())
	}
	return kpi.Month(year, time.Month(month))
}

func runCompute(cmd *cobra.Command, args []string) error {
	d, err := initEngine()
	if err != nil {
		return err
	}
	defer d.Close()

	period := flagPeriod(computeYear, computeMonth)
	segment := kpi.Segment(computeSegment)

	fmt.Printf("=== KPIs for %s, %s ===\n\n", segment, period)

	results := d.engine.ComputeAll(context.Background(), segment, period)

	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("❌ %-20s failed: %s\n", r.Code, r.Err)
			continue
		}

		if r.Result.Undefined() {
			fmt.Printf("   %-20s undefined (%s)\n", r.Code, r.Result.Unit)
			continue
		}

		fmt.Printf("   %-20s %12.2f %s\n", r.Code, r.Result.Value, r.Result.Unit)
	}

	return nil
}
