package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/databokers/backoffice/internal/kpi"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [metric_code]",
	Short: "Show the snapshot series for a KPI",
	Long: `Prints the persisted snapshot series for a metric and
segment, ascending by period. Defaults to the last six months.

Example:
  go run ./cmd/kpi history conversion_rate --segment residential
  go run ./cmd/kpi history roi --segment commercial --from 2025-01-01 --to 2025-07-01`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var (
	historySegment string
	historyFrom    string
	historyTo      string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historySegment, "segment", "", "segment (required)")
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "range start (YYYY-MM-DD, default: 6 months ago)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "range end (YYYY-MM-DD, default: now)")
	historyCmd.MarkFlagRequired("segment")
}

func runHistory(cmd *cobra.Command, args []string) error {
	code := args[0]

	d, err := initEngine()
	if err != nil {
		return err
	}
	defer d.Close()

	now := time.Now()
	from := now.AddDate(0, -6, 0)
	to := now

	if historyFrom != "" {
		from, err = time.Parse("2006-01-02", historyFrom)
		if err != nil {
			return fmt.Errorf("invalid --from date: %w", err)
		}
	}

	if historyTo != "" {
		to, err = time.Parse("2006-01-02", historyTo)
		if err != nil {
			return fmt.Errorf("invalid --to date: %w", err)
		}
	}

	snapshots, err := d.engine.History(context.Background(), code, kpi.Segment(historySegment), from, to)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	fmt.Printf("=== %s history for %s ===\n\n", code, historySegment)

	if len(snapshots) == 0 {
		fmt.Println("No snapshots in range")
		return nil
	}

	for _, s := range snapshots {
		marker := " "
		if s.Undefined() {
			marker = "?"
		}
		fmt.Printf("%s %s  %12.2f %s  (computed %s)\n",
			marker,
			s.Period.Start.Format("2006-01"),
			s.Value, s.Unit,
			s.ComputedAt.Format("2006-01-02 15:04"),
		)
	}

	return nil
}
