package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Databokers back office - KPI engine",
	Long: `Databokers KPI Engine CLI

Computes the brokerage business indicators (conversion rate, time to
sale, commissions, stock index, broker efficiency, trade-in success,
ROI) from transactional records, persists them as monthly snapshots
and raises threshold alerts.

Usage:
  go run ./cmd/kpi [command]

Examples:
  go run ./cmd/kpi api
  go run ./cmd/kpi scheduler start
  go run ./cmd/kpi compute --segment residential
  go run ./cmd/kpi compare conversion_rate --segment residential`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
