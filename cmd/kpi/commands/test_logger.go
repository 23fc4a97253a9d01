package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/databokers/backoffice/pkg/config"
	"github.com/databokers/backoffice/pkg/logger"
)

// testLoggerCmd represents the test-logger command
var testLoggerCmd = &cobra.Command{
	Use:   "test-logger",
	Short: "Test structured logging output",
	Long: `Exercises the structured logger in both formats.

Example:
  go run ./cmd/kpi test-logger`,
	RunE: runTestLogger,
}

func init() {
	rootCmd.AddCommand(testLoggerCmd)
}

func runTestLogger(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Databokers Logger Test ===")

	fmt.Println("1. JSON Format")
	fmt.Println("--------------------------------")
	jsonLog := logger.New(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"})
	jsonLog.Debug("debug message")
	jsonLog.Info("info message")
	jsonLog.WithFields(map[string]interface{}{
		"metric":  "conversion_rate",
		"segment": "residential",
		"value":   25.0,
	}).Info("structured fields")
	jsonLog.WithError(errors.New("sample failure")).Error("error context")
	fmt.Println()

	fmt.Println("2. Console Format")
	fmt.Println("--------------------------------")
	consoleLog := logger.New(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "console"})
	consoleLog.Info("console output")
	consoleLog.Warnf("formatted %s", "warning")

	fmt.Println("\n✅ Logger test complete")
	return nil
}
