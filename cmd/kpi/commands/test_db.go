package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/databokers/backoffice/pkg/config"
	"github.com/databokers/backoffice/pkg/database"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "Test the PostgreSQL connection",
	Long: `Tests the database connection and prints pool statistics.

Example:
  go run ./cmd/kpi test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Databokers Database Connection Test ===")

	fmt.Println("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n\n", cfg.Env)

	fmt.Println("Connecting to database...")
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()
	fmt.Println("✅ Database connection established")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := db.HealthCheck(ctx)
	if !status.Healthy {
		return fmt.Errorf("❌ Health check failed: %s", status.Error)
	}

	fmt.Println("✅ Health Check Results:")
	fmt.Printf("   Response Time: %v\n\n", status.ResponseTime)

	fmt.Println("📊 Connection Pool Statistics:")
	fmt.Printf("   Max Connections: %d\n", status.MaxConns)
	fmt.Printf("   Total Connections: %d\n", status.TotalConns)
	fmt.Printf("   Idle Connections: %d\n", status.IdleConns)

	fmt.Println("\n✅ All tests passed!")
	return nil
}
