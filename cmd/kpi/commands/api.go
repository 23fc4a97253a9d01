package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/databokers/backoffice/internal/api"
	"github.com/databokers/backoffice/internal/api/handlers"
	"github.com/databokers/backoffice/internal/scheduler"
	"github.com/databokers/backoffice/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Starts the KPI engine's HTTP surface for the dashboard and
report collaborators, together with the background scheduler.

Endpoints:
  GET  /health                      - Health check
  GET  /api/kpi                     - Metric catalog
  GET  /api/kpi/compute             - On-demand computation
  POST /api/kpi/cycle               - Manual cycle trigger
  GET  /api/kpi/{code}/compare      - Compare vs previous period
  GET  /api/kpi/{code}/history      - Snapshot series
  GET  /api/alerts                  - List alerts
  POST /api/alerts/{id}/ack         - Acknowledge an alert

Example:
  go run ./cmd/kpi api
  go run ./cmd/kpi api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Databokers KPI API Server ===")

	d, err := initEngine()
	if err != nil {
		return err
	}
	defer d.Close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	// Scheduler runs alongside the API so the manual trigger endpoint
	// and the recurring cycle share the same run-state.
	sched := scheduler.New(d.log)
	if err := sched.AddJob(jobs.NewKPICycleJob(d.engine, d.cfg, d.log)); err != nil {
		return fmt.Errorf("register cycle job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	kpiHandler := handlers.NewKPIHandler(d.engine, d.log)
	alertHandler := handlers.NewAlertHandler(d.repo, sched, d.log)

	router := api.NewRouter(kpiHandler, alertHandler, d.log)
	server := api.New(d.cfg, d.log, router)

	// Serve until interrupted
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
