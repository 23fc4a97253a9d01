package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/databokers/backoffice/internal/scheduler"
	"github.com/databokers/backoffice/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the KPI scheduler",
	Long: `Starts the scheduler daemon or inspects its jobs.

Registered jobs:
- kpi_cycle: full KPI computation cycle (default hourly, KPI_CYCLE_SCHEDULE)

Subcommands:
  start   - start the scheduler daemon
  list    - list registered jobs
  run     - trigger a job immediately
  status  - show job execution statistics

Example:
  go run ./cmd/kpi scheduler start
  go run ./cmd/kpi scheduler run kpi_cycle`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Trigger a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job execution statistics",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func initScheduler() (*scheduler.Scheduler, *deps, error) {
	d, err := initEngine()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(d.log)
	if err := sched.AddJob(jobs.NewKPICycleJob(d.engine, d.cfg, d.log)); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("register cycle job: %w", err)
	}

	return sched, d, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Databokers KPI Scheduler ===")

	sched, d, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	sched, d, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	// Block until the triggered cycle finishes so the connections
	// stay open for it.
	time.Sleep(100 * time.Millisecond)
	for sched.State(jobName) == scheduler.StateRunning {
		time.Sleep(200 * time.Millisecond)
	}

	history, err := sched.GetJobHistory(jobName)
	if err != nil {
		return err
	}

	results := history.GetLatestResults(1)
	if len(results) == 0 {
		fmt.Println("Job produced no result")
		return nil
	}

	if results[0].Success {
		fmt.Printf("✅ Job completed in %s\n", results[0].Duration)
	} else {
		fmt.Printf("❌ Job failed: %s\n", results[0].Error)
	}

	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	stats := sched.GetJobStats()

	fmt.Println("Job Statistics:")
	fmt.Println()

	for jobName, stat := range stats {
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   State: %s\n", stat.State)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		fmt.Printf("   Dropped Ticks: %d\n", stat.DroppedTicks)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}

	return nil
}
