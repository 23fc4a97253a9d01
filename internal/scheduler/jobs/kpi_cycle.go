package jobs

import (
	"context"
	"fmt"

	"github.com/databokers/backoffice/internal/kpi"
	"github.com/databokers/backoffice/pkg/config"
	"github.com/databokers/backoffice/pkg/logger"
)

// KPICycleJob runs one full KPI computation cycle: every registered
// metric for every active segment over the current calendar month.
type KPICycleJob struct {
	engine *kpi.Engine
	config *config.Config
	logger *logger.Logger
}

// NewKPICycleJob creates a new KPI cycle job
func NewKPICycleJob(engine *kpi.Engine, cfg *config.Config, log *logger.Logger) *KPICycleJob {
	return &KPICycleJob{
		engine: engine,
		config: cfg,
		logger: log,
	}
}

// Name returns the job name
func (j *KPICycleJob) Name() string {
	return "kpi_cycle"
}

// Schedule returns the cron schedule from configuration (default hourly)
func (j *KPICycleJob) Schedule() string {
	return j.config.Engine.CycleSchedule
}

// Run executes one computation cycle. Per-metric failures are partial:
// the cycle completes and they surface in the returned error so the
// run is recorded as failed without hiding the computed snapshots.
func (j *KPICycleJob) Run(ctx context.Context) error {
	report, err := j.engine.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"period":   report.Period.String(),
		"computed": report.Computed,
		"failures": len(report.Failures),
		"alerts":   report.Alerts,
		"duration": report.Duration,
	}).Info("Scheduled KPI cycle finished")

	if len(report.Failures) > 0 {
		return fmt.Errorf("cycle completed with %d partial failures", len(report.Failures))
	}

	return nil
}
