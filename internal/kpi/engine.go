package kpi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/databokers/backoffice/pkg/config"
	"github.com/databokers/backoffice/pkg/logger"
	"github.com/databokers/backoffice/pkg/redis"
)

// persistRetryDelay is the backoff before the single retry of a failed
// snapshot write within a cycle.
const persistRetryDelay = 500 * time.Millisecond

// Engine is the KPI engine façade: on-demand computation, comparison
// and history for the REST layer, plus the full computation cycle run
// by the scheduler.
type Engine struct {
	registry   *Registry
	calculator *Calculator
	comparator *Comparator
	emitter    *Emitter
	snapshots  SnapshotStore
	cache      *redis.Cache
	cfg        config.EngineConfig
	logger     *logger.Logger
}

// NewEngine wires the engine from its components. cache may be nil
// when Redis is disabled.
func NewEngine(
	registry *Registry,
	calculator *Calculator,
	comparator *Comparator,
	emitter *Emitter,
	snapshots SnapshotStore,
	cache *redis.Cache,
	cfg config.EngineConfig,
	log *logger.Logger,
) *Engine {
	return &Engine{
		registry:   registry,
		calculator: calculator,
		comparator: comparator,
		emitter:    emitter,
		snapshots:  snapshots,
		cache:      cache,
		cfg:        cfg,
		logger:     log.WithField("module", "engine"),
	}
}

// Registry exposes the metric catalog to the REST layer.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// ComputeAll computes every registered metric for a segment and
// period, in registry order, without persisting. Per-metric failures
// are recorded on the result, never aborting the batch.
func (e *Engine) ComputeAll(ctx context.Context, segment Segment, period Period) []CodeResult {
	return e.calculator.ComputeAll(ctx, segment, period)
}

// Compare relates a metric's snapshot for the period to the one from
// the immediately preceding period, computing the current snapshot
// first when missing.
func (e *Engine) Compare(ctx context.Context, code string, segment Segment, period Period) (*Comparison, error) {
	return e.comparator.Compare(ctx, code, segment, period)
}

// History returns the snapshot series for trend charts, ascending by
// period start. Reads go through the Redis cache when enabled; the
// series is append-only, so TTL-bounded staleness is harmless.
func (e *Engine) History(ctx context.Context, code string, segment Segment, from, to time.Time) ([]Snapshot, error) {
	if _, err := e.registry.Get(code); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("history:%s:%s:%d:%d", code, segment, from.Unix(), to.Unix())

	if e.cache != nil {
		var cached []Snapshot
		if found, err := e.cache.Get(ctx, cacheKey, &cached); err == nil && found {
			return cached, nil
		}
	}

	snapshots, err := e.snapshots.Range(ctx, code, segment, from, to)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, cacheKey, snapshots, e.cfg.HistoryCacheTTL); err != nil {
			e.logger.WithError(err).Debug("History cache write failed")
		}
	}

	return snapshots, nil
}

// RunCycle computes all metrics for all configured segments over the
// current calendar month.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	return e.RunCycleFor(ctx, MonthOf(time.Now()))
}

// RunCycleFor runs one full computation cycle for an explicit period:
// every metric for every active segment, fanned out over a bounded
// worker pool, followed by comparison and threshold evaluation of each
// fresh snapshot. Failures are partial: a failed metric is recorded in
// the report and the cycle continues.
func (e *Engine) RunCycleFor(ctx context.Context, period Period) (*CycleReport, error) {
	report := &CycleReport{
		Period:    period,
		StartedAt: time.Now(),
	}

	for _, s := range e.cfg.Segments {
		report.Segments = append(report.Segments, Segment(s))
	}

	e.logger.WithFields(map[string]interface{}{
		"period":   period.String(),
		"segments": len(report.Segments),
		"workers":  e.cfg.Workers,
	}).Info("Starting KPI cycle")

	for _, segment := range report.Segments {
		e.runSegment(ctx, segment, period, report)
	}

	report.Duration = time.Since(report.StartedAt)

	e.logger.WithFields(map[string]interface{}{
		"period":   period.String(),
		"computed": report.Computed,
		"failures": len(report.Failures),
		"alerts":   report.Alerts,
		"duration": report.Duration,
	}).Info("KPI cycle completed")

	return report, nil
}

// runSegment fans metric computation out over the worker pool and
// collects per-metric outcomes into the report.
func (e *Engine) runSegment(ctx context.Context, segment Segment, period Period, report *CycleReport) {
	defs := e.registry.All()

	codeCh := make(chan string, len(defs))
	resultCh := make(chan CodeResult, len(defs))

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range codeCh {
				result, err := e.calculator.Compute(ctx, code, segment, period)
				resultCh <- CodeResult{Code: code, Result: result, Err: err}
			}
		}()
	}

	for _, def := range defs {
		codeCh <- def.Code
	}
	close(codeCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	outcomes := make(map[string]CodeResult, len(defs))
	for r := range resultCh {
		outcomes[r.Code] = r
	}

	// Persist, compare and evaluate in registry order so snapshots and
	// logs stay deterministic.
	for _, def := range defs {
		outcome := outcomes[def.Code]

		if outcome.Err != nil {
			report.Failures = append(report.Failures, CycleFailure{
				Segment: segment,
				Code:    def.Code,
				Reason:  outcome.Err.Error(),
			})
			continue
		}

		snapshot := &Snapshot{
			MetricCode: def.Code,
			Segment:    segment,
			Period:     period,
			Value:      outcome.Result.Value,
			Unit:       outcome.Result.Unit,
			Metadata:   outcome.Result.Metadata,
			ComputedAt: time.Now(),
		}

		if err := e.persistWithRetry(ctx, snapshot); err != nil {
			report.Failures = append(report.Failures, CycleFailure{
				Segment: segment,
				Code:    def.Code,
				Reason:  fmt.Sprintf("persist: %s", err.Error()),
			})
			continue
		}

		report.Computed++

		if comparison, err := e.comparator.CompareSnapshot(ctx, snapshot); err != nil {
			e.logger.WithError(err).WithField("metric", def.Code).Warn("Comparison failed")
		} else if comparison.Previous != nil {
			e.logger.WithFields(map[string]interface{}{
				"metric":   def.Code,
				"segment":  segment,
				"value":    snapshot.Value,
				"previous": comparison.Previous.Value,
				"delta":    comparison.AbsoluteDelta,
			}).Debug("Compared against previous period")
		}

		// Alerts are best-effort: persistence already succeeded.
		alert, err := e.emitter.Evaluate(ctx, snapshot)
		if err != nil {
			e.logger.WithError(err).WithField("metric", def.Code).Warn("Alert evaluation failed")
		} else if alert != nil {
			report.Alerts++
		}
	}
}

// persistWithRetry writes a snapshot, retrying once with a short
// backoff before giving up on this metric for the cycle.
func (e *Engine) persistWithRetry(ctx context.Context, snapshot *Snapshot) error {
	err := e.snapshots.SaveSnapshot(ctx, snapshot)
	if err == nil {
		return nil
	}

	e.logger.WithError(err).WithFields(map[string]interface{}{
		"metric":  snapshot.MetricCode,
		"segment": snapshot.Segment,
	}).Warn("Snapshot write failed, retrying")

	select {
	case <-time.After(persistRetryDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	return e.snapshots.SaveSnapshot(ctx, snapshot)
}
