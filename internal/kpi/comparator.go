package kpi

import (
	"context"
	"fmt"
	"time"

	"github.com/databokers/backoffice/pkg/logger"
)

// Comparator relates current snapshots to the immediately preceding
// period's snapshot for the same metric and segment.
type Comparator struct {
	calculator *Calculator
	store      SnapshotStore
	logger     *logger.Logger
}

// NewComparator creates a new Comparator
func NewComparator(calculator *Calculator, store SnapshotStore, log *logger.Logger) *Comparator {
	return &Comparator{
		calculator: calculator,
		store:      store,
		logger:     log.WithField("module", "comparator"),
	}
}

// Compare loads (or computes and persists) the snapshot for the period
// and relates it to the latest prior snapshot. With no prior snapshot
// Previous is nil and PercentageDelta stays nil.
func (c *Comparator) Compare(ctx context.Context, code string, segment Segment, period Period) (*Comparison, error) {
	current, err := c.store.GetSnapshot(ctx, code, segment, period)
	if err != nil {
		return nil, fmt.Errorf("get current snapshot: %w", err)
	}

	if current == nil {
		result, err := c.calculator.Compute(ctx, code, segment, period)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", code, err)
		}

		current = &Snapshot{
			MetricCode: code,
			Segment:    segment,
			Period:     period,
			Value:      result.Value,
			Unit:       result.Unit,
			Metadata:   result.Metadata,
			ComputedAt: time.Now(),
		}

		if err := c.store.SaveSnapshot(ctx, current); err != nil {
			return nil, fmt.Errorf("persist computed snapshot: %w", err)
		}
	}

	return c.CompareSnapshot(ctx, current)
}

// CompareSnapshot relates an already-persisted snapshot to its
// predecessor. Used by the cycle, which holds the fresh snapshot.
func (c *Comparator) CompareSnapshot(ctx context.Context, current *Snapshot) (*Comparison, error) {
	previous, err := c.store.LatestBefore(ctx, current.MetricCode, current.Segment, current.Period)
	if err != nil {
		return nil, fmt.Errorf("get previous snapshot: %w", err)
	}

	comparison := &Comparison{Current: *current, Previous: previous}

	if previous == nil {
		return comparison, nil
	}

	comparison.AbsoluteDelta = current.Value - previous.Value

	if previous.Value != 0 {
		pct := comparison.AbsoluteDelta / previous.Value * 100
		comparison.PercentageDelta = &pct
	}

	return comparison, nil
}
