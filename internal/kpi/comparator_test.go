package kpi

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databokers/backoffice/pkg/logger"
)

func newTestComparator(accessor DataAccessor, store SnapshotStore) *Comparator {
	log := logger.NewWriter(io.Discard)
	calc := NewCalculator(NewRegistry(), accessor, testEngineConfig(), log)
	return NewComparator(calc, store, log)
}

func seedSnapshot(t *testing.T, store SnapshotStore, code string, period Period, value float64) *Snapshot {
	t.Helper()
	snapshot := &Snapshot{
		MetricCode: code,
		Segment:    "residential",
		Period:     period,
		Value:      value,
		Unit:       UnitPercent,
		ComputedAt: time.Now(),
	}
	require.NoError(t, store.SaveSnapshot(context.Background(), snapshot))
	return snapshot
}

func TestCompareAgainstPreviousPeriod(t *testing.T) {
	store := newMemStore()
	comparator := newTestComparator(&fakeAccessor{}, store)

	seedSnapshot(t, store, MetricConversionRate, Month(2026, time.February), 20)
	seedSnapshot(t, store, MetricConversionRate, Month(2026, time.March), 25)

	comparison, err := comparator.Compare(context.Background(), MetricConversionRate, "residential", Month(2026, time.March))
	require.NoError(t, err)

	require.NotNil(t, comparison.Previous)
	assert.Equal(t, 20.0, comparison.Previous.Value)
	assert.Equal(t, 5.0, comparison.AbsoluteDelta)
	require.NotNil(t, comparison.PercentageDelta)
	assert.Equal(t, 25.0, *comparison.PercentageDelta)
}

func TestCompareNoPreviousSnapshot(t *testing.T) {
	store := newMemStore()
	comparator := newTestComparator(&fakeAccessor{}, store)

	seedSnapshot(t, store, MetricConversionRate, Month(2026, time.March), 25)

	comparison, err := comparator.Compare(context.Background(), MetricConversionRate, "residential", Month(2026, time.March))
	require.NoError(t, err)

	assert.Nil(t, comparison.Previous)
	assert.Nil(t, comparison.PercentageDelta)
	assert.Equal(t, 0.0, comparison.AbsoluteDelta)
}

func TestComparePreviousValueZero(t *testing.T) {
	store := newMemStore()
	comparator := newTestComparator(&fakeAccessor{}, store)

	seedSnapshot(t, store, MetricConversionRate, Month(2026, time.February), 0)
	seedSnapshot(t, store, MetricConversionRate, Month(2026, time.March), 25)

	comparison, err := comparator.Compare(context.Background(), MetricConversionRate, "residential", Month(2026, time.March))
	require.NoError(t, err)

	require.NotNil(t, comparison.Previous)
	assert.Equal(t, 25.0, comparison.AbsoluteDelta)
	assert.Nil(t, comparison.PercentageDelta, "percentage variation is undefined against a zero base")
}

func TestComparePicksLatestPrior(t *testing.T) {
	store := newMemStore()
	comparator := newTestComparator(&fakeAccessor{}, store)

	seedSnapshot(t, store, MetricConversionRate, Month(2025, time.December), 10)
	seedSnapshot(t, store, MetricConversionRate, Month(2026, time.February), 20)
	seedSnapshot(t, store, MetricConversionRate, Month(2026, time.March), 25)

	comparison, err := comparator.Compare(context.Background(), MetricConversionRate, "residential", Month(2026, time.March))
	require.NoError(t, err)

	require.NotNil(t, comparison.Previous)
	assert.Equal(t, 20.0, comparison.Previous.Value)
}

func TestCompareComputesMissingCurrent(t *testing.T) {
	store := newMemStore()
	comparator := newTestComparator(&fakeAccessor{total: 20, sold: 5}, store)
	period := Month(2026, time.March)

	comparison, err := comparator.Compare(context.Background(), MetricConversionRate, "residential", period)
	require.NoError(t, err)

	assert.Equal(t, 25.0, comparison.Current.Value)

	// the computed snapshot was persisted
	persisted, err := store.GetSnapshot(context.Background(), MetricConversionRate, "residential", period)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, 25.0, persisted.Value)
}

func TestCompareUnknownMetric(t *testing.T) {
	comparator := newTestComparator(&fakeAccessor{}, newMemStore())

	_, err := comparator.Compare(context.Background(), "made_up", "residential", Month(2026, time.March))
	assert.ErrorIs(t, err, ErrUnknownMetric)
}
