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

func newTestEmitter(store AlertStore) *Emitter {
	return NewEmitter(NewRegistry(), store, logger.NewWriter(io.Discard))
}

func breachSnapshot(code string, value float64) *Snapshot {
	return &Snapshot{
		MetricCode: code,
		Segment:    "residential",
		Period:     Month(2026, time.March),
		Value:      value,
		Unit:       UnitPercent,
		ComputedAt: time.Now(),
	}
}

func TestEvaluateMinBreach(t *testing.T) {
	store := newMemStore()
	emitter := newTestEmitter(store)

	// conversion rate minimum is 10
	alert, err := emitter.Evaluate(context.Background(), breachSnapshot(MetricConversionRate, 4))
	require.NoError(t, err)

	require.NotNil(t, alert)
	assert.Equal(t, SeverityCritical, alert.Severity)
	assert.Equal(t, 10.0, alert.Threshold)
	assert.Contains(t, alert.Message, "below minimum")
	assert.NotZero(t, alert.ID)
}

func TestEvaluateMaxBreach(t *testing.T) {
	store := newMemStore()
	emitter := newTestEmitter(store)

	// avg time to sale maximum is 90; 100 is within the 20% band
	snapshot := breachSnapshot(MetricAvgTimeToSale, 100)
	snapshot.Unit = UnitDays

	alert, err := emitter.Evaluate(context.Background(), snapshot)
	require.NoError(t, err)

	require.NotNil(t, alert)
	assert.Equal(t, SeverityWarning, alert.Severity)
	assert.Contains(t, alert.Message, "above maximum")
}

func TestEvaluateValueInRange(t *testing.T) {
	emitter := newTestEmitter(newMemStore())

	alert, err := emitter.Evaluate(context.Background(), breachSnapshot(MetricConversionRate, 35))
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestEvaluateValueAtThreshold(t *testing.T) {
	emitter := newTestEmitter(newMemStore())

	// exactly at the minimum is not a breach
	alert, err := emitter.Evaluate(context.Background(), breachSnapshot(MetricConversionRate, 10))
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestEvaluateMetricWithoutThresholds(t *testing.T) {
	emitter := newTestEmitter(newMemStore())

	snapshot := breachSnapshot(MetricTotalValuation, 0)
	snapshot.Unit = UnitCurrency

	alert, err := emitter.Evaluate(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestEvaluateUndefinedResultSkipped(t *testing.T) {
	emitter := newTestEmitter(newMemStore())

	snapshot := breachSnapshot(MetricConversionRate, 0)
	snapshot.Metadata = map[string]interface{}{"undefined": true}

	alert, err := emitter.Evaluate(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestEvaluateIdempotentWhileOpen(t *testing.T) {
	store := newMemStore()
	emitter := newTestEmitter(store)
	snapshot := breachSnapshot(MetricConversionRate, 4)

	first, err := emitter.Evaluate(context.Background(), snapshot)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := emitter.Evaluate(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Nil(t, second, "unacknowledged alert already covers this period")

	alerts, err := store.ListAlerts(context.Background(), "residential", true)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestEvaluateFiresAgainAfterAcknowledge(t *testing.T) {
	store := newMemStore()
	emitter := newTestEmitter(store)
	snapshot := breachSnapshot(MetricConversionRate, 4)

	first, err := emitter.Evaluate(context.Background(), snapshot)
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, store.AcknowledgeAlert(context.Background(), first.ID))

	second, err := emitter.Evaluate(context.Background(), snapshot)
	require.NoError(t, err)
	assert.NotNil(t, second)
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		threshold float64
		want      Severity
	}{
		{"just under minimum", 9, 10, SeverityWarning},
		{"at band edge", 8, 10, SeverityWarning},
		{"far below minimum", 5, 10, SeverityCritical},
		{"just above maximum", 95, 90, SeverityWarning},
		{"far above maximum", 150, 90, SeverityCritical},
		{"zero threshold", 1, 0, SeverityCritical},
		{"negative value far from threshold", -50, 10, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, severityFor(tt.value, tt.threshold))
		})
	}
}
