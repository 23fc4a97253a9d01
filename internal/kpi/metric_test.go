package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOrder(t *testing.T) {
	defs := NewRegistry().All()

	require.Len(t, defs, 9)
	assert.Equal(t, MetricConversionRate, defs[0].Code)
	assert.Equal(t, MetricROI, defs[len(defs)-1].Code)
}

func TestRegistryGet(t *testing.T) {
	registry := NewRegistry()

	def, err := registry.Get(MetricConversionRate)
	require.NoError(t, err)

	assert.Equal(t, UnitPercent, def.Unit)
	require.NotNil(t, def.MinThreshold)
	assert.Equal(t, 10.0, *def.MinThreshold)
	assert.Nil(t, def.MaxThreshold)
}

func TestRegistryGetUnknown(t *testing.T) {
	_, err := NewRegistry().Get("made_up")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestRegistryThresholds(t *testing.T) {
	registry := NewRegistry()

	// currency metrics and ROI carry no thresholds
	for _, code := range []string{MetricTotalValuation, MetricGrossCommission, MetricNetCommission, MetricROI} {
		def, err := registry.Get(code)
		require.NoError(t, err)
		assert.Nil(t, def.MinThreshold, code)
		assert.Nil(t, def.MaxThreshold, code)
	}

	def, err := registry.Get(MetricAvgTimeToSale)
	require.NoError(t, err)
	require.NotNil(t, def.MaxThreshold)
	assert.Equal(t, 90.0, *def.MaxThreshold)
}
