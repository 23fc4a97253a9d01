package dataaccess

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/databokers/backoffice/internal/kpi"
	"github.com/databokers/backoffice/pkg/config"
)

func TestTimestampColumn(t *testing.T) {
	tests := []struct {
		name   string
		states []kpi.PropertyState
		want   string
	}{
		{"no filter", nil, "created_at"},
		{"sold only", []kpi.PropertyState{kpi.StateSold}, "sold_at"},
		{"sold among others", []kpi.PropertyState{kpi.StateSold, kpi.StateReserved}, "created_at"},
		{"available", []kpi.PropertyState{kpi.StateAvailable}, "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timestampColumn(tt.states))
		})
	}
}

func TestStateStrings(t *testing.T) {
	got := stateStrings([]kpi.PropertyState{kpi.StateAvailable, kpi.StateReserved})
	assert.Equal(t, []string{"AVAILABLE", "RESERVED"}, got)
}

func TestSumFieldsWhitelist(t *testing.T) {
	_, ok := sumFields["price"]
	assert.True(t, ok)

	_, ok = sumFields["broker_id; DROP TABLE properties"]
	assert.False(t, ok)
}

func TestNewAccessorThrottle(t *testing.T) {
	a := NewAccessor(nil, config.EngineConfig{QueriesPerSecond: 0})
	assert.Nil(t, a.limiter, "zero rate disables throttling")

	a = NewAccessor(nil, config.EngineConfig{QueriesPerSecond: 10})
	assert.NotNil(t, a.limiter)
}
