package kpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthOf(t *testing.T) {
	period := MonthOf(time.Date(2026, 3, 15, 13, 45, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), period.Start)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), period.End)
}

func TestMonthOfDecemberRollsOver(t *testing.T) {
	period := MonthOf(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC))

	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), period.Start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), period.End)
}

func TestPeriodContainsHalfOpen(t *testing.T) {
	period := Month(2026, time.March)

	assert.True(t, period.Contains(period.Start), "start is included")
	assert.True(t, period.Contains(time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, period.Contains(period.End), "end is excluded")
	assert.False(t, period.Contains(period.Start.Add(-time.Nanosecond)))
}

func TestPeriodString(t *testing.T) {
	assert.Equal(t, "2026-03-01..2026-04-01", Month(2026, time.March).String())
}

func TestResultUndefined(t *testing.T) {
	assert.False(t, Result{}.Undefined())
	assert.False(t, Result{Metadata: map[string]interface{}{"cost": 0.0}}.Undefined())
	assert.False(t, Result{Metadata: map[string]interface{}{"undefined": "yes"}}.Undefined())
	assert.True(t, Result{Metadata: map[string]interface{}{"undefined": true}}.Undefined())
}
