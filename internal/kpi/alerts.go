package kpi

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/databokers/backoffice/pkg/logger"
)

// warningBand is the fraction of the threshold within which a breach
// is still a warning rather than critical.
const warningBand = 0.20

// Emitter evaluates snapshots against registry thresholds and raises
// alerts. Emission is best-effort and idempotent per
// (metric, segment, period) while an unacknowledged alert exists.
type Emitter struct {
	registry *Registry
	store    AlertStore
	logger   *logger.Logger
}

// NewEmitter creates a new alert Emitter
func NewEmitter(registry *Registry, store AlertStore, log *logger.Logger) *Emitter {
	return &Emitter{
		registry: registry,
		store:    store,
		logger:   log.WithField("module", "alerts"),
	}
}

// Evaluate checks one snapshot against its metric's thresholds.
// Returns the created alert, or nil when the value is in range, the
// metric has no thresholds, the result is undefined, or an open alert
// already covers this period.
func (e *Emitter) Evaluate(ctx context.Context, snapshot *Snapshot) (*Alert, error) {
	def, err := e.registry.Get(snapshot.MetricCode)
	if err != nil {
		return nil, err
	}

	if def.MinThreshold == nil && def.MaxThreshold == nil {
		return nil, nil
	}

	// Undefined results carry no comparable value.
	if snapshot.Undefined() {
		return nil, nil
	}

	var threshold float64
	var message string

	switch {
	case def.MinThreshold != nil && snapshot.Value < *def.MinThreshold:
		threshold = *def.MinThreshold
		message = fmt.Sprintf("%s below minimum for %s: %.2f < %.2f",
			def.Name, snapshot.Segment, snapshot.Value, threshold)
	case def.MaxThreshold != nil && snapshot.Value > *def.MaxThreshold:
		threshold = *def.MaxThreshold
		message = fmt.Sprintf("%s above maximum for %s: %.2f > %.2f",
			def.Name, snapshot.Segment, snapshot.Value, threshold)
	default:
		return nil, nil
	}

	open, err := e.store.HasOpenAlert(ctx, snapshot.MetricCode, snapshot.Segment, snapshot.Period.Start)
	if err != nil {
		return nil, fmt.Errorf("check open alerts: %w", err)
	}
	if open {
		e.logger.WithFields(map[string]interface{}{
			"metric":  snapshot.MetricCode,
			"segment": snapshot.Segment,
			"period":  snapshot.Period.String(),
		}).Debug("Open alert already exists, skipping")
		return nil, nil
	}

	alert := &Alert{
		MetricCode:  snapshot.MetricCode,
		Segment:     snapshot.Segment,
		Period:      snapshot.Period,
		Severity:    severityFor(snapshot.Value, threshold),
		Message:     message,
		Value:       snapshot.Value,
		Threshold:   threshold,
		TriggeredAt: time.Now(),
	}

	if err := e.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("save alert: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"metric":    alert.MetricCode,
		"segment":   alert.Segment,
		"severity":  alert.Severity,
		"value":     alert.Value,
		"threshold": alert.Threshold,
	}).Warn("Threshold breach")

	return alert, nil
}

// severityFor grades a breach by its distance from the threshold:
// within 20% of the threshold is a warning, beyond is critical. A zero
// threshold leaves no band, so any breach is critical.
func severityFor(value, threshold float64) Severity {
	if threshold == 0 {
		return SeverityCritical
	}

	distance := math.Abs(value-threshold) / math.Abs(threshold)
	if distance <= warningBand {
		return SeverityWarning
	}
	return SeverityCritical
}
