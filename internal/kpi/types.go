package kpi

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownMetric is returned when a metric code is not in the registry.
// This is a programmer error: calculators never retry it.
var ErrUnknownMetric = errors.New("unknown metric code")

// Segment is the business-model scope a KPI is computed against.
type Segment string

// PropertyState is the lifecycle state of a property record.
type PropertyState string

const (
	StateAvailable PropertyState = "AVAILABLE"
	StateReserved  PropertyState = "RESERVED"
	StateSold      PropertyState = "SOLD"
	StateWithdrawn PropertyState = "WITHDRAWN"
)

// Period is a half-open time window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MonthOf returns the calendar-month period containing t.
func MonthOf(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Month builds the period for a specific calendar month.
func Month(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Contains reports whether t falls within the period (half-open).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// String formats the period for logs and cache keys.
func (p Period) String() string {
	return fmt.Sprintf("%s..%s", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
}

// Result is the output of a single KPI calculation.
type Result struct {
	Value    float64                `json:"value"`
	Unit     string                 `json:"unit"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Undefined reports whether the calculation had no defined value
// (ROI with a zero cost basis). Undefined results are persisted with
// the flag but never alerted on.
func (r Result) Undefined() bool {
	if r.Metadata == nil {
		return false
	}
	v, ok := r.Metadata["undefined"].(bool)
	return ok && v
}

// CodeResult pairs a metric code with its computation outcome.
// Err is set when the calculator failed; the rest of the batch
// still runs.
type CodeResult struct {
	Code   string `json:"code"`
	Result Result `json:"result"`
	Err    error  `json:"-"`
}

// Snapshot is one persisted, immutable KPI value for a metric,
// segment and period. Uniquely identified by
// (metric_code, segment, period_start); recomputation upserts.
type Snapshot struct {
	ID         int64                  `json:"id"`
	MetricCode string                 `json:"metric_code"`
	Segment    Segment                `json:"segment"`
	Period     Period                 `json:"period"`
	Value      float64                `json:"value"`
	Unit       string                 `json:"unit"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	ComputedAt time.Time              `json:"computed_at"`
}

// Undefined reports whether the snapshot carries an undefined result.
func (s *Snapshot) Undefined() bool {
	return Result{Metadata: s.Metadata}.Undefined()
}

// Comparison relates a current snapshot to the immediately preceding
// period's snapshot. Derived, never persisted. PercentageDelta is nil
// when there is no previous snapshot or its value is zero.
type Comparison struct {
	Current         Snapshot  `json:"current"`
	Previous        *Snapshot `json:"previous,omitempty"`
	AbsoluteDelta   float64   `json:"absolute_delta"`
	PercentageDelta *float64  `json:"percentage_delta,omitempty"`
}

// Severity classifies how far a value breached its threshold.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is raised when a snapshot value falls outside a metric's
// configured thresholds.
type Alert struct {
	ID           int64     `json:"id"`
	MetricCode   string    `json:"metric_code"`
	Segment      Segment   `json:"segment"`
	Period       Period    `json:"period"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Value        float64   `json:"value"`
	Threshold    float64   `json:"threshold"`
	TriggeredAt  time.Time `json:"triggered_at"`
	Acknowledged bool      `json:"acknowledged"`
}

// CycleFailure records one metric that could not be computed or
// persisted during a cycle.
type CycleFailure struct {
	Segment Segment `json:"segment"`
	Code    string  `json:"code"`
	Reason  string  `json:"reason"`
}

// CycleReport summarizes one computation cycle.
type CycleReport struct {
	Period    Period         `json:"period"`
	Segments  []Segment      `json:"segments"`
	Computed  int            `json:"computed"`
	Failures  []CycleFailure `json:"failures,omitempty"`
	Alerts    int            `json:"alerts"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}
