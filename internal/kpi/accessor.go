package kpi

import (
	"context"
	"time"
)

// SaleDates carries the lifecycle timestamps of one sold property.
type SaleDates struct {
	CreatedAt time.Time `json:"created_at"`
	SoldAt    time.Time `json:"sold_at"`
}

// BrokerStats aggregates one broker's workload within a period.
type BrokerStats struct {
	BrokerID      string `json:"broker_id"`
	AssignedCount int    `json:"assigned_count"`
	SoldCount     int    `json:"sold_count"`
}

// DataAccessor is the read-only query surface over the back-office
// transactional records. Implementations scope every query by segment
// and half-open period, tolerate zero matching rows (zero values, not
// errors) and carry the configured query timeout.
type DataAccessor interface {
	// CountProperties counts properties in the segment whose relevant
	// timestamp falls within the period. With a SOLD filter the sale
	// timestamp is used; otherwise the creation timestamp.
	CountProperties(ctx context.Context, segment Segment, period Period, states ...PropertyState) (int, error)

	// SumPropertyField sums a whitelisted numeric field over matching
	// properties.
	SumPropertyField(ctx context.Context, segment Segment, period Period, field string, states ...PropertyState) (float64, error)

	// ListSoldWithDates returns creation and sale timestamps for
	// properties sold within the period.
	ListSoldWithDates(ctx context.Context, segment Segment, period Period) ([]SaleDates, error)

	// GroupByState counts properties created within the period per state.
	GroupByState(ctx context.Context, segment Segment, period Period) (map[PropertyState]int, error)

	// SumCommissions returns gross and net commission over properties
	// sold within the period. Net applies each record's broker split.
	SumCommissions(ctx context.Context, segment Segment, period Period) (gross, net float64, err error)

	// BrokerStats returns per-broker assigned and sold counts for the
	// period.
	BrokerStats(ctx context.Context, segment Segment, period Period) ([]BrokerStats, error)

	// TradeInCounts returns trade-ins initiated and finalized within
	// the period.
	TradeInCounts(ctx context.Context, segment Segment, period Period) (initiated, finalized int, err error)

	// RevenueAndCost returns the revenue and cost aggregates for
	// properties sold within the period.
	RevenueAndCost(ctx context.Context, segment Segment, period Period) (revenue, cost float64, err error)

	// CurrentStock counts the segment's standing inventory
	// (AVAILABLE and RESERVED), regardless of creation period.
	CurrentStock(ctx context.Context, segment Segment) (int, error)

	// StandingValuation sums prices over the standing inventory.
	StandingValuation(ctx context.Context, segment Segment) (float64, error)
}

// SnapshotStore persists computed KPI values as an append-only log.
// The only mutation is the keyed upsert in SaveSnapshot; nothing is
// ever deleted.
type SnapshotStore interface {
	// SaveSnapshot upserts a snapshot keyed by
	// (metric_code, segment, period_start) and assigns its ID.
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// GetSnapshot returns the snapshot for an exact period, nil when
	// not yet computed.
	GetSnapshot(ctx context.Context, code string, segment Segment, period Period) (*Snapshot, error)

	// LatestBefore returns the most recent snapshot strictly prior to
	// the period for the same code and segment, nil when none exists.
	LatestBefore(ctx context.Context, code string, segment Segment, period Period) (*Snapshot, error)

	// Range returns snapshots with period start in [from, to),
	// ascending by period start.
	Range(ctx context.Context, code string, segment Segment, from, to time.Time) ([]Snapshot, error)
}

// AlertStore persists threshold alerts. Alerts are acknowledged by the
// external notification surface; the engine only creates and reads them.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *Alert) error

	// HasOpenAlert reports whether an unacknowledged alert already
	// exists for (code, segment, period start).
	HasOpenAlert(ctx context.Context, code string, segment Segment, periodStart time.Time) (bool, error)

	ListAlerts(ctx context.Context, segment Segment, onlyOpen bool) ([]Alert, error)

	AcknowledgeAlert(ctx context.Context, id int64) error
}
