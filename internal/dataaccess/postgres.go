// Package dataaccess implements the read-only query surface of the KPI
// engine over the back-office PostgreSQL schema. All queries are
// scoped by segment and half-open period, throttled against the shared
// database and bounded by the configured query timeout.
package dataaccess

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/databokers/backoffice/internal/kpi"
	"github.com/databokers/backoffice/pkg/config"
)

// sumFields whitelists the columns SumPropertyField may aggregate.
var sumFields = map[string]string{
	"price":             "price",
	"commission_amount": "commission_amount",
}

// Accessor is the PostgreSQL implementation of kpi.DataAccessor.
type Accessor struct {
	pool    *pgxpool.Pool
	limiter *rate.Limiter
	timeout time.Duration
}

// NewAccessor creates an accessor from the shared pool and engine
// configuration.
func NewAccessor(pool *pgxpool.Pool, cfg config.EngineConfig) *Accessor {
	var limiter *rate.Limiter
	if cfg.QueriesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), 1)
	}

	return &Accessor{
		pool:    pool,
		limiter: limiter,
		timeout: cfg.QueryTimeout,
	}
}

// acquire throttles and bounds one query. The returned context must be
// cancelled by the caller.
func (a *Accessor) acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("query throttle: %w", err)
		}
	}

	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	return qctx, cancel, nil
}

// CountProperties counts properties whose relevant timestamp falls in
// the period. A SOLD-only filter counts by sale date; anything else by
// creation date.
func (a *Accessor) CountProperties(ctx context.Context, segment kpi.Segment, period kpi.Period, states ...kpi.PropertyState) (int, error) {
	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	tsColumn := timestampColumn(states)

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM properties
		WHERE segment = $1 AND %s >= $2 AND %s < $3
	`, tsColumn, tsColumn)

	args := []interface{}{string(segment), period.Start, period.End}

	if len(states) > 0 {
		query += " AND state = ANY($4)"
		args = append(args, stateStrings(states))
	}

	var count int
	if err := a.pool.QueryRow(qctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}

	return count, nil
}

// SumPropertyField sums a whitelisted column over matching properties.
func (a *Accessor) SumPropertyField(ctx context.Context, segment kpi.Segment, period kpi.Period, field string, states ...kpi.PropertyState) (float64, error) {
	column, ok := sumFields[field]
	if !ok {
		return 0, fmt.Errorf("field %q is not aggregatable", field)
	}

	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	tsColumn := timestampColumn(states)

	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(%s), 0)
		FROM properties
		WHERE segment = $1 AND %s >= $2 AND %s < $3
	`, column, tsColumn, tsColumn)

	args := []interface{}{string(segment), period.Start, period.End}

	if len(states) > 0 {
		query += " AND state = ANY($4)"
		args = append(args, stateStrings(states))
	}

	var sum float64
	if err := a.pool.QueryRow(qctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum %s: %w", field, err)
	}

	return sum, nil
}

// ListSoldWithDates returns lifecycle timestamps for properties sold
// within the period.
func (a *Accessor) ListSoldWithDates(ctx context.Context, segment kpi.Segment, period kpi.Period) ([]kpi.SaleDates, error) {
	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `
		SELECT created_at, sold_at
		FROM properties
		WHERE segment = $1 AND state = 'SOLD' AND sold_at >= $2 AND sold_at < $3
		ORDER BY sold_at ASC
	`

	rows, err := a.pool.Query(qctx, query, string(segment), period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("list sold: %w", err)
	}
	defer rows.Close()

	sales := make([]kpi.SaleDates, 0)

	for rows.Next() {
		var s kpi.SaleDates
		if err := rows.Scan(&s.CreatedAt, &s.SoldAt); err != nil {
			return nil, fmt.Errorf("scan sale dates: %w", err)
		}
		sales = append(sales, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sold: %w", err)
	}

	return sales, nil
}

// GroupByState counts properties created within the period per state.
func (a *Accessor) GroupByState(ctx context.Context, segment kpi.Segment, period kpi.Period) (map[kpi.PropertyState]int, error) {
	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `
		SELECT state, COUNT(*)
		FROM properties
		WHERE segment = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY state
	`

	rows, err := a.pool.Query(qctx, query, string(segment), period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("group by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[kpi.PropertyState]int)

	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		counts[kpi.PropertyState(state)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}

	return counts, nil
}

// SumCommissions returns gross and net commission over properties sold
// within the period. The net sum applies each record's broker split.
func (a *Accessor) SumCommissions(ctx context.Context, segment kpi.Segment, period kpi.Period) (gross, net float64, err error) {
	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer cancel()

	query := `
		SELECT
			COALESCE(SUM(commission_amount), 0),
			COALESCE(SUM(commission_amount * (1 - COALESCE(broker_split_pct, 0))), 0)
		FROM properties
		WHERE segment = $1 AND state = 'SOLD' AND sold_at >= $2 AND sold_at < $3
	`

	if err := a.pool.QueryRow(qctx, query, string(segment), period.Start, period.End).Scan(&gross, &net); err != nil {
		return 0, 0, fmt.Errorf("sum commissions: %w", err)
	}

	return gross, net, nil
}

// BrokerStats returns per-broker assigned and sold counts for the
// period. Assignment is dated by creation, sales by sale date.
func (a *Accessor) BrokerStats(ctx context.Context, segment kpi.Segment, period kpi.Period) ([]kpi.BrokerStats, error) {
	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `
		SELECT
			broker_id,
			COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3),
			COUNT(*) FILTER (WHERE state = 'SOLD' AND sold_at >= $2 AND sold_at < $3)
		FROM properties
		WHERE segment = $1 AND broker_id IS NOT NULL
		GROUP BY broker_id
		ORDER BY broker_id
	`

	rows, err := a.pool.Query(qctx, query, string(segment), period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("broker stats: %w", err)
	}
	defer rows.Close()

	stats := make([]kpi.BrokerStats, 0)

	for rows.Next() {
		var s kpi.BrokerStats
		if err := rows.Scan(&s.BrokerID, &s.AssignedCount, &s.SoldCount); err != nil {
			return nil, fmt.Errorf("scan broker stats: %w", err)
		}
		// Brokers without activity in the period carry nothing.
		if s.AssignedCount == 0 && s.SoldCount == 0 {
			continue
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate broker stats: %w", err)
	}

	return stats, nil
}

// TradeInCounts returns trade-ins initiated and finalized within the
// period.
func (a *Accessor) TradeInCounts(ctx context.Context, segment kpi.Segment, period kpi.Period) (initiated, finalized int, err error) {
	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer cancel()

	query := `
		SELECT
			COUNT(*) FILTER (WHERE initiated_at >= $2 AND initiated_at < $3),
			COUNT(*) FILTER (WHERE status = 'FINALIZED' AND finalized_at >= $2 AND finalized_at < $3)
		FROM trade_ins
		WHERE segment = $1
	`

	if err := a.pool.QueryRow(qctx, query, string(segment), period.Start, period.End).Scan(&initiated, &finalized); err != nil {
		return 0, 0, fmt.Errorf("trade-in counts: %w", err)
	}

	return initiated, finalized, nil
}

// RevenueAndCost aggregates sale revenue and acquisition cost over
// properties sold within the period.
func (a *Accessor) RevenueAndCost(ctx context.Context, segment kpi.Segment, period kpi.Period) (revenue, cost float64, err error) {
	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer cancel()

	query := `
		SELECT
			COALESCE(SUM(sale_price), 0),
			COALESCE(SUM(acquisition_cost), 0)
		FROM properties
		WHERE segment = $1 AND state = 'SOLD' AND sold_at >= $2 AND sold_at < $3
	`

	if err := a.pool.QueryRow(qctx, query, string(segment), period.Start, period.End).Scan(&revenue, &cost); err != nil {
		return 0, 0, fmt.Errorf("revenue and cost: %w", err)
	}

	return revenue, cost, nil
}

// CurrentStock counts the segment's standing inventory.
func (a *Accessor) CurrentStock(ctx context.Context, segment kpi.Segment) (int, error) {
	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM properties
		WHERE segment = $1 AND state IN ('AVAILABLE', 'RESERVED')
	`

	var count int
	if err := a.pool.QueryRow(qctx, query, string(segment)).Scan(&count); err != nil {
		return 0, fmt.Errorf("current stock: %w", err)
	}

	return count, nil
}

// StandingValuation sums prices over the standing inventory.
func (a *Accessor) StandingValuation(ctx context.Context, segment kpi.Segment) (float64, error) {
	qctx, cancel, err := a.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	query := `
		SELECT COALESCE(SUM(price), 0)
		FROM properties
		WHERE segment = $1 AND state IN ('AVAILABLE', 'RESERVED')
	`

	var sum float64
	if err := a.pool.QueryRow(qctx, query, string(segment)).Scan(&sum); err != nil {
		return 0, fmt.Errorf("standing valuation: %w", err)
	}

	return sum, nil
}

// timestampColumn picks the period column for a state filter: sales
// are dated by sold_at, everything else by created_at.
func timestampColumn(states []kpi.PropertyState) string {
	if len(states) == 1 && states[0] == kpi.StateSold {
		return "sold_at"
	}
	return "created_at"
}

func stateStrings(states []kpi.PropertyState) []string {
	values := make([]string, 0, len(states))
	for _, s := range states {
		values = append(values, string(s))
	}
	return values
}
