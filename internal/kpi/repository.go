package kpi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists KPI snapshots and alerts. It implements
// SnapshotStore and AlertStore over the kpi_snapshots and kpi_alerts
// tables (schema managed by the external migration tooling).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new KPI repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSnapshot upserts a snapshot keyed by (metric_code, segment,
// period_start). Recomputing an already-closed period overwrites in
// place instead of duplicating the series.
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	metadataJSON, err := json.Marshal(snapshot.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO kpi_snapshots (
			metric_code, segment, period_start, period_end, value, unit, metadata, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (metric_code, segment, period_start) DO UPDATE SET
			period_end = EXCLUDED.period_end,
			value = EXCLUDED.value,
			unit = EXCLUDED.unit,
			metadata = EXCLUDED.metadata,
			computed_at = EXCLUDED.computed_at
		RETURNING id
	`

	err = r.pool.QueryRow(ctx, query,
		snapshot.MetricCode, string(snapshot.Segment),
		snapshot.Period.Start, snapshot.Period.End,
		snapshot.Value, snapshot.Unit, metadataJSON, snapshot.ComputedAt,
	).Scan(&snapshot.ID)

	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// GetSnapshot retrieves the snapshot for an exact period start.
// Returns nil when the period has not been computed yet.
func (r *Repository) GetSnapshot(ctx context.Context, code string, segment Segment, period Period) (*Snapshot, error) {
	query := `
		SELECT id, metric_code, segment, period_start, period_end, value, unit, metadata, computed_at
		FROM kpi_snapshots
		WHERE metric_code = $1 AND segment = $2 AND period_start = $3
	`

	return r.scanOne(r.pool.QueryRow(ctx, query, code, string(segment), period.Start))
}

// LatestBefore retrieves the most recent snapshot strictly prior to
// the period for the same code and segment. Returns nil when none
// exists.
func (r *Repository) LatestBefore(ctx context.Context, code string, segment Segment, period Period) (*Snapshot, error) {
	query := `
		SELECT id, metric_code, segment, period_start, period_end, value, unit, metadata, computed_at
		FROM kpi_snapshots
		WHERE metric_code = $1 AND segment = $2 AND period_start < $3
		ORDER BY period_start DESC
		LIMIT 1
	`

	return r.scanOne(r.pool.QueryRow(ctx, query, code, string(segment), period.Start))
}

// Range retrieves snapshots with period start in [from, to), ascending.
func (r *Repository) Range(ctx context.Context, code string, segment Segment, from, to time.Time) ([]Snapshot, error) {
	query := `
		SELECT id, metric_code, segment, period_start, period_end, value, unit, metadata, computed_at
		FROM kpi_snapshots
		WHERE metric_code = $1 AND segment = $2 AND period_start >= $3 AND period_start < $4
		ORDER BY period_start ASC
	`

	rows, err := r.pool.Query(ctx, query, code, string(segment), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)

	for rows.Next() {
		snapshot, err := r.scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanOne(row pgx.Row) (*Snapshot, error) {
	snapshot, err := r.scanSnapshot(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *Repository) scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snapshot Snapshot
	var segment string
	var metadataJSON []byte

	err := row.Scan(
		&snapshot.ID, &snapshot.MetricCode, &segment,
		&snapshot.Period.Start, &snapshot.Period.End,
		&snapshot.Value, &snapshot.Unit, &metadataJSON, &snapshot.ComputedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	snapshot.Segment = Segment(segment)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &snapshot.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &snapshot, nil
}

// SaveAlert inserts a new alert and assigns its ID.
func (r *Repository) SaveAlert(ctx context.Context, alert *Alert) error {
	query := `
		INSERT INTO kpi_alerts (
			metric_code, segment, period_start, period_end, severity,
			message, value, threshold, triggered_at, acknowledged
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		alert.MetricCode, string(alert.Segment),
		alert.Period.Start, alert.Period.End,
		string(alert.Severity), alert.Message,
		alert.Value, alert.Threshold, alert.TriggeredAt,
	).Scan(&alert.ID)

	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	return nil
}

// HasOpenAlert reports whether an unacknowledged alert already exists
// for (code, segment, period start).
func (r *Repository) HasOpenAlert(ctx context.Context, code string, segment Segment, periodStart time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM kpi_alerts
			WHERE metric_code = $1 AND segment = $2 AND period_start = $3 AND NOT acknowledged
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, code, string(segment), periodStart).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check open alerts: %w", err)
	}

	return exists, nil
}

// ListAlerts retrieves alerts for a segment, newest first. With
// onlyOpen set, acknowledged alerts are filtered out.
func (r *Repository) ListAlerts(ctx context.Context, segment Segment, onlyOpen bool) ([]Alert, error) {
	query := `
		SELECT id, metric_code, segment, period_start, period_end, severity,
		       message, value, threshold, triggered_at, acknowledged
		FROM kpi_alerts
		WHERE segment = $1 AND ($2 = false OR NOT acknowledged)
		ORDER BY triggered_at DESC
	`

	rows, err := r.pool.Query(ctx, query, string(segment), onlyOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]Alert, 0)

	for rows.Next() {
		var alert Alert
		var seg, severity string

		err := rows.Scan(
			&alert.ID, &alert.MetricCode, &seg,
			&alert.Period.Start, &alert.Period.End, &severity,
			&alert.Message, &alert.Value, &alert.Threshold,
			&alert.TriggeredAt, &alert.Acknowledged,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		alert.Segment = Segment(seg)
		alert.Severity = Severity(severity)
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// AcknowledgeAlert marks an alert as acknowledged.
func (r *Repository) AcknowledgeAlert(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `UPDATE kpi_alerts SET acknowledged = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("alert %d not found", id)
	}

	return nil
}
