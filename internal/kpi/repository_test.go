package kpi

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// integrationRepo connects to the database named by TEST_DATABASE_URL.
// Requires the kpi_snapshots and kpi_alerts tables from the schema.
func integrationRepo(t *testing.T) *Repository {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), connString)
	require.NoError(t, err, "database connection failed")
	t.Cleanup(pool.Close)

	return NewRepository(pool)
}

func TestRepositorySnapshotRoundTrip(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	segment := Segment("it_roundtrip")
	period := Month(2026, time.March)

	snapshot := &Snapshot{
		MetricCode: MetricConversionRate,
		Segment:    segment,
		Period:     period,
		Value:      25,
		Unit:       UnitPercent,
		Metadata:   map[string]interface{}{"sold": 5, "total": 20},
		ComputedAt: time.Now(),
	}

	require.NoError(t, repo.SaveSnapshot(ctx, snapshot))
	require.NotZero(t, snapshot.ID)

	loaded, err := repo.GetSnapshot(ctx, MetricConversionRate, segment, period)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snapshot.ID, loaded.ID)
	assert.Equal(t, 25.0, loaded.Value)

	// recomputation upserts, keeping the row
	snapshot.Value = 30
	require.NoError(t, repo.SaveSnapshot(ctx, snapshot))

	loaded, err = repo.GetSnapshot(ctx, MetricConversionRate, segment, period)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 30.0, loaded.Value)
}

func TestRepositoryLatestBefore(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	segment := Segment("it_latest")

	for month, value := range map[time.Month]float64{
		time.January:  10,
		time.February: 20,
	} {
		require.NoError(t, repo.SaveSnapshot(ctx, &Snapshot{
			MetricCode: MetricConversionRate,
			Segment:    segment,
			Period:     Month(2026, month),
			Value:      value,
			Unit:       UnitPercent,
			ComputedAt: time.Now(),
		}))
	}

	previous, err := repo.LatestBefore(ctx, MetricConversionRate, segment, Month(2026, time.March))
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, 20.0, previous.Value)

	none, err := repo.LatestBefore(ctx, MetricConversionRate, segment, Month(2026, time.January))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRepositoryAlertLifecycle(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	segment := Segment("it_alerts")
	period := Month(2026, time.March)

	alert := &Alert{
		MetricCode:  MetricConversionRate,
		Segment:     segment,
		Period:      period,
		Severity:    SeverityCritical,
		Message:     "conversion rate below minimum",
		Value:       4,
		Threshold:   10,
		TriggeredAt: time.Now(),
	}

	require.NoError(t, repo.SaveAlert(ctx, alert))
	require.NotZero(t, alert.ID)

	open, err := repo.HasOpenAlert(ctx, MetricConversionRate, segment, period.Start)
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, repo.AcknowledgeAlert(ctx, alert.ID))

	open, err = repo.HasOpenAlert(ctx, MetricConversionRate, segment, period.Start)
	require.NoError(t, err)
	assert.False(t, open)

	assert.Error(t, repo.AcknowledgeAlert(ctx, -1))
}
