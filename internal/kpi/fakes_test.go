package kpi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// fakeAccessor answers accessor queries from fixed fixtures. Methods
// named in errOn fail, letting tests exercise partial failures.
type fakeAccessor struct {
	total     int
	sold      int
	sales     []SaleDates
	states    map[PropertyState]int
	gross     float64
	net       float64
	brokers   []BrokerStats
	initiated int
	finalized int
	revenue   float64
	cost      float64
	stock     int
	valuation float64

	errOn map[string]error
}

func (f *fakeAccessor) fail(method string) error {
	if f.errOn == nil {
		return nil
	}
	return f.errOn[method]
}

func (f *fakeAccessor) CountProperties(_ context.Context, _ Segment, _ Period, states ...PropertyState) (int, error) {
	if err := f.fail("CountProperties"); err != nil {
		return 0, err
	}
	if len(states) == 1 && states[0] == StateSold {
		return f.sold, nil
	}
	return f.total, nil
}

func (f *fakeAccessor) SumPropertyField(_ context.Context, _ Segment, _ Period, _ string, _ ...PropertyState) (float64, error) {
	return 0, f.fail("SumPropertyField")
}

func (f *fakeAccessor) ListSoldWithDates(_ context.Context, _ Segment, _ Period) ([]SaleDates, error) {
	if err := f.fail("ListSoldWithDates"); err != nil {
		return nil, err
	}
	return f.sales, nil
}

func (f *fakeAccessor) GroupByState(_ context.Context, _ Segment, _ Period) (map[PropertyState]int, error) {
	if err := f.fail("GroupByState"); err != nil {
		return nil, err
	}
	return f.states, nil
}

func (f *fakeAccessor) SumCommissions(_ context.Context, _ Segment, _ Period) (float64, float64, error) {
	if err := f.fail("SumCommissions"); err != nil {
		return 0, 0, err
	}
	return f.gross, f.net, nil
}

func (f *fakeAccessor) BrokerStats(_ context.Context, _ Segment, _ Period) ([]BrokerStats, error) {
	if err := f.fail("BrokerStats"); err != nil {
		return nil, err
	}
	return f.brokers, nil
}

func (f *fakeAccessor) TradeInCounts(_ context.Context, _ Segment, _ Period) (int, int, error) {
	if err := f.fail("TradeInCounts"); err != nil {
		return 0, 0, err
	}
	return f.initiated, f.finalized, nil
}

func (f *fakeAccessor) RevenueAndCost(_ context.Context, _ Segment, _ Period) (float64, float64, error) {
	if err := f.fail("RevenueAndCost"); err != nil {
		return 0, 0, err
	}
	return f.revenue, f.cost, nil
}

func (f *fakeAccessor) CurrentStock(_ context.Context, _ Segment) (int, error) {
	if err := f.fail("CurrentStock"); err != nil {
		return 0, err
	}
	return f.stock, nil
}

func (f *fakeAccessor) StandingValuation(_ context.Context, _ Segment) (float64, error) {
	if err := f.fail("StandingValuation"); err != nil {
		return 0, err
	}
	return f.valuation, nil
}

// memStore is an in-memory SnapshotStore and AlertStore.
type memStore struct {
	mu        sync.Mutex
	snapshots map[string]Snapshot
	nextID    int64

	// saveFailures makes the next N SaveSnapshot calls fail, for
	// retry tests.
	saveFailures int
	saveCalls    int

	alerts       []Alert
	alertsNextID int64
}

func newMemStore() *memStore {
	return &memStore{snapshots: make(map[string]Snapshot)}
}

func snapshotKey(code string, segment Segment, start time.Time) string {
	return fmt.Sprintf("%s|%s|%d", code, segment, start.Unix())
}

func (m *memStore) SaveSnapshot(_ context.Context, snapshot *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++
	if m.saveFailures > 0 {
		m.saveFailures--
		return fmt.Errorf("simulated write failure")
	}

	key := snapshotKey(snapshot.MetricCode, snapshot.Segment, snapshot.Period.Start)
	if existing, ok := m.snapshots[key]; ok {
		snapshot.ID = existing.ID
	} else {
		m.nextID++
		snapshot.ID = m.nextID
	}

	m.snapshots[key] = *snapshot
	return nil
}

func (m *memStore) GetSnapshot(_ context.Context, code string, segment Segment, period Period) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.snapshots[snapshotKey(code, segment, period.Start)]; ok {
		copied := s
		return &copied, nil
	}
	return nil, nil
}

func (m *memStore) LatestBefore(_ context.Context, code string, segment Segment, period Period) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *Snapshot
	for _, s := range m.snapshots {
		if s.MetricCode != code || s.Segment != segment {
			continue
		}
		if !s.Period.Start.Before(period.Start) {
			continue
		}
		if latest == nil || s.Period.Start.After(latest.Period.Start) {
			copied := s
			latest = &copied
		}
	}
	return latest, nil
}

func (m *memStore) Range(_ context.Context, code string, segment Segment, from, to time.Time) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Snapshot, 0)
	for _, s := range m.snapshots {
		if s.MetricCode != code || s.Segment != segment {
			continue
		}
		if s.Period.Start.Before(from) || !s.Period.Start.Before(to) {
			continue
		}
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Period.Start.Before(result[j].Period.Start)
	})

	return result, nil
}

func (m *memStore) SaveAlert(_ context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alertsNextID++
	alert.ID = m.alertsNextID
	m.alerts = append(m.alerts, *alert)
	return nil
}

func (m *memStore) HasOpenAlert(_ context.Context, code string, segment Segment, periodStart time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.MetricCode == code && a.Segment == segment && a.Period.Start.Equal(periodStart) && !a.Acknowledged {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListAlerts(_ context.Context, segment Segment, onlyOpen bool) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Alert, 0)
	for _, a := range m.alerts {
		if a.Segment != segment {
			continue
		}
		if onlyOpen && a.Acknowledged {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *memStore) AcknowledgeAlert(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Acknowledged = true
			return nil
		}
	}
	return fmt.Errorf("alert %d not found", id)
}
