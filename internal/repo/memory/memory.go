package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps history, status and alert state in process memory. Used when
// no DATABASE_URL is configured and in tests.
type Store struct {
	mu     sync.RWMutex
	checks []domain.CheckResult
	status map[domain.Key]domain.MonitorStatus
	alerts map[string]repo.AlertRecord
}

func New() *Store {
	return &Store{
		checks: make([]domain.CheckResult, 0, 128),
		status: make(map[domain.Key]domain.MonitorStatus),
		alerts: make(map[string]repo.AlertRecord),
	}
}

func (m *Store) Close() error { return nil }

// ---- HistoryStore ----

func (m *Store) InsertCheck(ctx context.Context, r domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, r)
	return nil
}

// ordered returns the checks in the window sorted by project, site, time.
func (m *Store) ordered(projectID string, since time.Time) []domain.CheckResult {
	m.mu.RLock()
	out := make([]domain.CheckResult, 0, len(m.checks))
	for _, r := range m.checks {
		if projectID != "" && r.ProjectID != projectID {
			continue
		}
		if r.CheckedAt.Before(since) {
			continue
		}
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.SiteKey != b.SiteKey {
			return a.SiteKey < b.SiteKey
		}
		return a.CheckedAt.Before(b.CheckedAt)
	})
	return out
}

func (m *Store) HourlyBuckets(ctx context.Context, projectID string, since time.Time) ([]domain.HourBucket, error) {
	return domain.BucketHourly(m.ordered(projectID, since)), nil
}

func (m *Store) DailyBuckets(ctx context.Context, projectID string, since time.Time) ([]domain.DayBucket, error) {
	return domain.BucketDaily(m.ordered(projectID, since)), nil
}

func (m *Store) PruneChecks(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.checks[:0]
	var n int64
	for _, r := range m.checks {
		if r.CheckedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.checks = kept
	return n, nil
}

// ---- StatusStore ----

func (m *Store) UpsertStatus(ctx context.Context, r domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.status[r.Key()]
	if !ok {
		m.status[r.Key()] = domain.NewStatus(r)
		return nil
	}
	st.Merge(r)
	m.status[r.Key()] = st
	return nil
}

func (m *Store) ListStatus(ctx context.Context, projectID string) ([]domain.MonitorStatus, error) {
	m.mu.RLock()
	out := make([]domain.MonitorStatus, 0, len(m.status))
	for k, st := range m.status {
		if projectID != "" && k.ProjectID != projectID {
			continue
		}
		out = append(out, st)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].SiteKey < out[j].SiteKey
	})
	return out, nil
}

// ---- AlertStore ----

func (m *Store) GetAlert(ctx context.Context, key string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.alerts[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Store) SetAlert(ctx context.Context, key string, lastState bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.alerts[key]
	rec.MonitorKey = key
	rec.LastState = lastState
	if !sentAt.IsZero() {
		t := sentAt
		rec.LastSentAt = &t
	}
	m.alerts[key] = rec
	return nil
}
