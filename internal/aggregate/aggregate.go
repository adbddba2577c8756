// Package aggregate derives hourly and daily uptime views from check history.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/repo"
)

const (
	DefaultDays = 7
	MaxDays     = 90
)

// Query selects the window and optional project for an aggregation.
type Query struct {
	ProjectID string
	Days      int
}

// ClampDays maps a requested window to [1, MaxDays]; 0 means DefaultDays.
func ClampDays(days int) int {
	switch {
	case days == 0:
		return DefaultDays
	case days < 1:
		return 1
	case days > MaxDays:
		return MaxDays
	}
	return days
}

type Engine struct {
	Store repo.HistoryStore
	Now   func() time.Time
}

func (e *Engine) since(days int) time.Time {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return now().UTC().Add(-time.Duration(ClampDays(days)) * 24 * time.Hour)
}

// Hourly returns the per-hour all-up grid for every monitor in the window.
func (e *Engine) Hourly(ctx context.Context, q Query) (domain.HourlySummary, error) {
	buckets, err := e.Store.HourlyBuckets(ctx, q.ProjectID, e.since(q.Days))
	if err != nil {
		return nil, fmt.Errorf("hourly aggregation: %w", err)
	}
	return FoldHourly(buckets), nil
}

// Daily returns one uptime percentage per monitor per UTC day in the window.
func (e *Engine) Daily(ctx context.Context, q Query) ([]domain.DailySummary, error) {
	buckets, err := e.Store.DailyBuckets(ctx, q.ProjectID, e.since(q.Days))
	if err != nil {
		return nil, fmt.Errorf("daily aggregation: %w", err)
	}
	out := make([]domain.DailySummary, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, domain.DailySummary{
			ProjectID:   b.ProjectID,
			SiteKey:     b.SiteKey,
			Day:         b.Day.Format(domain.DayLayout),
			TotalChecks: b.Total,
			UpChecks:    b.Up,
			UptimePct:   domain.UptimePct(b.Total, b.Up),
		})
	}
	return out, nil
}

// FoldHourly turns buckets ordered by (project, site, hour) into the nested
// summary in one pass. A new day is started only when the bucket's UTC day
// differs from the last day appended for that monitor.
func FoldHourly(buckets []domain.HourBucket) domain.HourlySummary {
	out := make(domain.HourlySummary)
	for _, b := range buckets {
		sites, ok := out[b.ProjectID]
		if !ok {
			sites = make(map[string][]domain.DayChecks)
			out[b.ProjectID] = sites
		}
		hour := b.Hour.UTC()
		day := domain.TruncateDay(hour)
		days := sites[b.SiteKey]
		if n := len(days); n == 0 || !days[n-1].Day.Equal(day) {
			days = append(days, domain.DayChecks{Day: day})
		}
		slot := domain.SlotDown
		if b.AllUp {
			slot = domain.SlotUp
		}
		days[len(days)-1].Checks[hour.Hour()] = slot
		sites[b.SiteKey] = days
	}
	return out
}
