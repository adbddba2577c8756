package repo

import (
	"context"
	"time"

	"github.com/hamed0406/upmon/internal/domain"
)

// Ports (interfaces). Adapters live in memory/, postgres/ and sqlite/.

// HistoryStore is the append-only check history and its aggregation.
type HistoryStore interface {
	InsertCheck(ctx context.Context, r domain.CheckResult) error
	// HourlyBuckets returns one row per (project, site, UTC hour) with a check
	// at or after since, ordered by project, site, hour. Empty projectID means
	// every project.
	HourlyBuckets(ctx context.Context, projectID string, since time.Time) ([]domain.HourBucket, error)
	// DailyBuckets is HourlyBuckets at UTC-day granularity with counts.
	DailyBuckets(ctx context.Context, projectID string, since time.Time) ([]domain.DayBucket, error)
	// PruneChecks deletes history rows checked before the cutoff.
	PruneChecks(ctx context.Context, before time.Time) (int64, error)
}

// StatusStore is the current-status projection, one row per monitor.
type StatusStore interface {
	UpsertStatus(ctx context.Context, r domain.CheckResult) error
	// ListStatus is ordered by project, site.
	ListStatus(ctx context.Context, projectID string) ([]domain.MonitorStatus, error)
}

// Store is everything the serve command needs from one backend.
type Store interface {
	HistoryStore
	StatusStore
	AlertStore
	Close() error
}
