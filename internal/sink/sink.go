// Package sink fans a CheckResult out to history, the status projection and
// the in-memory cache.
package sink

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/cache"
	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/repo"
)

const defaultWriteTimeout = 10 * time.Second

// PersistenceError is a failed history insert or status upsert.
type PersistenceError struct {
	Op        string // "insert_check" or "upsert_status"
	ProjectID string
	SiteKey   string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.ProjectID, e.SiteKey, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type Sink struct {
	History      repo.HistoryStore
	Status       repo.StatusStore
	Cache        *cache.Cache
	Logger       *zap.Logger
	WriteTimeout time.Duration
}

// Record performs the three writes independently: a failing durable write
// does not stop the others, and the cache is always updated.
func (s *Sink) Record(ctx context.Context, r domain.CheckResult) error {
	var errs error

	if err := s.write(ctx, func(ctx context.Context) error { return s.History.InsertCheck(ctx, r) }); err != nil {
		errs = multierr.Append(errs, s.fail("insert_check", r, err))
	}
	if err := s.write(ctx, func(ctx context.Context) error { return s.Status.UpsertStatus(ctx, r) }); err != nil {
		errs = multierr.Append(errs, s.fail("upsert_status", r, err))
	}
	if s.Cache != nil {
		s.Cache.Put(r)
	}
	return errs
}

func (s *Sink) write(ctx context.Context, fn func(context.Context) error) error {
	d := s.WriteTimeout
	if d <= 0 {
		d = defaultWriteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func (s *Sink) fail(op string, r domain.CheckResult, err error) error {
	s.Logger.Error("sink_"+op+"_failed",
		zap.String("project_id", r.ProjectID),
		zap.String("site_key", r.SiteKey),
		zap.Error(err),
	)
	return &PersistenceError{Op: op, ProjectID: r.ProjectID, SiteKey: r.SiteKey, Err: err}
}
