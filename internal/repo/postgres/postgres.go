package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New opens a bounded pool, pings it and applies the schema.
func New(ctx context.Context, dsn string, maxConns int, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool, log: log}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS monitor_checks (
  id            BIGSERIAL PRIMARY KEY,
  project_id    TEXT NOT NULL,
  site_key      TEXT NOT NULL,
  url           TEXT NOT NULL,
  status_code   INTEGER NULL,
  response_ms   INTEGER NOT NULL,
  is_up         BOOLEAN NOT NULL,
  error_type    TEXT NULL,
  error_message TEXT NULL,
  checked_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_monitor_checks_key_time
  ON monitor_checks (project_id, site_key, checked_at);

CREATE TABLE IF NOT EXISTS monitor_status (
  project_id      TEXT NOT NULL,
  site_key        TEXT NOT NULL,
  url             TEXT NOT NULL,
  status_code     INTEGER NULL,
  response_ms     INTEGER NOT NULL,
  is_up           BOOLEAN NOT NULL,
  error_type      TEXT NULL,
  error_message   TEXT NULL,
  last_checked_at TIMESTAMPTZ NOT NULL,
  last_up_at      TIMESTAMPTZ NULL,
  PRIMARY KEY (project_id, site_key)
);

CREATE TABLE IF NOT EXISTS alerts (
  target_id    TEXT PRIMARY KEY,
  last_state   BOOLEAN NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`

// Migrate creates the tables idempotently.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info("postgres_schema_ready")
	return nil
}

func errorTypeText(et *domain.ErrorType) *string {
	if et == nil {
		return nil
	}
	v := string(*et)
	return &v
}

func parseErrorType(s *string) (*domain.ErrorType, error) {
	if s == nil {
		return nil, nil
	}
	et, err := domain.ParseErrorType(*s)
	if err != nil {
		return nil, err
	}
	return &et, nil
}

// ---- HistoryStore ----

func (s *Store) InsertCheck(ctx context.Context, r domain.CheckResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitor_checks
		   (project_id, site_key, url, status_code, response_ms, is_up, error_type, error_message, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ProjectID, r.SiteKey, r.URL, r.StatusCode, r.ResponseMS, r.IsUp,
		errorTypeText(r.ErrorType), r.ErrorMessage, r.CheckedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *Store) HourlyBuckets(ctx context.Context, projectID string, since time.Time) ([]domain.HourBucket, error) {
	rows, err := s.pool.Query(ctx, `
SELECT project_id,
       site_key,
       date_trunc('hour', checked_at AT TIME ZONE 'UTC') AS hour,
       bool_and(is_up)
  FROM monitor_checks
 WHERE checked_at >= $1
   AND ($2::text = '' OR project_id = $2)
 GROUP BY project_id, site_key, hour
 ORDER BY project_id, site_key, hour`, since.UTC(), projectID)
	if err != nil {
		return nil, fmt.Errorf("hourly buckets: %w", err)
	}
	defer rows.Close()

	var out []domain.HourBucket
	for rows.Next() {
		var b domain.HourBucket
		if err := rows.Scan(&b.ProjectID, &b.SiteKey, &b.Hour, &b.AllUp); err != nil {
			return nil, fmt.Errorf("scan hourly bucket: %w", err)
		}
		b.Hour = b.Hour.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) DailyBuckets(ctx context.Context, projectID string, since time.Time) ([]domain.DayBucket, error) {
	rows, err := s.pool.Query(ctx, `
SELECT project_id,
       site_key,
       date_trunc('day', checked_at AT TIME ZONE 'UTC') AS day,
       count(*),
       count(*) FILTER (WHERE is_up)
  FROM monitor_checks
 WHERE checked_at >= $1
   AND ($2::text = '' OR project_id = $2)
 GROUP BY project_id, site_key, day
 ORDER BY project_id, site_key, day`, since.UTC(), projectID)
	if err != nil {
		return nil, fmt.Errorf("daily buckets: %w", err)
	}
	defer rows.Close()

	var out []domain.DayBucket
	for rows.Next() {
		var b domain.DayBucket
		if err := rows.Scan(&b.ProjectID, &b.SiteKey, &b.Day, &b.Total, &b.Up); err != nil {
			return nil, fmt.Errorf("scan daily bucket: %w", err)
		}
		b.Day = b.Day.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) PruneChecks(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM monitor_checks WHERE checked_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune checks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---- StatusStore ----

// UpsertStatus replaces the descriptive columns; last_up_at only moves
// forward and only on an up result.
func (s *Store) UpsertStatus(ctx context.Context, r domain.CheckResult) error {
	var lastUp *time.Time
	if r.IsUp {
		t := r.CheckedAt.UTC()
		lastUp = &t
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO monitor_status
  (project_id, site_key, url, status_code, response_ms, is_up, error_type, error_message, last_checked_at, last_up_at)
VALUES
  ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (project_id, site_key) DO UPDATE SET
  url             = EXCLUDED.url,
  status_code     = EXCLUDED.status_code,
  response_ms     = EXCLUDED.response_ms,
  is_up           = EXCLUDED.is_up,
  error_type      = EXCLUDED.error_type,
  error_message   = EXCLUDED.error_message,
  last_checked_at = EXCLUDED.last_checked_at,
  last_up_at      = CASE WHEN EXCLUDED.is_up
                         THEN GREATEST(monitor_status.last_up_at, EXCLUDED.last_up_at)
                         ELSE monitor_status.last_up_at END`,
		r.ProjectID, r.SiteKey, r.URL, r.StatusCode, r.ResponseMS, r.IsUp,
		errorTypeText(r.ErrorType), r.ErrorMessage, r.CheckedAt.UTC(), lastUp,
	)
	if err != nil {
		return fmt.Errorf("upsert status: %w", err)
	}
	return nil
}

func (s *Store) ListStatus(ctx context.Context, projectID string) ([]domain.MonitorStatus, error) {
	rows, err := s.pool.Query(ctx, `
SELECT project_id, site_key, url, status_code, response_ms, is_up,
       error_type, error_message, last_checked_at, last_up_at
  FROM monitor_status
 WHERE ($1::text = '' OR project_id = $1)
 ORDER BY project_id, site_key`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list status: %w", err)
	}
	defer rows.Close()

	var out []domain.MonitorStatus
	for rows.Next() {
		var (
			st        domain.MonitorStatus
			status    *int32
			errType   *string
			lastUpAt  *time.Time
			checkedAt time.Time
		)
		if err := rows.Scan(&st.ProjectID, &st.SiteKey, &st.URL, &status, &st.ResponseMS, &st.IsUp,
			&errType, &st.ErrorMessage, &checkedAt, &lastUpAt); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		if status != nil {
			st.StatusCode = domain.IntPtr(int(*status))
		}
		if st.ErrorType, err = parseErrorType(errType); err != nil {
			return nil, fmt.Errorf("status %s/%s: %w", st.ProjectID, st.SiteKey, err)
		}
		st.LastCheckedAt = checkedAt.UTC()
		if lastUpAt != nil {
			t := lastUpAt.UTC()
			st.LastUpAt = &t
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
