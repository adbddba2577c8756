// Package sqlite is the embedded single-file backend, for deployments that
// do not run Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Timestamps are stored as fixed-width UTC text so lexical order is time
// order and substr() yields hour and day buckets.
const (
	tsLayout   = "2006-01-02T15:04:05.000000000Z"
	hourLayout = "2006-01-02T15"
)

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens (creating if needed) the database file at path and runs
// migrations.
func New(ctx context.Context, path string, maxConns int, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := &Store{db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS monitor_checks (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id    TEXT NOT NULL,
	site_key      TEXT NOT NULL,
	url           TEXT NOT NULL,
	status_code   INTEGER,
	response_ms   INTEGER NOT NULL,
	is_up         INTEGER NOT NULL,
	error_type    TEXT,
	error_message TEXT,
	checked_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_checks_key_time ON monitor_checks (project_id, site_key, checked_at);

CREATE TABLE IF NOT EXISTS monitor_status (
	project_id      TEXT NOT NULL,
	site_key        TEXT NOT NULL,
	url             TEXT NOT NULL,
	status_code     INTEGER,
	response_ms     INTEGER NOT NULL,
	is_up           INTEGER NOT NULL,
	error_type      TEXT,
	error_message   TEXT,
	last_checked_at TEXT NOT NULL,
	last_up_at      TEXT,
	PRIMARY KEY (project_id, site_key)
);

CREATE TABLE IF NOT EXISTS alerts (
	target_id    TEXT PRIMARY KEY,
	last_state   INTEGER NOT NULL,
	last_sent_at TEXT
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	s.log.Info("sqlite_schema_ready")
	return nil
}

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(v string) (time.Time, error) { return time.Parse(tsLayout, v) }

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func errorTypeText(et *domain.ErrorType) sql.NullString {
	if et == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*et), Valid: true}
}

// ---- HistoryStore ----

func (s *Store) InsertCheck(ctx context.Context, r domain.CheckResult) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO monitor_checks
	(project_id, site_key, url, status_code, response_ms, is_up, error_type, error_message, checked_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ProjectID, r.SiteKey, r.URL, nullInt(r.StatusCode), r.ResponseMS, r.IsUp,
		errorTypeText(r.ErrorType), nullString(r.ErrorMessage), ts(r.CheckedAt))
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *Store) HourlyBuckets(ctx context.Context, projectID string, since time.Time) ([]domain.HourBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT project_id, site_key, substr(checked_at, 1, 13) AS hour, MIN(is_up)
  FROM monitor_checks
 WHERE checked_at >= ?
   AND (? = '' OR project_id = ?)
 GROUP BY project_id, site_key, hour
 ORDER BY project_id, site_key, hour`, ts(since), projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("hourly buckets: %w", err)
	}
	defer rows.Close()

	var out []domain.HourBucket
	for rows.Next() {
		var (
			b     domain.HourBucket
			hour  string
			minUp int64
		)
		if err := rows.Scan(&b.ProjectID, &b.SiteKey, &hour, &minUp); err != nil {
			return nil, fmt.Errorf("scan hourly bucket: %w", err)
		}
		if b.Hour, err = time.Parse(hourLayout, hour); err != nil {
			return nil, fmt.Errorf("parse hour %q: %w", hour, err)
		}
		b.AllUp = minUp == 1
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) DailyBuckets(ctx context.Context, projectID string, since time.Time) ([]domain.DayBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT project_id, site_key, substr(checked_at, 1, 10) AS day, COUNT(*), SUM(is_up)
  FROM monitor_checks
 WHERE checked_at >= ?
   AND (? = '' OR project_id = ?)
 GROUP BY project_id, site_key, day
 ORDER BY project_id, site_key, day`, ts(since), projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("daily buckets: %w", err)
	}
	defer rows.Close()

	var out []domain.DayBucket
	for rows.Next() {
		var (
			b   domain.DayBucket
			day string
		)
		if err := rows.Scan(&b.ProjectID, &b.SiteKey, &day, &b.Total, &b.Up); err != nil {
			return nil, fmt.Errorf("scan daily bucket: %w", err)
		}
		if b.Day, err = time.Parse(domain.DayLayout, day); err != nil {
			return nil, fmt.Errorf("parse day %q: %w", day, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) PruneChecks(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitor_checks WHERE checked_at < ?`, ts(before))
	if err != nil {
		return 0, fmt.Errorf("prune checks: %w", err)
	}
	return res.RowsAffected()
}

// ---- StatusStore ----

func (s *Store) UpsertStatus(ctx context.Context, r domain.CheckResult) error {
	var lastUp sql.NullString
	if r.IsUp {
		lastUp = sql.NullString{String: ts(r.CheckedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO monitor_status
	(project_id, site_key, url, status_code, response_ms, is_up, error_type, error_message, last_checked_at, last_up_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(project_id, site_key) DO UPDATE SET
	url             = excluded.url,
	status_code     = excluded.status_code,
	response_ms     = excluded.response_ms,
	is_up           = excluded.is_up,
	error_type      = excluded.error_type,
	error_message   = excluded.error_message,
	last_checked_at = excluded.last_checked_at,
	last_up_at      = CASE WHEN excluded.is_up
	                       THEN MAX(COALESCE(monitor_status.last_up_at, ''), excluded.last_up_at)
	                       ELSE monitor_status.last_up_at END`,
		r.ProjectID, r.SiteKey, r.URL, nullInt(r.StatusCode), r.ResponseMS, r.IsUp,
		errorTypeText(r.ErrorType), nullString(r.ErrorMessage), ts(r.CheckedAt), lastUp)
	if err != nil {
		return fmt.Errorf("upsert status: %w", err)
	}
	return nil
}

func (s *Store) ListStatus(ctx context.Context, projectID string) ([]domain.MonitorStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT project_id, site_key, url, status_code, response_ms, is_up,
       error_type, error_message, last_checked_at, last_up_at
  FROM monitor_status
 WHERE (? = '' OR project_id = ?)
 ORDER BY project_id, site_key`, projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list status: %w", err)
	}
	defer rows.Close()

	var out []domain.MonitorStatus
	for rows.Next() {
		var (
			st          domain.MonitorStatus
			status      sql.NullInt64
			errType     sql.NullString
			errMsg      sql.NullString
			lastChecked string
			lastUp      sql.NullString
		)
		if err := rows.Scan(&st.ProjectID, &st.SiteKey, &st.URL, &status, &st.ResponseMS, &st.IsUp,
			&errType, &errMsg, &lastChecked, &lastUp); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		if status.Valid {
			st.StatusCode = domain.IntPtr(int(status.Int64))
		}
		if errType.Valid {
			et, err := domain.ParseErrorType(errType.String)
			if err != nil {
				return nil, fmt.Errorf("status %s/%s: %w", st.ProjectID, st.SiteKey, err)
			}
			st.ErrorType = &et
		}
		if errMsg.Valid {
			st.ErrorMessage = domain.StringPtr(errMsg.String)
		}
		if st.LastCheckedAt, err = parseTS(lastChecked); err != nil {
			return nil, fmt.Errorf("parse last_checked_at: %w", err)
		}
		if lastUp.Valid {
			t, err := parseTS(lastUp.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_up_at: %w", err)
			}
			st.LastUpAt = &t
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ---- AlertStore ----

func (s *Store) GetAlert(ctx context.Context, key string) (*repo.AlertRecord, error) {
	r := repo.AlertRecord{MonitorKey: key}
	var lastSent sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT last_state, last_sent_at FROM alerts WHERE target_id = ?`, key).
		Scan(&r.LastState, &lastSent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if lastSent.Valid {
		t, err := parseTS(lastSent.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_sent_at: %w", err)
		}
		r.LastSentAt = &t
	}
	return &r, nil
}

func (s *Store) SetAlert(ctx context.Context, key string, lastState bool, sentAt time.Time) error {
	var sent sql.NullString
	if !sentAt.IsZero() {
		sent = sql.NullString{String: ts(sentAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO alerts (target_id, last_state, last_sent_at) VALUES (?, ?, ?)
ON CONFLICT(target_id) DO UPDATE SET
	last_state   = excluded.last_state,
	last_sent_at = COALESCE(excluded.last_sent_at, alerts.last_sent_at)`,
		key, lastState, sent)
	if err != nil {
		return fmt.Errorf("set alert: %w", err)
	}
	return nil
}
