package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/upmon/internal/repo"
)

func (s *Store) GetAlert(ctx context.Context, key string) (*repo.AlertRecord, error) {
	const q = `SELECT last_state, last_sent_at FROM alerts WHERE target_id=$1`
	r := repo.AlertRecord{MonitorKey: key}
	var lastSent *time.Time
	err := s.pool.QueryRow(ctx, q, key).Scan(&r.LastState, &lastSent)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	r.LastSentAt = lastSent
	return &r, nil
}

func (s *Store) SetAlert(ctx context.Context, key string, lastState bool, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (target_id, last_state, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (target_id)
		DO UPDATE SET last_state=EXCLUDED.last_state,
		              last_sent_at=COALESCE(EXCLUDED.last_sent_at, alerts.last_sent_at)
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	if _, err := s.pool.Exec(ctx, q, key, lastState, ts); err != nil {
		return fmt.Errorf("set alert: %w", err)
	}
	return nil
}
