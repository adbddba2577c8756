package repo

import (
	"context"
	"time"
)

// AlertRecord holds the last notified state of a monitor, keyed by
// "project/site". LastSentAt is the last time a notification went out and
// drives the cooldown.
type AlertRecord struct {
	MonitorKey string
	LastState  bool
	LastSentAt *time.Time
}

// AlertStore is implemented by a persistence layer to store alert state.
type AlertStore interface {
	// GetAlert returns nil, nil if there's no record yet.
	GetAlert(ctx context.Context, key string) (*AlertRecord, error)
	// SetAlert upserts the record. A zero sentAt keeps the previous
	// last_sent_at.
	SetAlert(ctx context.Context, key string, lastState bool, sentAt time.Time) error
}
