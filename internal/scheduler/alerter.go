package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/notify"
	"github.com/hamed0406/upmon/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Alerter watches the status projection and notifies on state changes.
type Alerter struct {
	status   repo.StatusStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	log      *zap.Logger
	cfg      AlerterConfig
	now      func() time.Time
}

func NewAlerter(
	status repo.StatusStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	log *zap.Logger,
	cfg AlerterConfig,
) *Alerter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Alerter{
		status:   status,
		alertDB:  alertDB,
		notifier: notifier,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	a.logScan(a.scanOnce(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			a.logScan(a.scanOnce(ctx))
		}
	}
}

func (a *Alerter) logScan(err error) {
	if err != nil {
		a.log.Warn("alerter_scan_failed", zap.Error(err))
	}
}

// alertAction is what one scan does for one monitor.
type alertAction int

const (
	alertSkip   alertAction = iota // nothing changed, or a DOWN still cooling down
	alertRecord                    // store the new state without notifying
	alertSend
)

// decide applies the alerting rules to the last notified state and the
// current status. A DOWN inside the cooldown is skipped without recording, so
// it is sent once the cooldown ends if the monitor is still down.
func decide(rec *repo.AlertRecord, up bool, now time.Time, cfg AlerterConfig) alertAction {
	if rec == nil {
		if up {
			return alertRecord
		}
		return alertSend
	}
	if rec.LastState == up {
		return alertSkip
	}
	if up {
		if cfg.AlertOnRecovery {
			return alertSend
		}
		return alertRecord
	}
	if rec.LastSentAt != nil && now.Sub(*rec.LastSentAt) < cfg.Cooldown {
		return alertSkip
	}
	return alertSend
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	rows, err := a.status.ListStatus(ctx, "")
	if err != nil {
		return err
	}
	now := a.now()

	for _, st := range rows {
		key := domain.Key{ProjectID: st.ProjectID, SiteKey: st.SiteKey}.String()
		rec, err := a.alertDB.GetAlert(ctx, key)
		if err != nil {
			a.log.Warn("alerter_get_failed", zap.String("monitor", key), zap.Error(err))
			continue
		}

		switch decide(rec, st.IsUp, now, a.cfg) {
		case alertSkip:
		case alertRecord:
			a.setState(ctx, key, st.IsUp, time.Time{})
		case alertSend:
			if err := a.notifier.Notify(ctx, notify.Alert{Status: st, Recovered: st.IsUp}); err != nil {
				a.log.Warn("alert_send_failed", zap.String("monitor", key), zap.Error(err))
				continue
			}
			a.log.Info("alert_sent", zap.String("monitor", key), zap.Bool("up", st.IsUp))
			a.setState(ctx, key, st.IsUp, now)
		}
	}
	return nil
}

func (a *Alerter) setState(ctx context.Context, key string, up bool, sentAt time.Time) {
	if err := a.alertDB.SetAlert(ctx, key, up, sentAt); err != nil {
		a.log.Warn("alerter_set_failed", zap.String("monitor", key), zap.Error(err))
	}
}
