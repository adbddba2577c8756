package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/domain"
)

// Alert is a state flip of one monitor, carrying the status row that caused it.
type Alert struct {
	Status    domain.MonitorStatus
	Recovered bool
}

func (a Alert) Monitor() string {
	return domain.Key{ProjectID: a.Status.ProjectID, SiteKey: a.Status.SiteKey}.String()
}

func (a Alert) Title() string {
	if a.Recovered {
		return "🟢 Monitor RECOVERED"
	}
	return "🔴 Monitor DOWN"
}

// Reason is "ok" for healthy rows, else the error type and message.
func (a Alert) Reason() string {
	st := a.Status
	if st.ErrorType == nil {
		return "ok"
	}
	r := st.ErrorType.String()
	if st.ErrorMessage != nil && *st.ErrorMessage != "" {
		r += ": " + *st.ErrorMessage
	}
	return r
}

func (a Alert) HTTP() string {
	if a.Status.StatusCode == nil {
		return "n/a"
	}
	return fmt.Sprint(*a.Status.StatusCode)
}

// Text is the plain-text body used by channels without rich formatting.
func (a Alert) Text() string {
	st := a.Status
	return fmt.Sprintf(
		"Monitor: %s\nURL: %s\nHTTP: %s\nLatency: %d ms\nReason: %s\nChecked: %s",
		a.Monitor(), st.URL, a.HTTP(), st.ResponseMS, a.Reason(),
		st.LastCheckedAt.Format(time.RFC3339),
	)
}

// Notifier delivers an alert to some channel.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Multi fans an alert out to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Notify(ctx, a))
	}
	return errs
}

// Log writes alerts to the service log. It is always on so state flips are
// visible even without a chat webhook.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Notify(ctx context.Context, a Alert) error {
	fields := []zap.Field{
		zap.String("monitor", a.Monitor()),
		zap.String("url", a.Status.URL),
		zap.String("http", a.HTTP()),
		zap.String("reason", a.Reason()),
	}
	if a.Recovered {
		l.Logger.Info("monitor_recovered", fields...)
	} else {
		l.Logger.Warn("monitor_down", fields...)
	}
	return nil
}
