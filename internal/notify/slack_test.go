package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/upmon/internal/domain"
)

func downAlert() Alert {
	return Alert{Status: domain.MonitorStatus{
		ProjectID:     "acme",
		SiteKey:       "home",
		URL:           "https://acme.example",
		StatusCode:    domain.IntPtr(503),
		ResponseMS:    87,
		ErrorType:     domain.ErrUnexpectedStatus.Ptr(),
		ErrorMessage:  domain.StringPtr("maintenance"),
		LastCheckedAt: time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC),
	}}
}

func TestAlert_Text(t *testing.T) {
	a := downAlert()
	if a.Title() != "🔴 Monitor DOWN" || a.Reason() != "unexpected_status: maintenance" || a.HTTP() != "503" {
		t.Fatalf("down alert: %q %q %q", a.Title(), a.Reason(), a.HTTP())
	}
	for _, want := range []string{"Monitor: acme/home", "Latency: 87 ms", "Checked: 2025-09-10T12:00:00Z"} {
		if !strings.Contains(a.Text(), want) {
			t.Fatalf("text missing %q:\n%s", want, a.Text())
		}
	}

	up := Alert{Status: domain.MonitorStatus{ProjectID: "acme", SiteKey: "home", IsUp: true}, Recovered: true}
	if up.Title() != "🟢 Monitor RECOVERED" || up.Reason() != "ok" || up.HTTP() != "n/a" {
		t.Fatalf("recovery alert: %q %q %q", up.Title(), up.Reason(), up.HTTP())
	}
}

func TestSlack_PostsAttachment(t *testing.T) {
	var got slackMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if err := s.Notify(context.Background(), downAlert()); err != nil {
		t.Fatalf("notify err: %v", err)
	}
	if got.Text != "*🔴 Monitor DOWN* acme/home" || len(got.Attachments) != 1 {
		t.Fatalf("payload not as expected: %+v", got)
	}
	att := got.Attachments[0]
	if att.Color != colorDown || att.Title != "https://acme.example" || len(att.Fields) != 4 {
		t.Fatalf("attachment: %+v", att)
	}
	if att.Fields[3].Value != "unexpected_status: maintenance" {
		t.Fatalf("reason field: %+v", att.Fields[3])
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer ts.Close()

	err := NewSlack(ts.URL).Notify(context.Background(), downAlert())
	if err == nil || !strings.Contains(err.Error(), "403: invalid_token") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestNewSlack_EmptyWebhookDisables(t *testing.T) {
	if NewSlack("  ") != nil {
		t.Fatal("empty webhook should return nil")
	}
}

type countingNotifier struct {
	n   int
	err error
}

func (c *countingNotifier) Notify(ctx context.Context, a Alert) error {
	c.n++
	return c.err
}

func TestMulti_SendsToAllAndCollectsErrors(t *testing.T) {
	a := &countingNotifier{err: errors.New("a failed")}
	b := &countingNotifier{}
	c := &countingNotifier{err: errors.New("c failed")}

	err := Multi{a, nil, b, c}.Notify(context.Background(), downAlert())
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Fatalf("every notifier should be called: %d %d %d", a.n, b.n, c.n)
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Fatalf("want 2 errors, got %d: %v", n, err)
	}
}

func TestLog_WritesLevelByState(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Log{Logger: zap.New(core)}

	_ = l.Notify(context.Background(), downAlert())
	_ = l.Notify(context.Background(), Alert{Status: domain.MonitorStatus{ProjectID: "acme", SiteKey: "home", IsUp: true}, Recovered: true})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("want 2 log entries, got %d", len(entries))
	}
	if entries[0].Message != "monitor_down" || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("down entry: %+v", entries[0])
	}
	if entries[1].Message != "monitor_recovered" || entries[0].ContextMap()["monitor"] != "acme/home" {
		t.Fatalf("recovered entry: %+v", entries[1])
	}
}
