package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/probe"
	"github.com/hamed0406/upmon/internal/repo/memory"
)

// --- fakes ---

type recordingSink struct {
	mu   sync.Mutex
	seen map[string]int
}

func (r *recordingSink) Record(ctx context.Context, res domain.CheckResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = map[string]int{}
	}
	r.seen[res.SiteKey]++
	return nil
}

func (r *recordingSink) count(site string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[site]
}

func monitor(site string, interval time.Duration) domain.MonitorSpec {
	return domain.MonitorSpec{ProjectID: "p", SiteKey: site, URL: "https://" + site, Interval: interval,
		Timeout: time.Second, ExpectedStatusCode: 200, HTTPMethod: "GET"}
}

// --- tests ---

func TestStaggerDelays(t *testing.T) {
	if got := StaggerDelays(nil); len(got) != 0 {
		t.Fatalf("empty input: %v", got)
	}

	got := StaggerDelays([]domain.MonitorSpec{monitor("a", 120*time.Second)})
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("single monitor: %v", got)
	}

	got = StaggerDelays([]domain.MonitorSpec{monitor("a", 120*time.Second), monitor("b", 120*time.Second)})
	if got[0] != 0 || got[1] != 60*time.Second {
		t.Fatalf("two monitors: %v", got)
	}

	got = StaggerDelays([]domain.MonitorSpec{
		monitor("a", 300*time.Second), monitor("b", 60*time.Second), monitor("c", 120*time.Second),
	})
	want := []time.Duration{0, 20 * time.Second, 40 * time.Second}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("three monitors: got %v want %v", got, want)
		}
	}

	got = StaggerDelays([]domain.MonitorSpec{monitor("a", 0), monitor("b", 0)})
	if got[1] != 60*time.Second {
		t.Fatalf("fallback interval: %v", got)
	}
}

func TestScheduler_SlowMonitorDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	chk := probe.CheckerFunc(func(ctx context.Context, m domain.MonitorSpec) domain.CheckResult {
		if m.SiteKey == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return domain.CheckResult{ProjectID: m.ProjectID, SiteKey: m.SiteKey, IsUp: true, CheckedAt: time.Now().UTC()}
	})
	sink := &recordingSink{}
	s := &Scheduler{
		Logger:   zap.NewNop(),
		Checker:  chk,
		Sink:     sink,
		Monitors: []domain.MonitorSpec{monitor("slow", 10*time.Millisecond), monitor("fast", 10*time.Millisecond)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count("fast") < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := sink.count("fast"); n < 3 {
		t.Fatalf("fast monitor starved: %d probes", n)
	}
	if n := sink.count("slow"); n != 0 {
		t.Fatalf("slow monitor should still be blocked, recorded %d", n)
	}

	cancel()
	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScheduler_DropsResultAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chk := probe.CheckerFunc(func(_ context.Context, m domain.MonitorSpec) domain.CheckResult {
		cancel()
		return domain.CheckResult{ProjectID: m.ProjectID, SiteKey: m.SiteKey}
	})
	sink := &recordingSink{}
	s := &Scheduler{Logger: zap.NewNop(), Checker: chk, Sink: sink, Monitors: []domain.MonitorSpec{monitor("a", time.Hour)}}

	s.Run(ctx)
	if n := sink.count("a"); n != 0 {
		t.Fatalf("result recorded after shutdown: %d", n)
	}
}

func TestScheduler_NoMonitorsReturns(t *testing.T) {
	s := &Scheduler{Logger: zap.NewNop(), Sink: &recordingSink{}}
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with no monitors should return")
	}
}

func TestPruner_DeletesOldRows(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	_ = store.InsertCheck(ctx, domain.CheckResult{ProjectID: "p", SiteKey: "a", CheckedAt: now.Add(-100 * 24 * time.Hour)})
	_ = store.InsertCheck(ctx, domain.CheckResult{ProjectID: "p", SiteKey: "a", CheckedAt: now.Add(-time.Hour)})

	p := &Pruner{Logger: zap.NewNop(), History: store, Retention: 90 * 24 * time.Hour, Period: time.Hour,
		Now: func() time.Time { return now }}
	p.pruneOnce(ctx)

	days, _ := store.DailyBuckets(ctx, "", time.Time{})
	if len(days) != 1 || days[0].Total != 1 {
		t.Fatalf("old row should be pruned: %+v", days)
	}
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	p := &Pruner{Logger: zap.NewNop(), History: memory.New()}
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled pruner should return")
	}
}
