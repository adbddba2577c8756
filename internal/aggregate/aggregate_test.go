package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/repo"
	"github.com/hamed0406/upmon/internal/repo/memory"
)

func hourAt(day, hour int) time.Time {
	return time.Date(2025, 1, day, hour, 0, 0, 0, time.UTC)
}

func TestFoldHourly_Empty(t *testing.T) {
	got := FoldHourly(nil)
	if len(got) != 0 {
		t.Fatalf("want empty, got %+v", got)
	}
	b, _ := json.Marshal(got)
	if string(b) != "{}" {
		t.Fatalf("empty summary encodes as %s", b)
	}
}

func TestFoldHourly_SingleDay(t *testing.T) {
	got := FoldHourly([]domain.HourBucket{
		{ProjectID: "p", SiteKey: "a", Hour: hourAt(15, 0), AllUp: true},
		{ProjectID: "p", SiteKey: "a", Hour: hourAt(15, 1), AllUp: false},
		{ProjectID: "p", SiteKey: "a", Hour: hourAt(15, 5), AllUp: true},
	})
	days := got["p"]["a"]
	if len(days) != 1 {
		t.Fatalf("want 1 day, got %d", len(days))
	}
	c := days[0].Checks
	if c[0] != domain.SlotUp || c[1] != domain.SlotDown || c[2] != domain.SlotNoData || c[5] != domain.SlotUp {
		t.Fatalf("slots wrong: %v", c)
	}
	if days[0].Day.Format(domain.DayLayout) != "2025-01-15" {
		t.Fatalf("day = %v", days[0].Day)
	}
}

func TestFoldHourly_MultipleProjects(t *testing.T) {
	got := FoldHourly([]domain.HourBucket{
		{ProjectID: "p", SiteKey: "a", Hour: hourAt(15, 3), AllUp: true},
		{ProjectID: "p", SiteKey: "b", Hour: hourAt(15, 3), AllUp: false},
		{ProjectID: "q", SiteKey: "a", Hour: hourAt(15, 3), AllUp: true},
	})
	if len(got) != 2 || len(got["p"]) != 2 || len(got["q"]) != 1 {
		t.Fatalf("unexpected shape: %+v", got)
	}
	if got["p"]["b"][0].Checks[3] != domain.SlotDown {
		t.Fatalf("p/b slot 3 should be down")
	}
}

func TestFoldHourly_MidnightStartsNewDay(t *testing.T) {
	got := FoldHourly([]domain.HourBucket{
		{ProjectID: "p", SiteKey: "a", Hour: hourAt(15, 23), AllUp: true},
		{ProjectID: "p", SiteKey: "a", Hour: hourAt(16, 0), AllUp: false},
	})
	days := got["p"]["a"]
	if len(days) != 2 {
		t.Fatalf("want 2 days, got %d", len(days))
	}
	if days[0].Checks[23] != domain.SlotUp || days[1].Checks[0] != domain.SlotDown {
		t.Fatalf("slots wrong: %v / %v", days[0].Checks, days[1].Checks)
	}
}

func TestClampDays(t *testing.T) {
	cases := map[int]int{0: 7, -3: 1, 1: 1, 30: 30, 90: 90, 365: 90}
	for in, want := range cases {
		if got := ClampDays(in); got != want {
			t.Errorf("ClampDays(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestEngine_DailyAndWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	for _, r := range []domain.CheckResult{
		{ProjectID: "p", SiteKey: "a", IsUp: true, CheckedAt: now.Add(-2 * time.Hour)},
		{ProjectID: "p", SiteKey: "a", IsUp: true, CheckedAt: now.Add(-90 * time.Minute)},
		{ProjectID: "p", SiteKey: "a", IsUp: false, CheckedAt: now.Add(-time.Hour)},
		{ProjectID: "p", SiteKey: "a", IsUp: true, CheckedAt: now.Add(-3 * 24 * time.Hour)},
	} {
		_ = store.InsertCheck(ctx, r)
	}
	e := &Engine{Store: store, Now: func() time.Time { return now }}

	daily, err := e.Daily(ctx, Query{ProjectID: "p", Days: 1})
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(daily) != 1 || daily[0].TotalChecks != 3 || daily[0].UpChecks != 2 || daily[0].Day != "2025-01-20" {
		t.Fatalf("daily wrong: %+v", daily)
	}
	if math.Abs(daily[0].UptimePct-66.667) > 0.01 {
		t.Fatalf("uptime = %v", daily[0].UptimePct)
	}

	wide, _ := e.Daily(ctx, Query{Days: 7})
	if len(wide) != 2 {
		t.Fatalf("7-day window should include the older day: %+v", wide)
	}

	hourly, err := e.Hourly(ctx, Query{Days: 1})
	if err != nil {
		t.Fatalf("hourly: %v", err)
	}
	c := hourly["p"]["a"][0].Checks
	if c[10] != domain.SlotUp || c[11] != domain.SlotDown || c[12] != domain.SlotNoData {
		t.Fatalf("hourly slots: %v", c)
	}
}

type brokenHistory struct{ repo.HistoryStore }

func (brokenHistory) HourlyBuckets(ctx context.Context, p string, since time.Time) ([]domain.HourBucket, error) {
	return nil, errors.New("db down")
}

func TestEngine_PropagatesStoreErrors(t *testing.T) {
	e := &Engine{Store: brokenHistory{}}
	if _, err := e.Hourly(context.Background(), Query{}); err == nil {
		t.Fatal("expected error")
	}
}
