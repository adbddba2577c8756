package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/domain"
)

func result(p, s string, up bool, at time.Time) domain.CheckResult {
	r := domain.CheckResult{ProjectID: p, SiteKey: s, URL: "https://" + s, IsUp: up, ResponseMS: 12, CheckedAt: at}
	if up {
		r.StatusCode = domain.IntPtr(200)
	} else {
		r.ErrorType = domain.ErrConnection.Ptr()
		r.ErrorMessage = domain.StringPtr("refused")
	}
	return r
}

func TestPutReplacesWholeEntry(t *testing.T) {
	c := New()
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	c.Put(result("p", "a", true, at))
	c.Put(result("p", "a", false, at.Add(time.Minute)))

	got, ok := c.Get(domain.Key{ProjectID: "p", SiteKey: "a"})
	if !ok || got.IsUp || got.StatusCode != nil || *got.ErrorType != domain.ErrConnection {
		t.Fatalf("entry not replaced wholesale: %+v", got)
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestSnapshotFiltersAndSorts(t *testing.T) {
	c := New()
	at := time.Now().UTC()
	c.Put(result("q", "z", true, at))
	c.Put(result("p", "b", true, at))
	c.Put(result("p", "a", true, at))

	all := c.Snapshot("")
	if len(all) != 3 || all[0].SiteKey != "a" || all[1].SiteKey != "b" || all[2].ProjectID != "q" {
		t.Fatalf("unexpected order: %+v", all)
	}
	if got := c.Snapshot("q"); len(got) != 1 || got[0].SiteKey != "z" {
		t.Fatalf("filter: %+v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	at := time.Date(2025, 2, 1, 12, 30, 0, 0, time.UTC)

	c := New()
	c.Put(result("p", "a", true, at))
	c.Put(result("p", "b", false, at))
	if err := c.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := Load(path, zap.NewNop())
	if loaded.Len() != 2 {
		t.Fatalf("loaded %d entries", loaded.Len())
	}
	b, _ := loaded.Get(domain.Key{ProjectID: "p", SiteKey: "b"})
	if b.IsUp || b.ErrorMessage == nil || *b.ErrorMessage != "refused" || !b.CheckedAt.Equal(at) {
		t.Fatalf("entry b lost fields: %+v", b)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	at := time.Date(2025, 2, 1, 12, 30, 0, 0, time.UTC)

	c := New()
	c.Put(result("p", "a", true, at))
	if err := c.Save(path); err != nil {
		t.Fatalf("first save: %v", err)
	}
	c.Put(result("p", "a", false, at.Add(time.Minute)))
	if err := c.Save(path); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if err := syncDir(dir); err != nil {
		t.Fatalf("sync dir: %v", err)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].IsUp {
		t.Fatalf("want the second snapshot, got %+v", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestLoadMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	if c := Load(filepath.Join(dir, "missing.json"), zap.NewNop()); c.Len() != 0 {
		t.Fatalf("missing file should give empty cache")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if c := Load(bad, zap.NewNop()); c.Len() != 0 {
		t.Fatalf("corrupt file should give empty cache")
	}

	_, err := ReadSnapshot(bad)
	var se *SnapshotError
	if !errors.As(err, &se) || se.Op != "load" {
		t.Fatalf("want SnapshotError, got %v", err)
	}
}

func TestSaveUnwritableDir(t *testing.T) {
	c := New()
	err := c.Save(filepath.Join(t.TempDir(), "no", "such", "dir", "cache.json"))
	var se *SnapshotError
	if !errors.As(err, &se) || se.Op != "save" {
		t.Fatalf("want save SnapshotError, got %v", err)
	}
}

func TestRunFlusherFinalFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.RunFlusher(ctx, path, time.Hour, zap.NewNop())
		close(done)
	}()

	c.Put(result("p", "a", true, time.Now().UTC()))
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flusher did not stop")
	}

	rs, err := ReadSnapshot(path)
	if err != nil || len(rs) != 1 {
		t.Fatalf("final flush missing: %v %+v", err, rs)
	}
}

func TestConcurrentPutAndSnapshot(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put(result("p", string(rune('a'+i)), j%2 == 0, time.Now().UTC()))
				_ = c.Snapshot("p")
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 8 {
		t.Fatalf("len = %d", c.Len())
	}
}
