package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/config"
	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/repo/memory"
)

func writeMonitors(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func baseConfig(t *testing.T, monitors string) config.Config {
	return config.Config{
		Addr:               "127.0.0.1:0",
		DatabaseDriver:     config.DriverMemory,
		DBMaxConns:         1,
		APIKeys:            []string{"0123456789abcdef0123"},
		MonitorsPath:       monitors,
		CachePath:          filepath.Join(t.TempDir(), "cache.json"),
		CacheFlushInterval: time.Minute,
		RetentionDays:      -1,
	}
}

func TestPreflight_Passes(t *testing.T) {
	cfg := baseConfig(t, writeMonitors(t, `{"defaults":{"interval_sec":60,"timeout_sec":5},
		"projects":[{"id":"acme","monitors":[{"site_key":"home","url":"https://acme.example"}]}]}`))

	var out, errOut bytes.Buffer
	if n := preflight(cfg, &out, &errOut); n != 0 {
		t.Fatalf("want pass, got %d failures: %s", n, errOut.String())
	}
	if !strings.Contains(out.String(), "1 monitors") || !strings.Contains(out.String(), "preflight passed") {
		t.Fatalf("unexpected output: %s", out.String())
	}
	if !strings.Contains(errOut.String(), "in memory only") {
		t.Fatalf("memory store should warn: %s", errOut.String())
	}
}

func TestPreflight_ReportsEveryProblem(t *testing.T) {
	cfg := baseConfig(t, writeMonitors(t, `{"defaults":{"interval_sec":60,"timeout_sec":5},
		"projects":[{"id":"acme","monitors":[
			{"site_key":"a","url":"ftp://nope"},
			{"site_key":"b","url":"https://ok.example","http_method":"GE T"}]}]}`))
	cfg.APIKeys = nil

	var out, errOut bytes.Buffer
	if n := preflight(cfg, &out, &errOut); n != 3 {
		t.Fatalf("want 3 failures, got %d: %s", n, errOut.String())
	}
	if strings.Contains(out.String(), "preflight passed") {
		t.Fatal("should not report pass")
	}
}

func TestPreflight_MissingMonitorsFile(t *testing.T) {
	cfg := baseConfig(t, filepath.Join(t.TempDir(), "missing.json"))
	var out, errOut bytes.Buffer
	if n := preflight(cfg, &out, &errOut); n != 1 {
		t.Fatalf("want 1 failure, got %d: %s", n, errOut.String())
	}
}

func TestPrintSchedule(t *testing.T) {
	specs := []domain.MonitorSpec{
		{ProjectID: "acme", SiteKey: "home", URL: "https://acme.example", HTTPMethod: "GET",
			Interval: 120 * time.Second, Timeout: 5 * time.Second, ExpectedStatusCode: 200},
		{ProjectID: "acme", SiteKey: "api", URL: "https://api.acme.example", HTTPMethod: "POST",
			Interval: 60 * time.Second, Timeout: 5 * time.Second, ExpectedStatusCode: 201, HasExpectedBody: true},
	}
	var buf bytes.Buffer
	printSchedule(&buf, specs)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header plus 2 rows, got %q", buf.String())
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[1]), "+0s") || !strings.HasSuffix(strings.TrimSpace(lines[2]), "+30s") {
		t.Fatalf("stagger not printed: %q", buf.String())
	}
	if !strings.Contains(lines[2], "201+body") {
		t.Fatalf("expected body marker missing: %q", lines[2])
	}
}

func TestOpenStore_Memory(t *testing.T) {
	st, err := openStore(context.Background(), config.Config{DatabaseDriver: config.DriverMemory}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*memory.Store); !ok {
		t.Fatalf("want memory store, got %T", st)
	}
	if _, err := openStore(context.Background(), config.Config{DatabaseDriver: "oracle"}, zap.NewNop()); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

func TestRetention_EnvOverridesFile(t *testing.T) {
	days := 30
	f := &config.File{RetentionDays: &days}
	if got := retention(config.Config{RetentionDays: -1}, f); got != 30*24*time.Hour {
		t.Fatalf("file retention: %v", got)
	}
	if got := retention(config.Config{RetentionDays: 0}, f); got != 0 {
		t.Fatalf("env 0 should disable: %v", got)
	}
	if got := retention(config.Config{RetentionDays: 7}, f); got != 7*24*time.Hour {
		t.Fatalf("env override: %v", got)
	}
}
