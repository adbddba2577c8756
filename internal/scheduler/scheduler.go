package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/probe"
)

// fallbackStaggerInterval spreads start times when no monitor has a usable
// interval.
const fallbackStaggerInterval = 120 * time.Second

// Sink receives every result a loop produces.
type Sink interface {
	Record(ctx context.Context, r domain.CheckResult) error
}

// StaggerDelays spreads first probes of n monitors evenly across the
// shortest configured interval: delay_i = i * min/n.
func StaggerDelays(specs []domain.MonitorSpec) []time.Duration {
	n := len(specs)
	if n == 0 {
		return nil
	}
	var minInterval time.Duration
	for _, s := range specs {
		if s.Interval > 0 && (minInterval == 0 || s.Interval < minInterval) {
			minInterval = s.Interval
		}
	}
	if minInterval == 0 {
		minInterval = fallbackStaggerInterval
	}
	var step time.Duration
	if n > 1 {
		step = minInterval / time.Duration(n)
	}
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = step * time.Duration(i)
	}
	return out
}

// Scheduler runs one independent probe loop per monitor.
type Scheduler struct {
	Logger         *zap.Logger
	Checker        probe.Checker
	Sink           Sink
	Monitors       []domain.MonitorSpec
	DNSDiagnostics bool
}

// Run blocks until ctx is cancelled and every loop has exited.
func (s *Scheduler) Run(ctx context.Context) {
	delays := StaggerDelays(s.Monitors)
	var wg sync.WaitGroup
	for i, m := range s.Monitors {
		wg.Add(1)
		go func(m domain.MonitorSpec, delay time.Duration) {
			defer wg.Done()
			s.loop(ctx, m, delay)
		}(m, delays[i])
	}
	s.Logger.Info("scheduler_started", zap.Int("monitors", len(s.Monitors)))
	wg.Wait()
	s.Logger.Info("scheduler_stopped")
}

func (s *Scheduler) loop(ctx context.Context, m domain.MonitorSpec, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	t := time.NewTicker(m.Interval)
	defer t.Stop()

	// immediate probe, then one per tick; a tick missed while probing is dropped
	for {
		s.probeOnce(ctx, m)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Scheduler) probeOnce(ctx context.Context, m domain.MonitorSpec) {
	r := s.Checker.Check(ctx, m)
	if ctx.Err() != nil {
		return
	}

	fields := []zap.Field{
		zap.String("project_id", m.ProjectID),
		zap.String("site_key", m.SiteKey),
		zap.Bool("up", r.IsUp),
		zap.Int("response_ms", r.ResponseMS),
	}
	if r.StatusCode != nil {
		fields = append(fields, zap.Int("status", *r.StatusCode))
	}
	if r.ErrorType != nil {
		fields = append(fields, zap.String("error_type", r.ErrorType.String()))
		s.Logger.Warn("monitor_check_failed", fields...)
	} else {
		s.Logger.Debug("monitor_checked", fields...)
	}

	if s.DNSDiagnostics && r.ErrorType != nil && *r.ErrorType == domain.ErrConnection {
		dns := probe.CheckDNS(ctx, probe.ExtractHost(m.URL))
		s.Logger.Info("dns_check",
			zap.String("project_id", m.ProjectID),
			zap.String("site_key", m.SiteKey),
			zap.String("domain", dns.Domain),
			zap.String("class", string(dns.Class)),
			zap.Bool("has_address", dns.HasAddress()),
			zap.Strings("nameservers", dns.Nameservers),
			zap.String("cname", dns.CNAME),
			zap.String("resolver_error", dns.ResolverError),
		)
	}

	if err := s.Sink.Record(ctx, r); err != nil {
		s.Logger.Warn("monitor_record_failed",
			zap.String("project_id", m.ProjectID),
			zap.String("site_key", m.SiteKey),
			zap.Error(err),
		)
	}
}
