package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/repo"
)

// Pruner deletes history older than Retention every Period.
type Pruner struct {
	Logger    *zap.Logger
	History   repo.HistoryStore
	Retention time.Duration
	Period    time.Duration
	Now       func() time.Time
}

func (p *Pruner) Run(ctx context.Context) {
	if p.Retention <= 0 || p.Period <= 0 {
		p.Logger.Info("pruner_disabled")
		return
	}
	t := time.NewTicker(p.Period)
	defer t.Stop()

	// immediate pass
	p.pruneOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("pruner_stopped")
			return
		case <-t.C:
			p.pruneOnce(ctx)
		}
	}
}

func (p *Pruner) pruneOnce(ctx context.Context) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff := now().UTC().Add(-p.Retention)
	n, err := p.History.PruneChecks(ctx, cutoff)
	if err != nil {
		p.Logger.Warn("pruner_failed", zap.Error(err))
		return
	}
	if n > 0 {
		p.Logger.Info("pruner_deleted", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	}
}
