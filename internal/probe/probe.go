package probe

import (
	"context"

	"github.com/hamed0406/upmon/internal/domain"
)

// Checker performs exactly one probe of a monitor. Implementations never
// return an error: every outcome is encoded in the CheckResult.
type Checker interface {
	Check(ctx context.Context, m domain.MonitorSpec) domain.CheckResult
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, m domain.MonitorSpec) domain.CheckResult

func (f CheckerFunc) Check(ctx context.Context, m domain.MonitorSpec) domain.CheckResult {
	return f(ctx, m)
}
