package ratelimit

import (
	"context"
	"time"
)

// DefaultPruneInterval is how often expired windows are removed.
const DefaultPruneInterval = 30 * time.Minute

// Pruner deletes windows that started before cutoff.
type Pruner interface {
	PruneWindows(ctx context.Context, cutoff time.Time) (int64, error)
}

// maxPeriod returns the longest configured window.
func (l *Limiter) maxPeriod() time.Duration {
	longest := DefaultRule.Period
	for _, r := range l.rules {
		if r.Period > longest {
			longest = r.Period
		}
	}
	return longest
}

// Prune removes windows that can no longer affect an admission.
func (l *Limiter) Prune(ctx context.Context, p Pruner) (int64, error) {
	cutoff := l.now().Add(-l.maxPeriod())
	n, err := p.PruneWindows(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.Debug("pruned rate limit windows", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// RunPruner prunes every interval until ctx is cancelled.
func (l *Limiter) RunPruner(ctx context.Context, p Pruner, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Prune(ctx, p); err != nil {
				l.logger.Error("failed to prune rate limit windows", "error", err)
			}
		}
	}
}
