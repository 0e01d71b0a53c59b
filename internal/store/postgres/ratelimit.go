package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/podforge/internal/ratelimit"
	"github.com/DukeRupert/podforge/internal/repository"
)

// Admit implements ratelimit.Store with a single upsert; the row lock taken by
// ON CONFLICT makes read-and-increment atomic per key.
func (s *Store) Admit(ctx context.Context, key ratelimit.Key, rule ratelimit.Rule, now time.Time) (ratelimit.Window, bool, error) {
	row, err := s.queries.AdmitRateLimit(ctx, repository.AdmitRateLimitParams{
		ActionKind: string(key.Kind),
		SubjectKey: key.Subject,
		Now:        now,
		Cutoff:     now.Add(-rule.Period),
		Rate:       int32(rule.Rate),
	})
	if err == nil {
		return ratelimit.Window{Start: row.WindowStart, Count: int(row.Count)}, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ratelimit.Window{}, false, fmt.Errorf("admit rate limit: %w", err)
	}

	// Denied: the conflicting row was left untouched.
	w, err := s.queries.GetRateLimitWindow(ctx, repository.GetRateLimitWindowParams{
		ActionKind: string(key.Kind),
		SubjectKey: key.Subject,
	})
	if err != nil {
		return ratelimit.Window{}, false, fmt.Errorf("get rate limit window: %w", err)
	}
	return ratelimit.Window{Start: w.WindowStart, Count: int(w.Count)}, false, nil
}

// PruneWindows deletes windows that started before cutoff.
func (s *Store) PruneWindows(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.queries.DeleteExpiredRateLimitWindows(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune rate limit windows: %w", err)
	}
	return n, nil
}
