package memory

import (
	"context"
	"time"

	"github.com/DukeRupert/podforge/internal/ratelimit"
)

// Admit implements ratelimit.Store.
func (s *Store) Admit(_ context.Context, key ratelimit.Key, rule ratelimit.Rule, now time.Time) (ratelimit.Window, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(); err != nil {
		return ratelimit.Window{}, false, err
	}

	w, exists := s.windows[key]
	if !exists || now.Sub(w.Start) >= rule.Period {
		w = &ratelimit.Window{Start: now, Count: 1}
		s.windows[key] = w
		return *w, true, nil
	}

	if w.Count < rule.Rate {
		w.Count++
		return *w, true, nil
	}

	return *w, false, nil
}

// PruneWindows removes windows that started before cutoff.
func (s *Store) PruneWindows(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, w := range s.windows {
		if w.Start.Before(cutoff) {
			delete(s.windows, key)
			n++
		}
	}
	return n, nil
}
