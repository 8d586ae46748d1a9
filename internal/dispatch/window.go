package dispatch

import "time"

// window is a sliding-window counter. Not goroutine-safe; callers hold the
// dispatcher lock or own the window exclusively.
type window struct {
	limit  int
	span   time.Duration
	stamps []time.Time
}

func newWindow(limit int, span time.Duration) *window {
	return &window{limit: limit, span: span}
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Allow consumes one credit when available.
func (w *window) Allow(now time.Time) bool {
	if w.limit <= 0 {
		return true
	}
	w.prune(now)
	if len(w.stamps) >= w.limit {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// NextCredit reports how long until a credit frees up; zero when one is
// available now.
func (w *window) NextCredit(now time.Time) time.Duration {
	if w.limit <= 0 {
		return 0
	}
	w.prune(now)
	if len(w.stamps) < w.limit {
		return 0
	}
	return w.stamps[0].Add(w.span).Sub(now)
}
