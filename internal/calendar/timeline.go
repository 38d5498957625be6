package calendar

import (
	"time"

	"github.com/jwalitptl/farm-calendar/internal/model"
)

// TimelineEntry is one derived event annotated with its state relative to now.
type TimelineEntry struct {
	Kind        model.EventKind `json:"kind"`
	Due         string          `json:"due"`
	DaysUntil   int             `json:"days_until"`
	WindowUpper int             `json:"window_upper"`
	InWindow    bool            `json:"in_window"`
	Notified    bool            `json:"notified"`
	// Selected marks the events the next pass would remind about.
	Selected bool `json:"selected"`
}

// BuildTimeline annotates every event with window and notification state.
func BuildTimeline(events []model.LifecycleEvent, now time.Time, windows Windows, notified map[string]struct{}) []TimelineEntry {
	selected := make(map[string]bool)
	for _, r := range SelectUnnotified(events, now, windows, notified) {
		selected[r.Key()] = true
	}

	sorted := make([]model.LifecycleEvent, len(events))
	copy(sorted, events)
	SortEvents(sorted)

	out := make([]TimelineEntry, 0, len(sorted))
	for _, e := range sorted {
		days := DaysUntil(e.Due, now)
		w, hasWindow := windows[e.Kind]
		_, done := notified[e.Key()]
		out = append(out, TimelineEntry{
			Kind:        e.Kind,
			Due:         e.Due.Format(DateLayout),
			DaysUntil:   days,
			WindowUpper: w.Upper,
			InWindow:    hasWindow && w.Contains(days),
			Notified:    done,
			Selected:    selected[e.Key()],
		})
	}
	return out
}
