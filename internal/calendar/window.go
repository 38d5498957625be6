package calendar

import (
	"time"

	"github.com/jwalitptl/farm-calendar/internal/model"
)

// Window is the inclusive days-until-due range [0, Upper] in which a reminder may fire.
type Window struct {
	Upper int `json:"upper" mapstructure:"upper"`
}

func (w Window) Contains(daysUntil int) bool {
	return daysUntil >= 0 && daysUntil <= w.Upper
}

// Windows maps each kind to its notification window.
type Windows map[model.EventKind]Window

// DefaultWindows returns the standard windows: a week for one-off milestones,
// five days for pest control and three for watering.
func DefaultWindows() Windows {
	return Windows{
		model.KindPlanting:          {Upper: 7},
		model.KindFirstFertilizing:  {Upper: 7},
		model.KindSecondFertilizing: {Upper: 7},
		model.KindHarvest:           {Upper: 7},
		model.KindPestControl:       {Upper: 5},
		model.KindWatering:          {Upper: 3},
	}
}

// Reminder is an event selected for delivery in the current pass.
type Reminder struct {
	model.LifecycleEvent
	DaysUntil int `json:"days_until"`
}

// SelectDueEvents returns the events whose window contains now.
// Recurring kinds contribute at most their earliest eligible occurrence.
func SelectDueEvents(events []model.LifecycleEvent, now time.Time, windows Windows) []Reminder {
	return SelectUnnotified(events, now, windows, nil)
}

// SelectUnnotified is SelectDueEvents that also skips occurrences whose Key is in
// notified. For a recurring kind the earliest eligible occurrence not yet notified
// is taken, and scanning that kind stops there.
func SelectUnnotified(events []model.LifecycleEvent, now time.Time, windows Windows, notified map[string]struct{}) []Reminder {
	sorted := make([]model.LifecycleEvent, len(events))
	copy(sorted, events)
	SortEvents(sorted)

	picked := make(map[model.EventKind]bool)
	var out []Reminder

	for _, e := range sorted {
		if e.Kind.Recurring() && picked[e.Kind] {
			continue
		}
		w, ok := windows[e.Kind]
		if !ok {
			continue
		}
		days := DaysUntil(e.Due, now)
		if !w.Contains(days) {
			continue
		}
		if _, done := notified[e.Key()]; done {
			continue
		}
		out = append(out, Reminder{LifecycleEvent: e, DaysUntil: days})
		picked[e.Kind] = true
	}

	return out
}

// NotifiedSet indexes already delivered events by Key.
func NotifiedSet(events []model.LifecycleEvent) map[string]struct{} {
	set := make(map[string]struct{}, len(events))
	for _, e := range events {
		set[e.Key()] = struct{}{}
	}
	return set
}
