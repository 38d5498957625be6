package model

import "time"

// EventKind identifies a lifecycle milestone.
type EventKind string

const (
	KindPlanting          EventKind = "planting"
	KindFirstFertilizing  EventKind = "first_fertilizing"
	KindSecondFertilizing EventKind = "second_fertilizing"
	KindWatering          EventKind = "watering"
	KindPestControl       EventKind = "pest_control"
	KindHarvest           EventKind = "harvest"
)

// Kinds lists every kind in lifecycle order.
var Kinds = []EventKind{
	KindPlanting,
	KindFirstFertilizing,
	KindSecondFertilizing,
	KindWatering,
	KindPestControl,
	KindHarvest,
}

// Recurring reports whether the kind produces several occurrences per planting.
func (k EventKind) Recurring() bool {
	return k == KindWatering || k == KindPestControl
}

// Order is the position of the kind in Kinds, used to break due-date ties.
func (k EventKind) Order() int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return len(Kinds)
}

func (k EventKind) Valid() bool {
	return k.Order() < len(Kinds)
}

// LifecycleEvent is derived from a subscription, never persisted as such.
// Due is a calendar date stored as midnight UTC.
type LifecycleEvent struct {
	Kind EventKind `json:"kind"`
	Due  time.Time `json:"due"`
}

// Key identifies one occurrence for dedup purposes.
func (e LifecycleEvent) Key() string {
	return string(e.Kind) + "@" + e.Due.Format("2006-01-02")
}
