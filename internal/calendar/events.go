package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/jwalitptl/farm-calendar/internal/model"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
)

const (
	FirstFertilizingOffsetDays = 14
	PestControlIntervalDays    = 30
)

// DeriveEvents computes the lifecycle timeline of a planting. It is deterministic
// and never reads the clock.
//
// Harvest is fixed first and bounds every other event: recurring occurrences stop
// strictly before it, and a fertilizing date that would not land strictly between
// planting and harvest is dropped.
func DeriveEvents(plantingDate time.Time, crop model.CropProfile) ([]model.LifecycleEvent, error) {
	if crop.GrowingPeriodDays <= 0 {
		return nil, apperrors.InvalidCropProfile(fmt.Sprintf("%q growing period must be positive, got %d", crop.Name, crop.GrowingPeriodDays))
	}
	if crop.WateringIntervalDays <= 0 {
		return nil, apperrors.InvalidCropProfile(fmt.Sprintf("%q watering interval must be positive, got %d", crop.Name, crop.WateringIntervalDays))
	}

	planting := Day(plantingDate)
	harvest := AddDays(planting, crop.GrowingPeriodDays)

	events := []model.LifecycleEvent{{Kind: model.KindPlanting, Due: planting}}

	between := func(d time.Time) bool {
		return d.After(planting) && d.Before(harvest)
	}
	if d := AddDays(planting, FirstFertilizingOffsetDays); between(d) {
		events = append(events, model.LifecycleEvent{Kind: model.KindFirstFertilizing, Due: d})
	}
	if d := AddDays(planting, crop.GrowingPeriodDays/2); between(d) {
		events = append(events, model.LifecycleEvent{Kind: model.KindSecondFertilizing, Due: d})
	}

	events = append(events, recurring(model.KindWatering, planting, harvest, crop.WateringIntervalDays)...)
	events = append(events, recurring(model.KindPestControl, planting, harvest, PestControlIntervalDays)...)
	events = append(events, model.LifecycleEvent{Kind: model.KindHarvest, Due: harvest})

	SortEvents(events)
	return events, nil
}

// recurring yields planting+every, planting+2*every, ... strictly before harvest.
func recurring(kind model.EventKind, planting, harvest time.Time, every int) []model.LifecycleEvent {
	var out []model.LifecycleEvent
	for offset := every; ; offset += every {
		d := AddDays(planting, offset)
		if !d.Before(harvest) {
			break
		}
		out = append(out, model.LifecycleEvent{Kind: kind, Due: d})
	}
	return out
}

// SortEvents orders events by due date, then by lifecycle kind order.
func SortEvents(events []model.LifecycleEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Due.Equal(events[j].Due) {
			return events[i].Due.Before(events[j].Due)
		}
		return events[i].Kind.Order() < events[j].Kind.Order()
	})
}

// HarvestDate returns the harvest event of a derived timeline.
func HarvestDate(events []model.LifecycleEvent) (time.Time, bool) {
	for _, e := range events {
		if e.Kind == model.KindHarvest {
			return e.Due, true
		}
	}
	return time.Time{}, false
}
