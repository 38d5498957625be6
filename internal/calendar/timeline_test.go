package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/farm-calendar/internal/model"
)

func TestBuildTimeline(t *testing.T) {
	planting := date(2024, time.January, 1)
	events, err := DeriveEvents(planting, crop("Maize", 120, 30))
	require.NoError(t, err)

	now := date(2024, time.January, 14)
	notified := NotifiedSet([]model.LifecycleEvent{{Kind: model.KindPlanting, Due: planting}})

	timeline := BuildTimeline(events, now, DefaultWindows(), notified)
	require.Len(t, timeline, len(events))

	first := timeline[0]
	assert.Equal(t, model.KindPlanting, first.Kind)
	assert.Equal(t, "2024-01-01", first.Due)
	assert.Equal(t, -13, first.DaysUntil)
	assert.True(t, first.Notified)
	assert.False(t, first.InWindow)

	second := timeline[1]
	assert.Equal(t, model.KindFirstFertilizing, second.Kind)
	assert.Equal(t, 1, second.DaysUntil)
	assert.Equal(t, 7, second.WindowUpper)
	assert.True(t, second.InWindow)
	assert.True(t, second.Selected)
	assert.False(t, second.Notified)

	last := timeline[len(timeline)-1]
	assert.Equal(t, model.KindHarvest, last.Kind)
	assert.Equal(t, "2024-04-30", last.Due)
	assert.False(t, last.Selected)
}
