package subscription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/farm-calendar/internal/calendar"
	"github.com/jwalitptl/farm-calendar/internal/model"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
)

type fakeRepo struct {
	subs        map[uuid.UUID]*model.Subscription
	deactivated []uuid.UUID
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (*model.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, apperrors.NotFound("subscription", nil)
	}
	return sub, nil
}

func (f *fakeRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	sub, ok := f.subs[id]
	if !ok {
		return apperrors.NotFound("subscription", nil)
	}
	sub.Active = false
	f.deactivated = append(f.deactivated, id)
	return nil
}

type planner struct{ now time.Time }

func (p planner) Timeline(sub *model.Subscription) ([]calendar.TimelineEntry, error) {
	events, err := calendar.DeriveEvents(sub.PlantingDate, sub.Crop)
	if err != nil {
		return nil, err
	}
	return calendar.BuildTimeline(events, p.now, calendar.DefaultWindows(), calendar.NotifiedSet(sub.Notified)), nil
}

func setup(t *testing.T, protect ...gin.HandlerFunc) (*gin.Engine, *fakeRepo, *model.Subscription) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sub := &model.Subscription{
		Base:         model.Base{ID: uuid.New()},
		PlantingDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Active:       true,
		Farmer:       model.Farmer{Name: "Ama", Phone: "+233201234567"},
		Crop:         model.CropProfile{Name: "Maize", GrowingPeriodDays: 120, WateringIntervalDays: 30},
	}
	broken := &model.Subscription{
		Base:         model.Base{ID: uuid.New()},
		PlantingDate: sub.PlantingDate,
		Active:       true,
		Crop:         model.CropProfile{Name: "Mystery"},
	}
	repo := &fakeRepo{subs: map[uuid.UUID]*model.Subscription{sub.ID: sub, broken.ID: broken}}

	r := gin.New()
	p := planner{now: time.Date(2024, time.January, 14, 8, 0, 0, 0, time.UTC)}
	NewHandler(repo, p).RegisterRoutes(r.Group("/api/v1"), protect...)
	return r, repo, sub
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestCalendar(t *testing.T) {
	r, _, sub := setup(t)

	w := do(r, http.MethodGet, "/api/v1/subscriptions/"+sub.ID.String()+"/calendar")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data calendarResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Maize", body.Data.Crop)
	assert.Equal(t, "2024-01-01", body.Data.PlantingDate)
	require.NotEmpty(t, body.Data.Events)

	var selected []calendar.TimelineEntry
	for _, e := range body.Data.Events {
		if e.Selected {
			selected = append(selected, e)
		}
	}
	require.Len(t, selected, 1)
	assert.Equal(t, model.KindFirstFertilizing, selected[0].Kind)
	assert.Equal(t, "2024-01-15", selected[0].Due)
	assert.Equal(t, 1, selected[0].DaysUntil)
}

func TestCalendar_Errors(t *testing.T) {
	r, repo, _ := setup(t)

	var brokenID uuid.UUID
	for id, s := range repo.subs {
		if s.Crop.Name == "Mystery" {
			brokenID = id
		}
	}

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"bad id", "/api/v1/subscriptions/not-a-uuid/calendar", http.StatusBadRequest},
		{"unknown", "/api/v1/subscriptions/" + uuid.NewString() + "/calendar", http.StatusNotFound},
		{"invalid crop profile", "/api/v1/subscriptions/" + brokenID.String() + "/calendar", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, do(r, http.MethodGet, tt.path).Code)
		})
	}
}

func TestDeactivate(t *testing.T) {
	r, repo, sub := setup(t)

	w := do(r, http.MethodPost, "/api/v1/subscriptions/"+sub.ID.String()+"/deactivate")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, sub.Active)
	assert.Equal(t, []uuid.UUID{sub.ID}, repo.deactivated)

	w = do(r, http.MethodPost, "/api/v1/subscriptions/"+uuid.NewString()+"/deactivate")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutesRequireProtect(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	r, repo, sub := setup(t, deny)

	w := do(r, http.MethodGet, "/api/v1/subscriptions/"+sub.ID.String()+"/calendar")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), sub.Farmer.Phone)

	w = do(r, http.MethodPost, "/api/v1/subscriptions/"+sub.ID.String()+"/deactivate")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, sub.Active)
	assert.Empty(t, repo.deactivated)
}
