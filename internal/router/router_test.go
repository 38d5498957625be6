package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/farm-calendar/internal/calendar"
	"github.com/jwalitptl/farm-calendar/internal/handler/health"
	reminderHandler "github.com/jwalitptl/farm-calendar/internal/handler/reminder"
	subscriptionHandler "github.com/jwalitptl/farm-calendar/internal/handler/subscription"
	"github.com/jwalitptl/farm-calendar/internal/middleware"
	"github.com/jwalitptl/farm-calendar/internal/model"
	reminderService "github.com/jwalitptl/farm-calendar/internal/service/reminder"
	"github.com/jwalitptl/farm-calendar/pkg/auth"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

type subscriptions struct{}

func (subscriptions) Get(_ context.Context, id uuid.UUID) (*model.Subscription, error) {
	return &model.Subscription{
		Base:         model.Base{ID: id},
		PlantingDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Active:       true,
		Crop:         model.CropProfile{Name: "Maize", GrowingPeriodDays: 120},
	}, nil
}

func (subscriptions) Deactivate(context.Context, uuid.UUID) error { return nil }

func (subscriptions) Timeline(*model.Subscription) ([]calendar.TimelineEntry, error) {
	return nil, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type runner struct{ runs int }

func (r *runner) RunPass(context.Context) (*reminderService.PassReport, error) {
	r.runs++
	return &reminderService.PassReport{PassDate: "2024-01-14"}, nil
}

func (r *runner) Running() bool { return false }

func (r *runner) LastReport() *reminderService.PassReport { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *runner, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtSvc := auth.NewJWTService("router-secret", "farm-calendar")
	token, err := jwtSvc.GenerateAccessToken("ops", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	run := &runner{}
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: rate.Every(time.Minute), Burst: 1})
	subs := subscriptions{}
	r := NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		health.NewHandler(okPinger{}),
		logger.Nop(),
		RouterConfig{
			Registerer: reg,
			Gatherer:   reg,
		},
		reminderHandler.NewHandler(run, logger.Nop(), limiter.RateLimit()),
		subscriptionHandler.NewHandler(subs, subs),
	)
	r.Setup()
	return r.Engine(), run, token
}

func TestRouter_Routes(t *testing.T) {
	engine, run, token := newTestRouter(t)

	call := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/health/ready", "").Code)

	w := call(http.MethodGet, "/api/v1/reminders/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))

	assert.Equal(t, http.StatusUnauthorized, call(http.MethodPost, "/api/v1/reminders/run", "").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodPost, "/api/v1/reminders/run", token).Code)
	assert.Equal(t, http.StatusTooManyRequests, call(http.MethodPost, "/api/v1/reminders/run", token).Code)
	assert.Equal(t, 1, run.runs)

	calendarPath := "/api/v1/subscriptions/" + uuid.NewString() + "/calendar"
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, calendarPath, "").Code)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, call(http.MethodGet, calendarPath, token).Code)
	}

	metrics := call(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `farm_calendar_http_requests_total{method="GET",path="/health/live",status="200"} 1`)
}
