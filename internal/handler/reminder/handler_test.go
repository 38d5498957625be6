package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reminderService "github.com/jwalitptl/farm-calendar/internal/service/reminder"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

type fakeRunner struct {
	mu      sync.Mutex
	err     error
	report  *reminderService.PassReport
	running bool
	trigger string
	ctxErr  error
}

func (f *fakeRunner) RunPass(ctx context.Context) (*reminderService.PassReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trigger = reminderService.TriggerFrom(ctx)
	f.ctxErr = ctx.Err()
	return f.report, f.err
}

func (f *fakeRunner) Running() bool { return f.running }

func (f *fakeRunner) LastReport() *reminderService.PassReport { return f.report }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setup(runner Runner, protect ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(runner, logger.Nop()).RegisterRoutes(r.Group("/api/v1"), protect...)
	return r
}

func TestRun_Throttled(t *testing.T) {
	runner := &fakeRunner{report: &reminderService.PassReport{PassDate: "2024-01-14"}}
	calls := 0
	throttle := func(c *gin.Context) {
		calls++
		if calls > 1 {
			c.AbortWithStatus(http.StatusTooManyRequests)
		}
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(runner, logger.Nop(), throttle).RegisterRoutes(r.Group("/api/v1"))

	w, _ := do(r, http.MethodPost, "/api/v1/reminders/run")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(r, http.MethodPost, "/api/v1/reminders/run")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	for i := 0; i < 3; i++ {
		w, _ = do(r, http.MethodGet, "/api/v1/reminders/status")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 2, calls)
}

func do(r *gin.Engine, method, path string) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body envelope
	json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRun_ReturnsReport(t *testing.T) {
	runner := &fakeRunner{report: &reminderService.PassReport{PassDate: "2024-01-14", Sent: 1, Due: 1}}
	r := setup(runner)

	w, body := do(r, http.MethodPost, "/api/v1/reminders/run")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)

	var report reminderService.PassReport
	require.NoError(t, json.Unmarshal(body.Data, &report))
	assert.Equal(t, "2024-01-14", report.PassDate)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, reminderService.TriggerManual, runner.trigger)
	assert.NoError(t, runner.ctxErr)
}

func TestRun_Conflict(t *testing.T) {
	r := setup(&fakeRunner{err: apperrors.PassInProgress()})

	w, body := do(r, http.MethodPost, "/api/v1/reminders/run")
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "reminder pass already in progress", body.Error.Message)
}

func TestRun_StoreFailure(t *testing.T) {
	r := setup(&fakeRunner{err: apperrors.StoreFailure("list active subscriptions", errors.New("timeout"))})

	w, _ := do(r, http.MethodPost, "/api/v1/reminders/run")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRun_Protected(t *testing.T) {
	runner := &fakeRunner{}
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	r := setup(runner, deny)

	w, _ := do(r, http.MethodPost, "/api/v1/reminders/run")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, runner.trigger)

	w, _ = do(r, http.MethodGet, "/api/v1/reminders/status")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatus(t *testing.T) {
	r := setup(&fakeRunner{running: true})

	w, body := do(r, http.MethodGet, "/api/v1/reminders/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"running":true}`, string(body.Data))
}
