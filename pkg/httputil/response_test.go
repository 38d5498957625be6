package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(err error) (*httptest.ResponseRecorder, Response) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "rid-1")
	RespondWithError(c, err)

	var body Response
	json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", apperrors.NotFound("subscription", nil), http.StatusNotFound, "subscription not found"},
		{"in progress", apperrors.PassInProgress(), http.StatusConflict, "reminder pass already in progress"},
		{"wrapped", apperrors.BadRequest("invalid subscription id", errors.New("bad uuid")), http.StatusBadRequest, "invalid subscription id"},
		{"store failure hides detail", apperrors.StoreFailure("list", errors.New("password in dsn")), http.StatusInternalServerError, "Internal server error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := respond(tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.status, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
			assert.Equal(t, "rid-1", body.Error.TraceID)
		})
	}
}

func TestRespondWithSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondWithSuccess(c, gin.H{"ok": true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"ok":true}}`, w.Body.String())
}
