package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("pass: %w", DeliveryFailure("sms", errors.New("gateway 503")))

	assert.ErrorIs(t, err, ErrCodeDeliveryFailure)
	assert.NotErrorIs(t, err, ErrCodeStoreFailure)
	assert.EqualError(t, err, "pass: sms delivery failed: gateway 503")
}

func TestAppError_StatusCode(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NotFound("subscription", nil), http.StatusNotFound},
		{BadRequest("invalid subscription id", nil), http.StatusBadRequest},
		{InvalidCropProfile("growing period must be positive"), http.StatusBadRequest},
		{MissingContact("no phone"), http.StatusBadRequest},
		{PassInProgress(), http.StatusConflict},
		{DeliveryFailure("email", nil), http.StatusBadGateway},
		{StoreFailure("list", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Message, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode())
		})
	}
}
