package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError carrying the same code, so the
// sentinels below match any error built by the constructors.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StatusCode maps the error code to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrInvalidCropProfile, ErrMissingContact:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrPassInProgress:
		return http.StatusConflict
	case ErrDeliveryFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Reminder pipeline codes
const (
	ErrInvalidCropProfile ErrorCode = iota + 2000
	ErrMissingContact
	ErrDeliveryFailure
	ErrStoreFailure
	ErrPassInProgress
)

// Sentinels for errors.Is checks.
var (
	ErrCodeInvalidCropProfile = &AppError{Code: ErrInvalidCropProfile, Message: "invalid crop profile"}
	ErrCodeMissingContact     = &AppError{Code: ErrMissingContact, Message: "missing contact"}
	ErrCodeDeliveryFailure    = &AppError{Code: ErrDeliveryFailure, Message: "delivery failed"}
	ErrCodeStoreFailure       = &AppError{Code: ErrStoreFailure, Message: "store failure"}
	ErrCodePassInProgress     = &AppError{Code: ErrPassInProgress, Message: "reminder pass already in progress"}
	ErrCodeNotFound           = &AppError{Code: ErrNotFound, Message: "not found"}
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func InvalidCropProfile(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidCropProfile,
		Message: "invalid crop profile: " + message,
	}
}

func MissingContact(message string) *AppError {
	return &AppError{
		Code:    ErrMissingContact,
		Message: "missing contact: " + message,
	}
}

func DeliveryFailure(channel string, err error) *AppError {
	return &AppError{
		Code:    ErrDeliveryFailure,
		Message: fmt.Sprintf("%s delivery failed", channel),
		Err:     err,
	}
}

func StoreFailure(op string, err error) *AppError {
	return &AppError{
		Code:    ErrStoreFailure,
		Message: fmt.Sprintf("store %s failed", op),
		Err:     err,
	}
}

func PassInProgress() *AppError {
	return &AppError{
		Code:    ErrPassInProgress,
		Message: "reminder pass already in progress",
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}
