// Package apierrors renders errors as the API's JSON error envelope.
package apierrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/ngoconnect/apiserver/internal/services"
)

// APIError represents a structured API error.
type APIError struct {
	Success    bool   `json:"success"`
	Message    string `json:"error"`
	Code       string `json:"code"`
	StatusCode int    `json:"-"`
	RequestID  string `json:"requestId,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Write writes the error response.
func (e *APIError) Write(w http.ResponseWriter, r *http.Request) {
	out := *e
	out.Success = false
	out.RequestID = middleware.GetReqID(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(out.StatusCode)
	_ = json.NewEncoder(w).Encode(out)
}

func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method not allowed",
		StatusCode: http.StatusMethodNotAllowed,
	}
}

func NewRateLimitError() *APIError {
	return &APIError{
		Code:       "TOO_MANY_REQUESTS",
		Message:    "Too many requests, please try again later",
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewInternalError() *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
}

// ErrNotAuthorized is the single response for every rejected bearer token.
var ErrNotAuthorized = NewUnauthorizedError("Not authorized to access this route")

// FromError converts err to an APIError. Errors that carry no client-safe
// classification become a generic 500; the caller is expected to log them.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		switch svcErr.Kind {
		case services.KindValidation:
			return NewBadRequestError(svcErr.Message)
		case services.KindAuthentication:
			return NewUnauthorizedError(svcErr.Message)
		case services.KindNotFound:
			return NewNotFoundError(svcErr.Message)
		}
	}

	return NewInternalError()
}

// IsInternal reports whether err would be rendered as a 500.
func IsInternal(err error) bool {
	return FromError(err).StatusCode >= http.StatusInternalServerError
}
