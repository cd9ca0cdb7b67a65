package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeDataAccess         = "DATA_ACCESS_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// FieldError is a single per-field validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Status  int
	Fields  []FieldError
	Err     error
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

// Is matches AppErrors by code so sentinel comparisons survive wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ErrDataAccess is returned for any store failure. The cause is logged, never exposed.
var ErrDataAccess = &AppError{
	Code:    CodeDataAccess,
	Message: "An error occurred while accessing data",
	Status:  http.StatusInternalServerError,
}

// NewDataAccessError wraps a store failure without exposing it in the message.
func NewDataAccessError(err error) *AppError {
	return &AppError{
		Code:    CodeDataAccess,
		Message: ErrDataAccess.Message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// NewNotFoundError builds a 404 for the named resource, e.g. "post not found".
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func NewValidationError(message string, fields ...FieldError) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Fields:  fields,
	}
}

func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewConflictError reports a duplicate of a unique resource, e.g. "user already exists".
func NewConflictError(resource string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: fmt.Sprintf("%s already exists", resource),
		Status:  http.StatusConflict,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// NewUnprocessableError is used where the request is well-formed but cannot be honored,
// e.g. credentials that do not match.
func NewUnprocessableError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusUnprocessableEntity,
	}
}

func NewServiceUnavailableError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeServiceUnavailable,
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

func NewRateLimitError() *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: "rate limit exceeded",
		Status:  http.StatusTooManyRequests,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// StatusOf maps an error to the HTTP status it should be rendered with.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return http.StatusInternalServerError
}

// RespondWithError writes the standard error envelope. Internal causes are never included.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	response := ErrorResponse{
		Status:  "error",
		Success: false,
		Message: "Internal server error",
	}

	var appErr *AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		response.Message = appErr.Message
		response.Code = appErr.Code
		response.Errors = appErr.Fields
	case errors.As(err, &fiberErr):
		response.Message = fiberErr.Message
	case status < http.StatusInternalServerError:
		response.Message = err.Error()
	}

	return c.Status(status).JSON(response)
}
