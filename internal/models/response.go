package models

import "fmt"

// Response is the success envelope returned by every endpoint.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Status  string       `json:"status"`
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Code    string       `json:"code,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// Pagination describes the page a paginated result belongs to.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
}

func Created(resource string) string { return fmt.Sprintf("%s created successfully", resource) }
func Updated(resource string) string { return fmt.Sprintf("%s updated successfully", resource) }
func Fetched(resource string) string { return fmt.Sprintf("%s fetched successfully", resource) }
func Deleted(resource string) string { return fmt.Sprintf("%s deleted successfully", resource) }

// Success builds a success envelope.
func Success(message string, data any) Response {
	return Response{Status: "success", Message: message, Data: data}
}
