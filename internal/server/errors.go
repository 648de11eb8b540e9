package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/validation"
)

// APIError is the JSON body of every failed API request.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

func newAPIError(status int, code, message string, details interface{}) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message, Details: details}
}

// Error codes.
const (
	CodeSchemaInvalid  = "SCHEMA_INVALID"
	CodeMissingFile    = "MISSING_FILE"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidFormat  = "INVALID_FORMAT"
	CodeTooLarge       = "UPLOAD_TOO_LARGE"
	CodeUnreadable     = "INPUT_UNREADABLE"
	CodeCanceled       = "REQUEST_CANCELED"
	CodeInternal       = "INTERNAL_SERVER_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeNotAllowed     = "METHOD_NOT_ALLOWED"
)

func errMissingFile() *APIError {
	return newAPIError(http.StatusBadRequest, CodeMissingFile, `multipart field "file" is required`, nil)
}

func errInvalidFormat(format string) *APIError {
	return newAPIError(http.StatusBadRequest, CodeInvalidFormat,
		fmt.Sprintf("unsupported format %q; use csv or xlsx", format), nil)
}

func errTooLarge(limit int64) *APIError {
	return newAPIError(http.StatusRequestEntityTooLarge, CodeTooLarge,
		fmt.Sprintf("upload exceeds %d bytes", limit), map[string]int64{"max_bytes": limit})
}

// errorFromAnalysis maps an analyzer error to its API error.
func errorFromAnalysis(err error) *APIError {
	var schemaErr *validation.SchemaError
	if errors.As(err, &schemaErr) {
		return newAPIError(http.StatusUnprocessableEntity, CodeSchemaInvalid, schemaErr.Error(),
			map[string][]string{"missing": schemaErr.Missing})
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errTooLarge(tooLarge.Limit)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newAPIError(http.StatusServiceUnavailable, CodeCanceled, "request was canceled", nil)
	}

	return newAPIError(http.StatusBadRequest, CodeUnreadable, "the upload could not be read", err.Error())
}
