// Package apperror defines the error type every layer returns. A code and an
// HTTP status travel with the error so handlers can render it without
// inspecting where it came from.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Error codes.
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeValidation = "VALIDATION_ERROR"

	CodeFilterSyntax       = "FILTER_SYNTAX_ERROR"
	CodePathResolution     = "PATH_RESOLUTION_ERROR"
	CodeModelConfiguration = "MODEL_CONFIGURATION_ERROR"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeDuplicate    = "DUPLICATE_ENTRY"
)

// AppError is a coded error with a message safe to show to the user.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	HTTPStatus int   `json:"-"`
	Err        error `json:"-"`
}

func newError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to the details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error. It is logged, never rendered.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// FieldErrors maps a field name to the messages reported for it.
// The empty key holds errors that belong to the form as a whole.
type FieldErrors map[string][]string

// Add appends a message for field.
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Empty reports whether no errors were collected.
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Fields returns the field names with errors in sorted order.
func (fe FieldErrors) Fields() []string {
	names := make([]string, 0, len(fe))
	for k := range fe {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Err converts collected field errors into a validation AppError, or nil.
func (fe FieldErrors) Err() error {
	if fe.Empty() {
		return nil
	}
	return NewFieldValidation(fe)
}

// NewValidation is a 400 for a request that makes no sense as a whole.
func NewValidation(message string) *AppError {
	return newError(CodeValidation, http.StatusBadRequest, message)
}

// NewFieldValidation is a 422 carrying per-field messages under "fields".
func NewFieldValidation(fields FieldErrors) *AppError {
	return newError(CodeValidation, http.StatusUnprocessableEntity, "Please correct the errors below").
		WithDetail("fields", fields)
}

// NewFilterSyntax reports a malformed filter expression; pos is the byte
// offset of the offending token.
func NewFilterSyntax(message string, pos int) *AppError {
	return newError(CodeFilterSyntax, http.StatusBadRequest, message).WithDetail("position", pos)
}

// NewPathResolution reports an accessor path that does not resolve on model.
func NewPathResolution(model, path, message string) *AppError {
	return newError(CodePathResolution, http.StatusBadRequest, message).
		WithDetail("model", model).
		WithDetail("path", path)
}

// NewModelConfiguration reports a view, report or schema definition that
// references things which do not exist.
func NewModelConfiguration(message string) *AppError {
	return newError(CodeModelConfiguration, http.StatusInternalServerError, message)
}

func NewNotFound(entity string, id any) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", entity)).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewInternal hides err behind a generic message.
func NewInternal(err error) *AppError {
	return newError(CodeInternal, http.StatusInternalServerError, "Internal server error").WithCause(err)
}

func NewUnauthorized(message string) *AppError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message)
}

func NewForbidden(message string) *AppError {
	return newError(CodeForbidden, http.StatusForbidden, message)
}

func NewConflict(message string) *AppError {
	return newError(CodeConflict, http.StatusConflict, message)
}

func NewDuplicate(entity, field, value string) *AppError {
	return newError(CodeDuplicate, http.StatusConflict, fmt.Sprintf("%s with this %s already exists", entity, field)).
		WithDetail("entity", entity).
		WithDetail("field", field).
		WithDetail("value", value)
}

// IsAppError reports whether err wraps an AppError.
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError extracts the AppError from the chain of err.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Status returns the HTTP status for err; plain errors are 500.
func Status(err error) int {
	if appErr, ok := AsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

func IsFilterSyntax(err error) bool {
	return HasCode(err, CodeFilterSyntax)
}

func IsModelConfiguration(err error) bool {
	return HasCode(err, CodeModelConfiguration)
}

// GetFieldErrors extracts per-field messages from a validation error.
func GetFieldErrors(err error) (FieldErrors, bool) {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != CodeValidation {
		return nil, false
	}
	fe, ok := appErr.Details["fields"].(FieldErrors)
	return fe, ok
}
