// Package errors provides the error taxonomy shared by the HTTP surface and the
// Zeebe job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfig            ErrorCode = "CONFIG_ERROR"
	ErrCodeAuth              ErrorCode = "AUTH_ERROR"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeMethodNotAllowed  ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeStore             ErrorCode = "STORE_ERROR"
	ErrCodeProvider          ErrorCode = "PROVIDER_ERROR"
	ErrCodeInvalidCredential ErrorCode = "INVALID_CREDENTIAL"
	ErrCodeTokenExchange     ErrorCode = "TOKEN_EXCHANGE_FAILED"
	ErrCodeNoticeSource      ErrorCode = "NOTICE_SOURCE_ERROR"
	ErrCodeDispatchLocked    ErrorCode = "DISPATCH_IN_PROGRESS"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// APIError is the caller-facing projection of a StandardError.
type APIError struct {
	Code       ErrorCode `json:"code"`
	HTTPStatus int       `json:"-"`
	Message    string    `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigError reports a missing or malformed configuration key. key names the
// setting, never its value.
func NewConfigError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfig,
		Message:   "Service is not configured",
		Details:   fmt.Sprintf("missing or invalid setting: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuth,
		Message:   "Missing or invalid bearer token",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Caller is not allowed to perform this operation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError is returned for malformed bodies and unknown modes; the
// details are safe to show to the caller.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   details,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewMethodNotAllowedError(method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMethodNotAllowed,
		Message:   "Method not allowed",
		Details:   fmt.Sprintf("method: %s", method),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreError wraps a driver error. The driver message is kept in Details for
// operators and never surfaced in the HTTP body.
func NewStoreError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStore,
		Message:   "Store operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %v", operation, err),
		Retryable: true,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewProviderError(category string, status int) *StandardError {
	return &StandardError{
		Code:      ErrCodeProvider,
		Message:   "Push provider request failed",
		Details:   fmt.Sprintf("category: %s, status: %d", category, status),
		Retryable: category == "retryable",
		Metadata:  map[string]interface{}{"category": category, "status": status},
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidCredentialError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidCredential,
		Message:   "Service account credential is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenExchangeError never carries the assertion or response token; status is
// the HTTP status of the token endpoint (0 for transport failures).
func NewTokenExchangeError(status int, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenExchange,
		Message:   "Access token exchange failed",
		Details:   details,
		Retryable: status == 0 || status >= 500,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

func NewNoticeSourceError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoticeSource,
		Message:   "Notice source query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDispatchLockedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeDispatchLocked,
		Message:   "Another dispatch run is in progress",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Conversion
// ==========================

// AsStandardError normalizes any error into a StandardError.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HTTPStatus maps an error code to the status the HTTP surface returns.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeAuth:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeDispatchLocked:
		return http.StatusConflict
	case ErrCodeProvider, ErrCodeTokenExchange, ErrCodeNoticeSource:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToAPIError projects err onto the caller-facing envelope. Store, config and
// internal errors expose only their generic message.
func ToAPIError(err error) *APIError {
	stdErr := AsStandardError(err)
	return &APIError{
		Code:       stdErr.Code,
		HTTPStatus: HTTPStatus(stdErr.Code),
		Message:    stdErr.Message,
	}
}

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStore, ErrCodeNoticeSource:
		return 3
	case ErrCodeProvider, ErrCodeTokenExchange, ErrCodeDispatchLocked:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns the coarse category used in log lines.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "AUTH") || code == ErrCodeForbidden:
		return "AUTH"
	case strings.Contains(codeStr, "CONFIG") || strings.Contains(codeStr, "CREDENTIAL"):
		return "CONFIG"
	case strings.Contains(codeStr, "STORE"):
		return "STORE"
	case strings.Contains(codeStr, "PROVIDER") || strings.Contains(codeStr, "TOKEN"):
		return "PROVIDER"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "METHOD"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
