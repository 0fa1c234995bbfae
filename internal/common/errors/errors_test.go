package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAPIError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"auth", NewAuthError("missing bearer"), http.StatusUnauthorized, ErrCodeAuth},
		{"forbidden", NewForbiddenError("user token"), http.StatusForbidden, ErrCodeForbidden},
		{"validation", NewValidationError("mode is required"), http.StatusBadRequest, ErrCodeValidation},
		{"method", NewMethodNotAllowedError("GET"), http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed},
		{"store", NewStoreError("select", fmt.Errorf("boom")), http.StatusInternalServerError, ErrCodeStore},
		{"provider", NewProviderError("fatal", 403), http.StatusBadGateway, ErrCodeProvider},
		{"token exchange", NewTokenExchangeError(401, "status 401"), http.StatusBadGateway, ErrCodeTokenExchange},
		{"locked", NewDispatchLockedError(), http.StatusConflict, ErrCodeDispatchLocked},
		{"config", NewConfigError("store.url"), http.StatusInternalServerError, ErrCodeConfig},
		{"plain error", fmt.Errorf("unexpected"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := ToAPIError(tt.err)
			assert.Equal(t, tt.status, apiErr.HTTPStatus)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestToAPIError_HidesStoreDetails(t *testing.T) {
	err := NewStoreError("upsert_delivery_log", fmt.Errorf(`pq: duplicate key value violates unique constraint "x"`))

	apiErr := ToAPIError(err)

	assert.NotContains(t, apiErr.Message, "pq:")
	assert.Contains(t, err.Details, "pq: duplicate key")
}

func TestToAPIError_ValidationMessageIsCallerFacing(t *testing.T) {
	apiErr := ToAPIError(NewValidationError("invalid_tokens is required for invalid mode"))
	assert.Equal(t, "invalid_tokens is required for invalid mode", apiErr.Message)
}

func TestAsStandardError_Unwraps(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	wrapped := fmt.Errorf("load subscriptions: %w", NewStoreError("select", cause))

	stdErr := AsStandardError(wrapped)
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeStore, stdErr.Code)
	assert.True(t, stderrors.Is(stdErr, cause))
	assert.Nil(t, AsStandardError(nil))
}

func TestNewTokenExchangeError_Retryable(t *testing.T) {
	assert.True(t, NewTokenExchangeError(0, "transport").Retryable)
	assert.True(t, NewTokenExchangeError(503, "unavailable").Retryable)
	assert.False(t, NewTokenExchangeError(400, "invalid_grant").Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable store error keeps retries", func(t *testing.T) {
		bpmnErr := ConvertToBPMNError(NewStoreError("select", fmt.Errorf("timeout")))
		assert.Equal(t, "STORE_ERROR", bpmnErr.Code)
		assert.Equal(t, 3, bpmnErr.Retries)
		assert.True(t, bpmnErr.Retryable)
	})

	t.Run("fatal provider error has no retries", func(t *testing.T) {
		bpmnErr := ConvertToBPMNError(NewProviderError("fatal", 403))
		assert.Equal(t, 0, bpmnErr.Retries)
		vars := bpmnErr.ToErrorVariables()
		assert.Equal(t, "PROVIDER_ERROR", vars["errorCode"])
		assert.Equal(t, "PROVIDER_ERROR", vars["originalErrorCode"])
	})
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeAuth))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeForbidden))
	assert.Equal(t, "CONFIG", GetErrorCategory(ErrCodeInvalidCredential))
	assert.Equal(t, "PROVIDER", GetErrorCategory(ErrCodeTokenExchange))
	assert.Equal(t, "STORE", GetErrorCategory(ErrCodeStore))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeDispatchLocked))
}
