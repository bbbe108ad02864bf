package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldops/accessctl/repositories"
	"github.com/fieldops/accessctl/services"
	"github.com/fieldops/accessctl/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedError   string
		expectedMessage string
	}{
		{
			name:            "not found error",
			err:             services.ErrPolicyNotFound,
			expectedStatus:  http.StatusNotFound,
			expectedError:   "not_found",
			expectedMessage: "access policy not found",
		},
		{
			name:            "not found from repository",
			err:             services.FromRepository(repositories.ErrNotFound, services.ErrProfileNotFound),
			expectedStatus:  http.StatusNotFound,
			expectedError:   "not_found",
			expectedMessage: "profile not found",
		},
		{
			name:            "validation error",
			err:             services.ErrInvalidConditions,
			expectedStatus:  http.StatusBadRequest,
			expectedError:   "bad_request",
			expectedMessage: "invalid policy conditions",
		},
		{
			name:            "unauthorized error",
			err:             services.ErrUnauthorized,
			expectedStatus:  http.StatusUnauthorized,
			expectedError:   "unauthorized",
			expectedMessage: "unauthorized",
		},
		{
			name:            "no tenant",
			err:             services.ErrNoTenant,
			expectedStatus:  http.StatusForbidden,
			expectedError:   "forbidden",
			expectedMessage: "actor is not a member of any company",
		},
		{
			name:            "company mismatch",
			err:             services.ErrOrgMismatch,
			expectedStatus:  http.StatusForbidden,
			expectedError:   "forbidden",
			expectedMessage: "company mismatch",
		},
		{
			name:            "conflict error",
			err:             services.ErrAlreadyExists,
			expectedStatus:  http.StatusConflict,
			expectedError:   "conflict",
			expectedMessage: "record already exists",
		},
		{
			name:            "internal error hides cause",
			err:             services.FromRepository(errors.New("connection reset"), services.ErrPolicyNotFound),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An internal error occurred",
		},
		{
			name:            "plain error",
			err:             errors.New("boom"),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

			assert.Equal(t, tt.expectedError, response.Error)
			assert.Equal(t, tt.expectedMessage, response.Message)
			assert.Nil(t, response.Details)
		})
	}
}

func TestHandleServiceErrorWithDetails(t *testing.T) {
	logger := zap.NewNop()

	err := services.NewDomainError(services.ErrorTypeValidation, "invalid policy conditions", nil).
		WithDetail("conditions", "must be a JSON object").
		WithDetail("position", 3)

	w := httptest.NewRecorder()
	HandleServiceError(w, err, logger)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	assert.Equal(t, "bad_request", response.Error)
	require.NotNil(t, response.Details)
	assert.Equal(t, "must be a JSON object", response.Details["conditions"])
	assert.Equal(t, float64(3), response.Details["position"])
}

func TestHandleServiceErrorNil(t *testing.T) {
	w := httptest.NewRecorder()

	HandleServiceError(w, nil, zap.NewNop())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("field errors", func(t *testing.T) {
		err := &utils.ValidationError{
			Message: "Validation failed",
			Fields: map[string]string{
				"action": "action is required",
				"effect": "effect must be one of: allow deny",
			},
		}

		w := httptest.NewRecorder()
		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		assert.Equal(t, "bad_request", response.Error)
		assert.Equal(t, "Validation failed", response.Message)
		assert.Equal(t, "action is required", response.Details["action"])
		assert.Equal(t, "effect must be one of: allow deny", response.Details["effect"])
	})

	t.Run("generic error", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("generic validation error"), logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		assert.Equal(t, "bad_request", response.Error)
		assert.Equal(t, "generic validation error", response.Message)
	})
}
