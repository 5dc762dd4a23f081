package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docuchat/backend/services"
	"github.com/docuchat/backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "not found error",
			err:            services.ErrChatNotFound,
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "wrapped sql.ErrNoRows",
			err:            fmt.Errorf("project 7: %w", sql.ErrNoRows),
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "validation error",
			err:            services.ErrEmptyQuery,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:           "conflict error",
			err:            services.ErrDocumentBusy,
			expectedStatus: http.StatusConflict,
			expectedError:  "conflict",
		},
		{
			name:           "external error",
			err:            services.ErrProviderUnavailable,
			expectedStatus: http.StatusBadGateway,
			expectedError:  "bad_gateway",
		},
		{
			name:           "retrieval error",
			err:            services.WrapRetrieval("vector query failed", assert.AnError),
			expectedStatus: http.StatusBadGateway,
			expectedError:  "bad_gateway",
		},
		{
			name:           "generation error",
			err:            services.WrapGeneration("chat completion failed", assert.AnError),
			expectedStatus: http.StatusBadGateway,
			expectedError:  "bad_gateway",
		},
		{
			name:           "internal error",
			err:            services.WrapInternal("failed to create chat", assert.AnError),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
		{
			name:           "unknown error",
			err:            errors.New("something odd"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
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
		})
	}

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()

		HandleServiceError(w, nil, logger)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("internal error hides the cause", func(t *testing.T) {
		w := httptest.NewRecorder()

		HandleServiceError(w, services.WrapInternal("failed to create chat", errors.New("secret dsn")), logger)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "secret dsn")
	})
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("structured validation error carries field details", func(t *testing.T) {
		type input struct {
			Name string `validate:"required"`
		}

		err := utils.ValidateStruct(&input{})
		require.Error(t, err)

		w := httptest.NewRecorder()
		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "bad_request", response.Error)
		assert.Contains(t, response.Details, "Name")
	})

	t.Run("plain error becomes generic 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("bad payload"), logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "bad payload", response.Message)
	})
}
