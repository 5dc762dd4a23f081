package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/docuchat/backend/services/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleHealth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("always returns healthy", func(t *testing.T) {
		handler := NewHealthHandler(nil, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		handler.HandleHealth(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])
		assert.NotEmpty(t, data["timestamp"])
	})
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("healthy when database is available", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		registry := providers.NewRegistry()
		require.NoError(t, registry.RegisterProvider(&stubProvider{name: "ollama", available: true}))

		handler := NewHealthHandler(db, registry, logger)

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()

		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "healthy", checks["providers"])

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(sql.ErrConnDone)

		handler := NewHealthHandler(db, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()

		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response map[string]interface{}
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "unhealthy", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "unhealthy", checks["database"])

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database query fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(sql.ErrConnDone)

		handler := NewHealthHandler(db, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()

		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		checks := readinessChecks(t, w)
		assert.Equal(t, "unhealthy", checks["database"])

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("healthy when no database configured", func(t *testing.T) {
		handler := NewHealthHandler(nil, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()

		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		checks := readinessChecks(t, w)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "none_configured", checks["providers"])
	})

	t.Run("provider outage does not fail readiness", func(t *testing.T) {
		registry := providers.NewRegistry()
		require.NoError(t, registry.RegisterProvider(&stubProvider{name: "ollama", available: false}))

		handler := NewHealthHandler(nil, registry, logger)

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()

		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		checks := readinessChecks(t, w)
		assert.Equal(t, "unreachable", checks["providers"])
	})
}

func readinessChecks(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	data := response["data"].(map[string]interface{})
	return data["checks"].(map[string]interface{})
}
