package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docuchat/backend/services/providers"
	"github.com/docuchat/backend/services/rag"
	"github.com/docuchat/backend/services/vectorstore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSettingsHandler(t *testing.T) *SettingsHandler {
	t.Helper()

	logger := zap.NewNop()
	ragSvc := rag.NewService(nil, memory.NewStore(logger), providers.NewRegistry(), rag.Config{
		DefaultModel: "llama3",
	}, logger)

	return NewSettingsHandler(ragSvc, logger)
}

func TestSettingsHandler_HandleGet(t *testing.T) {
	handler := newSettingsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	w := httptest.NewRecorder()

	handler.HandleGet(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(rag.DefaultTopK), data["top_k"])
	assert.Equal(t, rag.DefaultMinRelevanceScore, data["min_relevance_score"])
	assert.Equal(t, "llama3", data["default_model"])
	assert.NotEmpty(t, data["system_prompt"])
}

func TestSettingsHandler_HandleUpdate(t *testing.T) {
	t.Run("applies partial update", func(t *testing.T) {
		handler := newSettingsHandler(t)

		body, _ := json.Marshal(map[string]interface{}{
			"top_k":               10,
			"min_relevance_score": 0.5,
		})
		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleUpdate(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(10), data["top_k"])
		assert.Equal(t, 0.5, data["min_relevance_score"])
		// Untouched fields keep their values
		assert.Equal(t, "llama3", data["default_model"])
	})

	t.Run("rejects out of range values", func(t *testing.T) {
		handler := newSettingsHandler(t)

		body, _ := json.Marshal(map[string]interface{}{
			"min_relevance_score": 1.5,
		})
		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleUpdate(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		handler := newSettingsHandler(t)

		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", bytes.NewReader([]byte("{")))
		w := httptest.NewRecorder()

		handler.HandleUpdate(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
