package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/docuchat/backend/services/rag"
	"github.com/docuchat/backend/utils"
	"go.uber.org/zap"
)

// SettingsResponse represents the retrieval configuration
type SettingsResponse struct {
	TopK              int     `json:"top_k"`
	MinRelevanceScore float64 `json:"min_relevance_score"`
	SystemPrompt      string  `json:"system_prompt"`
	MaxHistory        int     `json:"max_history"`
	DefaultModel      string  `json:"default_model"`
}

// SettingsHandler exposes the runtime retrieval configuration
type SettingsHandler struct {
	rag    *rag.Service
	logger *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(ragSvc *rag.Service, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		rag:    ragSvc,
		logger: logger,
	}
}

// HandleGet handles GET /api/v1/settings
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, settingsFromConfig(h.rag.Config()))
}

// HandleUpdate handles PUT /api/v1/settings
// Applies a partial configuration change; nil fields keep their value
func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var update rag.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("failed to decode settings update", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&update); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.rag.UpdateConfig(update); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("retrieval settings updated")
	_ = utils.WriteOK(w, settingsFromConfig(h.rag.Config()))
}

func settingsFromConfig(cfg rag.Config) SettingsResponse {
	return SettingsResponse{
		TopK:              cfg.TopK,
		MinRelevanceScore: cfg.MinRelevanceScore,
		SystemPrompt:      cfg.SystemPrompt,
		MaxHistory:        cfg.MaxHistory,
		DefaultModel:      cfg.DefaultModel,
	}
}
