package handlers

import (
	"net/http"

	"github.com/docuchat/backend/services/providers"
	"github.com/docuchat/backend/utils"
	"go.uber.org/zap"
)

// ModelHandler exposes the models served by the configured providers
type ModelHandler struct {
	registry *providers.Registry
	logger   *zap.Logger
}

// NewModelHandler creates a new ModelHandler
func NewModelHandler(registry *providers.Registry, logger *zap.Logger) *ModelHandler {
	return &ModelHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleListModels handles GET /api/v1/models
// Lists the models of the default provider, or of the provider named
// by the ?provider= query parameter.
func (h *ModelHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	var (
		provider providers.Provider
		err      error
	)

	if name := r.URL.Query().Get("provider"); name != "" {
		provider, err = h.registry.GetProvider(name)
	} else {
		provider, err = h.registry.DefaultProvider()
	}
	if err != nil {
		_ = utils.WriteNotFound(w, err.Error())
		return
	}

	models, err := provider.ListModels(r.Context())
	if err != nil {
		h.logger.Warn("failed to list models",
			zap.String("provider", provider.Name()),
			zap.Error(err))
		_ = utils.WriteBadGateway(w, "Failed to list models from provider")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"provider": provider.Name(),
		"models":   models,
	})
}

// HandleListProviders handles GET /api/v1/providers
func (h *ModelHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]interface{}{
		"providers": h.registry.ListProviders(),
	})
}
