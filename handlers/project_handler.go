package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/repositories"
	"github.com/docuchat/backend/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateProjectRequest represents the create project request body
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateProjectRequest represents the update project request body
type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// ProjectPurger removes a project's indexed chunks from the vector store
type ProjectPurger interface {
	PurgeProject(ctx context.Context, projectID int64) error
	ChunkCount(ctx context.Context, projectID int64) (int64, error)
}

// ProjectHandler handles project management HTTP requests
type ProjectHandler struct {
	projects repositories.ProjectRepository
	purger   ProjectPurger
	logger   *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(projects repositories.ProjectRepository, purger ProjectPurger, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		purger:   purger,
		logger:   logger,
	}
}

// HandleCreate handles POST /api/v1/projects
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode create project request", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	project := models.NewProject(req.Name, req.Description)
	if err := h.projects.Create(r.Context(), project); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("project created",
		zap.Int64("project_id", project.ID),
		zap.String("name", project.Name))

	_ = utils.WriteCreated(w, project)
}

// HandleList handles GET /api/v1/projects
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	projects, err := h.projects.List(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, projects)
}

// HandleGet handles GET /api/v1/projects/{projectID}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlParamInt64(w, r, "projectID")
	if !ok {
		return
	}

	project, err := h.projects.GetByID(r.Context(), projectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, project)
}

// HandleUpdate handles PUT /api/v1/projects/{projectID}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlParamInt64(w, r, "projectID")
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode update project request", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	project, err := h.projects.GetByID(r.Context(), projectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}

	if err := h.projects.Update(r.Context(), project); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, project)
}

// HandleDelete handles DELETE /api/v1/projects/{projectID}
// Deletes the project and drops its vector collection
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlParamInt64(w, r, "projectID")
	if !ok {
		return
	}

	if _, err := h.projects.GetByID(r.Context(), projectID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := h.projects.Delete(r.Context(), projectID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := h.purger.PurgeProject(r.Context(), projectID); err != nil {
		// The project row is already gone; log and report success
		h.logger.Error("failed to purge project vectors",
			zap.Int64("project_id", projectID),
			zap.Error(err))
	}

	h.logger.Info("project deleted", zap.Int64("project_id", projectID))
	utils.WriteNoContent(w)
}

// HandleStats handles GET /api/v1/projects/{projectID}/stats
func (h *ProjectHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlParamInt64(w, r, "projectID")
	if !ok {
		return
	}

	project, err := h.projects.GetByID(r.Context(), projectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	chunks, err := h.purger.ChunkCount(r.Context(), projectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"project_id":  project.ID,
		"name":        project.Name,
		"chunk_count": chunks,
	})
}

// urlParamInt64 parses a numeric URL parameter, writing a 400 on failure
func urlParamInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		_ = utils.WriteBadRequest(w, "Invalid "+name+" parameter", nil)
		return 0, false
	}
	return id, true
}

// queryInt parses an integer query parameter with a fallback default
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}
