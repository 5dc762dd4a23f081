package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/repositories"
	"github.com/docuchat/backend/utils"
	"go.uber.org/zap"
)

// processingTimeout bounds background ingestion of a single document
const processingTimeout = 10 * time.Minute

// UploadDocumentRequest represents the document upload request body.
// Content carries already-extracted plain text.
type UploadDocumentRequest struct {
	Filename string `json:"filename" validate:"required,min=1,max=255"`
	FileType string `json:"file_type" validate:"required,oneof=pdf docx txt md csv xlsx other"`
	Content  string `json:"content" validate:"required"`
}

// Ingestor drives document indexing and removal
type Ingestor interface {
	ProcessDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, doc *models.Document) error
}

// DocumentHandler handles document management HTTP requests
type DocumentHandler struct {
	documents repositories.DocumentRepository
	projects  repositories.ProjectRepository
	ingestor  Ingestor
	logger    *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents repositories.DocumentRepository, projects repositories.ProjectRepository, ingestor Ingestor, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		projects:  projects,
		ingestor:  ingestor,
		logger:    logger,
	}
}

// HandleUpload handles POST /api/v1/projects/{projectID}/documents
// Accepts the document and processes it in the background; the caller
// polls the document status to observe completion.
func (h *DocumentHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlParamInt64(w, r, "projectID")
	if !ok {
		return
	}

	var req UploadDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode upload request", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if _, err := h.projects.GetByID(r.Context(), projectID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	doc := models.NewDocument(projectID, req.Filename, models.DocumentType(req.FileType), req.Content)
	if err := h.documents.Create(r.Context(), doc); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("document accepted",
		zap.Int64("document_id", doc.ID),
		zap.Int64("project_id", projectID),
		zap.String("filename", doc.Filename),
		zap.Int("word_count", doc.WordCount))

	// Process outside the request lifecycle. The goroutine owns its
	// own copy so the response below never sees its writes.
	docCopy := *doc
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
		defer cancel()

		if err := h.ingestor.ProcessDocument(ctx, &docCopy); err != nil {
			h.logger.Error("document processing failed",
				zap.Int64("document_id", docCopy.ID),
				zap.Error(err))
		}
	}()

	_ = utils.WriteAccepted(w, doc)
}

// HandleList handles GET /api/v1/projects/{projectID}/documents
func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlParamInt64(w, r, "projectID")
	if !ok {
		return
	}

	if _, err := h.projects.GetByID(r.Context(), projectID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	docs, err := h.documents.GetByProjectID(r.Context(), projectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, docs)
}

// HandleGet handles GET /api/v1/documents/{documentID}
func (h *DocumentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	documentID, ok := urlParamInt64(w, r, "documentID")
	if !ok {
		return
	}

	doc, err := h.documents.GetByID(r.Context(), documentID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, doc)
}

// HandleDelete handles DELETE /api/v1/documents/{documentID}
// Removes the document's chunks from the vector store and deletes the row
func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	documentID, ok := urlParamInt64(w, r, "documentID")
	if !ok {
		return
	}

	doc, err := h.documents.GetByID(r.Context(), documentID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := h.ingestor.DeleteDocument(r.Context(), doc); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("document deleted", zap.Int64("document_id", documentID))
	utils.WriteNoContent(w)
}
