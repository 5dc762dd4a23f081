package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/repositories"
	"github.com/docuchat/backend/services"
	"github.com/docuchat/backend/services/chunker"
	"github.com/docuchat/backend/services/embeddings"
	"github.com/docuchat/backend/services/vectorstore"
)

// Service turns an uploaded document into indexed chunks: split,
// embed, store. Status transitions are persisted through the document
// repository so callers can poll processing progress.
type Service struct {
	documents repositories.DocumentRepository
	chunker   *chunker.Service
	embedder  embeddings.Embedder
	store     vectorstore.Store
	logger    *zap.Logger
}

// NewService creates the ingestion service
func NewService(documents repositories.DocumentRepository, chunkSvc *chunker.Service, embedder embeddings.Embedder, store vectorstore.Store, logger *zap.Logger) *Service {
	return &Service{
		documents: documents,
		chunker:   chunkSvc,
		embedder:  embedder,
		store:     store,
		logger:    logger,
	}
}

// ProcessDocument chunks, embeds and indexes a pending document. On
// failure the document is marked failed with the error message; the
// error is returned as well.
func (s *Service) ProcessDocument(ctx context.Context, doc *models.Document) error {
	s.logger.Info("processing document",
		zap.Int64("document_id", doc.ID),
		zap.Int64("project_id", doc.ProjectID),
		zap.String("filename", doc.Filename))

	doc.MarkProcessing()
	if err := s.documents.UpdateStatus(ctx, doc); err != nil {
		return services.WrapInternal("failed to mark document processing", err)
	}

	if err := s.index(ctx, doc); err != nil {
		doc.MarkFailed(err.Error())
		if updateErr := s.documents.UpdateStatus(ctx, doc); updateErr != nil {
			s.logger.Error("failed to mark document failed",
				zap.Int64("document_id", doc.ID),
				zap.Error(updateErr))
		}
		return err
	}

	if err := s.documents.UpdateStatus(ctx, doc); err != nil {
		return services.WrapInternal("failed to mark document completed", err)
	}

	s.logger.Info("document processed",
		zap.Int64("document_id", doc.ID),
		zap.Int("chunks", doc.ChunkCount))
	return nil
}

// index performs the chunk-embed-store pipeline and marks the document
// completed in memory; persistence is the caller's responsibility
func (s *Service) index(ctx context.Context, doc *models.Document) error {
	if !doc.FileType.Valid() {
		return services.ErrInvalidFileType
	}

	content := doc.Content
	if content == "" {
		var err error
		content, err = s.documents.GetContent(ctx, doc.ID)
		if err != nil {
			return services.WrapInternal("failed to load document content", err)
		}
	}
	if strings.TrimSpace(content) == "" {
		return services.ErrEmptyDocument
	}

	strategy := chunker.OptimalStrategy(doc.FileType)
	chunks, err := s.chunker.Chunk(content, strategy, doc.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return services.NewDomainError(services.ErrorTypeValidation, "document produced no chunks", nil)
	}

	s.logger.Debug("document chunked",
		zap.Int64("document_id", doc.ID),
		zap.String("strategy", string(strategy)),
		zap.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return services.WrapExternal("failed to embed document chunks", err)
	}

	// chunks whose embedding came back empty are dropped
	docs := make([]vectorstore.Document, 0, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) == 0 {
			s.logger.Warn("skipping chunk with empty embedding",
				zap.Int64("document_id", doc.ID),
				zap.Int("chunk_index", c.Index))
			continue
		}
		docs = append(docs, vectorstore.Document{
			ID:      fmt.Sprintf("%d_chunk_%d", doc.ID, c.Index),
			Content: c.Text,
			Metadata: map[string]interface{}{
				"document_id": doc.ID,
				"chunk_index": c.Index,
				"filename":    doc.Filename,
			},
			Vector: vectors[i],
		})
	}
	if len(docs) == 0 {
		return services.WrapExternal("no valid embeddings generated", nil)
	}

	collection := vectorstore.CollectionName(doc.ProjectID)
	if err := s.store.EnsureCollection(ctx, collection); err != nil {
		return err
	}
	if err := s.store.Add(ctx, collection, docs); err != nil {
		return err
	}

	doc.MarkCompleted(len(docs))
	return nil
}

// DeleteDocument removes a document's vectors and soft-deletes the
// record
func (s *Service) DeleteDocument(ctx context.Context, doc *models.Document) error {
	collection := vectorstore.CollectionName(doc.ProjectID)
	if err := s.store.DeleteByDocument(ctx, collection, doc.ID); err != nil {
		return err
	}

	if err := s.documents.Delete(ctx, doc.ID); err != nil {
		return err
	}

	s.logger.Info("document deleted",
		zap.Int64("document_id", doc.ID),
		zap.Int64("project_id", doc.ProjectID))
	return nil
}

// PurgeProject drops the project's vector collection. Called when the
// project itself is deleted.
func (s *Service) PurgeProject(ctx context.Context, projectID int64) error {
	collection := vectorstore.CollectionName(projectID)
	if err := s.store.DropCollection(ctx, collection); err != nil {
		return err
	}

	s.logger.Info("project collection purged", zap.Int64("project_id", projectID))
	return nil
}

// ChunkCount reports how many vectors are indexed for a project
func (s *Service) ChunkCount(ctx context.Context, projectID int64) (int64, error) {
	return s.store.Count(ctx, vectorstore.CollectionName(projectID))
}
