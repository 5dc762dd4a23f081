package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/repositories"
	"go.uber.org/zap"
)

// DocumentRepository implements the repositories.DocumentRepository interface
type DocumentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB, logger *zap.Logger) repositories.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new document and assigns its ID
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (project_id, filename, file_type, content, status, error_message, word_count, chunk_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		doc.ProjectID,
		doc.Filename,
		doc.FileType,
		doc.Content,
		doc.Status,
		doc.ErrorMessage,
		doc.WordCount,
		doc.ChunkCount,
		doc.CreatedAt,
		doc.UpdatedAt,
	).Scan(&doc.ID)

	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	r.logger.Debug("document created",
		zap.Int64("id", doc.ID),
		zap.Int64("project_id", doc.ProjectID))
	return nil
}

// GetByID retrieves a document by ID. Content is not loaded; use
// GetContent for the raw text.
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	query := `
		SELECT id, project_id, filename, file_type, status, error_message, word_count, chunk_count, created_at, updated_at, deleted_at
		FROM documents
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	doc := &models.Document{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.ProjectID,
		&doc.Filename,
		&doc.FileType,
		&doc.Status,
		&doc.ErrorMessage,
		&doc.WordCount,
		&doc.ChunkCount,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.DeletedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document %d: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// GetContent retrieves the raw content of a document
func (r *DocumentRepository) GetContent(ctx context.Context, id int64) (string, error) {
	query := `
		SELECT content
		FROM documents
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)

	var content string
	err := executor.QueryRowContext(ctx, query, id).Scan(&content)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("document %d: %w", id, sql.ErrNoRows)
		}
		return "", fmt.Errorf("failed to get document content: %w", err)
	}

	return content, nil
}

// GetByProjectID retrieves all documents for a project, newest first
func (r *DocumentRepository) GetByProjectID(ctx context.Context, projectID int64) ([]*models.Document, error) {
	query := `
		SELECT id, project_id, filename, file_type, status, error_message, word_count, chunk_count, created_at, updated_at, deleted_at
		FROM documents
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		err := rows.Scan(
			&doc.ID,
			&doc.ProjectID,
			&doc.Filename,
			&doc.FileType,
			&doc.Status,
			&doc.ErrorMessage,
			&doc.WordCount,
			&doc.ChunkCount,
			&doc.CreatedAt,
			&doc.UpdatedAt,
			&doc.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}

	return docs, nil
}

// UpdateStatus updates a document's processing status, chunk count
// and error message
func (r *DocumentRepository) UpdateStatus(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents
		SET status = $2,
		    error_message = $3,
		    chunk_count = $4,
		    updated_at = $5
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		doc.ID,
		doc.Status,
		doc.ErrorMessage,
		doc.ChunkCount,
		doc.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("document %d: %w", doc.ID, sql.ErrNoRows)
	}

	r.logger.Debug("document status updated",
		zap.Int64("id", doc.ID),
		zap.String("status", string(doc.Status)))
	return nil
}

// Delete soft-deletes a document
func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	query := `
		UPDATE documents
		SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("document %d: %w", id, sql.ErrNoRows)
	}

	r.logger.Debug("document deleted", zap.Int64("id", id))
	return nil
}
