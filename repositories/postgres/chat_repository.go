package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/repositories"
	"go.uber.org/zap"
)

// ChatRepository implements the repositories.ChatRepository interface
type ChatRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *DB, logger *zap.Logger) repositories.ChatRepository {
	return &ChatRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new chat and assigns its ID
func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	query := `
		INSERT INTO chats (project_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		chat.ProjectID,
		chat.Title,
		chat.CreatedAt,
		chat.UpdatedAt,
	).Scan(&chat.ID)

	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}

	r.logger.Debug("chat created",
		zap.Int64("id", chat.ID),
		zap.Int64("project_id", chat.ProjectID))
	return nil
}

// GetByID retrieves a chat by ID
func (r *ChatRepository) GetByID(ctx context.Context, id int64) (*models.Chat, error) {
	query := `
		SELECT id, project_id, title, created_at, updated_at, deleted_at
		FROM chats
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	chat := &models.Chat{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&chat.ID,
		&chat.ProjectID,
		&chat.Title,
		&chat.CreatedAt,
		&chat.UpdatedAt,
		&chat.DeletedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("chat %d: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	return chat, nil
}

// GetByProjectID retrieves all chats for a project, newest first
func (r *ChatRepository) GetByProjectID(ctx context.Context, projectID int64) ([]*models.Chat, error) {
	query := `
		SELECT id, project_id, title, created_at, updated_at, deleted_at
		FROM chats
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		chat := &models.Chat{}
		err := rows.Scan(
			&chat.ID,
			&chat.ProjectID,
			&chat.Title,
			&chat.CreatedAt,
			&chat.UpdatedAt,
			&chat.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rows: %w", err)
	}

	return chats, nil
}

// UpdateTitle updates a chat's title
func (r *ChatRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	query := `
		UPDATE chats
		SET title = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, title)
	if err != nil {
		return fmt.Errorf("failed to update chat title: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("chat %d: %w", id, sql.ErrNoRows)
	}

	r.logger.Debug("chat title updated", zap.Int64("id", id))
	return nil
}

// Delete soft-deletes a chat
func (r *ChatRepository) Delete(ctx context.Context, id int64) error {
	query := `
		UPDATE chats
		SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("chat %d: %w", id, sql.ErrNoRows)
	}

	r.logger.Debug("chat deleted", zap.Int64("id", id))
	return nil
}
