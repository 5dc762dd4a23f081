package postgres

import (
	"context"
	"fmt"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/repositories"
	"go.uber.org/zap"
)

// MessageRepository implements the repositories.MessageRepository interface
type MessageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB, logger *zap.Logger) repositories.MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new message and assigns its ID
func (r *MessageRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (chat_id, role, content, sources, model_name, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		msg.ChatID,
		msg.Role,
		msg.Content,
		msg.Sources,
		msg.ModelName,
		msg.TokenCount,
		msg.CreatedAt,
	).Scan(&msg.ID)

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	r.logger.Debug("message created",
		zap.Int64("id", msg.ID),
		zap.Int64("chat_id", msg.ChatID),
		zap.String("role", string(msg.Role)))
	return nil
}

// GetByChatID retrieves all messages for a chat in chronological order
func (r *MessageRepository) GetByChatID(ctx context.Context, chatID int64) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, chat_id, role, content, sources, model_name, token_count, created_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`

	return r.queryMessages(ctx, query, chatID)
}

// GetRecent retrieves the most recent messages for a chat in
// chronological order, at most limit entries
func (r *MessageRepository) GetRecent(ctx context.Context, chatID int64, limit int) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, chat_id, role, content, sources, model_name, token_count, created_at
		FROM (
			SELECT id, chat_id, role, content, sources, model_name, token_count, created_at
			FROM chat_messages
			WHERE chat_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`

	return r.queryMessages(ctx, query, chatID, limit)
}

// DeleteByChatID deletes all messages for a chat
func (r *MessageRepository) DeleteByChatID(ctx context.Context, chatID int64) error {
	query := `DELETE FROM chat_messages WHERE chat_id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Debug("messages deleted",
		zap.Int64("chat_id", chatID),
		zap.Int64("count", rowsAffected))
	return nil
}

// queryMessages is a helper method to query multiple messages
func (r *MessageRepository) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*models.ChatMessage, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg := &models.ChatMessage{}
		err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.Role,
			&msg.Content,
			&msg.Sources,
			&msg.ModelName,
			&msg.TokenCount,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}
