package repositories

import (
	"context"

	"github.com/docuchat/backend/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// ProjectRepository handles project data operations
type ProjectRepository interface {
	// Create creates a new project and assigns its ID
	Create(ctx context.Context, project *models.Project) error

	// GetByID retrieves a project by ID
	GetByID(ctx context.Context, id int64) (*models.Project, error)

	// List retrieves all projects with pagination, newest first
	List(ctx context.Context, limit, offset int) ([]*models.Project, error)

	// Update updates a project's name and description
	Update(ctx context.Context, project *models.Project) error

	// Delete soft-deletes a project
	Delete(ctx context.Context, id int64) error
}

// DocumentRepository handles document data operations
type DocumentRepository interface {
	// Create creates a new document and assigns its ID
	Create(ctx context.Context, doc *models.Document) error

	// GetByID retrieves a document by ID
	GetByID(ctx context.Context, id int64) (*models.Document, error)

	// GetContent retrieves the raw content of a document
	GetContent(ctx context.Context, id int64) (string, error)

	// GetByProjectID retrieves all documents for a project, newest first
	GetByProjectID(ctx context.Context, projectID int64) ([]*models.Document, error)

	// UpdateStatus updates a document's processing status, chunk count
	// and error message
	UpdateStatus(ctx context.Context, doc *models.Document) error

	// Delete soft-deletes a document
	Delete(ctx context.Context, id int64) error
}

// ChatRepository handles chat data operations
type ChatRepository interface {
	// Create creates a new chat and assigns its ID
	Create(ctx context.Context, chat *models.Chat) error

	// GetByID retrieves a chat by ID
	GetByID(ctx context.Context, id int64) (*models.Chat, error)

	// GetByProjectID retrieves all chats for a project, newest first
	GetByProjectID(ctx context.Context, projectID int64) ([]*models.Chat, error)

	// UpdateTitle updates a chat's title
	UpdateTitle(ctx context.Context, id int64, title string) error

	// Delete soft-deletes a chat
	Delete(ctx context.Context, id int64) error
}

// MessageRepository handles chat message data operations
type MessageRepository interface {
	// Create creates a new message and assigns its ID
	Create(ctx context.Context, msg *models.ChatMessage) error

	// GetByChatID retrieves all messages for a chat in chronological order
	GetByChatID(ctx context.Context, chatID int64) ([]*models.ChatMessage, error)

	// GetRecent retrieves the most recent messages for a chat in
	// chronological order, at most limit entries
	GetRecent(ctx context.Context, chatID int64, limit int) ([]*models.ChatMessage, error)

	// DeleteByChatID deletes all messages for a chat
	DeleteByChatID(ctx context.Context, chatID int64) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Projects  ProjectRepository
	Documents DocumentRepository
	Chats     ChatRepository
	Messages  MessageRepository
}
