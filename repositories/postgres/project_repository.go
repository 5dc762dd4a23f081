package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/repositories"
	"go.uber.org/zap"
)

// ProjectRepository implements the repositories.ProjectRepository interface
type ProjectRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB, logger *zap.Logger) repositories.ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new project and assigns its ID
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		project.Name,
		project.Description,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID)

	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	r.logger.Debug("project created", zap.Int64("id", project.ID))
	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `
		SELECT id, name, description, created_at, updated_at, deleted_at
		FROM projects
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	project := &models.Project{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.CreatedAt,
		&project.UpdatedAt,
		&project.DeletedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project %d: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// List retrieves all projects with pagination, newest first
func (r *ProjectRepository) List(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	query := `
		SELECT id, name, description, created_at, updated_at, deleted_at
		FROM projects
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project := &models.Project{}
		err := rows.Scan(
			&project.ID,
			&project.Name,
			&project.Description,
			&project.CreatedAt,
			&project.UpdatedAt,
			&project.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}

	return projects, nil
}

// Update updates a project's name and description
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET name = $2,
		    description = $3,
		    updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("project %d: %w", project.ID, sql.ErrNoRows)
	}

	r.logger.Debug("project updated", zap.Int64("id", project.ID))
	return nil
}

// Delete soft-deletes a project
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	query := `
		UPDATE projects
		SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("project %d: %w", id, sql.ErrNoRows)
	}

	r.logger.Debug("project deleted", zap.Int64("id", id))
	return nil
}
