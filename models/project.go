package models

import (
	"time"
)

// Project represents an isolated document workspace. Documents, chats and the
// vector collection are all scoped to a project.
type Project struct {
	ID          int64      `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// TableName returns the table name for the Project model
func (Project) TableName() string {
	return "projects"
}

// NewProject creates a new Project instance
func NewProject(name, description string) *Project {
	now := time.Now()
	return &Project{
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
