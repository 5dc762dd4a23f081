package models

import (
	"time"
)

// Chat represents a conversation within a project
type Chat struct {
	ID        int64      `json:"id" db:"id"`
	ProjectID int64      `json:"project_id" db:"project_id"`
	Title     string     `json:"title" db:"title"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// TableName returns the table name for the Chat model
func (Chat) TableName() string {
	return "chats"
}

// NewChat creates a new Chat instance
func NewChat(projectID int64, title string) *Chat {
	now := time.Now()
	return &Chat{
		ProjectID: projectID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
