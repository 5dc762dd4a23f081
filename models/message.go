package models

import (
	"time"
)

// MessageRole identifies who produced a chat message
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Valid checks whether the role is one of the supported values
func (r MessageRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMessage represents a single turn in a chat conversation.
// Sources holds the retrieval metadata for assistant messages as a
// JSON document; it is empty for user and system messages.
type ChatMessage struct {
	ID         int64       `json:"id" db:"id"`
	ChatID     int64       `json:"chat_id" db:"chat_id"`
	Role       MessageRole `json:"role" db:"role"`
	Content    string      `json:"content" db:"content"`
	Sources    string      `json:"sources,omitempty" db:"sources"`
	ModelName  string      `json:"model_name,omitempty" db:"model_name"`
	TokenCount int         `json:"token_count" db:"token_count"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the ChatMessage model
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// NewUserMessage creates a user turn for the given chat
func NewUserMessage(chatID int64, content string) *ChatMessage {
	return &ChatMessage{
		ChatID:    chatID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates an assistant turn with its retrieval
// sources and the model that generated it
func NewAssistantMessage(chatID int64, content, sources, modelName string, tokenCount int) *ChatMessage {
	return &ChatMessage{
		ChatID:     chatID,
		Role:       RoleAssistant,
		Content:    content,
		Sources:    sources,
		ModelName:  modelName,
		TokenCount: tokenCount,
		CreatedAt:  time.Now(),
	}
}
