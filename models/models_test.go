package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Project tests
func TestNewProject(t *testing.T) {
	name := "Research Notes"
	description := "Papers and summaries"

	p := NewProject(name, description)

	assert.Equal(t, name, p.Name)
	assert.Equal(t, description, p.Description)
	assert.False(t, p.CreatedAt.IsZero())
	assert.False(t, p.UpdatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.Nil(t, p.DeletedAt)
}

func TestProject_TableName(t *testing.T) {
	p := Project{}
	assert.Equal(t, "projects", p.TableName())
}

// Document tests
func TestNewDocument(t *testing.T) {
	doc := NewDocument(42, "notes.md", DocumentTypeMarkdown, "alpha beta gamma")

	assert.Equal(t, int64(42), doc.ProjectID)
	assert.Equal(t, "notes.md", doc.Filename)
	assert.Equal(t, DocumentTypeMarkdown, doc.FileType)
	assert.Equal(t, DocumentStatusPending, doc.Status)
	assert.Equal(t, 3, doc.WordCount)
	assert.Equal(t, 0, doc.ChunkCount)
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestDocument_StatusTransitions(t *testing.T) {
	doc := NewDocument(1, "report.pdf", DocumentTypePDF, "content")

	doc.MarkProcessing()
	assert.Equal(t, DocumentStatusProcessing, doc.Status)
	assert.Empty(t, doc.ErrorMessage)

	doc.MarkCompleted(7)
	assert.Equal(t, DocumentStatusCompleted, doc.Status)
	assert.Equal(t, 7, doc.ChunkCount)
	assert.Empty(t, doc.ErrorMessage)

	doc.MarkFailed("embedding service unavailable")
	assert.Equal(t, DocumentStatusFailed, doc.Status)
	assert.Equal(t, "embedding service unavailable", doc.ErrorMessage)
}

func TestDocument_ContentNotInJSON(t *testing.T) {
	doc := NewDocument(1, "secret.txt", DocumentTypeText, "raw document body")
	doc.ID = 9

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "raw document body")
	assert.Contains(t, string(data), "secret.txt")
}

func TestDocumentType_Valid(t *testing.T) {
	tests := []struct {
		fileType DocumentType
		want     bool
	}{
		{DocumentTypePDF, true},
		{DocumentTypeDOCX, true},
		{DocumentTypeText, true},
		{DocumentTypeMarkdown, true},
		{DocumentTypeCSV, true},
		{DocumentTypeXLSX, true},
		{DocumentTypeOther, true},
		{DocumentType("exe"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.fileType.Valid(), "file type %q", tt.fileType)
	}
}

// The stored values are lowercase file extensions; constant names may
// change but these strings are persisted and must not.
func TestDocumentType_StoredValues(t *testing.T) {
	assert.Equal(t, "pdf", string(DocumentTypePDF))
	assert.Equal(t, "docx", string(DocumentTypeDOCX))
	assert.Equal(t, "txt", string(DocumentTypeText))
	assert.Equal(t, "md", string(DocumentTypeMarkdown))
	assert.Equal(t, "csv", string(DocumentTypeCSV))
	assert.Equal(t, "xlsx", string(DocumentTypeXLSX))
	assert.Equal(t, "other", string(DocumentTypeOther))
}

// Chat tests
func TestNewChat(t *testing.T) {
	chat := NewChat(3, "Quarterly report questions")

	assert.Equal(t, int64(3), chat.ProjectID)
	assert.Equal(t, "Quarterly report questions", chat.Title)
	assert.False(t, chat.CreatedAt.IsZero())
	assert.Equal(t, chat.CreatedAt, chat.UpdatedAt)
}

func TestChat_TableName(t *testing.T) {
	chat := Chat{}
	assert.Equal(t, "chats", chat.TableName())
}

// ChatMessage tests
func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage(5, "What does the report conclude?")

	assert.Equal(t, int64(5), msg.ChatID)
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "What does the report conclude?", msg.Content)
	assert.Empty(t, msg.Sources)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestNewAssistantMessage(t *testing.T) {
	sources := `[{"document_id":"12","chunk_index":0,"score":0.91}]`

	msg := NewAssistantMessage(5, "The report concludes...", sources, "llama3", 128)

	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, sources, msg.Sources)
	assert.Equal(t, "llama3", msg.ModelName)
	assert.Equal(t, 128, msg.TokenCount)
}

func TestMessageRole_Valid(t *testing.T) {
	assert.True(t, RoleSystem.Valid())
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, MessageRole("moderator").Valid())
}
