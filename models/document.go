package models

import (
	"time"
)

// DocumentStatus represents the processing state of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// DocumentType identifies the source format a document's text was extracted from
type DocumentType string

const (
	DocumentTypePDF      DocumentType = "pdf"
	DocumentTypeDOCX     DocumentType = "docx"
	DocumentTypeText     DocumentType = "txt"
	DocumentTypeMarkdown DocumentType = "md"
	DocumentTypeCSV      DocumentType = "csv"
	DocumentTypeXLSX     DocumentType = "xlsx"
	DocumentTypeOther    DocumentType = "other"
)

// Valid reports whether t is a known document type
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypePDF, DocumentTypeDOCX, DocumentTypeText, DocumentTypeMarkdown,
		DocumentTypeCSV, DocumentTypeXLSX, DocumentTypeOther:
		return true
	}
	return false
}

// Document represents an ingested document. Format extraction happens outside
// this backend: Content holds already-extracted plain text.
type Document struct {
	ID           int64          `json:"id" db:"id"`
	ProjectID    int64          `json:"project_id" db:"project_id"`
	Filename     string         `json:"filename" db:"filename"`
	FileType     DocumentType   `json:"file_type" db:"file_type"`
	Content      string         `json:"-" db:"content"`
	Status       DocumentStatus `json:"status" db:"status"`
	ErrorMessage string         `json:"error_message,omitempty" db:"error_message"`
	WordCount    int            `json:"word_count" db:"word_count"`
	ChunkCount   int            `json:"chunk_count" db:"chunk_count"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
}

// TableName returns the table name for the Document model
func (Document) TableName() string {
	return "documents"
}

// NewDocument creates a new Document instance in the pending state
func NewDocument(projectID int64, filename string, fileType DocumentType, content string) *Document {
	now := time.Now()
	return &Document{
		ProjectID: projectID,
		Filename:  filename,
		FileType:  fileType,
		Content:   content,
		Status:    DocumentStatusPending,
		WordCount: countWords(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkProcessing transitions the document to the processing state
func (d *Document) MarkProcessing() {
	d.Status = DocumentStatusProcessing
	d.UpdatedAt = time.Now()
}

// MarkCompleted transitions the document to the completed state
func (d *Document) MarkCompleted(chunkCount int) {
	d.Status = DocumentStatusCompleted
	d.ChunkCount = chunkCount
	d.ErrorMessage = ""
	d.UpdatedAt = time.Now()
}

// MarkFailed transitions the document to the failed state
func (d *Document) MarkFailed(reason string) {
	d.Status = DocumentStatusFailed
	d.ErrorMessage = reason
	d.UpdatedAt = time.Now()
}

func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				n++
			}
			inWord = true
		}
	}
	return n
}
