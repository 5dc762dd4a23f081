package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeRetrieval  ErrorType = "retrieval"
	ErrorTypeGeneration ErrorType = "generation"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrProjectNotFound  = NewDomainError(ErrorTypeNotFound, "project not found", nil)
	ErrDocumentNotFound = NewDomainError(ErrorTypeNotFound, "document not found", nil)
	ErrChatNotFound     = NewDomainError(ErrorTypeNotFound, "chat not found", nil)

	// Validation Errors
	ErrInvalidInput       = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyQuery         = NewDomainError(ErrorTypeValidation, "query cannot be empty", nil)
	ErrEmptyDocument      = NewDomainError(ErrorTypeValidation, "document content cannot be empty", nil)
	ErrInvalidChunkParams = NewDomainError(ErrorTypeValidation, "invalid chunking parameters", nil)
	ErrInvalidFileType    = NewDomainError(ErrorTypeValidation, "unsupported file type", nil)
	ErrInvalidRAGSettings = NewDomainError(ErrorTypeValidation, "invalid retrieval settings", nil)
	ErrInvalidProvider    = NewDomainError(ErrorTypeValidation, "invalid provider specified", nil)

	// Conflict Errors
	ErrDocumentBusy = NewDomainError(ErrorTypeConflict, "document is already being processed", nil)

	// Internal Errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)

	// External Service Errors
	ErrProviderUnavailable = NewDomainError(ErrorTypeExternal, "LLM provider unavailable", nil)
	ErrEmbeddingFailed     = NewDomainError(ErrorTypeExternal, "embedding service error", nil)

	// Retrieval Errors
	ErrRetrievalFailed = NewDomainError(ErrorTypeRetrieval, "context retrieval failed", nil)

	// Generation Errors
	ErrGenerationFailed = NewDomainError(ErrorTypeGeneration, "answer generation failed", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConflict
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// IsExternalError checks if an error is an external service error
func IsExternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExternal
	}
	return false
}

// IsRetrievalError checks if an error is a retrieval error
func IsRetrievalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeRetrieval
	}
	return false
}

// IsGenerationError checks if an error is a generation error
func IsGenerationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeGeneration
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external service error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}

// WrapRetrieval wraps an error as a retrieval error
func WrapRetrieval(message string, err error) error {
	return NewDomainError(ErrorTypeRetrieval, message, err)
}

// WrapGeneration wraps an error as a generation error
func WrapGeneration(message string, err error) error {
	return NewDomainError(ErrorTypeGeneration, message, err)
}
