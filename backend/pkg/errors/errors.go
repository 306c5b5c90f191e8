package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeLLM represents LLM request/response errors
	ErrorTypeLLM ErrorType = "llm"
	// ErrorTypeVector represents vector store errors
	ErrorTypeVector ErrorType = "vector"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeMemory represents memory service errors
	ErrorTypeMemory ErrorType = "memory"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

func (e *BaseError) errorType() ErrorType {
	return e.Type
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// LLM Errors

// ErrLLMNoResponse is returned when the LLM returns no choices
var ErrLLMNoResponse = NewBaseError(ErrorTypeLLM, "no response from LLM", nil)

// ErrLLMRequestFailed is returned when an LLM request fails after retries
type ErrLLMRequestFailed struct {
	*BaseError
	Model    string
	Attempts int
}

func NewLLMRequestFailed(model string, attempts int, err error) *ErrLLMRequestFailed {
	return &ErrLLMRequestFailed{
		BaseError: NewBaseError(ErrorTypeLLM, fmt.Sprintf("LLM request failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
	}
}

// Vector Errors

// ErrVectorConnectionFailed is returned when the Qdrant connection fails
type ErrVectorConnectionFailed struct {
	*BaseError
	URL string
}

func NewVectorConnectionFailed(url string, err error) *ErrVectorConnectionFailed {
	return &ErrVectorConnectionFailed{
		BaseError: NewBaseError(ErrorTypeVector, fmt.Sprintf("failed to connect to Qdrant: %s", url), err),
		URL:       url,
	}
}

// ErrVectorOperationFailed is returned when a vector store operation fails
type ErrVectorOperationFailed struct {
	*BaseError
	Operation  string
	Collection string
}

func NewVectorOperationFailed(operation, collection string, err error) *ErrVectorOperationFailed {
	return &ErrVectorOperationFailed{
		BaseError:  NewBaseError(ErrorTypeVector, fmt.Sprintf("vector operation failed: %s", operation), err),
		Operation:  operation,
		Collection: collection,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when the Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Query string
}

func NewGraphQueryFailed(query string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", query), err),
		Query:     query,
	}
}

// Memory Errors

// ErrMemoryNotStored is returned when the extractor declines to store a message
var ErrMemoryNotStored = NewBaseError(ErrorTypeMemory, "message not memory-worthy", nil)

// ErrMemoryStoreFailed is returned when a dual-store memory write fails
type ErrMemoryStoreFailed struct {
	*BaseError
	UserID string
}

func NewMemoryStoreFailed(userID string, err error) *ErrMemoryStoreFailed {
	return &ErrMemoryStoreFailed{
		BaseError: NewBaseError(ErrorTypeMemory, "failed to store memory", err),
		UserID:    userID,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type. Wrapper types like
// ErrMemoryStoreFailed carry the category via their embedded BaseError.
func IsErrorType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	if typed, ok := err.(interface{ errorType() ErrorType }); ok {
		return typed.errorType() == errType
	}
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		return IsErrorType(wrapped.Unwrap(), errType)
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	// Store connectivity issues are usually transient
	if IsErrorType(err, ErrorTypeGraph) || IsErrorType(err, ErrorTypeVector) {
		return true
	}
	return false
}
