package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseError_Wrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewGraphConnectionFailed("bolt://localhost:7687", cause)

	assert.Contains(t, err.Error(), "bolt://localhost:7687")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))
}

func TestIsErrorType(t *testing.T) {
	graphErr := NewGraphQueryFailed("MATCH (n) RETURN n", errors.New("boom"))
	assert.True(t, IsErrorType(graphErr, ErrorTypeGraph))
	assert.False(t, IsErrorType(graphErr, ErrorTypeVector))

	assert.True(t, IsErrorType(ErrMemoryNotStored, ErrorTypeMemory))
	assert.False(t, IsErrorType(nil, ErrorTypeMemory))

	wrapped := NewMemoryStoreFailed("u1", errors.New("down"))
	assert.True(t, IsErrorType(wrapped, ErrorTypeMemory))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewGraphConnectionFailed("bolt://x", nil)))
	assert.True(t, IsRetryable(NewVectorConnectionFailed("http://x", nil)))
	assert.False(t, IsRetryable(NewContextCancelled("search", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
}
