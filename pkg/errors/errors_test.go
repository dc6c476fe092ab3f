package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewProcessError("failed to spawn reverse proxy", nil)
	assert.Equal(t, "process: failed to spawn reverse proxy", err.Error())

	cause := errors.New("no such file or directory")
	err = NewIOError("failed to read pid file", cause)
	assert.Equal(t, "io: failed to read pid file: no such file or directory", err.Error())
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewProcessError("migrations hook failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestDomainError_IsMatchesOnType(t *testing.T) {
	err := NewTimeoutError("app server socket never appeared", nil)

	assert.True(t, errors.Is(err, NewTimeoutError("other", nil)))
	assert.False(t, errors.Is(err, NewProcessError("other", nil)))
}

func TestDomainError_WithContext(t *testing.T) {
	err := NewValidationError("invalid service name", nil).
		WithContext("service", "task-worker").
		WithContext("pid", 42)

	assert.Equal(t, "task-worker", err.Context["service"])
	assert.Equal(t, 42, err.Context["pid"])
}

func TestTypeCheckers(t *testing.T) {
	wrapped := fmt.Errorf("sweep: %w", NewNotFoundError("service not found", nil))

	assert.True(t, IsNotFoundError(wrapped))
	assert.False(t, IsConflictError(wrapped))
	assert.False(t, IsNotFoundError(errors.New("plain")))
}

func TestErrorCollection(t *testing.T) {
	collection := NewErrorCollection()
	assert.False(t, collection.HasErrors())
	assert.NoError(t, collection.ToError())
	assert.Equal(t, "no errors", collection.Error())

	collection.Add(nil) // ignored
	assert.False(t, collection.HasErrors())

	collection.Add(NewProcessError("task worker did not exit", nil))
	assert.True(t, collection.HasErrors())
	assert.Equal(t, "process: task worker did not exit", collection.Error())

	collection.Add(NewProcessError("cache did not exit", nil))
	assert.Contains(t, collection.Error(), "2 errors occurred")
	assert.Error(t, collection.ToError())
}
