package retrieval

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors for retrieval and sequencing operations.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmbedding        = errors.New("embedding failed")
	ErrIndex            = errors.New("vector index operation failed")
	ErrNotFound         = errors.New("record not found")
	ErrSequencing       = errors.New("sequencing failed")
)

// ValidationError reports malformed caller input. It is always returned
// before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// EmbeddingError reports a rejected or timed out embedding request.
type EmbeddingError struct {
	Cause error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Cause)
}

func (e *EmbeddingError) Unwrap() []error { return []error{ErrEmbedding, e.Cause} }

// IndexError reports a failed upsert, query or fetch against the vector backend.
// Chunk is the zero-based chunk index of a failed batch upsert, or -1.
type IndexError struct {
	Op    string
	Chunk int
	Cause error
}

func (e *IndexError) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("vector index %s failed at chunk %d: %v", e.Op, e.Chunk, e.Cause)
	}
	return fmt.Sprintf("vector index %s failed: %v", e.Op, e.Cause)
}

func (e *IndexError) Unwrap() []error { return []error{ErrIndex, e.Cause} }

// NewIndexError wraps cause as a non-batch IndexError.
func NewIndexError(op string, cause error) *IndexError {
	return &IndexError{Op: op, Chunk: -1, Cause: cause}
}

// SequencingError reports a prerequisite cycle among concept candidates.
type SequencingError struct {
	Cycle []string
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("sequencing failed: prerequisite cycle among [%s]", strings.Join(e.Cycle, ", "))
}

func (e *SequencingError) Unwrap() error { return ErrSequencing }
