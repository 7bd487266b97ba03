// Package core assembles the Vira assistant from configuration and runs
// conversation turns through the workflow.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStepLimitExceeded indicates that a turn ran into the workflow step ceiling.
	ErrStepLimitExceeded = errors.New("workflow step limit exceeded")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrLLMOperation indicates that an LLM operation failed.
	ErrLLMOperation = errors.New("llm operation failed")
)

// ViraError wraps errors with operation context.
//
// Example:
//
//	err := &ViraError{
//	    Op:  "Chat",
//	    Err: ErrInvalidInput,
//	}
//	// Error() returns: "vira: Chat: invalid input"
type ViraError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns "vira: <Op>: <Err>".
func (e *ViraError) Error() string {
	return fmt.Sprintf("vira: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ViraError) Unwrap() error {
	return e.Err
}

// NewViraError wraps err with op. A nil err returns nil:
//
//	if err != nil {
//	    return NewViraError("Chat", err)
//	}
func NewViraError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ViraError{Op: op, Err: err}
}
