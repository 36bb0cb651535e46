package errors

import (
	"errors"
	"fmt"
)

// Common error types for categorization and handling

var (
	// ErrInvalidInput indicates invalid user input
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable indicates an external collaborator kept failing
	// after the retry budget was spent
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDatabaseOperation indicates a database operation failed
	ErrDatabaseOperation = errors.New("database operation failed")

	// ErrLLMCommunication indicates LLM communication failed
	ErrLLMCommunication = errors.New("llm communication failed")

	// ErrRewriteUnparsable indicates the rewriter output could not be parsed
	ErrRewriteUnparsable = errors.New("rewrite output unparsable")

	// ErrClassificationUnparsable indicates the classifier output was not a known decision
	ErrClassificationUnparsable = errors.New("classification output unparsable")

	// ErrFilterAttributeRejected indicates a proposed filter predicate was dropped
	ErrFilterAttributeRejected = errors.New("filter attribute rejected")

	// ErrQueryGenerationFailed indicates no usable structured query could be produced
	ErrQueryGenerationFailed = errors.New("query generation failed")

	// ErrQueryExecutionFailed indicates the structured query failed to execute
	ErrQueryExecutionFailed = errors.New("query execution failed")

	// ErrReadOnlyViolation indicates a statement was not a single read-only query
	// over the allowed table
	ErrReadOnlyViolation = errors.New("statement is not read-only")
)

// permanentError marks failures that retrying cannot fix.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retryable. Wrapped sentinels stay visible to errors.Is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// WrapError wraps an error with context message
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsInvalidInput checks if error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsServiceUnavailable checks if error is a service unavailable error
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// IsQueryGenerationFailed checks if error is a query generation failure
func IsQueryGenerationFailed(err error) bool {
	return errors.Is(err, ErrQueryGenerationFailed)
}

// IsQueryExecutionFailed checks if error is a query execution failure
func IsQueryExecutionFailed(err error) bool {
	return errors.Is(err, ErrQueryExecutionFailed)
}
