package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for upstream collaborator failures. These are surfaced to
// the caller, never swallowed: an explicit failure beats silently scoring
// against an empty catalog.
var (
	ErrCatalogUnavailable = errors.New("question catalog unavailable")
	ErrAdviceUnavailable  = errors.New("advice table unavailable")
	ErrNotFound           = errors.New("not found")
)

// CatalogError wraps a catalog fetch failure with its underlying cause
type CatalogError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

// Unwrap exposes the sentinel so errors.Is(err, ErrCatalogUnavailable) holds
func (e *CatalogError) Unwrap() error {
	return ErrCatalogUnavailable
}

// Cause returns the underlying fetch error
func (e *CatalogError) Cause() error {
	return e.Err
}

// NewCatalogError wraps a fetch failure as a CatalogUnavailable error
func NewCatalogError(op string, err error) *CatalogError {
	return &CatalogError{Op: op, Err: err}
}

// AdviceError wraps an advice table fetch failure with its underlying cause
type AdviceError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *AdviceError) Error() string {
	return fmt.Sprintf("advice table %s: %v", e.Op, e.Err)
}

// Unwrap exposes the sentinel so errors.Is(err, ErrAdviceUnavailable) holds
func (e *AdviceError) Unwrap() error {
	return ErrAdviceUnavailable
}

// Cause returns the underlying fetch error
func (e *AdviceError) Cause() error {
	return e.Err
}

// NewAdviceError wraps a fetch failure as an AdviceUnavailable error
func NewAdviceError(op string, err error) *AdviceError {
	return &AdviceError{Op: op, Err: err}
}

// MalformedQuestionError reports a catalog row that failed structural
// validation. It is logged and the row excluded; it is never fatal.
type MalformedQuestionError struct {
	QuestionID string
	Reason     string
}

// Error implements the error interface
func (e *MalformedQuestionError) Error() string {
	return fmt.Sprintf("malformed question %q: %s", e.QuestionID, e.Reason)
}
