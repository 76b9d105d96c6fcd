package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceRead indicates an input file is missing or not tabular.
	ErrSourceRead = errors.New("source read failed")

	// ErrValidation indicates a batch failed schema validation.
	ErrValidation = errors.New("validation failed")

	// ErrAmbiguous indicates a fuzzy name could not be resolved to one target.
	ErrAmbiguous = errors.New("ambiguous reference")

	// ErrNotFound indicates a requested artifact or item does not exist.
	ErrNotFound = errors.New("not found")
)

// SourceReadError is fatal for the whole pipeline run.
type SourceReadError struct {
	Path string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("read source %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

func (e *SourceReadError) Is(target error) bool { return target == ErrSourceRead }

// ValidationError rejects an entire batch. Index is -1 for batch-level problems.
type ValidationError struct {
	Index   int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	if e.Index >= 0 {
		fmt.Fprintf(&b, " for item %d", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a ValidationError.
func NewValidationError(index int, field, message string) *ValidationError {
	return &ValidationError{Index: index, Field: field, Message: message}
}

// AmbiguityError lists the candidates a fuzzy reference could have meant.
// An empty Candidates list means nothing was close enough.
type AmbiguityError struct {
	Kind       string
	Input      string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("%s %q matches nothing", e.Kind, e.Input)
	}
	return fmt.Sprintf("%s %q is ambiguous, candidates: %s", e.Kind, e.Input, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguityError) Is(target error) bool { return target == ErrAmbiguous }

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
