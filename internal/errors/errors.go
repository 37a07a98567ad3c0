package errors

import (
	"fmt"
	"time"
)

// Error types for the document service
type ErrorType string

const (
	// Client-visible errors
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeDuplicate       ErrorType = "duplicate"
	ErrorTypeUnsupportedType ErrorType = "unsupported_type"
	ErrorTypeTooLarge        ErrorType = "too_large"
	ErrorTypeParseFailed     ErrorType = "parse_failed"
	ErrorTypeEmptyContent    ErrorType = "empty_content"
	ErrorTypeInvalidQuery    ErrorType = "invalid_query"
	ErrorTypeTimeout         ErrorType = "timeout"

	// Store errors (subsume connection, query, and transaction failures)
	ErrorTypeStore ErrorType = "store"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// DocumentError represents an error during ingest, retrieval, or deletion
type DocumentError struct {
	Type       ErrorType
	DocumentID int64
	FilePath   string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewDocumentError creates a new document error with context
func NewDocumentError(typ ErrorType, op string, err error) *DocumentError {
	return &DocumentError{
		Type:       typ,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error
func (e *DocumentError) WithFile(path string) *DocumentError {
	e.FilePath = path
	return e
}

// WithID adds the document identifier to the error
func (e *DocumentError) WithID(id int64) *DocumentError {
	e.DocumentID = id
	return e
}

// Error implements the error interface
func (e *DocumentError) Error() string {
	switch {
	case e.FilePath != "":
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	case e.DocumentID != 0:
		return fmt.Sprintf("%s %s failed for document %d: %v", e.Type, e.Operation, e.DocumentID, e.Underlying)
	default:
		return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
	}
}

// Unwrap returns the underlying error for errors.Is/As
func (e *DocumentError) Unwrap() error {
	return e.Underlying
}

// ValidationError represents a tool parameter that failed schema validation
type ValidationError struct {
	Type       ErrorType
	Parameter  string
	Message    string
	Suggestion string
	Timestamp  time.Time
}

// NewValidationError creates a new validation error
func NewValidationError(parameter, message string) *ValidationError {
	return &ValidationError{
		Type:      ErrorTypeValidation,
		Parameter: parameter,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithSuggestion attaches a nearest-match hint shown to the caller
func (e *ValidationError) WithSuggestion(s string) *ValidationError {
	e.Suggestion = s
	return e
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (did you mean %q?)", e.Message, e.Suggestion)
	}
	return e.Message
}

// QueryError represents a search query that could not be executed
type QueryError struct {
	Type       ErrorType
	Query      string
	Underlying error
	Timestamp  time.Time
}

// NewQueryError creates a new query error
func NewQueryError(query string, err error) *QueryError {
	return &QueryError{
		Type:       ErrorTypeInvalidQuery,
		Query:      query,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q rejected: %v", e.Query, e.Underlying)
}

// Unwrap returns the underlying error
func (e *QueryError) Unwrap() error {
	return e.Underlying
}

// StoreError represents a failure inside the persistence layer
type StoreError struct {
	Type       ErrorType
	Operation  string
	Statement  string
	Underlying error
	Timestamp  time.Time
}

// NewStoreError creates a new store error
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{
		Type:       ErrorTypeStore,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithStatement records the SQL statement that failed
func (e *StoreError) WithStatement(stmt string) *StoreError {
	e.Statement = stmt
	return e
}

// Error implements the error interface
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Operation, e.Underlying)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Underlying
}

// ParseError represents a per-file parsing failure
type ParseError struct {
	Type       ErrorType
	FilePath   string
	Parser     string
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(parser, path string, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParseFailed,
		FilePath:   path,
		Parser:     parser,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("[%s] failed to parse %s: %v", e.Parser, e.FilePath, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// TypeOf extracts the ErrorType from any service error, or ErrorTypeInternal
// when the error carries no type.
func TypeOf(err error) ErrorType {
	switch e := err.(type) {
	case *DocumentError:
		return e.Type
	case *ValidationError:
		return e.Type
	case *QueryError:
		return e.Type
	case *StoreError:
		return e.Type
	case *ParseError:
		return e.Type
	default:
		return ErrorTypeInternal
	}
}
