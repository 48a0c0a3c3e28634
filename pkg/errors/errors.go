// Package errors defines the structured error type shared across the
// doublepost packages. Every error carries a category, a machine-readable
// code, and optional context so the CLI can render actionable messages and
// pick sensible exit codes.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the subsystem that produced them.
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryMatching      ErrorCategory = "matching"
	CategoryAlias         ErrorCategory = "alias"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"
	CodeOutOfRange    ErrorCode = "out_of_range"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Matching errors
	CodeMatchingFailed  ErrorCode = "matching_failed"
	CodeMatchConflict   ErrorCode = "match_conflict"
	CodeInvalidDecision ErrorCode = "invalid_decision"

	// Alias errors
	CodeAliasNotFound ErrorCode = "alias_not_found"
	CodeAliasStorage  ErrorCode = "alias_storage"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// DoublePostError is the base error type for all application errors.
type DoublePostError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context carries structured details about the failure.
type Context map[string]interface{}

// Error implements the error interface.
func (e *DoublePostError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *DoublePostError) Unwrap() error {
	return e.Cause
}

// GetExitCode maps the error category to a process exit code.
func (e *DoublePostError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryMatching, CategoryAlias, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds a key/value detail to the error.
func (e *DoublePostError) WithContext(key string, value interface{}) *DoublePostError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches a remediation hint to the error.
func (e *DoublePostError) WithSuggestion(suggestion string) *DoublePostError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DoublePostError.
func New(category ErrorCategory, code ErrorCode, message string) *DoublePostError {
	return &DoublePostError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with DoublePostError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *DoublePostError {
	if err == nil {
		return nil
	}

	return &DoublePostError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer extracts stack traces from github.com/pkg/errors values.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// FileError creates a file-related error.
func FileError(code ErrorCode, path string, err error) *DoublePostError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check that the path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	var result *DoublePostError
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a CSV parsing error located by file, line, and column.
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *DoublePostError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "check the data format matches the expected export layout"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with recognizable headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the value or remove the row"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	var result *DoublePostError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column).
		WithContext("value", value)
}

// ValidationError creates a validation error for a named field.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *DoublePostError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use a supported date format such as YYYY-MM-DD"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *DoublePostError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *DoublePostError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting via flag, environment, or config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *DoublePostError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// MatchingError creates a matching-related error.
func MatchingError(code ErrorCode, operation string, err error) *DoublePostError {
	var message string
	var suggestion string

	switch code {
	case CodeMatchingFailed:
		message = fmt.Sprintf("matching failed during %s", operation)
		suggestion = "try adjusting matching tolerances or check data quality"
	case CodeMatchConflict:
		message = fmt.Sprintf("conflicting match detected during %s", operation)
		suggestion = "each transaction can belong to at most one match"
	case CodeInvalidDecision:
		message = fmt.Sprintf("invalid match decision during %s", operation)
		suggestion = "decisions must be one of pending, accepted, or rejected"
	default:
		message = fmt.Sprintf("matching error during %s", operation)
		suggestion = "review the data and configuration"
	}

	var result *DoublePostError
	if err != nil {
		result = Wrap(err, CategoryMatching, code, message)
	} else {
		result = New(CategoryMatching, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// AliasError creates an alias-store error.
func AliasError(code ErrorCode, alias string, err error) *DoublePostError {
	var message string
	var suggestion string

	switch code {
	case CodeAliasNotFound:
		message = fmt.Sprintf("no alias found for '%s'", alias)
		suggestion = "add the alias first with 'doublepost aliases add'"
	case CodeAliasStorage:
		message = fmt.Sprintf("alias storage failure for '%s'", alias)
		suggestion = "check that the alias database is writable"
	default:
		message = fmt.Sprintf("alias error for '%s'", alias)
		suggestion = "check the alias and try again"
	}

	var result *DoublePostError
	if err != nil {
		result = Wrap(err, CategoryAlias, code, message)
	} else {
		result = New(CategoryAlias, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("alias", alias)
}

// InternalError creates an internal error.
func InternalError(code ErrorCode, operation string, err error) *DoublePostError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	suggestion := "this is likely a bug, please report it with the error details"

	var result *DoublePostError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary aggregates multiple errors for batch reporting.
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*DoublePostError    `json:"errors"`
}

// NewErrorSummary creates a summary over the given errors.
func NewErrorSummary(errs []*DoublePostError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if errs == nil {
		summary.Errors = []*DoublePostError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted message for the summary.
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory reports whether the summary contains errors of the category.
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// GetExitCode returns the highest exit code across all errors.
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// AsDoublePostError extracts a DoublePostError from an error chain.
func AsDoublePostError(err error) (*DoublePostError, bool) {
	var dpErr *DoublePostError
	if errors.As(err, &dpErr) {
		return dpErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error unless it already is a DoublePostError.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *DoublePostError {
	if err == nil {
		return nil
	}

	if dpErr, ok := AsDoublePostError(err); ok {
		return dpErr
	}

	return Wrap(err, category, code, message)
}
