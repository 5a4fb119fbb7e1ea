package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Parsing error codes
const (
	ErrParsing          ErrorCode = "PARSING_ERROR"
	ErrParsingPartial   ErrorCode = "PARSING_PARTIAL_ERROR"
	ErrParsingFixing    ErrorCode = "PARSING_FIXING_ERROR"
	ErrMultilineParsing ErrorCode = "MULTILINE_PARSING_ERROR"
	ErrDecode           ErrorCode = "DECODE_ERROR"
)

// Validation error codes
const (
	ErrValidation         ErrorCode = "VALIDATION_ERROR"
	ErrValidationKey      ErrorCode = "VALIDATION_KEY_ERROR"
	ErrValidationType     ErrorCode = "VALIDATION_TYPE_ERROR"
	ErrValidationRule     ErrorCode = "VALIDATION_RULE_ERROR"
	ErrValidationContent  ErrorCode = "VALIDATION_CONTENT_ERROR"
	ErrValidatorExecution ErrorCode = "VALIDATOR_EXECUTION_ERROR"
)

// Engine and template error codes
const (
	ErrEngineRun  ErrorCode = "ENGINE_RUN_ERROR"
	ErrMaxRetries ErrorCode = "MAX_RETRIES_ERROR"
	ErrTemplate   ErrorCode = "TEMPLATE_ERROR"
	ErrPrompt     ErrorCode = "PROMPT_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Key is the dotted path of the field the error is bound to, if any.
	Key   string `json:"key,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key: %s)", msg, e.Key)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithKey binds the error to a dotted field path.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether any *Error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// KeyPath joins a parent path and a key with a dot, skipping empty parts.
func KeyPath(parent, key string) string {
	switch {
	case parent == "":
		return key
	case key == "":
		return parent
	default:
		return parent + "." + key
	}
}

// =============================================================================
// Composite errors
// =============================================================================

// ParsingError is raised when completion text could not be reduced to a
// structured value. Text holds the generated completion.
type ParsingError struct {
	Message string
	Text    string
	Cause   error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("%s\n\nGenerated Text:\n%s", e.Message, e.Text)
}

func (e *ParsingError) Unwrap() error { return e.Cause }

// ValidationError is raised when a parsed output fails validation. Errors
// holds the flat list produced by the validator.
type ValidationError struct {
	Errors []*Error
	Output any
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("Validation failed with errors:\n")
	for _, err := range e.Errors {
		b.WriteString("- ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\nParsed Output:\n%v", e.Output))
	return b.String()
}

// Feedback renders the error list without the parsed output, for prompts.
func (e *ValidationError) Feedback() string {
	lines := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		lines = append(lines, err.Error())
	}
	return strings.Join(lines, "\n")
}

// HasCode reports whether any collected error carries code.
func (e *ValidationError) HasCode(code ErrorCode) bool {
	for _, err := range e.Errors {
		if err.Code == code {
			return true
		}
	}
	return false
}

// EngineRunError wraps the error of one failed attempt.
type EngineRunError struct {
	Attempt int
	Kind    string
	Err     error
}

// NewEngineRunError classifies err and records the attempt it belongs to.
func NewEngineRunError(attempt int, err error) *EngineRunError {
	return &EngineRunError{Attempt: attempt, Kind: ErrorKind(err), Err: err}
}

func (e *EngineRunError) Error() string {
	return fmt.Sprintf("attempt %d failed with %s: %v", e.Attempt, e.Kind, e.Err)
}

func (e *EngineRunError) Unwrap() error { return e.Err }

// MaxRetriesError is the terminal failure of a run. Log carries every
// error collected while the run was retried.
type MaxRetriesError struct {
	Attempts int
	Log      []error
}

func (e *MaxRetriesError) Error() string {
	var last error
	if len(e.Log) > 0 {
		last = e.Log[len(e.Log)-1]
	}
	return fmt.Sprintf("[%s] run failed after %d attempts, last error: %v", ErrMaxRetries, e.Attempts, last)
}

// Unwrap exposes the collected log to errors.Is / errors.As.
func (e *MaxRetriesError) Unwrap() []error { return e.Log }

// ErrorKind names the class of err for logs and metrics labels.
func ErrorKind(err error) string {
	var (
		pe *ParsingError
		ve *ValidationError
		re *EngineRunError
		mr *MaxRetriesError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &mr):
		return "max_retries"
	case errors.As(err, &re):
		return re.Kind
	case errors.As(err, &pe):
		return "parsing"
	case errors.As(err, &ve):
		return "validation"
	}
	if code := GetErrorCode(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "unknown"
}
