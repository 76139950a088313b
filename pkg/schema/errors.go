package schema

import "fmt"

// Stable error codes surfaced to callers. Batch operations report one code
// per failed item; single-item operations report one code total.
const (
	ErrCodeParamMissing       = "PARAM_MISSING"
	ErrCodeSourcePinNotFound  = "SOURCE_PIN_NOT_FOUND"
	ErrCodeTargetPinNotFound  = "TARGET_PIN_NOT_FOUND"
	ErrCodePinLookupFailed    = "PIN_LOOKUP_FAILED"
	ErrCodeIdenticalPins      = "IDENTICAL_PINS"
	ErrCodeDifferentGraphs    = "DIFFERENT_GRAPHS"
	ErrCodeConnectionBlocked  = "CONNECTION_BLOCKED"
	ErrCodeConversionRequired = "CONVERSION_REQUIRED"
	ErrCodeWouldBreakExisting = "WOULD_BREAK_EXISTING"
	ErrCodeConnectionFailed   = "CONNECTION_FAILED"
	ErrCodeCannotSplit        = "CANNOT_SPLIT"
	ErrCodeUnsupported        = "OPERATION_NOT_SUPPORTED"

	// Internal lookup and validation codes. Not part of the per-item
	// connection contract but stable for diagnostics.
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNodeNotFound     = "NODE_NOT_FOUND"
	ErrCodePinNotFound      = "PIN_NOT_FOUND"
	ErrCodeGraphNotFound    = "GRAPH_NOT_FOUND"
	ErrCodeFunctionNotFound = "FUNCTION_NOT_FOUND"
	ErrCodeTypeUnresolved   = "TYPE_UNRESOLVED"
	ErrCodeParamExists      = "PARAM_EXISTS"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeStore            = "STORE_ERROR"
)

// GraphError is the structured error type for all graph-editing operations.
// No other error type crosses the engine boundary.
type GraphError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Identifier string         `json:"identifier,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *GraphError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Identifier, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *GraphError) Unwrap() error {
	return e.Cause
}

// NewError creates a new GraphError.
func NewError(code, message string) *GraphError {
	return &GraphError{Code: code, Message: message}
}

// NewErrorf creates a new GraphError with a formatted message.
func NewErrorf(code, format string, args ...any) *GraphError {
	return &GraphError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithIdentifier echoes the reference that failed to resolve, for diagnostics.
func (e *GraphError) WithIdentifier(id string) *GraphError {
	e.Identifier = id
	return e
}

// WithCause attaches an underlying cause.
func (e *GraphError) WithCause(err error) *GraphError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *GraphError) WithDetails(details map[string]any) *GraphError {
	e.Details = details
	return e
}

// CodeOf returns the stable code of err if it is a GraphError, or fallback.
func CodeOf(err error, fallback string) string {
	if ge, ok := err.(*GraphError); ok {
		return ge.Code
	}
	return fallback
}
