package models

import (
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// ErrorType categorizes errors for appropriate handling
//
// Maps to: codex-rs/core/src/function_tool.rs error categorization
type ErrorType int

const (
	ErrorTypeTransient        ErrorType = iota // Network, timeout → Temporal retries
	ErrorTypeContextOverflow                   // Context window exceeded → ContinueAsNew
	ErrorTypeAPILimit                          // Rate limit → surface to user
	ErrorTypeToolFailure                       // Individual tool failed → continue workflow
	ErrorTypeFatal                             // Unrecoverable → stop workflow
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypeContextOverflow:
		return "ContextOverflow"
	case ErrorTypeAPILimit:
		return "APILimit"
	case ErrorTypeToolFailure:
		return "ToolFailure"
	case ErrorTypeFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// ActivityError represents an error from a Temporal activity with categorization
//
// Maps to: codex-rs/core/src/function_tool.rs error handling
type ActivityError struct {
	Type      ErrorType              `json:"type"`
	Retryable bool                   `json:"retryable"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ActivityError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// NewTransientError creates a retryable transient error
func NewTransientError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeTransient,
		Retryable: true,
		Message:   message,
	}
}

// NewContextOverflowError creates a context overflow error
func NewContextOverflowError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeContextOverflow,
		Retryable: false,
		Message:   message,
	}
}

// NewAPILimitError creates an API rate limit error
func NewAPILimitError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeAPILimit,
		Retryable: true,
		Message:   message,
	}
}

// NewToolFailureError creates a tool failure error
func NewToolFailureError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeToolFailure,
		Retryable: false,
		Message:   message,
	}
}

// NewFatalError creates a fatal error
func NewFatalError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeFatal,
		Retryable: false,
		Message:   message,
	}
}

// ApplicationError type strings for LLM activity failures. The workflow's
// error handler switches on these (never on message text).
const (
	LLMErrTypeTransient       = "LLMTransient"
	LLMErrTypeContextOverflow = "LLMContextOverflow"
	LLMErrTypeAPILimit        = "LLMAPILimit"
	LLMErrTypeFatal           = "LLMFatal"
)

// ApplicationError type strings for tool activity failures.
const (
	ToolErrTypeNotFound   = "ToolNotFound"
	ToolErrTypeTimeout    = "ToolTimeout"
	ToolErrTypeValidation = "ToolValidation"
)

// ToolErrorDetails is the structured Details payload attached to tool
// ApplicationErrors so consumers read fields instead of parsing messages.
type ToolErrorDetails struct {
	Tool   string `json:"tool,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// WrapActivityError converts a classified *ActivityError into the
// temporal.ApplicationError the workflow's handleLLMError switches on.
// Transient errors stay retryable so the SDK's RetryPolicy applies;
// everything else fails the activity immediately and is handled by
// workflow logic (compaction, rate-limit sleep, turn abort).
func WrapActivityError(err *ActivityError) error {
	switch err.Type {
	case ErrorTypeTransient:
		return temporal.NewApplicationError(err.Message, LLMErrTypeTransient)
	case ErrorTypeContextOverflow:
		return temporal.NewNonRetryableApplicationError(err.Message, LLMErrTypeContextOverflow, nil)
	case ErrorTypeAPILimit:
		return temporal.NewNonRetryableApplicationError(err.Message, LLMErrTypeAPILimit, nil)
	default:
		return temporal.NewNonRetryableApplicationError(err.Message, LLMErrTypeFatal, nil)
	}
}

// NewToolNotFoundError reports a call to a tool the registry doesn't know.
// Non-retryable: the registry contents don't change between attempts.
func NewToolNotFoundError(tool string) error {
	return temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("tool not found: %s", tool),
		ToolErrTypeNotFound,
		nil,
		ToolErrorDetails{Tool: tool, Reason: "tool not registered on this worker"},
	)
}

// NewToolTimeoutError reports a handler that exceeded its deadline.
func NewToolTimeoutError(tool string, cause error) error {
	return temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("tool %s timed out", tool),
		ToolErrTypeTimeout,
		cause,
		ToolErrorDetails{Tool: tool, Reason: "tool execution timed out"},
	)
}

// NewToolValidationError reports invalid input that will not succeed on retry.
func NewToolValidationError(tool string, cause error) error {
	return temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("tool %s rejected its input", tool),
		ToolErrTypeValidation,
		cause,
		ToolErrorDetails{Tool: tool, Reason: cause.Error()},
	)
}
