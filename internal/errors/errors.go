package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Run errors (RUN-001 to RUN-099)
	ErrCodeRunNotFound ErrorCode = "RUN-001"
	ErrCodeRunInvalid  ErrorCode = "RUN-002"

	// Request errors (REQ-001 to REQ-099)
	ErrCodeEmptyRequest ErrorCode = "REQ-001"
	ErrCodeBadRequest   ErrorCode = "REQ-002"

	// Mutation errors (MUT-001 to MUT-099)
	ErrCodeInvalidMutation ErrorCode = "MUT-001"
	ErrCodeUnknownMode     ErrorCode = "MUT-002"

	// Plan errors (PLAN-001 to PLAN-099)
	ErrCodePlanInvalid ErrorCode = "PLAN-001"

	// Project errors (PROJECT-001 to PROJECT-099)
	ErrCodeProjectNotFound ErrorCode = "PROJECT-001"
	ErrCodeProjectExists   ErrorCode = "PROJECT-002"
	ErrCodeProjectInvalid  ErrorCode = "PROJECT-003"

	// Store errors (STORE-001 to STORE-099)
	ErrCodeStoreRead  ErrorCode = "STORE-001"
	ErrCodeStoreWrite ErrorCode = "STORE-002"
	ErrCodeStoreLock  ErrorCode = "STORE-003"

	// Config errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigRead    ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid ErrorCode = "CONFIG-002"

	// Provider errors (PROVIDER-001 to PROVIDER-099)
	ErrCodeProviderConfig    ErrorCode = "PROVIDER-001"
	ErrCodeProviderAuth      ErrorCode = "PROVIDER-002"
	ErrCodeProviderAPI       ErrorCode = "PROVIDER-003"
	ErrCodeProviderRateLimit ErrorCode = "PROVIDER-004"
	ErrCodeProviderTimeout   ErrorCode = "PROVIDER-005"
	ErrCodeProviderEmpty     ErrorCode = "PROVIDER-006"
)

// Error is a coded error carrying optional remediation hints.
type Error struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			fmt.Fprintf(&b, "\n  • %s", suggestion)
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new coded error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new coded error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of the first coded error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a coded error with code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var coded *Error
		if !errors.As(err, &coded) {
			return false
		}
		if coded.Code == code {
			return true
		}
		err = coded.Cause
	}
	return false
}

// Common error constructors for frequently used errors

// NewRunNotFoundError reports a run that does not exist in the store.
func NewRunNotFoundError(project, run string) *Error {
	return New(ErrCodeRunNotFound, fmt.Sprintf("run not found: %s/%s", project, run)).
		WithSuggestion(fmt.Sprintf("Run 'pmteam run list %s' to see available runs", project)).
		WithSuggestion("Import a plan with 'pmteam run import'")
}

// NewEmptyRequestError reports a chat turn with neither text nor mutation.
func NewEmptyRequestError() *Error {
	return New(ErrCodeEmptyRequest, "message is empty and no mutation was given").
		WithSuggestion("Provide a message or one of --blocker, --order, --status")
}

// NewBadRequestError reports a request body or parameter that cannot be
// parsed.
func NewBadRequestError(details string) *Error {
	return New(ErrCodeBadRequest, "malformed request: "+details)
}

// NewInvalidMutationError reports a malformed mutation payload.
func NewInvalidMutationError(mode string, details string) *Error {
	return New(ErrCodeInvalidMutation, fmt.Sprintf("invalid %s payload: %s", mode, details))
}

// NewUnknownModeError reports a mutation mode outside the supported set.
func NewUnknownModeError(mode string) *Error {
	return New(ErrCodeUnknownMode, fmt.Sprintf("unknown mutation mode: %s", mode)).
		WithSuggestion("Use one of: none, add_blocker, reprioritize, update_status")
}

// NewProjectNotFoundError reports a missing project.
func NewProjectNotFoundError(slug string) *Error {
	return New(ErrCodeProjectNotFound, fmt.Sprintf("project not found: %s", slug)).
		WithSuggestion("Run 'pmteam project list' to see available projects")
}

// NewProjectExistsError reports a duplicate project.
func NewProjectExistsError(slug string) *Error {
	return New(ErrCodeProjectExists, fmt.Sprintf("project already exists: %s", slug))
}

// NewProviderAuthError creates a provider authentication error
func NewProviderAuthError(provider string) *Error {
	return New(ErrCodeProviderAuth, fmt.Sprintf("authentication failed for provider: %s", provider)).
		WithSuggestion(fmt.Sprintf("Set the %s_API_KEY environment variable", strings.ToUpper(provider))).
		WithSuggestion("Check if your API key is valid and not expired")
}

// NewProviderRateLimitError creates a rate limit error
func NewProviderRateLimitError(provider string, retryAfter string) *Error {
	msg := fmt.Sprintf("rate limit exceeded for provider: %s", provider)
	if retryAfter != "" {
		msg += fmt.Sprintf(" (retry after: %s)", retryAfter)
	}

	return New(ErrCodeProviderRateLimit, msg).
		WithSuggestion("Wait before retrying the request").
		WithSuggestion("Lower llm.rate_limit_rps in the config")
}

// NewConfigInvalidError reports a configuration validation failure.
func NewConfigInvalidError(details string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'pmteam config show' to inspect the effective configuration")
}
