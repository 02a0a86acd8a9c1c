package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: locator_timeout, strict_mode_violation, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context (selector, expected, actual)
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Is matches predefined errors by code, so errors.Is(err, ErrStrictMode)
// holds for any copy made with the With* helpers.
func (e *ExecutionError) Is(target error) bool {
	var t *ExecutionError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Predefined errors
var (
	// Navigation errors
	ErrNavigation = &ExecutionError{
		Category: ErrCategoryNavigation,
		Code:     "navigation_failed",
		Message:  "navigation failed",
	}

	// Locator timeout errors
	ErrLocatorTimeout = &ExecutionError{
		Category: ErrCategoryLocatorTimeout,
		Code:     "locator_timeout",
		Message:  "locator resolved to no elements before the timeout",
	}
	ErrPredicateTimeout = &ExecutionError{
		Category: ErrCategoryLocatorTimeout,
		Code:     "predicate_timeout",
		Message:  "assertion did not hold before the timeout",
	}

	// Action errors
	ErrStrictMode = &ExecutionError{
		Category: ErrCategoryAction,
		Code:     "strict_mode_violation",
		Message:  "locator resolved to more than one element",
	}
	ErrNotInteractable = &ExecutionError{
		Category: ErrCategoryAction,
		Code:     "not_interactable",
		Message:  "element is not visible and enabled",
	}
	ErrAction = &ExecutionError{
		Category: ErrCategoryAction,
		Code:     "action_failed",
		Message:  "action failed",
	}

	// Assertion errors
	ErrConditionNotMet = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "condition_not_met",
		Message:  "condition was not met",
	}

	// Timeout errors
	ErrScenarioTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "scenario_timeout",
		Message:  "scenario exceeded its timeout",
	}

	// Script errors
	ErrScript = &ExecutionError{
		Category: ErrCategoryScript,
		Code:     "script_error",
		Message:  "script evaluation failed",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CategoryOf returns the category of the first ExecutionError in err's chain.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Category
	}
	return ErrCategoryAction
}
