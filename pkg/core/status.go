package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion or action failed
	StatusSkipped                   // Previous step failed or run cancelled
	StatusWarned                    // Optional step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies a scenario failure for diagnostics and reporting
type ErrorCategory int

const (
	ErrCategoryNone           ErrorCategory = iota // No error
	ErrCategoryNavigation                          // Page could not be loaded
	ErrCategoryLocatorTimeout                      // Locator or predicate did not resolve in time
	ErrCategoryAction                              // Input action failed or target not interactable
	ErrCategoryAssertion                           // One-shot assertion was false
	ErrCategoryTimeout                             // Scenario exceeded its overall timeout
	ErrCategoryScript                              // JavaScript evaluation failed
	ErrCategoryConfig                              // Invalid scenario or runner configuration
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryNavigation:
		return "navigation"
	case ErrCategoryLocatorTimeout:
		return "locator_timeout"
	case ErrCategoryAction:
		return "action"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryScript:
		return "script"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// TypeName returns the diagnostic type name shown to users,
// e.g. NavigationError or LocatorTimeoutError.
func (c ErrorCategory) TypeName() string {
	switch c {
	case ErrCategoryNavigation:
		return "NavigationError"
	case ErrCategoryLocatorTimeout:
		return "LocatorTimeoutError"
	case ErrCategoryAction:
		return "ActionError"
	case ErrCategoryAssertion:
		return "AssertionError"
	case ErrCategoryTimeout:
		return "TimeoutError"
	case ErrCategoryScript:
		return "ScriptError"
	case ErrCategoryConfig:
		return "ConfigError"
	default:
		return ""
	}
}
