package core

import (
	"context"

	"github.com/devicelab-dev/scenario-runner/pkg/flow"
)

// Driver defines the page-automation interface for one scenario session.
// Implementations: Playwright (real browser) and mock (in-memory TodoMVC).
// The Runner handles flow logic; Driver just reads page state and performs
// single input actions.
type Driver interface {
	// Navigate loads url and waits for the document to be ready
	Navigate(ctx context.Context, url string) error

	// Title returns the document title
	Title(ctx context.Context) (string, error)

	// Query resolves sel against the current document and returns a
	// snapshot of every match. Zero matches is not an error.
	Query(ctx context.Context, sel *flow.Selector) ([]ElementInfo, error)

	// Act performs a single input action on the element matched by
	// action.Selector. Callers resolve actionability first.
	Act(ctx context.Context, action Action) error

	// Screenshot captures the current viewport as PNG
	Screenshot() ([]byte, error)

	// Content returns the serialized document HTML
	Content(ctx context.Context) (string, error)

	// GetPlatformInfo returns browser details
	GetPlatformInfo() *PlatformInfo

	// Close discards the session and its page context
	Close() error
}

// SessionFactory produces isolated sessions. Each call must return a
// driver backed by a fresh page context that shares no state with others.
type SessionFactory interface {
	NewSession(ctx context.Context) (Driver, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Driver, error)

// NewSession calls f(ctx).
func (f SessionFactoryFunc) NewSession(ctx context.Context) (Driver, error) {
	return f(ctx)
}

// ElementInfo is a point-in-time snapshot of one matched element
type ElementInfo struct {
	ID      string `json:"id,omitempty"`
	Tag     string `json:"tag"`
	Text    string `json:"text"`            // Flattened text content
	Value   string `json:"value,omitempty"` // Input value
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Checked bool   `json:"checked,omitempty"`
}

// Actionable returns true if the element can receive input.
func (e ElementInfo) Actionable() bool {
	return e.Visible && e.Enabled
}

// ActionKind is a user-level input action
type ActionKind string

// ActionKind values
const (
	ActionFill     ActionKind = "fill"
	ActionPress    ActionKind = "press"
	ActionClick    ActionKind = "click"
	ActionDblClick ActionKind = "dblclick"
	ActionHover    ActionKind = "hover"
)

// Action is a single input action against one element.
type Action struct {
	Kind     ActionKind
	Selector *flow.Selector
	Value    string // fill
	Key      string // press
}

// PlatformInfo contains browser details
type PlatformInfo struct {
	Platform       string `json:"platform"` // web
	Browser        string `json:"browser"`  // chromium, firefox, webkit, mock
	BrowserVersion string `json:"browserVersion,omitempty"`
	Headless       bool   `json:"headless"`
}

// ExecutedBy indicates what component executed a step
type ExecutedBy string

// ExecutedBy values
const (
	ExecutedByDriver ExecutedBy = "driver" // Executed against the page
	ExecutedByRunner ExecutedBy = "runner" // Executed by the Runner (JS, subflow, etc.)
)
