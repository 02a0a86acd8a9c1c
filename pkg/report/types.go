// Package report provides JSON-based test reporting with real-time updates.
//
// Layout:
//   - report.json: Main index file (small, frequently updated, mutex-protected)
//   - flows/flow-XXX.json: Per-scenario detail files (no lock needed)
//   - assets/flow-XXX/: Per-scenario artifacts (screenshots, page snapshots)
//   - report.html: Rendered from the JSON files at the end of the run
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusWarned  Status = "warned" // Optional step failed
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped || s == StatusWarned
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the main report file that binds everything together.
type Index struct {
	Version     string      `json:"version"`
	RunID       string      `json:"runId"`
	UpdateSeq   uint64      `json:"updateSeq"`
	Status      Status      `json:"status"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
	BaseURL     string      `json:"baseUrl"`
	Browser     Browser     `json:"browser"`
	Runner      RunnerInfo  `json:"runner"`
	Summary     Summary     `json:"summary"`
	Flows       []FlowEntry `json:"flows"`
}

// Browser contains browser information.
type Browser struct {
	Name     string `json:"name"` // chromium, firefox, webkit, mock
	Version  string `json:"version,omitempty"`
	Headless bool   `json:"headless"`
}

// RunnerInfo contains scenario-runner information.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"` // playwright, mock
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
	Flaky   int `json:"flaky"`
}

// FlowEntry is the index entry for a scenario (minimal info).
type FlowEntry struct {
	Index          int            `json:"index"`      // Original position
	ID             string         `json:"id"`         // flow-000
	Name           string         `json:"name"`       // Display name
	SourceFile     string         `json:"sourceFile"` // Path to YAML file
	DataFile       string         `json:"dataFile"`   // Path to flow detail JSON
	AssetsDir      string         `json:"assetsDir"`  // Path to assets directory
	Status         Status         `json:"status"`
	UpdateSeq      uint64         `json:"updateSeq"`
	StartTime      *time.Time     `json:"startTime,omitempty"`
	EndTime        *time.Time     `json:"endTime,omitempty"`
	Duration       *int64         `json:"duration,omitempty"` // milliseconds
	LastUpdated    *time.Time     `json:"lastUpdated,omitempty"`
	Steps          StepSummary    `json:"steps"`
	Attempts       int            `json:"attempts"`
	Flaky          bool           `json:"flaky,omitempty"` // Passed after a failed attempt
	AttemptHistory []AttemptEntry `json:"attemptHistory,omitempty"`
	FailedStep     *int           `json:"failedStep,omitempty"`
	ErrorType      string         `json:"errorType,omitempty"` // NavigationError, LocatorTimeoutError, ...
	Error          *string        `json:"error,omitempty"`
}

// StepSummary contains step counts for a scenario.
type StepSummary struct {
	Total   int  `json:"total"`
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	Warned  int  `json:"warned"`
	Running int  `json:"running"`
	Pending int  `json:"pending"`
	Current *int `json:"current,omitempty"` // Currently running step index
}

// AttemptEntry tracks retry attempts.
type AttemptEntry struct {
	Attempt  int    `json:"attempt"`
	Status   Status `json:"status"`
	Duration int64  `json:"duration"` // milliseconds
	Error    string `json:"error,omitempty"`
}

// ============================================================================
// FLOW DETAIL (flows/flow-XXX.json)
// ============================================================================

// FlowDetail contains full scenario execution details.
type FlowDetail struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	SourceFile  string        `json:"sourceFile"`
	URL         string        `json:"url,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     *time.Time    `json:"endTime,omitempty"`
	Duration    *int64        `json:"duration,omitempty"` // milliseconds
	Steps       []Step        `json:"steps"`
	Artifacts   FlowArtifacts `json:"artifacts"`
}

// Step represents a single step execution.
type Step struct {
	ID        string        `json:"id"`
	Index     int           `json:"index"`
	Type      string        `json:"type"`
	Label     string        `json:"label,omitempty"`       // From the YAML label field
	Describe  string        `json:"description,omitempty"` // e.g. fill: placeholder="..." with "x"
	Selector  string        `json:"selector,omitempty"`
	Status    Status        `json:"status"`
	StartTime *time.Time    `json:"startTime,omitempty"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Duration  *int64        `json:"duration,omitempty"` // milliseconds
	Element   *Element      `json:"element,omitempty"`
	Error     *Error        `json:"error,omitempty"`
	Artifacts StepArtifacts `json:"artifacts"`
}

// Element contains information about the matched element.
type Element struct {
	Found   bool   `json:"found"`
	Tag     string `json:"tag,omitempty"`
	Text    string `json:"text,omitempty"`
	Visible bool   `json:"visible"`
}

// Error contains the failure diagnostic for a step.
type Error struct {
	Type     string `json:"type"` // NavigationError, LocatorTimeoutError, ActionError, ...
	Message  string `json:"message"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Details  string `json:"details,omitempty"`
}

// ============================================================================
// ARTIFACTS (paths only, never inline data)
// ============================================================================

// FlowArtifacts contains scenario-level artifact paths.
type FlowArtifacts struct {
	Screenshot string `json:"screenshot,omitempty"` // Final or failure screenshot
	Page       string `json:"page,omitempty"`       // HTML snapshot at failure
}

// StepArtifacts contains step-level artifact paths.
type StepArtifacts struct {
	Screenshot string `json:"screenshot,omitempty"` // From takeScreenshot
}

// ============================================================================
// UPDATE TYPES
// ============================================================================

// FlowUpdate contains the fields to update in index for a scenario.
type FlowUpdate struct {
	Status     Status
	StartTime  *time.Time
	EndTime    *time.Time
	Duration   *int64
	Steps      StepSummary
	FailedStep *int
	ErrorType  string
	Error      *string
}
