package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/scenario-runner/pkg/logger"
)

// FlowWriter writes updates for a single scenario.
// Each scenario goroutine has its own FlowWriter - no locking needed.
type FlowWriter struct {
	flow      *FlowDetail
	path      string
	assetsDir string
	index     *IndexWriter
}

// NewFlowWriter creates a new FlowWriter for a scenario.
func NewFlowWriter(detail *FlowDetail, outputDir string, index *IndexWriter) *FlowWriter {
	assetsDir := filepath.Join(outputDir, "assets", detail.ID)
	if err := ensureDir(assetsDir); err != nil {
		logger.Warn("%v", err)
	}

	return &FlowWriter{
		flow:      detail,
		path:      filepath.Join(outputDir, "flows", detail.ID+".json"),
		assetsDir: assetsDir,
		index:     index,
	}
}

// Start marks the scenario as started. Calling Start again for a retry
// resets every step to pending and clears the previous attempt's artifacts.
func (w *FlowWriter) Start() {
	now := time.Now()
	w.flow.StartTime = now
	w.flow.EndTime = nil
	w.flow.Duration = nil
	w.flow.Artifacts = FlowArtifacts{}
	for i := range w.flow.Steps {
		s := &w.flow.Steps[i]
		*s = Step{
			ID:       s.ID,
			Index:    s.Index,
			Type:     s.Type,
			Label:    s.Label,
			Describe: s.Describe,
			Selector: s.Selector,
			Status:   StatusPending,
		}
	}

	w.flush()
	w.index.UpdateFlow(w.flow.ID, &FlowUpdate{
		Status:    StatusRunning,
		StartTime: &now,
		Steps:     w.stepSummary(),
	})
}

// StepStart marks a step as started.
func (w *FlowWriter) StepStart(i int) {
	if i < 0 || i >= len(w.flow.Steps) {
		return
	}

	now := time.Now()
	step := &w.flow.Steps[i]
	step.Status = StatusRunning
	step.StartTime = &now

	w.flush()
	w.updateIndexProgress()
}

// StepEnd marks a step as complete.
func (w *FlowWriter) StepEnd(i int, status Status, element *Element, err *Error, artifacts StepArtifacts) {
	if i < 0 || i >= len(w.flow.Steps) {
		return
	}

	now := time.Now()
	step := &w.flow.Steps[i]
	step.Status = status
	step.EndTime = &now
	if step.StartTime != nil {
		d := now.Sub(*step.StartTime).Milliseconds()
		step.Duration = &d
	}
	step.Element = element
	step.Error = err
	step.Artifacts = artifacts

	w.flush()
	w.updateIndexProgress()
}

// SkipRemaining marks all pending steps from fromIndex on as skipped.
func (w *FlowWriter) SkipRemaining(fromIndex int) {
	if fromIndex < 0 {
		fromIndex = 0
	}
	for i := fromIndex; i < len(w.flow.Steps); i++ {
		if w.flow.Steps[i].Status == StatusPending {
			w.flow.Steps[i].Status = StatusSkipped
		}
	}
	w.flush()
}

// End marks the scenario as complete. failedStep is -1 when no step failed
// (e.g. navigation or scenario timeout before the first step).
func (w *FlowWriter) End(status Status, failedStep int, errorType, errMsg string) {
	now := time.Now()
	w.flow.EndTime = &now

	var duration int64
	if !w.flow.StartTime.IsZero() {
		duration = now.Sub(w.flow.StartTime).Milliseconds()
	}
	w.flow.Duration = &duration
	w.flush()

	update := &FlowUpdate{
		Status:    status,
		EndTime:   &now,
		Duration:  &duration,
		Steps:     w.stepSummary(),
		ErrorType: errorType,
	}
	if status == StatusFailed {
		if failedStep >= 0 {
			idx := failedStep
			update.FailedStep = &idx
		}
		if errMsg != "" {
			update.Error = &errMsg
		}
	}
	w.index.UpdateFlow(w.flow.ID, update)
}

// SetFlowArtifacts sets scenario-level artifacts.
func (w *FlowWriter) SetFlowArtifacts(artifacts FlowArtifacts) {
	w.flow.Artifacts = artifacts
	w.flush()
}

// SaveScreenshot saves a screenshot and returns the path relative to the
// report directory.
func (w *FlowWriter) SaveScreenshot(name string, data []byte) (string, error) {
	return w.saveAsset(name+".png", data)
}

// SavePage saves an HTML snapshot and returns the relative path.
func (w *FlowWriter) SavePage(name string, html string) (string, error) {
	return w.saveAsset(name+".html", []byte(html))
}

func (w *FlowWriter) saveAsset(filename string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(w.assetsDir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("save %s: %w", filename, err)
	}
	return filepath.Join("assets", w.flow.ID, filename), nil
}

// GetFlowDetail returns the current scenario detail (for reading).
func (w *FlowWriter) GetFlowDetail() *FlowDetail {
	return w.flow
}

func (w *FlowWriter) flush() {
	if err := atomicWriteJSON(w.path, w.flow); err != nil {
		logger.Warn("write flow %s: %v", w.flow.ID, err)
	}
}

func (w *FlowWriter) updateIndexProgress() {
	w.index.UpdateFlow(w.flow.ID, &FlowUpdate{
		Status: StatusRunning,
		Steps:  w.stepSummary(),
	})
}

func (w *FlowWriter) stepSummary() StepSummary {
	var s StepSummary
	s.Total = len(w.flow.Steps)

	for i, step := range w.flow.Steps {
		switch step.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusWarned:
			s.Warned++
		case StatusRunning:
			s.Running++
			idx := i
			s.Current = &idx
		case StatusPending:
			s.Pending++
		}
	}
	return s
}
