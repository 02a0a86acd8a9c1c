package report

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/scenario-runner/pkg/logger"
)

// IndexWriter provides thread-safe updates to the report index.
// Multiple scenario goroutines can update the index concurrently.
type IndexWriter struct {
	mu        sync.Mutex
	outputDir string
	path      string
	index     *Index

	// Debouncing for progress updates
	pending map[string]*FlowUpdate
	timer   *time.Timer
	closed  bool
}

// NewIndexWriter creates a new IndexWriter.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, "report.json"),
		index:     index,
		pending:   make(map[string]*FlowUpdate),
	}
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now
	w.flushLocked()
}

// UpdateFlow updates a flow entry in the index.
// Terminal states flush immediately; progress updates are debounced.
func (w *IndexWriter) UpdateFlow(flowID string, update *FlowUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[flowID] = update

	if update.Status.IsTerminal() {
		w.flushLocked()
		return
	}

	if w.timer == nil && !w.closed {
		w.timer = time.AfterFunc(100*time.Millisecond, w.flush)
	}
}

// RecordAttempt records a finished attempt for a flow. A scenario that
// passes after a failed attempt is marked flaky.
func (w *IndexWriter) RecordAttempt(flowID string, attempt int, status Status, duration int64, errMsg string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.index.Flows {
		f := &w.index.Flows[i]
		if f.ID != flowID {
			continue
		}
		f.Attempts = attempt
		f.AttemptHistory = append(f.AttemptHistory, AttemptEntry{
			Attempt:  attempt,
			Status:   status,
			Duration: duration,
			Error:    errMsg,
		})
		if status == StatusPassed && attempt > 1 {
			f.Flaky = true
		}
		break
	}

	w.flushLocked()
}

// End marks the run as complete and renders report.html.
func (w *IndexWriter) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for id, update := range w.pending {
		w.applyUpdate(id, update)
	}
	w.pending = make(map[string]*FlowUpdate)
	w.index.EndTime = &now
	w.index.Status = computeRunStatus(w.index.Flows)
	w.flushLocked()

	return GenerateHTML(w.outputDir, HTMLConfig{Title: "Scenario Report"})
}

// Close stops the debounce timer and flushes pending updates.
func (w *IndexWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.flushLocked()
}

// GetIndex returns the current index (for reading).
func (w *IndexWriter) GetIndex() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index
}

func (w *IndexWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
}

func (w *IndexWriter) flushLocked() {
	for flowID, update := range w.pending {
		w.applyUpdate(flowID, update)
	}
	w.pending = make(map[string]*FlowUpdate)

	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = computeSummary(w.index.Flows)

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	if err := atomicWriteJSON(w.path, w.index); err != nil {
		logger.Warn("write report index: %v", err)
	}
}

func (w *IndexWriter) applyUpdate(flowID string, update *FlowUpdate) {
	for i := range w.index.Flows {
		f := &w.index.Flows[i]
		if f.ID != flowID {
			continue
		}
		f.Status = update.Status
		if update.StartTime != nil {
			f.StartTime = update.StartTime
		}
		if update.EndTime != nil {
			f.EndTime = update.EndTime
		}
		if update.Duration != nil {
			f.Duration = update.Duration
		}
		f.Steps = update.Steps
		f.FailedStep = update.FailedStep
		f.ErrorType = update.ErrorType
		f.Error = update.Error
		f.UpdateSeq++
		now := time.Now()
		f.LastUpdated = &now
		return
	}
}

// computeSummary calculates summary from flow statuses.
func computeSummary(flows []FlowEntry) Summary {
	var s Summary
	for _, f := range flows {
		s.Total++
		switch f.Status {
		case StatusPassed, StatusWarned:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
		if f.Flaky {
			s.Flaky++
		}
	}
	return s
}

// computeRunStatus determines overall run status from flows.
func computeRunStatus(flows []FlowEntry) Status {
	hasFailure := false
	for _, f := range flows {
		if !f.Status.IsTerminal() {
			return StatusRunning
		}
		if f.Status == StatusFailed {
			hasFailure = true
		}
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}
