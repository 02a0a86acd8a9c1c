// Package executor runs scenarios against page sessions, connecting drivers
// to reports.
package executor

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
	"github.com/devicelab-dev/scenario-runner/pkg/logger"
	"github.com/devicelab-dev/scenario-runner/pkg/report"
	"github.com/devicelab-dev/scenario-runner/pkg/wait"
)

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	OutputDir       string            // Report output directory; empty disables the report
	BaseURL         string            // Scenario URLs resolve against this
	Timeout         time.Duration     // Default polling window per step
	ScenarioTimeout time.Duration     // Whole-scenario limit (0 = none)
	Parallelism     int               // Max concurrent scenarios (<= 1 = sequential)
	Retries         int               // Extra attempts for a failed scenario
	StopOnFail      bool              // Skip scenarios not yet started after a failure
	Artifacts       core.ArtifactMode // When to capture screenshots and page snapshots
	Env             map[string]string // Variables from config and --env

	// Report metadata
	Browser       report.Browser
	RunnerVersion string
	DriverName    string

	// Live progress callbacks. With Parallelism > 1 they are called from
	// several goroutines.
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(flowName string, idx int, desc string, status report.Status, durationMs int64, err string)
	OnFlowEnd      func(result FlowResult)
}

func (c RunnerConfig) stepTimeout(step flow.Step) time.Duration {
	if t := step.Timeout(); t > 0 {
		return t
	}
	if c.Timeout > 0 {
		return c.Timeout
	}
	return wait.DefaultTimeout
}

// RunResult contains the outcome of a run.
type RunResult struct {
	Status       report.Status
	TotalFlows   int
	PassedFlows  int
	FailedFlows  int
	SkippedFlows int
	FlakyFlows   int
	Duration     int64 // Wall-clock duration in milliseconds
	ReportDir    string
	FlowResults  []FlowResult
}

// FlowResult contains the outcome of a single scenario execution.
type FlowResult struct {
	ID         string
	Name       string
	SourceFile string
	Status     report.Status
	FailedStep *int   // Index of the failing top-level step, if any
	StepDesc   string // Description of the failing step
	Diagnostic string // Human-readable failure, expected vs actual
	ErrorType  string // NavigationError, LocatorTimeoutError, ActionError, ...
	Expected   string
	Actual     string
	Attempts   int
	Flaky      bool
	Duration   int64 // milliseconds, last attempt

	StepsTotal   int
	StepsPassed  int
	StepsFailed  int
	StepsSkipped int
	StepsWarned  int
}

// Passed reports whether the scenario succeeded.
func (r FlowResult) Passed() bool {
	return r.Status == report.StatusPassed || r.Status == report.StatusWarned
}

// Runner orchestrates scenario execution. Every scenario attempt gets its
// own session from the factory.
type Runner struct {
	config  RunnerConfig
	factory core.SessionFactory
}

// New creates a new Runner.
func New(factory core.SessionFactory, cfg RunnerConfig) *Runner {
	return &Runner{
		config:  cfg,
		factory: factory,
	}
}

// Run executes all scenarios, writes the report and aggregates results.
// Failing scenarios never stop the others unless StopOnFail is set.
func (r *Runner) Run(ctx context.Context, flows []flow.Flow) (*RunResult, error) {
	start := time.Now()

	index, details, err := report.BuildSkeleton(flows, report.BuilderConfig{
		BaseURL:       r.config.BaseURL,
		Browser:       r.config.Browser,
		RunnerVersion: r.config.RunnerVersion,
		DriverName:    r.config.DriverName,
	})
	if err != nil {
		return nil, err
	}

	var indexWriter *report.IndexWriter
	if r.config.OutputDir != "" {
		if err := report.WriteSkeleton(r.config.OutputDir, index, details); err != nil {
			return nil, err
		}
		indexWriter = report.NewIndexWriter(r.config.OutputDir, index)
		defer indexWriter.Close()
		indexWriter.Start()
	}

	logger.Info("run %s: %d scenarios, parallelism %d, retries %d", index.RunID, len(flows), r.config.Parallelism, r.config.Retries)
	results := r.executeFlows(ctx, flows, details, indexWriter)

	if indexWriter != nil {
		if err := indexWriter.End(); err != nil {
			logger.Warn("render html report: %v", err)
		}
	}

	result := buildRunResult(results)
	result.Duration = time.Since(start).Milliseconds()
	result.ReportDir = r.config.OutputDir
	return result, nil
}

// RunScenario runs one scenario without writing a report and returns its
// result.
func (r *Runner) RunScenario(ctx context.Context, f flow.Flow) FlowResult {
	_, details, _ := report.BuildSkeleton([]flow.Flow{f}, report.BuilderConfig{})
	return r.executeFlow(ctx, f, &details[0], nil, 0, 1)
}

// executeFlows runs scenarios sequentially or with bounded parallelism.
func (r *Runner) executeFlows(ctx context.Context, flows []flow.Flow, details []report.FlowDetail, indexWriter *report.IndexWriter) []FlowResult {
	results := make([]FlowResult, len(flows))
	total := len(flows)

	var stopped atomic.Bool
	shouldSkip := func() (bool, string) {
		if ctx.Err() != nil {
			return true, "run cancelled"
		}
		if stopped.Load() {
			return true, "stopped after an earlier failure"
		}
		return false, ""
	}

	limit := r.config.Parallelism
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i := range flows {
		i := i
		if skip, reason := shouldSkip(); skip {
			results[i] = r.skipFlow(&details[i], indexWriter, reason)
			continue
		}

		g.Go(func() error {
			if skip, reason := shouldSkip(); skip {
				results[i] = r.skipFlow(&details[i], indexWriter, reason)
				return nil
			}
			results[i] = r.executeFlow(ctx, flows[i], &details[i], indexWriter, i, total)
			if r.config.StopOnFail && results[i].Status == report.StatusFailed {
				stopped.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) skipFlow(detail *report.FlowDetail, indexWriter *report.IndexWriter, reason string) FlowResult {
	logger.Info("skipping %q: %s", detail.Name, reason)
	if indexWriter != nil {
		fw := report.NewFlowWriter(detail, r.config.OutputDir, indexWriter)
		fw.SkipRemaining(0)
		fw.End(report.StatusSkipped, -1, "", reason)
	}
	return FlowResult{
		ID:           detail.ID,
		Name:         detail.Name,
		SourceFile:   detail.SourceFile,
		Status:       report.StatusSkipped,
		Diagnostic:   reason,
		StepsTotal:   len(detail.Steps),
		StepsSkipped: len(detail.Steps),
	}
}

// executeFlow runs a scenario, retrying failed attempts on fresh sessions.
func (r *Runner) executeFlow(ctx context.Context, f flow.Flow, detail *report.FlowDetail, indexWriter *report.IndexWriter, flowIdx, totalFlows int) FlowResult {
	if r.config.OnFlowStart != nil {
		r.config.OnFlowStart(flowIdx, totalFlows, detail.Name, f.SourcePath)
	}

	var rec recorder = nopRecorder{}
	if indexWriter != nil {
		rec = report.NewFlowWriter(detail, r.config.OutputDir, indexWriter)
	}

	maxAttempts := 1 + r.config.Retries
	var result FlowResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fr := &FlowRunner{
			flow:     f,
			detail:   detail,
			factory:  r.factory,
			config:   r.config,
			recorder: rec,
			attempt:  attempt,
		}
		result = fr.Run(ctx)
		result.Attempts = attempt

		if indexWriter != nil {
			indexWriter.RecordAttempt(detail.ID, attempt, result.Status, result.Duration, result.Diagnostic)
		}
		if result.Status != report.StatusFailed || ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts {
			logger.Warn("scenario %q failed on attempt %d/%d, retrying: %s", detail.Name, attempt, maxAttempts, result.Diagnostic)
		}
	}
	result.Flaky = result.Passed() && result.Attempts > 1

	if r.config.OnFlowEnd != nil {
		r.config.OnFlowEnd(result)
	}
	return result
}

// buildRunResult aggregates scenario results into a run result.
func buildRunResult(flowResults []FlowResult) *RunResult {
	result := &RunResult{
		TotalFlows:  len(flowResults),
		FlowResults: flowResults,
	}

	for _, fr := range flowResults {
		switch {
		case fr.Passed():
			result.PassedFlows++
		case fr.Status == report.StatusFailed:
			result.FailedFlows++
		case fr.Status == report.StatusSkipped:
			result.SkippedFlows++
		}
		if fr.Flaky {
			result.FlakyFlows++
		}
	}

	switch {
	case result.FailedFlows > 0:
		result.Status = report.StatusFailed
	case result.SkippedFlows > 0 && result.PassedFlows == 0 && result.TotalFlows > 0:
		result.Status = report.StatusSkipped
	default:
		result.Status = report.StatusPassed
	}
	return result
}
