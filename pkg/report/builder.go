package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/scenario-runner/pkg/flow"
)

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	BaseURL       string  // Application under test
	Browser       Browser // Browser information
	RunnerVersion string  // scenario-runner version
	DriverName    string  // playwright, mock
}

// BuildSkeleton creates the initial report structure from parsed scenarios.
// All scenarios and steps are set to "pending" status.
// This should be called after YAML validation, before execution starts.
func BuildSkeleton(flows []flow.Flow, cfg BuilderConfig) (*Index, []FlowDetail, error) {
	now := time.Now()

	index := &Index{
		Version:     Version,
		RunID:       uuid.NewString(),
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		BaseURL:     cfg.BaseURL,
		Browser:     cfg.Browser,
		Runner: RunnerInfo{
			Version: cfg.RunnerVersion,
			Driver:  cfg.DriverName,
		},
		Summary: Summary{
			Total:   len(flows),
			Pending: len(flows),
		},
		Flows: make([]FlowEntry, len(flows)),
	}

	details := make([]FlowDetail, len(flows))
	for i := range flows {
		f := &flows[i]
		flowID := fmt.Sprintf("flow-%03d", i)
		steps := buildSteps(f.Steps)

		index.Flows[i] = FlowEntry{
			Index:      i,
			ID:         flowID,
			Name:       f.Name(),
			SourceFile: f.SourcePath,
			DataFile:   filepath.Join("flows", flowID+".json"),
			AssetsDir:  filepath.Join("assets", flowID),
			Status:     StatusPending,
			Steps: StepSummary{
				Total:   len(steps),
				Pending: len(steps),
			},
		}

		details[i] = FlowDetail{
			ID:          flowID,
			Name:        f.Name(),
			Description: f.Config.Description,
			SourceFile:  f.SourcePath,
			URL:         f.Config.URL,
			Tags:        f.Config.Tags,
			Steps:       steps,
		}
	}

	return index, details, nil
}

// buildSteps creates Step entries from top-level scenario steps.
func buildSteps(steps []flow.Step) []Step {
	out := make([]Step, len(steps))
	for i, step := range steps {
		out[i] = Step{
			ID:       fmt.Sprintf("step-%03d", i),
			Index:    i,
			Type:     string(step.Type()),
			Label:    step.Label(),
			Describe: step.Describe(),
			Status:   StatusPending,
		}
		if sel := flow.TargetOf(step); sel != nil && !sel.IsEmpty() {
			out[i].Selector = sel.DescribeQuoted()
		}
	}
	return out
}

// WriteSkeleton writes the initial skeleton to disk.
// Creates report.json and all flow detail files with pending status.
func WriteSkeleton(outputDir string, index *Index, details []FlowDetail) error {
	if err := ensureDir(filepath.Join(outputDir, "flows")); err != nil {
		return err
	}

	for _, fd := range details {
		flowPath := filepath.Join(outputDir, "flows", fd.ID+".json")
		if err := atomicWriteJSON(flowPath, fd); err != nil {
			return fmt.Errorf("write flow %s: %w", fd.ID, err)
		}
		if err := ensureDir(filepath.Join(outputDir, "assets", fd.ID)); err != nil {
			return err
		}
	}

	if err := atomicWriteJSON(filepath.Join(outputDir, "report.json"), index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
