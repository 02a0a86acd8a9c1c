package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// atomicWriteJSON writes v to path through a temp file and rename, so
// readers never see a partial file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ReadIndex reads a report.json file.
func ReadIndex(path string) (*Index, error) {
	var index Index
	if err := readJSON(path, &index); err != nil {
		return nil, err
	}
	return &index, nil
}

// ReadFlow reads a flow detail file.
func ReadFlow(path string) (*FlowDetail, error) {
	var fd FlowDetail
	if err := readJSON(path, &fd); err != nil {
		return nil, err
	}
	return &fd, nil
}

// ReadReport reads the index and every flow detail of a report directory.
// Flow files that cannot be read are returned as empty details with the
// index entry's id and name.
func ReadReport(reportDir string) (*Index, []FlowDetail, error) {
	index, err := ReadIndex(filepath.Join(reportDir, "report.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("read index: %w", err)
	}

	flows := make([]FlowDetail, len(index.Flows))
	for i, entry := range index.Flows {
		fd, err := ReadFlow(filepath.Join(reportDir, entry.DataFile))
		if err != nil {
			flows[i] = FlowDetail{ID: entry.ID, Name: entry.Name, SourceFile: entry.SourceFile}
			continue
		}
		flows[i] = *fd
	}
	return index, flows, nil
}

// Recover repairs a report left behind by an interrupted run. Scenarios
// still marked running get a status inferred from their step files and
// scenarios that never started are skipped. A complete report is left
// untouched.
func Recover(reportDir string) error {
	indexPath := filepath.Join(reportDir, "report.json")
	index, err := ReadIndex(indexPath)
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}

	changed := false
	for i := range index.Flows {
		entry := &index.Flows[i]
		switch {
		case entry.Status == StatusPending && index.Status == StatusRunning:
			entry.Status = StatusSkipped
			entry.UpdateSeq++
			changed = true
			continue
		case entry.Status != StatusRunning:
			continue
		}

		status := StatusFailed
		if fd, err := ReadFlow(filepath.Join(reportDir, entry.DataFile)); err == nil {
			status = inferStatus(fd.Steps)
		}
		if status == StatusRunning || status == StatusPending {
			status = StatusFailed
			msg := "Scenario interrupted"
			entry.Error = &msg
		}
		entry.Status = status
		entry.UpdateSeq++
		changed = true
	}

	if !changed {
		return nil
	}

	index.Summary = computeSummary(index.Flows)
	index.Status = computeRunStatus(index.Flows)
	index.UpdateSeq++
	return atomicWriteJSON(indexPath, index)
}

// inferStatus derives a scenario status from its steps.
func inferStatus(steps []Step) Status {
	if len(steps) == 0 {
		return StatusFailed
	}

	done := 0
	for _, s := range steps {
		switch s.Status {
		case StatusFailed:
			return StatusFailed
		case StatusPassed, StatusWarned:
			done++
		}
	}
	if done == len(steps) {
		return StatusPassed
	}
	return StatusRunning
}
