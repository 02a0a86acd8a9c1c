package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readAllureResult(t *testing.T, dir, id string) AllureResult {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, AllureDir, id+"-result.json"))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var result AllureResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return result
}

func hasLabel(labels []AllureLabel, name, value string) bool {
	for _, l := range labels {
		if l.Name == name && l.Value == value {
			return true
		}
	}
	return false
}

func TestGenerateAllurePassedFlow(t *testing.T) {
	tmpDir := t.TempDir()
	now := time.Now()
	end := now.Add(3 * time.Second)
	d := int64(3000)
	stepDur := int64(1500)

	index := &Index{
		Version:     Version,
		RunID:       "run-1",
		Status:      StatusPassed,
		StartTime:   now,
		EndTime:     &end,
		LastUpdated: now,
		BaseURL:     "https://todomvc.com/examples/vue/dist/",
		Browser:     Browser{Name: "chromium", Version: "120.0", Headless: true},
		Runner:      RunnerInfo{Version: "0.1.0", Driver: "playwright"},
		Summary:     Summary{Total: 1, Passed: 1},
		Flows: []FlowEntry{{
			ID:         "flow-000",
			Name:       "can add a todo",
			SourceFile: "todomvc/02-add-todo.yaml",
			DataFile:   "flows/flow-000.json",
			Status:     StatusPassed,
			StartTime:  &now,
			EndTime:    &end,
			Duration:   &d,
			Attempts:   2,
			Flaky:      true,
			Steps:      StepSummary{Total: 2, Passed: 2},
		}},
	}
	detail := FlowDetail{
		ID:          "flow-000",
		Name:        "can add a todo",
		Description: "a new todo appears in the list",
		SourceFile:  "todomvc/02-add-todo.yaml",
		URL:         "#/",
		Tags:        []string{"smoke"},
		StartTime:   now,
		Duration:    &d,
		Steps: []Step{
			{ID: "step-000", Index: 0, Type: "fill", Describe: `fill: placeholder="What needs to be done?" with "buy milk"`, Status: StatusPassed, StartTime: &now, Duration: &stepDur},
			{ID: "step-001", Index: 1, Type: "press", Label: "submit the todo", Status: StatusPassed, StartTime: &now, Duration: &stepDur},
		},
	}
	writeTestReport(t, tmpDir, index, detail)

	if err := GenerateAllure(tmpDir); err != nil {
		t.Fatalf("GenerateAllure: %v", err)
	}

	result := readAllureResult(t, tmpDir, "flow-000")
	if result.Status != "passed" {
		t.Errorf("Status = %q, want %q", result.Status, "passed")
	}
	if result.UUID != "run-1-flow-000" {
		t.Errorf("UUID = %q, want %q", result.UUID, "run-1-flow-000")
	}
	if result.Start != now.UnixMilli() || result.Stop != end.UnixMilli() {
		t.Errorf("Start/Stop = %d/%d, want %d/%d", result.Start, result.Stop, now.UnixMilli(), end.UnixMilli())
	}
	if result.Description != "a new todo appears in the list" {
		t.Errorf("Description = %q", result.Description)
	}
	for _, want := range []AllureLabel{
		{Name: "suite", Value: "todomvc"},
		{Name: "subSuite", Value: "02-add-todo.yaml"},
		{Name: "tag", Value: "smoke"},
		{Name: "host", Value: "chromium"},
		{Name: "flaky", Value: "true"},
	} {
		if !hasLabel(result.Labels, want.Name, want.Value) {
			t.Errorf("missing label %s=%s in %v", want.Name, want.Value, result.Labels)
		}
	}
	if len(result.Links) != 1 || result.Links[0].URL != "https://todomvc.com/examples/vue/dist/#/" {
		t.Errorf("Links = %v, want the resolved scenario url", result.Links)
	}

	if len(result.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(result.Steps))
	}
	if result.Steps[0].Name != `fill: placeholder="What needs to be done?" with "buy milk"` {
		t.Errorf("Steps[0].Name = %q, want the step description", result.Steps[0].Name)
	}
	if result.Steps[1].Name != "submit the todo" {
		t.Errorf("Steps[1].Name = %q, want the label", result.Steps[1].Name)
	}
	if result.Steps[1].Stop != now.UnixMilli()+stepDur {
		t.Errorf("Steps[1].Stop = %d, want start + duration", result.Steps[1].Stop)
	}

	for _, name := range []string{"categories.json", "environment.properties", "executor.json"} {
		assertFileExists(t, filepath.Join(tmpDir, AllureDir, name))
	}
	env, err := os.ReadFile(filepath.Join(tmpDir, AllureDir, "environment.properties"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"browser.name=chromium", "browser.headless=true", "runner.driver=playwright"} {
		if !strings.Contains(string(env), want) {
			t.Errorf("environment.properties missing %q:\n%s", want, env)
		}
	}
}

func TestGenerateAllureFailedFlow(t *testing.T) {
	tmpDir := t.TempDir()
	now := time.Now()
	failedStep := 1
	msg := `button name="Delete" resolved to no elements within 5s`

	index := &Index{
		Version: Version,
		RunID:   "run-2",
		Status:  StatusFailed,
		Browser: Browser{Name: "mock"},
		Summary: Summary{Total: 1, Failed: 1},
		Flows: []FlowEntry{{
			ID:         "flow-000",
			Name:       "can delete a todo",
			SourceFile: "todomvc/07-delete-todo.yaml",
			DataFile:   "flows/flow-000.json",
			Status:     StatusFailed,
			StartTime:  &now,
			FailedStep: &failedStep,
			ErrorType:  "LocatorTimeoutError",
			Error:      &msg,
		}},
	}
	detail := FlowDetail{
		ID:        "flow-000",
		Name:      "can delete a todo",
		StartTime: now,
		Steps: []Step{
			{ID: "step-000", Index: 0, Type: "hover", Status: StatusPassed},
			{ID: "step-001", Index: 1, Type: "click", Describe: `click: role=button name="Delete"`, Status: StatusFailed,
				Error: &Error{Type: "LocatorTimeoutError", Message: msg, Expected: "1 element", Actual: "no elements"}},
			{ID: "step-002", Index: 2, Type: "assertCount", Status: StatusSkipped},
		},
		Artifacts: FlowArtifacts{
			Screenshot: "assets/flow-000/failure.png",
			Page:       "assets/flow-000/failure.html",
		},
	}
	writeTestReport(t, tmpDir, index, detail)

	assetsDir := filepath.Join(tmpDir, "assets", "flow-000")
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(assetsDir, "failure.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	// failure.html is missing on purpose

	if err := GenerateAllure(tmpDir); err != nil {
		t.Fatalf("GenerateAllure: %v", err)
	}

	result := readAllureResult(t, tmpDir, "flow-000")
	if result.Status != "failed" {
		t.Errorf("Status = %q, want %q", result.Status, "failed")
	}
	if result.StatusDetails.Message != msg {
		t.Errorf("Message = %q, want %q", result.StatusDetails.Message, msg)
	}
	wantTrace := "LocatorTimeoutError\nstep 2: click: role=button name=\"Delete\"\nexpected: 1 element\nactual:   no elements"
	if result.StatusDetails.Trace != wantTrace {
		t.Errorf("Trace = %q, want %q", result.StatusDetails.Trace, wantTrace)
	}

	statuses := []string{result.Steps[0].Status, result.Steps[1].Status, result.Steps[2].Status}
	if strings.Join(statuses, ",") != "passed,failed,skipped" {
		t.Errorf("step statuses = %v, want passed,failed,skipped", statuses)
	}
	if result.Steps[1].StatusDetails.Trace != "LocatorTimeoutError" {
		t.Errorf("Steps[1] trace = %q, want the error type", result.Steps[1].StatusDetails.Trace)
	}

	if len(result.Attachments) != 2 || result.Attachments[0].Source != "flow-000-failure.png" {
		t.Errorf("Attachments = %v, want failure screenshot and page", result.Attachments)
	}
	assertFileExists(t, filepath.Join(tmpDir, AllureDir, "flow-000-failure.png"))
	if _, err := os.Stat(filepath.Join(tmpDir, AllureDir, "flow-000-failure.html")); !os.IsNotExist(err) {
		t.Errorf("missing source page was copied: %v", err)
	}

	var categories []AllureCategory
	data, err := os.ReadFile(filepath.Join(tmpDir, AllureDir, "categories.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &categories); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range categories {
		if c.Name == "Locator Timeout" && strings.Contains(c.TraceRegex, "LocatorTimeoutError") {
			found = true
		}
	}
	if !found {
		t.Errorf("categories = %v, want a Locator Timeout category", categories)
	}
}

func TestGenerateAllureMissingReport(t *testing.T) {
	if err := GenerateAllure(t.TempDir()); err == nil {
		t.Error("expected error for a directory without report.json")
	}
}

func TestMapAllureStatus(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusPassed, "passed"},
		{StatusWarned, "passed"},
		{StatusFailed, "failed"},
		{StatusSkipped, "skipped"},
		{StatusPending, "unknown"},
		{StatusRunning, "unknown"},
	}
	for _, tt := range tests {
		if got := mapAllureStatus(tt.status); got != tt.want {
			t.Errorf("mapAllureStatus(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		base, url, want string
	}{
		{"https://todomvc.com/examples/vue/dist/", "#/", "https://todomvc.com/examples/vue/dist/#/"},
		{"https://todomvc.com/examples/vue/dist/", "#/active", "https://todomvc.com/examples/vue/dist/#/active"},
		{"https://todomvc.com/", "http://localhost:8080/", "http://localhost:8080/"},
		{"", "#/", "#/"},
	}
	for _, tt := range tests {
		if got := resolveLink(tt.base, tt.url); got != tt.want {
			t.Errorf("resolveLink(%q, %q) = %q, want %q", tt.base, tt.url, got, tt.want)
		}
	}
}
