package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sebdah/goldie/v2"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/scenario-runner/pkg/config"
	"github.com/devicelab-dev/scenario-runner/pkg/executor"
	"github.com/devicelab-dev/scenario-runner/pkg/report"
)

// newTestApp returns the real app writing to buffers. Exit errors are
// returned instead of terminating the test binary.
func newTestApp() (*cli.App, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	app := NewApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app, &out, &errOut
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

const missingButtonScenario = `name: missing button
url: "#/"
---
- click:
    text: Nothing here
`

const addTodoScenario = `name: adds one todo
url: "#/"
---
- fill:
    placeholder: What needs to be done?
    value: Feed the cat
- press:
    placeholder: What needs to be done?
    key: Enter
- assertCount:
    within:
      css: ul.todo-list
    role: listitem
    count: 1
`

func TestResolveOutputDir_Default(t *testing.T) {
	dir, err := resolveOutputDir("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "reports/") {
		t.Errorf("expected dir to start with reports/, got %s", dir)
	}
	// Should have timestamp subfolder
	parts := strings.Split(dir, "/")
	if len(parts) != 2 {
		t.Errorf("expected reports/<timestamp>, got %s", dir)
	}
}

func TestResolveOutputDir_CustomOutput(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "my-reports/") {
		t.Errorf("expected dir to start with my-reports/, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	_, err := resolveOutputDir("", true)
	if err == nil {
		t.Fatal("expected error when flatten is used without output")
	}

	if !strings.Contains(err.Error(), "--flatten requires --output") {
		t.Errorf("expected error about --flatten requiring --output, got: %v", err)
	}
}

func TestParseEnvVars(t *testing.T) {
	result := parseEnvVars([]string{"TODO=Feed the cat", "QUERY=a=b", "EMPTY=", "INVALID", ""})

	want := map[string]string{"TODO": "Feed the cat", "QUERY": "a=b", "EMPTY": ""}
	if len(result) != len(want) {
		t.Errorf("parseEnvVars() = %v, want %v", result, want)
	}
	for k, v := range want {
		if got, ok := result[k]; !ok || got != v {
			t.Errorf("result[%q] = %q, want %q", k, got, v)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms       int64
		expected string
	}{
		{0, "0ms"},
		{50, "50ms"},
		{999, "999ms"},
		{1000, "1.0s"},
		{1500, "1.5s"},
		{2126, "2.1s"},
		{59999, "60.0s"},
		{60000, "1m 0s"},
		{90000, "1m 30s"},
		{125000, "2m 5s"},
	}

	for _, tc := range tests {
		result := formatDuration(tc.ms)
		if result != tc.expected {
			t.Errorf("formatDuration(%d) = %q, expected %q", tc.ms, result, tc.expected)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	flagNames := make(map[string]bool)
	for _, f := range GlobalFlags() {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{"verbose", "no-ansi"} {
		if !flagNames[name] {
			t.Errorf("expected flag %q to be defined", name)
		}
	}
}

func TestTestCommand_Flags(t *testing.T) {
	flagNames := make(map[string]bool)
	for _, f := range testFlags() {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{
		"base-url", "timeout", "scenario-timeout", "headless", "retries",
		"filter", "parallel", "driver", "browser", "env", "e", "continuous",
	} {
		if !flagNames[name] {
			t.Errorf("expected flag %q to be defined", name)
		}
	}
}

// captureRunConfig runs a fresh set of the test command's flags through
// buildRunConfig.
func captureRunConfig(t *testing.T, args ...string) (*RunConfig, error) {
	t.Helper()
	var cfg *RunConfig
	var buildErr error
	app := &cli.App{
		Name:           "scenario-runner",
		Flags:          GlobalFlags(),
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{{
			Name:  "test",
			Flags: testFlags(),
			Action: func(c *cli.Context) error {
				cfg, buildErr = buildRunConfig(c)
				return nil
			},
		}},
	}
	if err := app.Run(append([]string{"scenario-runner"}, args...)); err != nil {
		t.Fatalf("app.Run() error = %v", err)
	}
	return cfg, buildErr
}

func TestBuildRunConfig_Defaults(t *testing.T) {
	cfg, err := captureRunConfig(t, "test", "--output", t.TempDir(), "--flatten")
	if err != nil {
		t.Fatalf("buildRunConfig() error = %v", err)
	}

	if cfg.BaseURL != config.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, config.DefaultBaseURL)
	}
	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, config.DefaultTimeout)
	}
	if cfg.ScenarioTimeout != config.DefaultScenarioTimeout {
		t.Errorf("ScenarioTimeout = %v, want %v", cfg.ScenarioTimeout, config.DefaultScenarioTimeout)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want true")
	}
	if cfg.Driver != driverPlaywright || cfg.Browser != "chromium" {
		t.Errorf("Driver/Browser = %s/%s, want playwright/chromium", cfg.Driver, cfg.Browser)
	}
	if cfg.Parallel != 1 || cfg.Retries != 0 {
		t.Errorf("Parallel/Retries = %d/%d, want 1/0", cfg.Parallel, cfg.Retries)
	}
	if len(cfg.Paths) != 0 {
		t.Errorf("Paths = %v, want bundled suite", cfg.Paths)
	}
}

func TestBuildRunConfig_FlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := writeScenario(t, dir, "config.yaml", `scenarios:
  - "*.yaml"
baseUrl: http://localhost:8080/
timeout: 3s
retries: 2
parallel: 2
headless: false
excludeTags: [wip]
env:
  TODO: from config
  OTHER: kept
`)

	cfg, err := captureRunConfig(t, "test",
		"--config", configPath,
		"--timeout", "750ms",
		"--headless",
		"--exclude-tags", "slow",
		"-e", "TODO=from flag",
		"--output", dir, "--flatten")
	if err != nil {
		t.Fatalf("buildRunConfig() error = %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080/" {
		t.Errorf("BaseURL = %q, want config value", cfg.BaseURL)
	}
	if cfg.Timeout != 750*time.Millisecond {
		t.Errorf("Timeout = %v, want flag value 750ms", cfg.Timeout)
	}
	if cfg.Retries != 2 || cfg.Parallel != 2 {
		t.Errorf("Retries/Parallel = %d/%d, want 2/2", cfg.Retries, cfg.Parallel)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want flag to override config")
	}
	if cfg.Env["TODO"] != "from flag" || cfg.Env["OTHER"] != "kept" {
		t.Errorf("Env = %v, want flag over config", cfg.Env)
	}
	if got := strings.Join(cfg.ExcludeTags, ","); got != "wip,slow" {
		t.Errorf("ExcludeTags = %q, want %q", got, "wip,slow")
	}
	// Without path arguments the config's own directory is selected
	if len(cfg.Paths) != 1 || cfg.Paths[0] != dir {
		t.Errorf("Paths = %v, want [%s]", cfg.Paths, dir)
	}
}

func TestBuildRunConfig_EnvVars(t *testing.T) {
	t.Setenv("SCENARIO_BASE_URL", "http://127.0.0.1:3000/")
	t.Setenv("SCENARIO_DRIVER", "mock")

	cfg, err := captureRunConfig(t, "test", "--output", t.TempDir(), "--flatten")
	if err != nil {
		t.Fatalf("buildRunConfig() error = %v", err)
	}
	if cfg.BaseURL != "http://127.0.0.1:3000/" {
		t.Errorf("BaseURL = %q, want env value", cfg.BaseURL)
	}
	if cfg.Driver != driverMock {
		t.Errorf("Driver = %q, want mock", cfg.Driver)
	}
}

func TestBuildRunConfig_EnvVarsDoNotOutliveTheApp(t *testing.T) {
	t.Run("env set", func(t *testing.T) {
		t.Setenv("SCENARIO_DRIVER", "mock")
		t.Setenv("SCENARIO_BROWSER", "firefox")
		cfg, err := captureRunConfig(t, "test", "--output", t.TempDir(), "--flatten")
		if err != nil {
			t.Fatalf("buildRunConfig() error = %v", err)
		}
		if cfg.Driver != driverMock || cfg.Browser != "firefox" {
			t.Errorf("Driver/Browser = %s/%s, want mock/firefox", cfg.Driver, cfg.Browser)
		}
	})

	cfg, err := captureRunConfig(t, "test", "--output", t.TempDir(), "--flatten")
	if err != nil {
		t.Fatalf("buildRunConfig() error = %v", err)
	}
	if cfg.Driver != driverPlaywright {
		t.Errorf("Driver = %q, want %q once SCENARIO_DRIVER is unset", cfg.Driver, driverPlaywright)
	}
	if cfg.Browser != config.DefaultBrowser {
		t.Errorf("Browser = %q, want %q once SCENARIO_BROWSER is unset", cfg.Browser, config.DefaultBrowser)
	}

	_, err = captureRunConfig(t, "test", "--output", t.TempDir(), "--flatten", "--browser", "netscape")
	if err == nil || !strings.Contains(err.Error(), "unsupported browser") {
		t.Errorf("buildRunConfig(--browser netscape) error = %v, want unsupported browser", err)
	}
}

func TestBuildRunConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown driver", []string{"--driver", "selenium"}, "unknown driver"},
		{"unknown browser", []string{"--browser", "netscape"}, "unsupported browser"},
		{"negative retries", []string{"--retries", "-1"}, "--retries"},
		{"zero parallel", []string{"--parallel", "0"}, "--parallel"},
		{"zero timeout", []string{"--timeout", "0s"}, "--timeout"},
		{"bad artifacts", []string{"--artifacts", "sometimes"}, "sometimes"},
		{"continuous without paths", []string{"--continuous"}, "--continuous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"test", "--output", t.TempDir(), "--flatten"}, tt.args...)
			_, err := captureRunConfig(t, args...)
			if err == nil {
				t.Fatalf("buildRunConfig(%v) succeeded, want error containing %q", tt.args, tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestTestCommand_BundledSuite(t *testing.T) {
	out := t.TempDir()
	app, stdout, _ := newTestApp()

	err := app.Run([]string{"scenario-runner", "--no-ansi", "test",
		"--driver", "mock", "--parallel", "4", "--timeout", "2s",
		"--output", out, "--flatten"})
	if err != nil {
		t.Fatalf("test command error = %v\n%s", err, stdout.String())
	}

	got := stdout.String()
	if !strings.Contains(got, "8/8") {
		t.Errorf("summary missing 8/8 passed:\n%s", got)
	}
	if strings.Contains(got, "Failures") {
		t.Errorf("unexpected failures:\n%s", got)
	}
	for _, name := range []string{"report.json", "report.html", "scenario-runner.log"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "missing.yaml", missingButtonScenario)
	app, stdout, _ := newTestApp()

	err := app.Run([]string{"scenario-runner", "--no-ansi", "test",
		"--driver", "mock", "--timeout", "200ms", "--artifacts", "never",
		"--output", filepath.Join(dir, "out"), "--flatten", path})
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d (err %v), want 1", code, err)
	}

	got := stdout.String()
	for _, want := range []string{"✗ FAIL", "missing button", "Failures", "LocatorTimeoutError", "step 1: "} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestTestCommand_Retries(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "missing.yaml", missingButtonScenario)
	app, stdout, _ := newTestApp()

	err := app.Run([]string{"scenario-runner", "--no-ansi", "test",
		"--driver", "mock", "--timeout", "100ms", "--retries", "1", "--artifacts", "never",
		"--output", filepath.Join(dir, "out"), "--flatten", path})
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d (err %v), want 1", code, err)
	}
	if !strings.Contains(stdout.String(), "attempts: 2") {
		t.Errorf("output missing retry attempts:\n%s", stdout.String())
	}
}

func TestTestCommand_Allure(t *testing.T) {
	out := t.TempDir()
	app, stdout, _ := newTestApp()

	err := app.Run([]string{"scenario-runner", "--no-ansi", "test",
		"--driver", "mock", "--filter", "edit", "--allure", "--output", out, "--flatten"})
	if err != nil {
		t.Fatalf("test command error = %v\n%s", err, stdout.String())
	}

	results, err := filepath.Glob(filepath.Join(out, report.AllureDir, "*-result.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("allure results = %v, want one per scenario", results)
	}
	if !strings.Contains(stdout.String(), filepath.Join(out, report.AllureDir)) {
		t.Errorf("report paths missing allure-results:\n%s", stdout.String())
	}
}

func TestTestCommand_InterruptedRunFails(t *testing.T) {
	out := t.TempDir()
	app, stdout, _ := newTestApp()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := app.RunContext(ctx, []string{"scenario-runner", "--no-ansi", "test",
		"--driver", "mock", "--output", out, "--flatten"})
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d (err %v), want 1", code, err)
	}
	if !strings.Contains(err.Error(), "run interrupted, 8 of 8 scenarios skipped") {
		t.Errorf("error = %q, want interrupt message", err.Error())
	}
	if !strings.Contains(stdout.String(), "- SKIP") {
		t.Errorf("summary missing skipped scenarios:\n%s", stdout.String())
	}
}

func TestTestCommand_Filter(t *testing.T) {
	out := t.TempDir()
	app, stdout, _ := newTestApp()

	err := app.Run([]string{"scenario-runner", "--no-ansi", "test",
		"--driver", "mock", "--filter", "edit", "--output", out, "--flatten"})
	if err != nil {
		t.Fatalf("test command error = %v\n%s", err, stdout.String())
	}

	got := stdout.String()
	if !strings.Contains(got, "can edit a todo") || !strings.Contains(got, "1/1") {
		t.Errorf("expected only the edit scenario to run:\n%s", got)
	}
}

func TestTestCommand_EnvFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "env.yaml", `name: adds from env
url: "#/"
---
- fill:
    placeholder: What needs to be done?
    value: ${TODO}
- press:
    placeholder: What needs to be done?
    key: Enter
- assertText:
    css: ul.todo-list label
    equals: Walk the dog
`)
	app, stdout, _ := newTestApp()

	err := app.Run([]string{"scenario-runner", "--no-ansi", "test", "--driver", "mock",
		"-e", "TODO=Walk the dog", "--output", filepath.Join(dir, "out"), "--flatten", path})
	if err != nil {
		t.Fatalf("test command error = %v\n%s", err, stdout.String())
	}
}

func TestTestCommand_NoMatches(t *testing.T) {
	app, _, _ := newTestApp()

	err := app.Run([]string{"scenario-runner", "test", "--driver", "mock",
		"--filter", "no such scenario", "--output", t.TempDir(), "--flatten"})
	if err == nil || !strings.Contains(err.Error(), "no scenarios matched") {
		t.Errorf("error = %v, want no scenarios matched", err)
	}
}

func TestTestCommand_ValidationErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "broken.yaml", `url: "#/"
---
- runFlow:
    file: missing.yaml
`)
	app, _, stderr := newTestApp()

	err := app.Run([]string{"scenario-runner", "test", "--driver", "mock",
		"--output", filepath.Join(dir, "out"), "--flatten", path})
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("error = %v, want validation failure", err)
	}
	if !strings.Contains(stderr.String(), "missing.yaml") {
		t.Errorf("stderr missing the unresolved file:\n%s", stderr.String())
	}
}

func TestListCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bundled suite", nil, "8 scenarios"},
		{"smoke only", []string{"--include-tags", "smoke"}, "4 scenarios"},
		{"by name", []string{"--filter", "delete"}, "1 scenario\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, stdout, _ := newTestApp()
			args := append([]string{"scenario-runner", "--no-ansi", "list"}, tt.args...)
			if err := app.Run(args); err != nil {
				t.Fatalf("list error = %v", err)
			}
			if !strings.Contains(stdout.String(), tt.want) {
				t.Errorf("list output missing %q:\n%s", tt.want, stdout.String())
			}
		})
	}
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	path := writeScenario(t, dir, "add.yaml", addTodoScenario)

	app, _, _ := newTestApp()
	if err := app.Run([]string{"scenario-runner", "test", "--driver", "mock",
		"--output", out, "--flatten", path}); err != nil {
		t.Fatalf("test command error = %v", err)
	}
	if err := os.Remove(filepath.Join(out, "report.html")); err != nil {
		t.Fatal(err)
	}

	app, stdout, _ := newTestApp()
	if err := app.Run([]string{"scenario-runner", "--no-ansi", "report", "--allure", out}); err != nil {
		t.Fatalf("report command error = %v", err)
	}

	got := stdout.String()
	for _, want := range []string{"adds one todo", "✓ ", "1 scenarios • Passed: 1 • Failed: 0"} {
		if !strings.Contains(got, want) {
			t.Errorf("report output missing %q:\n%s", want, got)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "report.html")); err != nil {
		t.Errorf("report.html not regenerated: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, report.AllureDir, "categories.json")); err != nil {
		t.Errorf("allure results not written: %v", err)
	}
}

func TestReportCommand_Usage(t *testing.T) {
	app, _, _ := newTestApp()
	err := app.Run([]string{"scenario-runner", "report"})
	if code := exitCode(err); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}

	app, _, _ = newTestApp()
	if err := app.Run([]string{"scenario-runner", "report", t.TempDir()}); err == nil {
		t.Error("report on an empty directory succeeded, want error")
	}
}

func TestConsole_PrintSummary(t *testing.T) {
	failedStep := 4
	result := &executor.RunResult{
		Status:       report.StatusFailed,
		TotalFlows:   4,
		PassedFlows:  2,
		FailedFlows:  1,
		SkippedFlows: 1,
		FlakyFlows:   1,
		Duration:     7100,
		FlowResults: []executor.FlowResult{
			{Name: "can add a todo", Status: report.StatusPassed, Attempts: 1, Duration: 412,
				StepsTotal: 6, StepsPassed: 6},
			{Name: "toggling twice restores a todo", SourceFile: "scenarios/todomvc/05-toggle-todo.yaml",
				Status: report.StatusFailed, Attempts: 2, Duration: 5300,
				FailedStep: &failedStep, StepDesc: "assertChecked: role=checkbox",
				ErrorType:  "LocatorTimeoutError",
				Diagnostic: "timed out after 5s waiting for role=checkbox to be checked",
				Expected:   "checked", Actual: "unchecked",
				StepsTotal: 8, StepsPassed: 3, StepsFailed: 1, StepsSkipped: 4},
			{Name: "filters narrow the list", Status: report.StatusSkipped},
			{Name: "can edit a todo", Status: report.StatusPassed, Attempts: 2, Flaky: true, Duration: 1340,
				StepsTotal: 7, StepsPassed: 7},
		},
	}

	var buf bytes.Buffer
	con := &console{w: &buf, errW: &buf}
	con.printSummary(result)
	con.printFailures(result)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "summary", buf.Bytes())
}

func TestConsole_OnStepComplete(t *testing.T) {
	tests := []struct {
		name     string
		parallel bool
		status   report.Status
		duration int64
		errMsg   string
		want     string
	}{
		{"passed", false, report.StatusPassed, 12, "", "    ✓ click: text=\"Active\" (12ms)\n"},
		{"slow", false, report.StatusPassed, 2500, "", "    ⚠ click: text=\"Active\" (2.5s)\n"},
		{"failed", false, report.StatusFailed, 300, "no element matches", "    ✗ click: text=\"Active\" (300ms)\n      ╰─ no element matches\n"},
		{"warned", false, report.StatusWarned, 300, "", "    ⚠ click: text=\"Active\" (300ms, optional)\n"},
		{"parallel prefix", true, report.StatusPassed, 5, "", "    [filters] ✓ click: text=\"Active\" (5ms)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			con := &console{w: &buf, parallel: tt.parallel}
			con.onStepComplete("filters", 0, `click: text="Active"`, tt.status, tt.duration, tt.errMsg)
			if got := buf.String(); got != tt.want {
				t.Errorf("onStepComplete() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConsole_Colors(t *testing.T) {
	var buf bytes.Buffer
	con := &console{w: &buf, colors: true}
	con.onFlowEnd(executor.FlowResult{Name: "x", Status: report.StatusFailed, Duration: 10})
	if !strings.Contains(buf.String(), colorRed) {
		t.Errorf("onFlowEnd() = %q, want red marker", buf.String())
	}

	if got := (&console{}).color(colorRed); got != "" {
		t.Errorf("color() with colors off = %q, want empty", got)
	}
}

func TestWatchDirs(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"shared", "shared/deep", ".git"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	file := writeScenario(t, root, "add.yaml", addTodoScenario)

	dirs, err := watchDirs([]string{root, file})
	if err != nil {
		t.Fatalf("watchDirs() error = %v", err)
	}
	sort.Strings(dirs)

	want := []string{root, filepath.Join(root, "shared"), filepath.Join(root, "shared", "deep")}
	if strings.Join(dirs, ",") != strings.Join(want, ",") {
		t.Errorf("watchDirs() = %v, want %v", dirs, want)
	}

	if _, err := watchDirs([]string{filepath.Join(root, "missing")}); err == nil {
		t.Error("watchDirs() on a missing path succeeded, want error")
	}
}

func TestIsWatchedEvent(t *testing.T) {
	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "s/add.yaml", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "s/add.YML", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "s/shared", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "s/add.yaml", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "s/.add.yaml.swp", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "s/notes.txt", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		if got := isWatchedEvent(tt.event); got != tt.want {
			t.Errorf("isWatchedEvent(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
}
