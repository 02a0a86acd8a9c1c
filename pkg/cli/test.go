package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/scenario-runner/pkg/config"
	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/driver/browser"
	"github.com/devicelab-dev/scenario-runner/pkg/driver/mock"
	"github.com/devicelab-dev/scenario-runner/pkg/executor"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
	"github.com/devicelab-dev/scenario-runner/pkg/logger"
	"github.com/devicelab-dev/scenario-runner/pkg/report"
	"github.com/devicelab-dev/scenario-runner/pkg/validator"
	"github.com/devicelab-dev/scenario-runner/scenarios"
	"github.com/urfave/cli/v2"
)

// Driver names accepted by --driver.
const (
	driverPlaywright = "playwright"
	driverMock       = "mock"
)

// selectionFlags choose which scenarios run. Shared by test and list.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to workspace config.yaml (default: ./config.yaml if present)",
			EnvVars: []string{"SCENARIO_CONFIG"},
		},
		&cli.StringSliceFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "Only run scenarios whose name contains this text (repeatable)",
			EnvVars: []string{"SCENARIO_FILTER"},
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude scenarios with these tags",
		},
	}
}

func newTestCommand() *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "Run scenarios against the target page",
		ArgsUsage: "[scenario-file-or-folder]...",
		Description: `Run scenario files, or the bundled TodoMVC suite when no path is given.
The exit status is non-zero when any scenario fails.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  scenario-runner test
  scenario-runner test scenarios/todomvc --filter edit
  scenario-runner test add.yaml -e TODO="Buy milk" --timeout 10s
  scenario-runner test --base-url http://localhost:8080/ --headless=false
  scenario-runner test scenarios/ --parallel 4 --retries 2 --output ./out --flatten`,
		Flags:  testFlags(),
		Action: runTest,
	}
}

// testFlags returns a fresh flag set on every call. urfave/cli writes
// env var values back into a flag's Value, so flags are never shared
// between apps.
func testFlags() []cli.Flag {
	return append(selectionFlags(),
		// Target
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "URL scenario urls resolve against",
			Value:   config.DefaultBaseURL,
			EnvVars: []string{"SCENARIO_BASE_URL"},
		},

		// Timing
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Polling window for each action and assertion",
			Value:   config.DefaultTimeout,
			EnvVars: []string{"SCENARIO_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "scenario-timeout",
			Usage:   "Limit for a whole scenario, navigation included",
			Value:   config.DefaultScenarioTimeout,
			EnvVars: []string{"SCENARIO_SCENARIO_TIMEOUT"},
		},

		// Execution
		&cli.IntFlag{
			Name:    "retries",
			Usage:   "Re-run a failed scenario up to N times on a fresh page",
			EnvVars: []string{"SCENARIO_RETRIES"},
		},
		&cli.IntFlag{
			Name:    "parallel",
			Usage:   "Run up to N scenarios concurrently",
			Value:   config.DefaultParallel,
			EnvVars: []string{"SCENARIO_PARALLEL"},
		},
		&cli.BoolFlag{
			Name:  "fail-fast",
			Usage: "Skip scenarios not yet started after the first failure",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variables for ${...} expansion (KEY=VALUE)",
		},
		&cli.BoolFlag{
			Name:    "continuous",
			Aliases: []string{"c"},
			Usage:   "Re-run when scenario files change",
		},

		// Browser
		&cli.StringFlag{
			Name:    "driver",
			Aliases: []string{"d"},
			Usage:   "Page driver (playwright, mock)",
			Value:   driverPlaywright,
			EnvVars: []string{"SCENARIO_DRIVER"},
		},
		&cli.StringFlag{
			Name:    "browser",
			Usage:   "Browser engine (chromium, firefox, webkit)",
			Value:   config.DefaultBrowser,
			EnvVars: []string{"SCENARIO_BROWSER"},
		},
		&cli.BoolFlag{
			Name:    "headless",
			Usage:   "Run the browser without a window",
			Value:   true,
			EnvVars: []string{"SCENARIO_HEADLESS"},
		},

		// Output
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.StringFlag{
			Name:  "artifacts",
			Usage: "When to capture screenshots and page snapshots (on-failure, always, never)",
			Value: string(core.ArtifactsOnFailure),
		},
		&cli.BoolFlag{
			Name:    "allure",
			Usage:   "Also write Allure results to <output>/allure-results",
			EnvVars: []string{"SCENARIO_ALLURE"},
		},
	)
}

// Selection identifies the scenarios of a run.
type Selection struct {
	Paths       []string // Files or directories; empty means the bundled suite
	IncludeTags []string
	ExcludeTags []string
	Filters     []string // Name substrings
}

// RunConfig holds the complete test run configuration.
type RunConfig struct {
	Selection
	ConfigPath string

	// Environment
	Env map[string]string

	// Target and timing
	BaseURL         string
	Timeout         time.Duration
	ScenarioTimeout time.Duration

	// Execution
	Retries    int
	Parallel   int
	FailFast   bool
	Continuous bool

	// Browser
	Driver   string // playwright, mock
	Browser  string // chromium, firefox, webkit
	Headless bool

	// Output
	OutputDir string // Final resolved output directory
	Artifacts core.ArtifactMode
	Allure    bool
	Verbose   bool
}

func runTest(c *cli.Context) error {
	cfg, err := buildRunConfig(c)
	if err != nil {
		return err
	}
	con := newConsole(c, cfg.Parallel > 1)

	if cfg.Continuous {
		return watchAndRun(c.Context, cfg, con)
	}

	result, err := executeTest(c.Context, cfg, con)
	if err != nil {
		return err
	}
	// Exit with code 1 if any scenario failed (summary already printed)
	if result.Status == report.StatusFailed {
		return cli.Exit("", 1)
	}
	// Scenarios skipped by an interrupt never ran, so the run did not pass
	if c.Context.Err() != nil {
		return cli.Exit(fmt.Sprintf("run interrupted, %d of %d scenarios skipped", result.SkippedFlows, result.TotalFlows), 1)
	}
	return nil
}

// buildRunConfig merges flags (and their SCENARIO_* env vars) over the
// workspace config over defaults.
func buildRunConfig(c *cli.Context) (*RunConfig, error) {
	ws, configPath, err := loadWorkspaceConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	ws.ApplyDefaults()

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return nil, err
	}
	artifacts, err := core.ParseArtifactMode(c.String("artifacts"))
	if err != nil {
		return nil, err
	}

	// CLI env overrides workspace config env
	env := make(map[string]string)
	for k, v := range ws.Env {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}

	cfg := &RunConfig{
		Selection:       buildSelection(c, ws, configPath),
		ConfigPath:      configPath,
		Env:             env,
		BaseURL:         ws.BaseURL,
		Timeout:         ws.Timeout,
		ScenarioTimeout: ws.ScenarioTimeout,
		Retries:         ws.Retries,
		Parallel:        ws.Parallel,
		FailFast:        c.Bool("fail-fast"),
		Continuous:      c.Bool("continuous"),
		Driver:          strings.ToLower(c.String("driver")),
		Browser:         ws.Browser,
		Headless:        ws.IsHeadless(),
		OutputDir:       outputDir,
		Artifacts:       artifacts,
		Allure:          c.Bool("allure"),
		Verbose:         c.Bool("verbose"),
	}

	if c.IsSet("base-url") {
		cfg.BaseURL = c.String("base-url")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("scenario-timeout") {
		cfg.ScenarioTimeout = c.Duration("scenario-timeout")
	}
	if c.IsSet("retries") {
		cfg.Retries = c.Int("retries")
	}
	if c.IsSet("parallel") {
		cfg.Parallel = c.Int("parallel")
	}
	if c.IsSet("browser") {
		cfg.Browser = c.String("browser")
	}
	if c.IsSet("headless") {
		cfg.Headless = c.Bool("headless")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *RunConfig) validate() error {
	switch cfg.Driver {
	case driverPlaywright:
		if err := browser.ValidateBrowser(cfg.Browser); err != nil {
			return err
		}
	case driverMock:
	default:
		return fmt.Errorf("unknown driver %q (want playwright or mock)", cfg.Driver)
	}
	if cfg.Retries < 0 {
		return fmt.Errorf("--retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Parallel < 1 {
		return fmt.Errorf("--parallel must be >= 1, got %d", cfg.Parallel)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.ScenarioTimeout < 0 {
		return fmt.Errorf("--scenario-timeout must not be negative, got %s", cfg.ScenarioTimeout)
	}
	if cfg.Continuous && len(cfg.Paths) == 0 {
		return fmt.Errorf("--continuous requires scenario paths to watch")
	}
	return nil
}

// loadWorkspaceConfig loads the --config file, or ./config.yaml if present.
// It returns the path that was loaded, empty when none was.
func loadWorkspaceConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, path, nil
	}

	for _, name := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(name); err == nil {
			cfg, err := config.Load(name)
			if err != nil {
				return nil, "", fmt.Errorf("failed to load config: %w", err)
			}
			return cfg, name, nil
		}
	}
	return &config.Config{}, "", nil
}

// buildSelection resolves paths, tags and name filters. Without path
// arguments a workspace config listing scenarios selects its own
// directory, whose patterns the validator expands.
func buildSelection(c *cli.Context, ws *config.Config, configPath string) Selection {
	sel := Selection{
		Paths:       c.Args().Slice(),
		IncludeTags: ws.IncludeTags,
		ExcludeTags: ws.ExcludeTags,
		Filters:     c.StringSlice("filter"),
	}
	if len(sel.Paths) == 0 && configPath != "" && len(ws.Scenarios) > 0 {
		sel.Paths = []string{filepath.Dir(configPath)}
	}
	if c.IsSet("include-tags") {
		sel.IncludeTags = c.StringSlice("include-tags")
	}
	if c.IsSet("exclude-tags") {
		sel.ExcludeTags = append(append([]string(nil), ws.ExcludeTags...), c.StringSlice("exclude-tags")...)
	}
	return sel
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// executeTest validates the selection, runs it and prints the outcome.
func executeTest(ctx context.Context, cfg *RunConfig, con *console) (*executor.RunResult, error) {
	// 1. Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	logPath := filepath.Join(cfg.OutputDir, "scenario-runner.log")
	if err := logger.Init(logPath); err != nil {
		con.warnf("failed to initialize logger: %v", err)
	}
	defer logger.Close()
	logger.SetVerbose(cfg.Verbose)

	logger.Info("=== Test execution started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Driver: %s, browser: %s, headless: %v", cfg.Driver, cfg.Browser, cfg.Headless)
	logger.Info("Base URL: %s", cfg.BaseURL)

	// 3. Validate and parse scenarios
	flows, err := validateAndParseFlows(cfg.Selection, con)
	if err != nil {
		logger.Error("Scenario validation failed: %v", err)
		return nil, err
	}
	logger.Info("Validated %d scenario(s)", len(flows))

	// 4. Start the page driver
	factory, closeFactory, err := newSessionFactory(cfg)
	if err != nil {
		logger.Error("Failed to start driver: %v", err)
		return nil, err
	}
	defer closeFactory()

	// 5. Execute scenarios
	runner := executor.New(factory, executor.RunnerConfig{
		OutputDir:       cfg.OutputDir,
		BaseURL:         cfg.BaseURL,
		Timeout:         cfg.Timeout,
		ScenarioTimeout: cfg.ScenarioTimeout,
		Parallelism:     cfg.Parallel,
		Retries:         cfg.Retries,
		StopOnFail:      cfg.FailFast,
		Artifacts:       cfg.Artifacts,
		Env:             cfg.Env,
		Browser:         browserReport(cfg),
		RunnerVersion:   Version,
		DriverName:      cfg.Driver,
		OnFlowStart:     con.onFlowStart,
		OnStepComplete:  con.onStepComplete,
		OnFlowEnd:       con.onFlowEnd,
	})

	result, err := runner.Run(ctx, flows)
	if err != nil {
		logger.Error("Scenario execution failed: %v", err)
		return nil, err
	}
	logger.Info("Scenario execution completed: %d passed, %d failed, %d skipped",
		result.PassedFlows, result.FailedFlows, result.SkippedFlows)

	if cfg.Allure {
		if err := report.GenerateAllure(cfg.OutputDir); err != nil {
			con.warnf("failed to generate Allure results: %v", err)
		}
	}

	// 6. Print summary and failure diagnostics
	con.printSummary(result)
	con.printFailures(result)
	con.printReportPaths(cfg.OutputDir, cfg.Allure)

	return result, nil
}

// validateAndParseFlows validates the selection. Without paths it selects
// from the bundled suite.
func validateAndParseFlows(sel Selection, con *console) ([]flow.Flow, error) {
	v := validator.New(sel.IncludeTags, sel.ExcludeTags).WithNames(sel.Filters)

	var result *validator.Result
	if len(sel.Paths) == 0 {
		result = v.ValidateFS(scenarios.FS, scenarios.Root)
	} else {
		result = v.ValidateAll(sel.Paths)
	}

	if !result.IsValid() {
		con.errorf("Validation errors:")
		for _, err := range result.Errors {
			con.errorf("  - %v", err)
		}
		return nil, fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
	}

	if len(result.Flows) == 0 {
		return nil, errors.New("no scenarios matched the selection")
	}
	return result.Flows, nil
}

// newSessionFactory starts the configured driver. The returned func
// releases it.
func newSessionFactory(cfg *RunConfig) (core.SessionFactory, func(), error) {
	if cfg.Driver == driverMock {
		logger.Info("Using mock driver")
		return &mock.Factory{Config: mock.Config{BaseURL: cfg.BaseURL}}, func() {}, nil
	}

	launcher, err := browser.Launch(browser.Config{
		Browser:   cfg.Browser,
		Headless:  cfg.Headless,
		DriverDir: config.GetDriversDir("playwright"),
	})
	if err != nil {
		return nil, nil, err
	}
	return launcher, func() {
		if err := launcher.Close(); err != nil {
			logger.Warn("close browser: %v", err)
		}
	}, nil
}

func browserReport(cfg *RunConfig) report.Browser {
	if cfg.Driver == driverMock {
		return report.Browser{Name: driverMock, Headless: true}
	}
	return report.Browser{Name: cfg.Browser, Headless: cfg.Headless}
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
