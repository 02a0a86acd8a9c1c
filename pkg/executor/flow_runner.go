package executor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
	"github.com/devicelab-dev/scenario-runner/pkg/jsengine"
	"github.com/devicelab-dev/scenario-runner/pkg/logger"
	"github.com/devicelab-dev/scenario-runner/pkg/report"
)

// recorder receives the progress of one scenario. report.FlowWriter is the
// on-disk implementation.
type recorder interface {
	Start()
	StepStart(i int)
	StepEnd(i int, status report.Status, element *report.Element, err *report.Error, artifacts report.StepArtifacts)
	SkipRemaining(fromIndex int)
	End(status report.Status, failedStep int, errorType, errMsg string)
	SetFlowArtifacts(artifacts report.FlowArtifacts)
	SaveScreenshot(name string, data []byte) (string, error)
	SavePage(name string, html string) (string, error)
}

type nopRecorder struct{}

func (nopRecorder) Start() {}
func (nopRecorder) StepStart(int) {}
func (nopRecorder) StepEnd(int, report.Status, *report.Element, *report.Error, report.StepArtifacts) {}
func (nopRecorder) SkipRemaining(int) {}
func (nopRecorder) End(report.Status, int, string, string) {}
func (nopRecorder) SetFlowArtifacts(report.FlowArtifacts) {}
func (nopRecorder) SaveScreenshot(string, []byte) (string, error) { return "", nil }
func (nopRecorder) SavePage(string, string) (string, error) { return "", nil }

const maxNesting = 16

// FlowRunner executes one attempt of a single scenario on its own session.
type FlowRunner struct {
	flow     flow.Flow
	detail   *report.FlowDetail
	factory  core.SessionFactory
	config   RunnerConfig
	recorder recorder
	attempt  int

	driver    core.Driver
	script    *ScriptEngine
	lifecycle *core.Lifecycle
	log       *logrus.Entry
	scenario  context.Context
	limit     time.Duration
	depth     int // Nesting depth for runFlow/repeat

	stepsPassed  int
	stepsFailed  int
	stepsSkipped int
	stepsWarned  int
	screenshots  int
}

// stepFailure is the outcome of a failed step.
type stepFailure struct {
	index int
	desc  string
	err   error
}

// Run executes the scenario: NotStarted -> Navigating -> Running(i) ->
// Passed | Failed. The first failing required step aborts the rest.
func (fr *FlowRunner) Run(ctx context.Context) FlowResult {
	start := time.Now()
	fr.lifecycle = core.NewLifecycle()
	fr.log = logger.WithScenario(fr.detail.Name)
	fr.recorder.Start()

	fr.limit = fr.scenarioTimeout()
	sctx, cancel := ctx, context.CancelFunc(func() {})
	if fr.limit > 0 {
		sctx, cancel = context.WithTimeout(ctx, fr.limit)
	}
	defer cancel()
	fr.scenario = sctx

	fr.script = NewScriptEngine()
	defer fr.script.Close()
	stopInterrupt := context.AfterFunc(sctx, fr.script.Close)
	defer stopInterrupt()

	status, failure := fr.execute(ctx, sctx)

	if fr.driver != nil {
		fr.captureFinalArtifacts(status)
		if err := fr.driver.Close(); err != nil {
			fr.debugf("close session: %v", err)
		}
	}

	result := FlowResult{
		ID:         fr.detail.ID,
		Name:       fr.detail.Name,
		SourceFile: fr.flow.SourcePath,
		Status:     status,
		Duration:   time.Since(start).Milliseconds(),
	}

	failedStep := -1
	errorType := ""
	if failure != nil {
		errorType = core.CategoryOf(failure.err).TypeName()
		result.ErrorType = errorType
		result.StepDesc = failure.desc
		result.Expected, result.Actual = expectedActual(failure.err)
		if failure.index >= 0 {
			idx := failure.index
			result.FailedStep = &idx
			failedStep = idx
		}
		result.Diagnostic = failure.err.Error()
	}

	result.StepsPassed = fr.stepsPassed
	result.StepsFailed = fr.stepsFailed
	result.StepsSkipped = fr.stepsSkipped
	result.StepsWarned = fr.stepsWarned
	result.StepsTotal = fr.stepsPassed + fr.stepsFailed + fr.stepsSkipped + fr.stepsWarned

	fr.recorder.End(status, failedStep, errorType, result.Diagnostic)
	fr.infof("%s in %dms (attempt %d)", status, result.Duration, fr.attempt)
	return result
}

func (fr *FlowRunner) execute(ctx, sctx context.Context) (report.Status, *stepFailure) {
	fail := func(index int, desc string, err error) (report.Status, *stepFailure) {
		_ = fr.lifecycle.Fail()
		fr.recorder.SkipRemaining(index + 1)
		fr.stepsSkipped += countSkippable(fr.flow.Steps, index+1)
		return report.StatusFailed, &stepFailure{index: index, desc: desc, err: err}
	}

	session, err := fr.factory.NewSession(sctx)
	if err != nil {
		if ctx.Err() != nil {
			return fr.cancelled(-1)
		}
		return fail(-1, "open session", core.ErrNavigation.WithMessage("could not open a page session").WithCause(err))
	}
	fr.driver = session
	fr.setupScript()

	// Navigating
	if err := fr.lifecycle.StartNavigation(); err != nil {
		return fail(-1, "navigate", err)
	}
	target, err := resolveURL(fr.config.BaseURL, fr.script.ExpandVariables(fr.flow.Config.URL))
	if err != nil {
		return fail(-1, "navigate", core.ErrNavigation.WithMessage(err.Error()))
	}
	fr.infof("navigating to %s", target)
	if err := fr.driver.Navigate(sctx, target); err != nil {
		if ctx.Err() != nil {
			return fr.cancelled(-1)
		}
		return fail(-1, "navigate: "+target, fr.classify(navigationError(target, err)))
	}

	// Running(i)
	for i, step := range fr.flow.Steps {
		if ctx.Err() != nil {
			return fr.cancelled(i)
		}
		if sctx.Err() != nil {
			return fail(i, step.Describe(), fr.classify(sctx.Err()))
		}
		if err := fr.lifecycle.Advance(i); err != nil {
			return fail(i, step.Describe(), err)
		}

		status, desc, durationMs, err := fr.executeStep(sctx, i, step)
		if err != nil && ctx.Err() != nil {
			return fr.cancelled(i + 1)
		}

		if fr.config.OnStepComplete != nil {
			errMsg := ""
			if err != nil {
				errMsg = err.Error()
			}
			fr.config.OnStepComplete(fr.detail.Name, i, desc, status, durationMs, errMsg)
		}
		if status == report.StatusFailed {
			return fail(i, desc, err)
		}
	}

	if err := fr.lifecycle.Pass(); err != nil {
		return fail(-1, "finish", err)
	}
	return report.StatusPassed, nil
}

// cancelled ends the scenario as skipped after the run context was cancelled.
func (fr *FlowRunner) cancelled(from int) (report.Status, *stepFailure) {
	_ = fr.lifecycle.Fail()
	if from < 0 {
		from = 0
	}
	fr.recorder.SkipRemaining(from)
	fr.stepsSkipped += countSkippable(fr.flow.Steps, from)
	return report.StatusSkipped, &stepFailure{index: -1, desc: "cancelled", err: errors.New("run cancelled")}
}

func (fr *FlowRunner) scenarioTimeout() time.Duration {
	if fr.flow.Config.Timeout > 0 {
		return time.Duration(fr.flow.Config.Timeout) * time.Millisecond
	}
	return fr.config.ScenarioTimeout
}

func (fr *FlowRunner) setupScript() {
	fr.script.ImportSystemEnv()
	// Scenario env holds defaults, run-level env overrides them
	fr.script.SetVariables(fr.flow.Config.Env)
	fr.script.SetVariables(fr.config.Env)

	info := jsengine.ScenarioInfo{Name: fr.detail.Name, BaseURL: fr.config.BaseURL}
	if p := fr.driver.GetPlatformInfo(); p != nil {
		info.Browser = p.Browser
	}
	fr.script.SetScenarioInfo(info)
}

// classify turns any failure observed after the scenario deadline into a
// scenario timeout. Interrupted scripts and aborted polls land here too.
func (fr *FlowRunner) classify(err error) error {
	if err == nil || fr.scenario == nil {
		return err
	}
	if errors.Is(fr.scenario.Err(), context.DeadlineExceeded) && !errors.Is(err, core.ErrScenarioTimeout) {
		return core.ErrScenarioTimeout.
			WithMessage(fmt.Sprintf("scenario exceeded its timeout of %s", fr.limit)).
			WithCause(err)
	}
	return err
}

// executeStep runs top-level step i and records it.
func (fr *FlowRunner) executeStep(ctx context.Context, i int, step flow.Step) (report.Status, string, int64, error) {
	start := time.Now()
	fr.recorder.StepStart(i)

	expanded := fr.script.ExpandStep(step)
	desc := expanded.Describe()
	fr.debugf("step %d: %s", i, desc)

	var artifacts report.StepArtifacts
	el, err := fr.dispatch(ctx, expanded, &artifacts)
	err = fr.classify(err)

	status := report.StatusPassed
	var reportErr *report.Error
	switch {
	case err == nil:
		fr.stepsPassed++
	case step.IsOptional():
		status = report.StatusWarned
		fr.stepsWarned++
		reportErr = toReportError(err)
		fr.warnf("optional step %d failed: %v", i, err)
	default:
		status = report.StatusFailed
		fr.stepsFailed++
		reportErr = toReportError(err)
		fr.warnf("step %d failed after %s: %v", i, time.Since(start).Round(time.Millisecond), err)
	}

	if isCompound(step) {
		// Nested steps counted themselves.
		switch status {
		case report.StatusPassed:
			fr.stepsPassed--
		case report.StatusWarned:
			fr.stepsWarned--
		case report.StatusFailed:
			fr.stepsFailed--
		}
	}

	fr.recorder.StepEnd(i, status, toReportElement(el), reportErr, artifacts)
	if status == report.StatusWarned {
		err = nil
	}
	return status, desc, time.Since(start).Milliseconds(), err
}

// dispatch routes an expanded step to its handler.
func (fr *FlowRunner) dispatch(ctx context.Context, step flow.Step, artifacts *report.StepArtifacts) (*core.ElementInfo, error) {
	switch s := step.(type) {
	// Actions
	case *flow.NavigateStep:
		return nil, fr.navigate(ctx, s)
	case *flow.FillStep:
		return fr.act(ctx, step, core.Action{Kind: core.ActionFill, Selector: &s.Selector, Value: s.Value})
	case *flow.PressStep:
		return fr.act(ctx, step, core.Action{Kind: core.ActionPress, Selector: &s.Selector, Key: s.Key})
	case *flow.ClickStep:
		return fr.act(ctx, step, core.Action{Kind: core.ActionClick, Selector: &s.Selector})
	case *flow.DoubleClickStep:
		return fr.act(ctx, step, core.Action{Kind: core.ActionDblClick, Selector: &s.Selector})
	case *flow.HoverStep:
		return fr.act(ctx, step, core.Action{Kind: core.ActionHover, Selector: &s.Selector})

	// Polling assertions
	case *flow.AssertVisibleStep:
		return fr.assertVisible(ctx, step, &s.Selector)
	case *flow.AssertNotVisibleStep:
		return nil, fr.assertNotVisible(ctx, step, &s.Selector)
	case *flow.AssertCheckedStep:
		return fr.assertChecked(ctx, s)
	case *flow.AssertTextStep:
		return fr.assertText(ctx, s)
	case *flow.AssertCountStep:
		return nil, fr.assertCount(ctx, s)
	case *flow.AssertTitleStep:
		return nil, fr.assertTitle(ctx, s)

	// Scripting
	case *flow.AssertTrueStep:
		return nil, fr.script.ExecuteAssertTrue(s)
	case *flow.EvalScriptStep:
		return nil, fr.script.ExecuteEvalScript(s)
	case *flow.DefineVariablesStep:
		return nil, fr.script.ExecuteDefineVariables(s)

	// Flow control
	case *flow.RunFlowStep:
		return nil, fr.runFlow(ctx, s)
	case *flow.RepeatStep:
		return nil, fr.repeat(ctx, s)

	// Media
	case *flow.TakeScreenshotStep:
		path, err := fr.takeScreenshot(s)
		artifacts.Screenshot = path
		return nil, err
	}

	return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported step type %q", step.Type()))
}

func (fr *FlowRunner) navigate(ctx context.Context, s *flow.NavigateStep) error {
	target, err := resolveURL(fr.config.BaseURL, s.URL)
	if err != nil {
		return core.ErrNavigation.WithMessage(err.Error())
	}
	if err := fr.driver.Navigate(ctx, target); err != nil {
		return navigationError(target, err)
	}
	return nil
}

func navigationError(target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return core.ErrNavigation.
		WithMessage(fmt.Sprintf("could not load %s", target)).
		WithDetails(map[string]interface{}{"url": target}).
		WithCause(err)
}

// runFlow runs inline or pre-resolved subflow steps in the current session.
func (fr *FlowRunner) runFlow(ctx context.Context, s *flow.RunFlowStep) error {
	if len(s.Steps) == 0 {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("runFlow %q was not resolved", s.File))
	}
	defer fr.script.withEnvVars(s.Env)()
	return fr.runNested(ctx, s.Steps)
}

// repeat runs nested steps a number of times.
func (fr *FlowRunner) repeat(ctx context.Context, s *flow.RepeatStep) error {
	times := fr.script.ParseInt(s.Times, 1)
	for n := 0; n < times; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fr.runNested(ctx, s.Steps); err != nil {
			return fmt.Errorf("iteration %d: %w", n+1, err)
		}
	}
	return nil
}

func (fr *FlowRunner) runNested(ctx context.Context, steps []flow.Step) error {
	if fr.depth >= maxNesting {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("runFlow/repeat nested deeper than %d levels", maxNesting))
	}
	fr.depth++
	defer func() { fr.depth-- }()

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		expanded := fr.script.ExpandStep(step)
		var artifacts report.StepArtifacts
		_, err := fr.dispatch(ctx, expanded, &artifacts)
		compound := isCompound(step)

		switch {
		case err == nil:
			if !compound {
				fr.stepsPassed++
			}
		case step.IsOptional():
			if !compound {
				fr.stepsWarned++
			}
			fr.warnf("optional nested step failed: %s: %v", expanded.Describe(), err)
		default:
			if !compound {
				fr.stepsFailed++
			}
			return fmt.Errorf("%s: %w", expanded.Describe(), err)
		}
	}
	return nil
}

func (fr *FlowRunner) takeScreenshot(s *flow.TakeScreenshotStep) (string, error) {
	data, err := fr.driver.Screenshot()
	if err != nil {
		return "", core.ErrAction.WithMessage("screenshot failed").WithCause(err)
	}
	fr.screenshots++
	name := s.Path
	if name == "" {
		name = fmt.Sprintf("screenshot-%03d", fr.screenshots)
	}
	name = strings.TrimSuffix(name, ".png")
	return fr.recorder.SaveScreenshot(name, data)
}

// captureFinalArtifacts stores a screenshot and page snapshot according to
// the artifact mode.
func (fr *FlowRunner) captureFinalArtifacts(status report.Status) {
	mode := fr.config.Artifacts
	if mode == "" {
		mode = core.ArtifactsOnFailure
	}
	if !mode.ShouldCapture(toCoreStatus(status)) || status == report.StatusSkipped {
		return
	}

	name := "final"
	if status == report.StatusFailed {
		name = "failure"
	}
	if fr.attempt > 1 {
		name = fmt.Sprintf("%s-attempt-%d", name, fr.attempt)
	}

	var artifacts report.FlowArtifacts
	if data, err := fr.driver.Screenshot(); err == nil && len(data) > 0 {
		if path, err := fr.recorder.SaveScreenshot(name, data); err == nil {
			artifacts.Screenshot = path
		}
	} else if err != nil {
		fr.debugf("capture screenshot: %v", err)
	}

	// Page snapshot with a short budget: the scenario context may be gone.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if html, err := fr.driver.Content(ctx); err == nil {
		if path, err := fr.recorder.SavePage(name, html); err == nil {
			artifacts.Page = path
		}
	}

	fr.recorder.SetFlowArtifacts(artifacts)
}

// resolveURL resolves a scenario URL against the base URL. An empty URL is
// the base URL; a fragment-only URL like "#/active" keeps the base path.
func resolveURL(base, ref string) (string, error) {
	if base == "" && ref == "" {
		return "", fmt.Errorf("no URL to navigate to: set a base URL or a scenario url")
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if ref == "" {
		return b.String(), nil
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

func isCompound(step flow.Step) bool {
	switch step.(type) {
	case *flow.RunFlowStep, *flow.RepeatStep:
		return true
	}
	return false
}

// countSkippable counts top-level steps from index on.
func countSkippable(steps []flow.Step, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= len(steps) {
		return 0
	}
	return len(steps) - from
}

func toCoreStatus(s report.Status) core.StepStatus {
	switch s {
	case report.StatusPassed:
		return core.StatusPassed
	case report.StatusFailed:
		return core.StatusFailed
	case report.StatusSkipped:
		return core.StatusSkipped
	case report.StatusWarned:
		return core.StatusWarned
	case report.StatusRunning:
		return core.StatusRunning
	}
	return core.StatusPending
}

func (fr *FlowRunner) infof(format string, args ...interface{}) {
	if fr.log != nil {
		fr.log.Infof(format, args...)
	}
}

func (fr *FlowRunner) warnf(format string, args ...interface{}) {
	if fr.log != nil {
		fr.log.Warnf(format, args...)
	}
}

func (fr *FlowRunner) debugf(format string, args ...interface{}) {
	if fr.log != nil {
		fr.log.Debugf(format, args...)
	}
}
