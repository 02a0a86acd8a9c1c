package executor

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
	"github.com/devicelab-dev/scenario-runner/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// ScriptEngine handles JavaScript execution and variable management
// for one scenario execution.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// Close interrupts any running script. Safe to call from another goroutine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetScenarioInfo exposes scenario details to scripts.
func (se *ScriptEngine) SetScenarioInfo(info jsengine.ScenarioInfo) {
	se.js.SetScenarioInfo(info)
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports UPPER_CASE process environment variables.
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.FindString(name) == name {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// GetOutput returns the JS output variables.
func (se *ScriptEngine) GetOutput() map[string]interface{} {
	return se.js.GetOutput()
}

// syncOutput copies values scripts stored on `output` into variables,
// so later steps can use ${output.x} or $x.
func (se *ScriptEngine) syncOutput() {
	for k, v := range se.js.GetOutput() {
		se.variables[k] = fmt.Sprintf("%v", v)
	}
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
func (se *ScriptEngine) ExpandVariables(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	if result, err := se.js.ExpandVariables(text); err == nil {
		text = result
	}
	return se.expandDollarVars(text)
}

// expandDollarVars expands $VAR syntax (without braces), longest names first
// so $TODO_TWO is not consumed by $TODO.
func (se *ScriptEngine) expandDollarVars(text string) string {
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		endPos := pos + len(pattern)
		if endPos < len(text) && isIdentByte(text[endPos]) {
			idx = endPos
			continue
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

// predefine declares ALL_CAPS names used by script as undefined, so an
// unset variable is falsy rather than a ReferenceError.
func (se *ScriptEngine) predefine(script string) {
	for _, name := range envVarPattern.FindAllString(script, -1) {
		se.js.DefineUndefinedIfMissing(name)
	}
}

// RunScript executes a JavaScript script for its side effects.
func (se *ScriptEngine) RunScript(script string) error {
	script = extractJS(script)
	se.predefine(script)
	if err := se.js.RunScript(script); err != nil {
		return err
	}
	se.syncOutput()
	return nil
}

// EvalCondition evaluates a script condition with JavaScript truthiness.
func (se *ScriptEngine) EvalCondition(script string) (bool, error) {
	script = se.expandDollarVars(extractJS(script))
	se.predefine(script)
	return se.js.EvalBool(script)
}

// extractJS unwraps a script written as ${...}.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// ============================================
// Step Execution Helpers
// ============================================

// ExecuteDefineVariables handles defineVariables step.
func (se *ScriptEngine) ExecuteDefineVariables(step *flow.DefineVariablesStep) error {
	for k, v := range step.Env {
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return nil
}

// ExecuteEvalScript handles evalScript step.
func (se *ScriptEngine) ExecuteEvalScript(step *flow.EvalScriptStep) error {
	if err := se.RunScript(step.Script); err != nil {
		return core.ErrScript.WithMessage("evalScript failed").WithCause(err)
	}
	return nil
}

// ExecuteAssertTrue evaluates the condition once. It never polls.
func (se *ScriptEngine) ExecuteAssertTrue(step *flow.AssertTrueStep) error {
	ok, err := se.EvalCondition(step.Script)
	if err != nil {
		return core.ErrScript.WithMessage("assertTrue could not be evaluated").WithCause(err)
	}
	if !ok {
		return core.ErrConditionNotMet.
			WithMessage(fmt.Sprintf("assertTrue failed: %s", strings.TrimSpace(step.Script))).
			WithDetails(map[string]interface{}{"expected": "truthy", "actual": "falsy"})
	}
	return nil
}

// withEnvVars applies variables and returns a function restoring the
// previous values.
func (se *ScriptEngine) withEnvVars(env map[string]string) func() {
	old := make(map[string]string, len(env))
	for k, v := range env {
		old[k] = se.GetVariable(k)
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return func() {
		for k, v := range old {
			se.SetVariable(k, v)
		}
	}
}

// ParseInt parses an integer from string, supporting variable expansion.
func (se *ScriptEngine) ParseInt(s string, defaultVal int) int {
	s = se.ExpandVariables(s)
	s = strings.ReplaceAll(s, "_", "") // Support 10_000 format
	if val, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return val
	}
	return defaultVal
}

// ExpandStep returns a copy of step with variables expanded in its string
// fields. The parsed step is left untouched so repeats and retries expand
// against current values.
func (se *ScriptEngine) ExpandStep(step flow.Step) flow.Step {
	x := se.ExpandVariables
	switch s := step.(type) {
	case *flow.NavigateStep:
		c := *s
		c.URL = x(s.URL)
		return &c
	case *flow.FillStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		c.Value = x(s.Value)
		return &c
	case *flow.PressStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		c.Key = x(s.Key)
		return &c
	case *flow.ClickStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		return &c
	case *flow.DoubleClickStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		return &c
	case *flow.HoverStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		return &c
	case *flow.AssertVisibleStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		return &c
	case *flow.AssertNotVisibleStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		return &c
	case *flow.AssertCheckedStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		return &c
	case *flow.AssertTextStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		if s.Equals != nil {
			eq := x(*s.Equals)
			c.Equals = &eq
		}
		c.Contains = x(s.Contains)
		c.NotContains = x(s.NotContains)
		return &c
	case *flow.AssertCountStep:
		c := *s
		c.Selector = *s.Selector.Map(x)
		return &c
	case *flow.AssertTitleStep:
		c := *s
		c.Equals = x(s.Equals)
		c.Contains = x(s.Contains)
		return &c
	case *flow.TakeScreenshotStep:
		c := *s
		c.Path = x(s.Path)
		return &c
	}
	return step
}
