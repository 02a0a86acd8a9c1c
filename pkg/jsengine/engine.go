// Package jsengine evaluates the JavaScript used in scenario files:
// ${...} expansion, evalScript and assertTrue.
package jsengine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/scenario-runner/pkg/logger"
)

// Engine wraps a goja runtime. One engine serves one scenario execution;
// it is not shared between scenarios.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	output    map[string]interface{}
	info      ScenarioInfo
	mu        sync.Mutex
}

// ScenarioInfo is exposed to scripts as the read-only `scenario` global.
type ScenarioInfo struct {
	Name    string
	BaseURL string
	Browser string
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
		output:    make(map[string]interface{}),
	}
	e.setupBuiltins()
	return e
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()
	e.runtime.Set("json", e.jsonFunc())

	// Values stored here are read back into the scenario after evalScript
	e.runtime.Set("output", e.output)

	e.runtime.Set("scenario", e.scenarioObject())
}

// setupConsole routes console.log/warn/error to the run log.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(log func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			log("[js] %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	console.Set("error", makeConsoleFunc(logger.Error))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper: json(str) parses a JSON string.
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}

		parse, ok := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
		if !ok {
			panic(e.runtime.NewTypeError("JSON.parse unavailable"))
		}
		result, err := parse(goja.Undefined(), call.Arguments[0])
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return result
	}
}

func (e *Engine) scenarioObject() *goja.Object {
	obj := e.runtime.NewObject()
	getter := func(f func() string) goja.Value {
		return e.runtime.ToValue(f)
	}

	obj.DefineAccessorProperty("name", getter(func() string { return e.info.Name }),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	obj.DefineAccessorProperty("baseUrl", getter(func() string { return e.info.BaseURL }),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	obj.DefineAccessorProperty("browser", getter(func() string { return e.info.Browser }),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return obj
}

// SetScenarioInfo sets the values behind the `scenario` global.
func (e *Engine) SetScenarioInfo(info ScenarioInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.info = info
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// GetOutput returns a copy of the output object (values set by scripts)
func (e *Engine) GetOutput() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	source := e.output
	if v := e.runtime.Get("output"); v != nil && !goja.IsUndefined(v) {
		if m, ok := v.Export().(map[string]interface{}); ok {
			source = m
		}
	}

	result := make(map[string]interface{}, len(source))
	for k, v := range source {
		result[k] = v
	}
	return result
}

// Eval evaluates a JavaScript expression and returns the exported result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns string result
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", result), nil
}

// EvalBool evaluates a condition with JavaScript truthiness.
func (e *Engine) EvalBool(script string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return false, fmt.Errorf("JS eval error: %w", err)
	}
	return result.ToBoolean(), nil
}

// RunScript runs a script for its side effects
func (e *Engine) RunScript(script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.runtime.RunString(script); err != nil {
		return fmt.Errorf("JS runtime error: %w", err)
	}
	return nil
}

// DefineUndefinedIfMissing defines name as undefined unless it is already
// set, so scripts can test optional variables without a ReferenceError.
func (e *Engine) DefineUndefinedIfMissing(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.variables[name]; exists {
		return
	}
	if val := e.runtime.Get(name); val == nil {
		e.runtime.Set(name, goja.Undefined())
	}
}

// ExpandVariables replaces every ${expr} in text with the value of expr.
// Expressions that fail to evaluate are left in place.
func (e *Engine) ExpandVariables(text string) (string, error) {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		end, ok := matchBrace(result, idx+2)
		if !ok {
			start = idx + 2
			continue
		}

		expr := result[idx+2 : end-1]
		value, err := e.EvalString(expr)
		if err != nil {
			start = end
			continue
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result, nil
}

// matchBrace returns the index just past the '}' closing the brace opened
// before from.
func matchBrace(s string, from int) (int, bool) {
	depth := 1
	end := from
	for end < len(s) && depth > 0 {
		switch s[end] {
		case '{':
			depth++
		case '}':
			depth--
		}
		end++
	}
	return end, depth == 0
}

// Close interrupts any running script; later evaluations fail.
// It does not take the engine lock so a scenario timeout can stop a
// script that never returns. Safe to call multiple times.
func (e *Engine) Close() {
	e.runtime.Interrupt("engine closed")
}
