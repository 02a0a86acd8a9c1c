package flow

import (
	"strconv"
	"time"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Navigation & Interaction
	StepNavigate    StepType = "navigate"
	StepFill        StepType = "fill"
	StepPress       StepType = "press"
	StepClick       StepType = "click"
	StepDoubleClick StepType = "doubleClick"
	StepHover       StepType = "hover"

	// Assertions
	StepAssertVisible    StepType = "assertVisible"
	StepAssertNotVisible StepType = "assertNotVisible"
	StepAssertChecked    StepType = "assertChecked"
	StepAssertText       StepType = "assertText"
	StepAssertCount      StepType = "assertCount"
	StepAssertTitle      StepType = "assertTitle"
	StepAssertTrue       StepType = "assertTrue"

	// Flow Control
	StepRunFlow         StepType = "runFlow"
	StepRepeat          StepType = "repeat"
	StepEvalScript      StepType = "evalScript"
	StepDefineVariables StepType = "defineVariables"

	// Media
	StepTakeScreenshot StepType = "takeScreenshot"
)

// Step is the interface for all scenario steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
	// Timeout is the step's own polling window, zero when unset.
	Timeout() time.Duration
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// Timeout returns the step timeout.
func (b *BaseStep) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// ============================================
// Navigation & Interaction Steps
// ============================================

// NavigateStep loads a URL in the scenario's page.
type NavigateStep struct {
	BaseStep `yaml:",inline"`
	URL      string `yaml:"url"`
}

// FillStep replaces the value of an input element.
type FillStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Value    string   `yaml:"value"`
}

// PressStep presses a key (Enter, Escape, ArrowDown, ...) on an element.
type PressStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Key      string   `yaml:"key"`
}

// ClickStep clicks an element.
type ClickStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// DoubleClickStep double-clicks an element.
type DoubleClickStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// HoverStep moves the pointer over an element.
type HoverStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// ============================================
// Assertion Steps
// ============================================

// AssertVisibleStep asserts that at least one match is visible.
type AssertVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// AssertNotVisibleStep asserts that no match is visible.
type AssertNotVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// AssertCheckedStep asserts the checked state of a checkbox.
type AssertCheckedStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Checked  *bool    `yaml:"checked"`
}

// Want returns the expected checked state (default true).
func (s *AssertCheckedStep) Want() bool {
	return s.Checked == nil || *s.Checked
}

// AssertTextStep asserts on the flattened text content of the first match.
type AssertTextStep struct {
	BaseStep    `yaml:",inline"`
	Selector    Selector `yaml:",inline"`
	Equals      *string  `yaml:"equals"`
	Contains    string   `yaml:"contains"`
	NotContains string   `yaml:"notContains"`
}

// AssertCountStep asserts the number of matches.
type AssertCountStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Count    *int     `yaml:"count"`
}

// AssertTitleStep asserts on the document title.
type AssertTitleStep struct {
	BaseStep `yaml:",inline"`
	Equals   string `yaml:"equals"`
	Contains string `yaml:"contains"`
}

// AssertTrueStep asserts that a script condition is true.
type AssertTrueStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// ============================================
// Flow Control Steps
// ============================================

// RunFlowStep runs another scenario file or an inline list of steps.
type RunFlowStep struct {
	BaseStep `yaml:",inline"`
	File     string            `yaml:"file"`
	Steps    []Step            `yaml:"-"`
	Env      map[string]string `yaml:"env"`
}

// RepeatStep runs nested steps a number of times.
type RepeatStep struct {
	BaseStep `yaml:",inline"`
	Times    string `yaml:"times"` // String for variable support
	Steps    []Step `yaml:"-"`
}

// EvalScriptStep evaluates JavaScript.
type EvalScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// DefineVariablesStep defines variables.
type DefineVariablesStep struct {
	BaseStep `yaml:",inline"`
	Env      map[string]string `yaml:"env"`
}

// ============================================
// Media Steps
// ============================================

// TakeScreenshotStep takes a screenshot.
type TakeScreenshotStep struct {
	BaseStep `yaml:",inline"`
	Path     string `yaml:"path"`
}

// TargetOf returns the selector of steps that act on elements, nil otherwise.
func TargetOf(step Step) *Selector {
	switch s := step.(type) {
	case *FillStep:
		return &s.Selector
	case *PressStep:
		return &s.Selector
	case *ClickStep:
		return &s.Selector
	case *DoubleClickStep:
		return &s.Selector
	case *HoverStep:
		return &s.Selector
	case *AssertVisibleStep:
		return &s.Selector
	case *AssertNotVisibleStep:
		return &s.Selector
	case *AssertCheckedStep:
		return &s.Selector
	case *AssertTextStep:
		return &s.Selector
	case *AssertCountStep:
		return &s.Selector
	}
	return nil
}

// ============================================
// Describe() implementations for detailed output
// ============================================

// Describe returns a human-readable description of the navigate step.
func (s *NavigateStep) Describe() string {
	return "navigate: " + s.URL
}

// Describe returns a human-readable description of the fill step.
func (s *FillStep) Describe() string {
	return "fill: " + s.Selector.DescribeQuoted() + " with " + strconv.Quote(s.Value)
}

// Describe returns a human-readable description of the press step.
func (s *PressStep) Describe() string {
	return "press: " + s.Key + " on " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the click step.
func (s *ClickStep) Describe() string {
	return "click: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the double click step.
func (s *DoubleClickStep) Describe() string {
	return "doubleClick: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the hover step.
func (s *HoverStep) Describe() string {
	return "hover: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the assert visible step.
func (s *AssertVisibleStep) Describe() string {
	return "assertVisible: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the assert not visible step.
func (s *AssertNotVisibleStep) Describe() string {
	return "assertNotVisible: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the assert checked step.
func (s *AssertCheckedStep) Describe() string {
	if !s.Want() {
		return "assertChecked: " + s.Selector.DescribeQuoted() + " is unchecked"
	}
	return "assertChecked: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the assert text step.
func (s *AssertTextStep) Describe() string {
	desc := "assertText: " + s.Selector.DescribeQuoted()
	switch {
	case s.Equals != nil:
		desc += " equals " + strconv.Quote(*s.Equals)
	case s.Contains != "":
		desc += " contains " + strconv.Quote(s.Contains)
	case s.NotContains != "":
		desc += " not contains " + strconv.Quote(s.NotContains)
	}
	return desc
}

// Describe returns a human-readable description of the assert count step.
func (s *AssertCountStep) Describe() string {
	n := 0
	if s.Count != nil {
		n = *s.Count
	}
	return "assertCount: " + s.Selector.DescribeQuoted() + " == " + strconv.Itoa(n)
}

// Describe returns a human-readable description of the assert title step.
func (s *AssertTitleStep) Describe() string {
	if s.Contains != "" {
		return "assertTitle: contains " + strconv.Quote(s.Contains)
	}
	return "assertTitle: " + strconv.Quote(s.Equals)
}

// Describe returns a human-readable description of the assert true step.
func (s *AssertTrueStep) Describe() string {
	return "assertTrue: " + s.Script
}

// Describe returns a human-readable description of the run flow step.
func (s *RunFlowStep) Describe() string {
	if s.File != "" {
		return "runFlow: " + s.File
	}
	return "runFlow"
}

// Describe returns a human-readable description of the repeat step.
func (s *RepeatStep) Describe() string {
	if s.Times != "" {
		return "repeat: " + s.Times + " times"
	}
	return "repeat"
}

// Describe returns a human-readable description of the screenshot step.
func (s *TakeScreenshotStep) Describe() string {
	if s.Path != "" {
		return "takeScreenshot: " + s.Path
	}
	return "takeScreenshot"
}
