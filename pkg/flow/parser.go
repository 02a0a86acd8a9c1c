package flow

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single YAML scenario file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided scenario file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses YAML scenario content.
// A file is either a bare step list or a config document followed by
// "---" and the step list.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))

	flow := &Flow{
		SourcePath: sourcePath,
	}

	if len(parts) == 0 {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    1,
			Message: "empty scenario file",
		}
	}

	if len(parts) == 1 {
		if err := parseSteps(parts[0], flow); err != nil {
			return nil, err
		}
	} else {
		if err := parseConfig(parts[0], flow); err != nil {
			return nil, err
		}
		if err := parseSteps(parts[1], flow); err != nil {
			return nil, err
		}
	}

	if flow.Config.Timeout < 0 {
		return nil, &ParseError{
			Path:    sourcePath,
			Message: "timeout must not be negative",
		}
	}

	return flow, nil
}

func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" && strings.TrimLeft(line, " \t") == "---" {
			if strings.TrimSpace(current.String()) != "" {
				parts = append(parts, current.String())
			}
			current.Reset()
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, current.String())
	}

	return parts
}

func parseConfig(content string, flow *Flow) error {
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}
	flow.Config = config
	return nil
}

func parseSteps(content string, flow *Flow) error {
	var rawSteps []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawSteps); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid steps: %v", err),
		}
	}

	for i := range rawSteps {
		step, err := parseStep(&rawSteps[i], flow.SourcePath)
		if err != nil {
			return err
		}
		flow.Steps = append(flow.Steps, step)
	}

	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Scalar nodes like "- takeScreenshot" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		stepType := node.Value
		if !isStepType(stepType) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", stepType),
			}
		}
		emptyNode := &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}
		return decodeStep(StepType(stepType), emptyNode, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		key := ""
		if len(node.Content) > 0 {
			key = node.Content[0].Value
		}
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: fmt.Sprintf("unknown step type: %s", key),
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepNavigate, StepFill, StepPress, StepClick, StepDoubleClick, StepHover,
		StepAssertVisible, StepAssertNotVisible, StepAssertChecked, StepAssertText,
		StepAssertCount, StepAssertTitle, StepAssertTrue,
		StepRunFlow, StepRepeat, StepEvalScript, StepDefineVariables,
		StepTakeScreenshot:
		return true
	}
	return false
}

// decodeSelectorStep decodes a step whose scalar form is a text selector.
func decodeSelectorStep(valueNode *yaml.Node, sel *Selector, out interface{}, sourcePath string) error {
	if valueNode.Kind == yaml.ScalarNode {
		sel.Text = valueNode.Value
	} else if err := valueNode.Decode(out); err != nil {
		return wrapParseError(sourcePath, valueNode.Line, err)
	}
	if err := validateSelector(sel, sourcePath, valueNode.Line); err != nil {
		return err
	}
	if sel.IsEmpty() {
		return &ParseError{
			Path:    sourcePath,
			Line:    valueNode.Line,
			Message: "selector requires one of role, placeholder, text, labelText, testId or css",
		}
	}
	return nil
}

// validateSelector checks field combinations. Callers check emptiness
// afterwards.
func validateSelector(sel *Selector, sourcePath string, line int) error {
	if sel.Name != "" && sel.Role == "" {
		return &ParseError{Path: sourcePath, Line: line, Message: "name is only valid with role"}
	}
	if sel.Within != nil {
		if err := validateSelector(sel.Within, sourcePath, line); err != nil {
			return err
		}
		if sel.Within.IsEmpty() {
			return &ParseError{Path: sourcePath, Line: line, Message: "within requires a selector"}
		}
	}
	return nil
}

//nolint:gocyclo
func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	switch stepType {
	case StepNavigate:
		var s NavigateStep
		if valueNode.Kind == yaml.ScalarNode {
			s.URL = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		if s.URL == "" {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "navigate requires a url"}
		}
		s.StepType = stepType
		return &s, nil

	case StepFill:
		var s FillStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepPress:
		var s PressStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		if s.Key == "" {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "press requires a key"}
		}
		s.StepType = stepType
		return &s, nil

	case StepClick:
		var s ClickStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepDoubleClick:
		var s DoubleClickStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepHover:
		var s HoverStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertVisible:
		var s AssertVisibleStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertNotVisible:
		var s AssertNotVisibleStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertChecked:
		var s AssertCheckedStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertText:
		var s AssertTextStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		set := 0
		if s.Equals != nil {
			set++
		}
		if s.Contains != "" {
			set++
		}
		if s.NotContains != "" {
			set++
		}
		if set != 1 {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    valueNode.Line,
				Message: "assertText requires exactly one of equals, contains or notContains",
			}
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertCount:
		var s AssertCountStep
		if err := decodeSelectorStep(valueNode, &s.Selector, &s, sourcePath); err != nil {
			return nil, err
		}
		if s.Count == nil || *s.Count < 0 {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "assertCount requires a non-negative count"}
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertTitle:
		var s AssertTitleStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Equals = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		if s.Equals == "" && s.Contains == "" {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "assertTitle requires equals or contains"}
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertTrue:
		var s AssertTrueStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Script = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepEvalScript:
		var s EvalScriptStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Script = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepDefineVariables:
		var s DefineVariablesStep
		if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepTakeScreenshot:
		var s TakeScreenshotStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Path = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepRunFlow:
		return parseRunFlowStep(valueNode, sourcePath)

	case StepRepeat:
		return parseRepeatStep(valueNode, sourcePath)
	}

	return nil, &ParseError{
		Path:    sourcePath,
		Line:    valueNode.Line,
		Message: fmt.Sprintf("unknown step type: %s", stepType),
	}
}

// parseRunFlowStep handles runFlow with a file reference or nested commands.
func parseRunFlowStep(valueNode *yaml.Node, sourcePath string) (Step, error) {
	s := &RunFlowStep{BaseStep: BaseStep{StepType: StepRunFlow}}

	if valueNode.Kind == yaml.ScalarNode {
		s.File = valueNode.Value
		return s, nil
	}

	var raw struct {
		File     string            `yaml:"file"`
		Commands []yaml.Node       `yaml:"commands"`
		Env      map[string]string `yaml:"env"`
		Optional bool              `yaml:"optional"`
		Label    string            `yaml:"label"`
	}

	if err := valueNode.Decode(&raw); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}

	s.File = raw.File
	s.Env = raw.Env
	s.Optional = raw.Optional
	s.StepLabel = raw.Label

	for i := range raw.Commands {
		step, err := parseStep(&raw.Commands[i], sourcePath)
		if err != nil {
			return nil, err
		}
		s.Steps = append(s.Steps, step)
	}

	if s.File == "" && len(s.Steps) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "runFlow requires a file or commands"}
	}

	return s, nil
}

// parseRepeatStep handles repeat with nested commands.
func parseRepeatStep(valueNode *yaml.Node, sourcePath string) (Step, error) {
	s := &RepeatStep{BaseStep: BaseStep{StepType: StepRepeat}}

	var raw struct {
		Times    string      `yaml:"times"`
		Commands []yaml.Node `yaml:"commands"`
		Optional bool        `yaml:"optional"`
		Label    string      `yaml:"label"`
	}

	if err := valueNode.Decode(&raw); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}

	s.Times = raw.Times
	s.Optional = raw.Optional
	s.StepLabel = raw.Label

	for i := range raw.Commands {
		step, err := parseStep(&raw.Commands[i], sourcePath)
		if err != nil {
			return nil, err
		}
		s.Steps = append(s.Steps, step)
	}

	return s, nil
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// ShouldIncludeFlow checks if a flow matches tag filters.
func ShouldIncludeFlow(flow *Flow, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 {
		hasTag := false
		for _, tag := range flow.Config.Tags {
			for _, include := range includeTags {
				if tag == include {
					hasTag = true
					break
				}
			}
		}
		if !hasTag {
			return false
		}
	}

	for _, tag := range flow.Config.Tags {
		for _, exclude := range excludeTags {
			if tag == exclude {
				return false
			}
		}
	}

	return true
}

// MatchesName reports whether the flow's name contains any of the filters
// (case-insensitive). An empty filter list matches everything.
func MatchesName(flow *Flow, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	name := strings.ToLower(flow.Name())
	for _, f := range filters {
		if f != "" && strings.Contains(name, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
