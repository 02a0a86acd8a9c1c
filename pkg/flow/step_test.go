package flow

import "testing"

func strPtr(s string) *string { return &s }

func TestStep_Describe(t *testing.T) {
	sel := Selector{Placeholder: "What needs to be done?"}
	off := false

	tests := []struct {
		step Step
		want string
	}{
		{&NavigateStep{URL: "#/"}, "navigate: #/"},
		{&FillStep{Selector: sel, Value: "Feed the cat"}, `fill: placeholder="What needs to be done?" with "Feed the cat"`},
		{&PressStep{Selector: sel, Key: "Enter"}, `press: Enter on placeholder="What needs to be done?"`},
		{&ClickStep{Selector: Selector{Text: "All"}}, `click: text="All"`},
		{&DoubleClickStep{Selector: Selector{Text: "a"}}, `doubleClick: text="a"`},
		{&HoverStep{Selector: Selector{Text: "a"}}, `hover: text="a"`},
		{&AssertVisibleStep{Selector: Selector{CSS: "footer"}}, `assertVisible: css="footer"`},
		{&AssertNotVisibleStep{Selector: Selector{CSS: "footer"}}, `assertNotVisible: css="footer"`},
		{&AssertCheckedStep{Selector: Selector{CSS: "input"}}, `assertChecked: css="input"`},
		{&AssertCheckedStep{Selector: Selector{CSS: "input"}, Checked: &off}, `assertChecked: css="input" is unchecked`},
		{&AssertTextStep{Selector: Selector{CSS: "h1"}, Equals: strPtr("todos")}, `assertText: css="h1" equals "todos"`},
		{&AssertTextStep{Selector: Selector{CSS: "h1"}, Contains: "to"}, `assertText: css="h1" contains "to"`},
		{&AssertTextStep{Selector: Selector{CSS: "h1"}, NotContains: "x"}, `assertText: css="h1" not contains "x"`},
		{&AssertCountStep{Selector: Selector{Role: "listitem"}, Count: intPtr(3)}, `assertCount: role=listitem == 3`},
		{&AssertTitleStep{Equals: "TodoMVC: Vue"}, `assertTitle: "TodoMVC: Vue"`},
		{&AssertTitleStep{Contains: "Vue"}, `assertTitle: contains "Vue"`},
		{&RunFlowStep{File: "add.yaml"}, "runFlow: add.yaml"},
		{&RunFlowStep{}, "runFlow"},
		{&RepeatStep{Times: "3"}, "repeat: 3 times"},
		{&TakeScreenshotStep{}, "takeScreenshot"},
		{&DefineVariablesStep{BaseStep: BaseStep{StepType: StepDefineVariables}}, "defineVariables"},
	}

	for _, tt := range tests {
		if got := tt.step.Describe(); got != tt.want {
			t.Errorf("Describe() = %q, want %q", got, tt.want)
		}
	}
}

func TestTargetOf(t *testing.T) {
	click := &ClickStep{Selector: Selector{Text: "All"}}
	if got := TargetOf(click); got != &click.Selector {
		t.Error("TargetOf(click) should return the step's own selector")
	}
	if got := TargetOf(&NavigateStep{URL: "#/"}); got != nil {
		t.Errorf("TargetOf(navigate) = %v, want nil", got)
	}
	if got := TargetOf(&AssertTitleStep{Equals: "x"}); got != nil {
		t.Errorf("TargetOf(assertTitle) = %v, want nil", got)
	}
}

func TestFlow_Name(t *testing.T) {
	named := &Flow{SourcePath: "a/b.yaml", Config: Config{Name: "explicit"}}
	if named.Name() != "explicit" {
		t.Errorf("Name() = %q", named.Name())
	}
	fallback := &Flow{SourcePath: "scenarios/todomvc/edit_todo.yml"}
	if fallback.Name() != "edit_todo" {
		t.Errorf("Name() = %q", fallback.Name())
	}
}
