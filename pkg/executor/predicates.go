package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
	"github.com/devicelab-dev/scenario-runner/pkg/report"
	"github.com/devicelab-dev/scenario-runner/pkg/wait"
)

// ============================================
// Actions
// ============================================

// act waits for the selector to resolve to exactly one actionable element
// and performs the action on it.
func (fr *FlowRunner) act(ctx context.Context, step flow.Step, action core.Action) (*core.ElementInfo, error) {
	timeout := fr.config.stepTimeout(step)
	el, err := fr.waitActionable(ctx, action.Selector, timeout)
	if err != nil {
		return el, err
	}

	if err := fr.driver.Act(ctx, action); err != nil {
		if isContextErr(err) {
			return el, err
		}
		return el, core.ErrAction.
			WithMessage(fmt.Sprintf("%s on %s failed", action.Kind, action.Selector.DescribeQuoted())).
			WithDetails(map[string]interface{}{"selector": action.Selector.DescribeQuoted()}).
			WithCause(err)
	}
	return el, nil
}

// waitActionable polls until sel matches exactly one visible, enabled
// element. More than one match fails immediately.
func (fr *FlowRunner) waitActionable(ctx context.Context, sel *flow.Selector, timeout time.Duration) (*core.ElementInfo, error) {
	var last []core.ElementInfo

	err := wait.Until(ctx, wait.Options{Timeout: timeout}, func(ctx context.Context) (bool, error) {
		matches, err := fr.driver.Query(ctx, sel)
		if err != nil {
			return false, err
		}
		last = matches
		if len(matches) > 1 {
			return false, wait.Permanent(strictError(sel, len(matches)))
		}
		return len(matches) == 1 && matches[0].Actionable(), nil
	})
	if err == nil {
		return &last[0], nil
	}
	if !wait.IsTimeout(err) {
		return firstOf(last), err
	}

	described := sel.DescribeQuoted()
	if len(last) == 0 {
		return nil, core.ErrLocatorTimeout.
			WithMessage(fmt.Sprintf("%s resolved to no elements within %s", described, timeout)).
			WithDetails(map[string]interface{}{"selector": described, "timeout": timeout.String()}).
			WithCause(err)
	}
	el := last[0]
	return &el, core.ErrNotInteractable.
		WithMessage(fmt.Sprintf("%s is not interactable within %s", described, timeout)).
		WithDetails(map[string]interface{}{
			"selector": described,
			"expected": "visible and enabled",
			"actual":   fmt.Sprintf("visible=%t enabled=%t", el.Visible, el.Enabled),
		}).
		WithCause(err)
}

func strictError(sel *flow.Selector, n int) error {
	described := sel.DescribeQuoted()
	return core.ErrStrictMode.
		WithMessage(fmt.Sprintf("%s resolved to %d elements", described, n)).
		WithDetails(map[string]interface{}{"selector": described, "matches": n})
}

// ============================================
// Polling assertions
// ============================================

// checkFunc inspects the current matches. It returns whether the assertion
// holds and a description of what was observed.
type checkFunc func(matches []core.ElementInfo) (ok bool, actual string, err error)

type pollSpec struct {
	selector     *flow.Selector
	expected     string
	requireMatch bool // Zero matches at the deadline is a locator timeout
}

// poll re-queries the selector until check holds or the step timeout
// elapses. It returns the first match seen on the final check.
func (fr *FlowRunner) poll(ctx context.Context, step flow.Step, want pollSpec, check checkFunc) (*core.ElementInfo, error) {
	timeout := fr.config.stepTimeout(step)
	var (
		last   []core.ElementInfo
		actual string
	)

	err := wait.Until(ctx, wait.Options{Timeout: timeout}, func(ctx context.Context) (bool, error) {
		matches, err := fr.driver.Query(ctx, want.selector)
		if err != nil {
			return false, err
		}
		last = matches
		ok, observed, err := check(matches)
		actual = observed
		return ok, err
	})
	if err == nil || !wait.IsTimeout(err) {
		return firstOf(last), err
	}

	described := want.selector.DescribeQuoted()
	if want.requireMatch && len(last) == 0 {
		return nil, core.ErrLocatorTimeout.
			WithMessage(fmt.Sprintf("%s resolved to no elements within %s", described, timeout)).
			WithDetails(map[string]interface{}{
				"selector": described,
				"timeout":  timeout.String(),
				"expected": want.expected,
				"actual":   "no elements",
			}).
			WithCause(err)
	}
	return firstOf(last), core.ErrPredicateTimeout.
		WithMessage(fmt.Sprintf("%s: expected %s, got %s within %s", described, want.expected, actual, timeout)).
		WithDetails(map[string]interface{}{
			"selector": described,
			"timeout":  timeout.String(),
			"expected": want.expected,
			"actual":   actual,
		}).
		WithCause(err)
}

// assertVisible holds when any match is visible.
func (fr *FlowRunner) assertVisible(ctx context.Context, step flow.Step, sel *flow.Selector) (*core.ElementInfo, error) {
	var visible *core.ElementInfo
	_, err := fr.poll(ctx, step, pollSpec{selector: sel, expected: "visible", requireMatch: true},
		func(matches []core.ElementInfo) (bool, string, error) {
			for i := range matches {
				if matches[i].Visible {
					el := matches[i]
					visible = &el
					return true, "visible", nil
				}
			}
			return false, fmt.Sprintf("hidden (%d matches)", len(matches)), nil
		})
	return visible, err
}

// assertNotVisible holds when no match is visible, including zero matches.
func (fr *FlowRunner) assertNotVisible(ctx context.Context, step flow.Step, sel *flow.Selector) error {
	_, err := fr.poll(ctx, step, pollSpec{selector: sel, expected: "hidden"},
		func(matches []core.ElementInfo) (bool, string, error) {
			n := 0
			for _, m := range matches {
				if m.Visible {
					n++
				}
			}
			if n == 0 {
				return true, "hidden", nil
			}
			return false, fmt.Sprintf("visible (%d of %d matches)", n, len(matches)), nil
		})
	return err
}

func (fr *FlowRunner) assertChecked(ctx context.Context, s *flow.AssertCheckedStep) (*core.ElementInfo, error) {
	want := s.Want()
	return fr.poll(ctx, s, pollSpec{selector: &s.Selector, expected: checkedState(want), requireMatch: true},
		strict(&s.Selector, func(el core.ElementInfo) (bool, string) {
			return el.Checked == want, checkedState(el.Checked)
		}))
}

func checkedState(checked bool) string {
	if checked {
		return "checked"
	}
	return "unchecked"
}

func (fr *FlowRunner) assertText(ctx context.Context, s *flow.AssertTextStep) (*core.ElementInfo, error) {
	if s.Equals == nil && s.Contains == "" && s.NotContains == "" {
		return nil, core.ErrMissingRequired.WithMessage("assertText requires equals, contains or notContains")
	}

	var expected []string
	if s.Equals != nil {
		expected = append(expected, fmt.Sprintf("text %q", normalizeSpace(*s.Equals)))
	}
	if s.Contains != "" {
		expected = append(expected, fmt.Sprintf("text containing %q", normalizeSpace(s.Contains)))
	}
	if s.NotContains != "" {
		expected = append(expected, fmt.Sprintf("text not containing %q", normalizeSpace(s.NotContains)))
	}

	return fr.poll(ctx, s, pollSpec{selector: &s.Selector, expected: strings.Join(expected, " and "), requireMatch: true},
		strict(&s.Selector, func(el core.ElementInfo) (bool, string) {
			text := elementText(el)
			ok := true
			if s.Equals != nil && text != normalizeSpace(*s.Equals) {
				ok = false
			}
			if s.Contains != "" && !strings.Contains(text, normalizeSpace(s.Contains)) {
				ok = false
			}
			if s.NotContains != "" && strings.Contains(text, normalizeSpace(s.NotContains)) {
				ok = false
			}
			return ok, fmt.Sprintf("%q", text)
		}))
}

func (fr *FlowRunner) assertCount(ctx context.Context, s *flow.AssertCountStep) error {
	if s.Count == nil {
		return core.ErrMissingRequired.WithMessage("assertCount requires count")
	}
	want := *s.Count
	_, err := fr.poll(ctx, s, pollSpec{selector: &s.Selector, expected: fmt.Sprintf("%d elements", want)},
		func(matches []core.ElementInfo) (bool, string, error) {
			return len(matches) == want, fmt.Sprintf("%d elements", len(matches)), nil
		})
	return err
}

func (fr *FlowRunner) assertTitle(ctx context.Context, s *flow.AssertTitleStep) error {
	if s.Equals == "" && s.Contains == "" {
		return core.ErrMissingRequired.WithMessage("assertTitle requires equals or contains")
	}
	expected := fmt.Sprintf("title %q", s.Equals)
	if s.Equals == "" {
		expected = fmt.Sprintf("title containing %q", s.Contains)
	}

	timeout := fr.config.stepTimeout(s)
	var title string
	err := wait.Until(ctx, wait.Options{Timeout: timeout}, func(ctx context.Context) (bool, error) {
		t, err := fr.driver.Title(ctx)
		if err != nil {
			return false, err
		}
		title = t
		if s.Equals != "" {
			return t == s.Equals, nil
		}
		return strings.Contains(t, s.Contains), nil
	})
	if err == nil || !wait.IsTimeout(err) {
		return err
	}
	return core.ErrPredicateTimeout.
		WithMessage(fmt.Sprintf("expected %s, got %q within %s", expected, title, timeout)).
		WithDetails(map[string]interface{}{"expected": expected, "actual": fmt.Sprintf("%q", title)}).
		WithCause(err)
}

// strict adapts a single-element check. Zero matches keeps polling, more
// than one match fails immediately.
func strict(sel *flow.Selector, check func(el core.ElementInfo) (bool, string)) checkFunc {
	return func(matches []core.ElementInfo) (bool, string, error) {
		switch len(matches) {
		case 0:
			return false, "no elements", nil
		case 1:
			ok, actual := check(matches[0])
			return ok, actual, nil
		default:
			return false, fmt.Sprintf("%d elements", len(matches)), wait.Permanent(strictError(sel, len(matches)))
		}
	}
}

// elementText is the value for form fields and the text content otherwise.
func elementText(el core.ElementInfo) string {
	switch el.Tag {
	case "input", "textarea":
		return normalizeSpace(el.Value)
	}
	return normalizeSpace(el.Text)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstOf(matches []core.ElementInfo) *core.ElementInfo {
	if len(matches) == 0 {
		return nil
	}
	el := matches[0]
	return &el
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// ============================================
// Diagnostics
// ============================================

// expectedActual extracts the expected/actual pair recorded on an
// ExecutionError, if any.
func expectedActual(err error) (string, string) {
	var execErr *core.ExecutionError
	if !errors.As(err, &execErr) || execErr.Details == nil {
		return "", ""
	}
	return detailString(execErr.Details, "expected"), detailString(execErr.Details, "actual")
}

func detailString(details map[string]interface{}, key string) string {
	v, ok := details[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toReportError(err error) *report.Error {
	if err == nil {
		return nil
	}
	expected, actual := expectedActual(err)
	re := &report.Error{
		Type:     core.CategoryOf(err).TypeName(),
		Message:  err.Error(),
		Expected: expected,
		Actual:   actual,
	}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		re.Details = detailString(execErr.Details, "selector")
	}
	return re
}

func toReportElement(el *core.ElementInfo) *report.Element {
	if el == nil {
		return nil
	}
	return &report.Element{
		Found:   true,
		Tag:     el.Tag,
		Text:    el.Text,
		Visible: el.Visible,
	}
}
