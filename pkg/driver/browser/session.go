package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
)

// Session is one browser context and page, owned by one scenario run.
type Session struct {
	cfg     Config
	context playwright.BrowserContext
	page    playwright.Page
	version string
}

// snapshotJS reads the state of every match in one round trip. Visibility
// follows Playwright: a non-empty box and not visibility:hidden.
const snapshotJS = `els => els.map(e => {
  const style = window.getComputedStyle(e);
  const rect = e.getBoundingClientRect();
  return {
    id: e.id || "",
    tag: e.tagName.toLowerCase(),
    text: (e.textContent || "").replace(/\s+/g, " ").trim(),
    value: "value" in e && e.value != null ? String(e.value) : "",
    visible: rect.width > 0 && rect.height > 0 && style.visibility !== "hidden",
    enabled: !e.disabled,
    checked: !!e.checked,
  };
})`

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeoutMs(ctx, s.cfg.NavTimeout),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	return err
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	return s.page.Title()
}

// Query resolves sel and snapshots every match.
func (s *Session) Query(ctx context.Context, sel *flow.Selector) ([]core.ElementInfo, error) {
	loc, err := s.locator(sel)
	if err != nil {
		return nil, err
	}
	raw, err := loc.EvaluateAll(snapshotJS)
	if err != nil {
		return nil, err
	}
	return toElementInfos(raw)
}

// Act performs the action with Playwright's own actionability checks,
// bounded by ctx.
func (s *Session) Act(ctx context.Context, action core.Action) error {
	loc, err := s.locator(action.Selector)
	if err != nil {
		return err
	}
	timeout := timeoutMs(ctx, 5*time.Second)

	switch action.Kind {
	case core.ActionFill:
		return loc.Fill(action.Value, playwright.LocatorFillOptions{Timeout: timeout})
	case core.ActionPress:
		return loc.Press(action.Key, playwright.LocatorPressOptions{Timeout: timeout})
	case core.ActionClick:
		return loc.Click(playwright.LocatorClickOptions{Timeout: timeout})
	case core.ActionDblClick:
		return loc.Dblclick(playwright.LocatorDblclickOptions{Timeout: timeout})
	case core.ActionHover:
		return loc.Hover(playwright.LocatorHoverOptions{Timeout: timeout})
	}
	return fmt.Errorf("unsupported action %q", action.Kind)
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot() ([]byte, error) {
	return s.page.Screenshot(playwright.PageScreenshotOptions{})
}

// Content returns the serialized DOM.
func (s *Session) Content(ctx context.Context) (string, error) {
	return s.page.Content()
}

// GetPlatformInfo returns browser details.
func (s *Session) GetPlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{
		Platform:       "web",
		Browser:        s.cfg.Browser,
		BrowserVersion: s.version,
		Headless:       s.cfg.Headless,
	}
}

// Close discards the browser context and its page.
func (s *Session) Close() error {
	return s.context.Close()
}

// locator builds a Playwright locator chain for sel.
func (s *Session) locator(sel *flow.Selector) (playwright.Locator, error) {
	return buildLocator(s.page.Locator(":root"), sel)
}

func buildLocator(root playwright.Locator, sel *flow.Selector) (playwright.Locator, error) {
	if sel == nil || sel.IsEmpty() {
		return nil, fmt.Errorf("selector has no strategy")
	}

	scope := root
	if sel.Within != nil {
		parent, err := buildLocator(root, sel.Within)
		if err != nil {
			return nil, err
		}
		scope = parent
	}

	exact := playwright.Bool(sel.Exact)
	var loc playwright.Locator
	switch kind, value := sel.Strategy(); kind {
	case "role":
		opts := playwright.LocatorGetByRoleOptions{}
		if sel.Name != "" {
			opts.Name = sel.Name
			opts.Exact = exact
		}
		loc = scope.GetByRole(playwright.AriaRole(value), opts)
	case "placeholder":
		loc = scope.GetByPlaceholder(value, playwright.LocatorGetByPlaceholderOptions{Exact: exact})
	case "text":
		loc = scope.GetByText(value, playwright.LocatorGetByTextOptions{Exact: exact})
	case "label":
		loc = scope.GetByLabel(value, playwright.LocatorGetByLabelOptions{Exact: exact})
	case "testId":
		loc = scope.GetByTestId(value)
	case "css":
		loc = scope.Locator(value)
	default:
		return nil, fmt.Errorf("unsupported selector strategy %q", kind)
	}

	if sel.HasText != "" || sel.HasNotText != "" {
		opts := playwright.LocatorFilterOptions{}
		if sel.HasText != "" {
			opts.HasText = sel.HasText
		}
		if sel.HasNotText != "" {
			opts.HasNotText = sel.HasNotText
		}
		loc = loc.Filter(opts)
	}
	if sel.Nth != nil {
		if *sel.Nth == -1 {
			loc = loc.Last()
		} else {
			loc = loc.Nth(*sel.Nth)
		}
	}
	return loc, nil
}

// timeoutMs returns the Playwright timeout for an operation: the time
// left on ctx, capped at def.
func timeoutMs(ctx context.Context, def time.Duration) *float64 {
	d := def
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// toElementInfos converts the EvaluateAll result of snapshotJS.
func toElementInfos(raw interface{}) ([]core.ElementInfo, error) {
	items, ok := raw.([]interface{})
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected snapshot result %T", raw)
	}

	infos := make([]core.ElementInfo, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("snapshot item %d: unexpected %T", i, it)
		}
		infos = append(infos, core.ElementInfo{
			ID:      str(m["id"]),
			Tag:     strings.ToLower(str(m["tag"])),
			Text:    str(m["text"]),
			Value:   str(m["value"]),
			Visible: boolean(m["visible"]),
			Enabled: boolean(m["enabled"]),
			Checked: boolean(m["checked"]),
		})
	}
	return infos, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolean(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
