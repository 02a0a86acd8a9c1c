// Package mock provides an in-memory page driver for testing without a
// browser. Each session hosts its own fake TodoMVC application, rendered
// to HTML on every read and queried with goquery.
package mock

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
)

// DefaultBaseURL is where the fake application is served.
const DefaultBaseURL = "https://todomvc.com/examples/vue/dist/"

// Driver is a mock implementation of core.Driver for testing.
type Driver struct {
	// Configuration
	Config Config

	mu      sync.Mutex
	live    *state
	stale   *state    // what the page still shows while an update is pending
	staleTo time.Time // when the pending update becomes visible
	url     string
	actions int
	closed  bool
}

// Config configures mock driver behavior.
type Config struct {
	// BaseURL is the only document the fake serves. Navigation to any
	// other document fails like an unresolvable host.
	BaseURL string
	// UpdateDelay defers the visible effect of each action, like an
	// asynchronous re-render.
	UpdateDelay time.Duration
	// FailOnAction makes action N fail (1-indexed). 0 = never fail.
	FailOnAction int
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Driver{Config: cfg, live: newState(), url: "about:blank"}
}

// Factory creates isolated mock sessions.
type Factory struct {
	Config Config
}

// NewSession returns a fresh driver with an empty application.
func (f *Factory) NewSession(ctx context.Context) (core.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return New(f.Config), nil
}

// view returns the state currently on screen.
func (d *Driver) view() *state {
	if d.stale != nil && time.Now().Before(d.staleTo) {
		return d.stale
	}
	d.stale = nil
	return d.live
}

func (d *Driver) document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(render(d.view())))
}

func (d *Driver) checkOpen() error {
	if d.closed {
		return fmt.Errorf("target page, context or browser has been closed")
	}
	return nil
}

// Navigate loads url. Only the configured base document is served;
// fragment changes switch the filter without resetting the todos.
func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	fragment := u.Fragment
	u.Fragment, u.RawFragment = "", ""
	if strings.TrimSuffix(u.String(), "/") != strings.TrimSuffix(d.Config.BaseURL, "/") {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", rawURL)
	}

	d.stale = nil
	d.live.loaded = true
	d.live.filter = filterFromFragment(fragment)
	d.url = rawURL
	return nil
}

// Title returns the document title.
func (d *Driver) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(); err != nil {
		return "", err
	}
	if !d.view().loaded {
		return "", nil
	}
	return Title, nil
}

// URL returns the last navigated url.
func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// Query resolves sel against the current render.
func (d *Driver) Query(ctx context.Context, sel *flow.Selector) ([]core.ElementInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	doc, err := d.document()
	if err != nil {
		return nil, err
	}
	matches, err := resolve(doc, sel)
	if err != nil {
		return nil, err
	}
	return snapshot(matches), nil
}

// Act performs an input action on the single element matched by the
// action's selector.
func (d *Driver) Act(ctx context.Context, action core.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(); err != nil {
		return err
	}
	d.actions++
	if d.Config.FailOnAction > 0 && d.actions == d.Config.FailOnAction {
		return fmt.Errorf("mock failure on action %d (%s)", d.actions, action.Kind)
	}

	doc, err := d.document()
	if err != nil {
		return err
	}
	matches, err := resolve(doc, action.Selector)
	if err != nil {
		return err
	}
	switch n := matches.Length(); {
	case n == 0:
		return fmt.Errorf("no element matches %s", action.Selector.DescribeQuoted())
	case n > 1:
		return fmt.Errorf("strict mode violation: %s resolved to %d elements", action.Selector.DescribeQuoted(), n)
	}
	target := matches.First()
	if isHidden(target) {
		return fmt.Errorf("element is not visible")
	}

	if d.Config.UpdateDelay > 0 && d.stale == nil {
		d.stale = d.live.clone()
		d.staleTo = time.Now().Add(d.Config.UpdateDelay)
	}
	return d.dispatch(action, target)
}

// dispatch applies the action's effect on the live application state.
func (d *Driver) dispatch(action core.Action, target *goquery.Selection) error {
	s := d.live
	fakeID, _ := target.Attr("data-fake-id")
	kind, id := splitFakeID(fakeID)

	// Moving the pointer follows every pointer action.
	switch action.Kind {
	case core.ActionHover, core.ActionClick, core.ActionDblClick:
		if rowID := rowOf(target); rowID > 0 {
			s.hovered = rowID
		} else {
			s.hovered = 0
		}
	}

	switch action.Kind {
	case core.ActionHover:
		return nil

	case core.ActionFill:
		if goquery.NodeName(target) != "input" {
			return fmt.Errorf("element is not an <input>, <textarea> or [contenteditable] element")
		}
		switch kind {
		case "new-todo":
			s.newTodo = action.Value
		case "edit":
			if s.editing == id {
				s.editText = action.Value
			}
		}
		return nil

	case core.ActionPress:
		switch {
		case kind == "new-todo" && action.Key == "Enter":
			s.add()
		case kind == "edit" && action.Key == "Enter":
			s.commitEdit()
		case kind == "edit" && action.Key == "Escape":
			s.cancelEdit()
		}
		return nil

	case core.ActionClick:
		d.click(kind, id)
		return nil

	case core.ActionDblClick:
		d.click(kind, id)
		d.click(kind, id)
		if kind == "label" || kind == "todo" {
			s.startEdit(id)
		}
		return nil
	}
	return fmt.Errorf("unsupported action %q", action.Kind)
}

func (d *Driver) click(kind string, id int) {
	s := d.live
	// Clicking anywhere else blurs the edit field, which saves the edit.
	if s.editing != 0 && !(kind == "edit" && id == s.editing) {
		s.commitEdit()
	}

	switch kind {
	case "toggle":
		s.toggle(id)
	case "toggle-all", "toggle-all-label":
		s.toggleAll()
	case "destroy":
		s.remove(id)
	case "clear-completed":
		s.clearCompleted()
	case "filter-all":
		s.filter = FilterAll
	case "filter-active":
		s.filter = FilterActive
	case "filter-completed":
		s.filter = FilterCompleted
	}
}

// splitFakeID splits "toggle-3" into ("toggle", 3). Ids without a numeric
// suffix are returned whole.
func splitFakeID(fakeID string) (string, int) {
	i := strings.LastIndexByte(fakeID, '-')
	if i < 0 {
		return fakeID, 0
	}
	n, err := strconv.Atoi(fakeID[i+1:])
	if err != nil {
		return fakeID, 0
	}
	return fakeID[:i], n
}

// rowOf returns the todo id of the row containing s, 0 outside the list.
func rowOf(s *goquery.Selection) int {
	row := s.Closest("li.todo")
	if row.Length() == 0 {
		return 0
	}
	fakeID, _ := row.Attr("data-fake-id")
	_, id := splitFakeID(fakeID)
	return id
}

// Screenshot returns a mock PNG image.
func (d *Driver) Screenshot() ([]byte, error) {
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// Content returns the current render.
func (d *Driver) Content(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(); err != nil {
		return "", err
	}
	return render(d.view()), nil
}

// GetPlatformInfo returns mock platform info.
func (d *Driver) GetPlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{
		Platform: "web",
		Browser:  "mock",
		Headless: true,
	}
}

// Close discards the session.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Todos returns a copy of the live todo list.
func (d *Driver) Todos() []Todo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Todo(nil), d.live.todos...)
}
