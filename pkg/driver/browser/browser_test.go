package browser

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
)

func TestValidateBrowser(t *testing.T) {
	for _, b := range []string{"chromium", "firefox", "webkit"} {
		if err := ValidateBrowser(b); err != nil {
			t.Errorf("ValidateBrowser(%q) error = %v", b, err)
		}
	}
	if err := ValidateBrowser("netscape"); err == nil {
		t.Error("expected error for unsupported browser")
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Browser != "chromium" {
		t.Errorf("Browser = %q, want chromium", cfg.Browser)
	}
	if cfg.NavTimeout != 30*time.Second {
		t.Errorf("NavTimeout = %v", cfg.NavTimeout)
	}
	if cfg.Viewport.Width != 1280 || cfg.Viewport.Height != 720 {
		t.Errorf("Viewport = %+v", cfg.Viewport)
	}

	opts := Config{Browser: "webkit", DriverDir: "/tmp/pw"}.runOptions()
	if opts.DriverDirectory != "/tmp/pw" || len(opts.Browsers) != 1 || opts.Browsers[0] != "webkit" {
		t.Errorf("runOptions() = %+v", opts)
	}
}

func TestTimeoutMs(t *testing.T) {
	if got := *timeoutMs(context.Background(), 5*time.Second); got != 5000 {
		t.Errorf("timeoutMs(no deadline) = %v, want 5000", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if got := *timeoutMs(ctx, 5*time.Second); got > 1000 || got < 900 {
		t.Errorf("timeoutMs(1s deadline) = %v", got)
	}

	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()
	if got := *timeoutMs(expired, 5*time.Second); got != 1 {
		t.Errorf("timeoutMs(expired) = %v, want 1", got)
	}
}

func TestToElementInfos(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{
			"id": "toggle-all", "tag": "INPUT", "text": "", "value": "on",
			"visible": true, "enabled": true, "checked": true,
		},
		map[string]interface{}{"tag": "li", "text": "Feed the cat ×", "visible": false, "enabled": true},
	}

	infos, err := toElementInfos(raw)
	if err != nil {
		t.Fatalf("toElementInfos() error = %v", err)
	}
	want := []core.ElementInfo{
		{ID: "toggle-all", Tag: "input", Value: "on", Visible: true, Enabled: true, Checked: true},
		{Tag: "li", Text: "Feed the cat ×", Enabled: true},
	}
	if len(infos) != len(want) {
		t.Fatalf("got %d infos, want %d", len(infos), len(want))
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("infos[%d] = %+v, want %+v", i, infos[i], want[i])
		}
	}

	if infos, err := toElementInfos(nil); err != nil || len(infos) != 0 {
		t.Errorf("toElementInfos(nil) = %v, %v", infos, err)
	}
	if _, err := toElementInfos("nope"); err == nil {
		t.Error("expected error for non-array result")
	}
	if _, err := toElementInfos([]interface{}{42}); err == nil {
		t.Error("expected error for non-object item")
	}
}

// TestSession_TodoMVC runs against the public demo. It needs network
// access and an installed browser.
func TestSession_TodoMVC(t *testing.T) {
	if os.Getenv("SCENARIO_E2E") != "1" {
		t.Skip("set SCENARIO_E2E=1 to run browser tests")
	}

	l, err := Launch(Config{Headless: true, DriverDir: os.Getenv("SCENARIO_PLAYWRIGHT_DIR")})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	d, err := l.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer d.Close()

	if err := d.Navigate(ctx, "https://todomvc.com/examples/vue/dist/#/"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if title, _ := d.Title(ctx); title != "TodoMVC: Vue" {
		t.Errorf("Title() = %q", title)
	}

	input := &flow.Selector{Placeholder: "What needs to be done?"}
	if err := d.Act(ctx, core.Action{Kind: core.ActionFill, Selector: input, Value: "Feed the cat"}); err != nil {
		t.Fatalf("fill error = %v", err)
	}
	if err := d.Act(ctx, core.Action{Kind: core.ActionPress, Selector: input, Key: "Enter"}); err != nil {
		t.Fatalf("press error = %v", err)
	}

	item := &flow.Selector{Role: "listitem", HasText: "Feed the cat", Within: &flow.Selector{CSS: "ul.todo-list"}}
	deadline := time.Now().Add(5 * time.Second)
	for {
		infos, err := d.Query(ctx, item)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(infos) == 1 && infos[0].Visible {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("todo not visible, infos = %+v", infos)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
