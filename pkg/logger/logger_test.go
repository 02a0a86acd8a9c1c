package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_WritesLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario-runner.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Info("starting %d scenarios", 3)
	Debug("hidden at info level")
	Warn("step %d optional failure", 2)
	Error("navigation failed: %s", "dns")
	WithScenario("can add a todo").Info("passed")

	SetVerbose(true)
	Debug("now visible")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"level=info msg=\"starting 3 scenarios\"",
		"level=warning msg=\"step 2 optional failure\"",
		"level=error msg=\"navigation failed: dns\"",
		"scenario=\"can add a todo\"",
		"now visible",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden at info level") {
		t.Error("debug message written at info level")
	}
}

func TestLogger_NoopWhenClosed(t *testing.T) {
	Close()
	// Must not panic without Init.
	Info("ignored")
	SetVerbose(true)
	if WithScenario("x") != nil {
		t.Error("WithScenario() should be nil when not initialized")
	}
	if GetWriter() == nil {
		t.Error("GetWriter() should never be nil")
	}
}
