package core

import "testing"

func TestLifecycle_HappyPath(t *testing.T) {
	l := NewLifecycle()
	if s, step := l.State(); s != StateNotStarted || step != -1 {
		t.Fatalf("State() = %s, %d", s, step)
	}

	if err := l.StartNavigation(); err != nil {
		t.Fatalf("StartNavigation() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := l.Advance(i); err != nil {
			t.Fatalf("Advance(%d) error = %v", i, err)
		}
	}
	if s, step := l.State(); s != StateRunning || step != 2 {
		t.Errorf("State() = %s, %d, want running, 2", s, step)
	}

	if err := l.Pass(); err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	s, step := l.State()
	if s != StatePassed || !s.IsTerminal() {
		t.Errorf("State() = %s, want passed", s)
	}
	if step != 2 {
		t.Errorf("step = %d, want last step 2 preserved", step)
	}
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(l *Lifecycle)
		do    func(l *Lifecycle) error
	}{
		{"run before navigate", func(l *Lifecycle) {}, func(l *Lifecycle) error { return l.Advance(0) }},
		{"pass before navigate", func(l *Lifecycle) {}, func(l *Lifecycle) error { return l.Pass() }},
		{"navigate twice", func(l *Lifecycle) { _ = l.StartNavigation() }, func(l *Lifecycle) error { return l.StartNavigation() }},
		{"step goes back", func(l *Lifecycle) {
			_ = l.StartNavigation()
			_ = l.Advance(2)
		}, func(l *Lifecycle) error { return l.Advance(1) }},
		{"leave passed", func(l *Lifecycle) {
			_ = l.StartNavigation()
			_ = l.Pass()
		}, func(l *Lifecycle) error { return l.Fail() }},
		{"leave failed", func(l *Lifecycle) { _ = l.Fail() }, func(l *Lifecycle) error { return l.StartNavigation() }},
	}

	for _, tt := range tests {
		l := NewLifecycle()
		tt.setup(l)
		if err := tt.do(l); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestLifecycle_FailFromAnyActiveState(t *testing.T) {
	setups := map[string]func(l *Lifecycle){
		"not started": func(l *Lifecycle) {},
		"navigating":  func(l *Lifecycle) { _ = l.StartNavigation() },
		"running": func(l *Lifecycle) {
			_ = l.StartNavigation()
			_ = l.Advance(0)
		},
	}

	for name, setup := range setups {
		l := NewLifecycle()
		setup(l)
		if err := l.Fail(); err != nil {
			t.Errorf("%s: Fail() error = %v", name, err)
		}
		if s, _ := l.State(); s != StateFailed {
			t.Errorf("%s: State() = %s, want failed", name, s)
		}
	}
}

func TestScenarioState_String(t *testing.T) {
	tests := map[ScenarioState]string{
		StateNotStarted:   "not_started",
		StateNavigating:   "navigating",
		StateRunning:      "running",
		StatePassed:       "passed",
		StateFailed:       "failed",
		ScenarioState(42): "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("ScenarioState(%d).String() = %q, want %q", s, got, want)
		}
	}
}
