// Package validator validates scenario files before execution.
// It parses all files upfront, resolves runFlow references, and detects errors.
package validator

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/devicelab-dev/scenario-runner/pkg/config"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// TestCases is the list of scenario file paths in execution order.
	TestCases []string
	// Flows holds the parsed scenarios of TestCases, with every runFlow
	// file reference resolved into its steps.
	Flows []flow.Flow
	// Files lists every parsed file, subflows included.
	Files []string
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *Result) addError(file, format string, args ...interface{}) {
	r.Errors = append(r.Errors, &ValidationError{File: file, Message: fmt.Sprintf(format, args...)})
}

// Validator validates scenario files.
type Validator struct {
	includeTags []string
	excludeTags []string
	names       []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// WithNames keeps only scenarios whose name contains one of filters
// (case-insensitive).
func (v *Validator) WithNames(filters []string) *Validator {
	v.names = filters
	return v
}

// Validate validates a file or directory on disk.
func (v *Validator) Validate(path string) *Result {
	return v.ValidateAll([]string{path})
}

// ValidateAll validates several files or directories into one result.
// A scenario reached through more than one path is listed once.
func (v *Validator) ValidateAll(paths []string) *Result {
	return newRun(v, osFS{}).validate(paths)
}

// ValidateFS validates root inside fsys, e.g. an embedded scenario suite.
func (v *Validator) ValidateFS(fsys fs.FS, root string) *Result {
	return newRun(v, ioFS{fsys}).validate([]string{root})
}

// run holds the state of one validation pass.
type run struct {
	v      *Validator
	fsys   fileSystem
	result *Result
	parsed map[string]*flow.Flow // fully resolved files
	listed map[string]bool       // files already in TestCases (or filtered out)
	seen   map[string]bool       // files already in Files
}

func newRun(v *Validator, fsys fileSystem) *run {
	return &run{
		v:      v,
		fsys:   fsys,
		result: &Result{},
		parsed: make(map[string]*flow.Flow),
		listed: make(map[string]bool),
		seen:   make(map[string]bool),
	}
}

func (r *run) validate(paths []string) *Result {
	for _, p := range paths {
		r.validatePath(p)
	}
	return r.result
}

func (r *run) validatePath(path string) {
	info, err := r.fsys.Stat(path)
	if err != nil {
		r.result.addError(path, "cannot access: %v", err)
		return
	}

	includeTags, excludeTags := r.v.includeTags, r.v.excludeTags
	var files []string
	if info.IsDir() {
		cfg, err := r.loadDirConfig(path)
		if err != nil {
			r.result.addError(path, "%v", err)
			return
		}
		if len(includeTags) == 0 {
			includeTags = cfg.IncludeTags
		}
		excludeTags = append(append([]string(nil), excludeTags...), cfg.ExcludeTags...)

		if len(cfg.Scenarios) > 0 {
			files, err = r.matchPatterns(path, cfg.Scenarios)
		} else {
			files, err = r.topLevelFiles(path)
		}
		if err != nil {
			r.result.addError(path, "failed to scan directory: %v", err)
			return
		}
	} else {
		files = []string{path}
	}

	for _, file := range files {
		if r.listed[file] {
			continue
		}
		r.listed[file] = true

		f := r.resolve(file, nil)
		if f == nil {
			continue
		}

		// Filters apply to top-level scenarios only, not runFlow targets
		if !flow.ShouldIncludeFlow(f, includeTags, excludeTags) || !flow.MatchesName(f, r.v.names) {
			continue
		}
		r.result.TestCases = append(r.result.TestCases, file)
		r.result.Flows = append(r.result.Flows, *f)
	}
}

// loadDirConfig reads config.yaml or config.yml from dir, if present.
func (r *run) loadDirConfig(dir string) (*config.Config, error) {
	for _, name := range []string{"config.yaml", "config.yml"} {
		p := r.fsys.Join(dir, name)
		data, err := r.fsys.ReadFile(p)
		if err != nil {
			continue
		}
		return config.Parse(data, p)
	}
	return &config.Config{}, nil
}

// topLevelFiles lists scenario files directly inside dir. Subdirectories
// hold shared subflows and are not run unless a pattern selects them.
func (r *run) topLevelFiles(dir string) ([]string, error) {
	entries, err := r.fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isScenarioFile(e.Name()) {
			files = append(files, r.fsys.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// matchPatterns resolves config.yaml scenario patterns relative to dir.
// "*" stays within one path segment, "**" crosses segments. A matched
// directory contributes its top-level scenario files.
func (r *run) matchPatterns(dir string, patterns []string) ([]string, error) {
	var files []string
	added := make(map[string]bool)
	add := func(file string) {
		if !added[file] {
			added[file] = true
			files = append(files, file)
		}
	}

	for _, pattern := range patterns {
		re, err := globToRegexp(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}

		err = r.fsys.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == dir {
				return nil
			}
			rel := r.fsys.Rel(dir, p)
			if !re.MatchString(rel) {
				return nil
			}
			if !d.IsDir() {
				if isScenarioFile(d.Name()) {
					add(p)
				}
				return nil
			}
			sub, err := r.topLevelFiles(p)
			if err != nil {
				return err
			}
			for _, f := range sub {
				add(f)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// globToRegexp converts a slash-separated glob to an anchored regexp.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	pattern = strings.TrimPrefix(strings.ReplaceAll(pattern, "\\", "/"), "./")

	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			b.WriteString("(.*/)?")
			i += 2
		case strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		case c == '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated character class")
			}
			b.WriteString(pattern[i : i+end+1])
			i += end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func isScenarioFile(name string) bool {
	lower := strings.ToLower(name)
	if lower == "config.yaml" || lower == "config.yml" {
		return false
	}
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// resolve parses file and inlines its runFlow references. It returns nil
// after recording an error.
func (r *run) resolve(file string, chain []string) *flow.Flow {
	// Check for circular dependency
	for _, ancestor := range chain {
		if ancestor == file {
			cycle := append(append([]string(nil), chain...), file)
			r.result.addError(file, "circular dependency detected: %s", strings.Join(cycle, " -> "))
			return nil
		}
	}

	if f, ok := r.parsed[file]; ok {
		return f
	}

	data, err := r.fsys.ReadFile(file)
	if err != nil {
		r.result.addError(file, "cannot read: %v", err)
		return nil
	}
	f, err := flow.Parse(data, file)
	if err != nil {
		r.result.addError(file, "parse error: %v", err)
		return nil
	}

	if !r.seen[file] {
		r.seen[file] = true
		r.result.Files = append(r.result.Files, file)
	}

	nextChain := append(append([]string(nil), chain...), file)
	if !r.resolveSteps(f.Steps, file, nextChain) {
		return nil
	}

	r.parsed[file] = f
	return f
}

// resolveSteps loads runFlow files referenced from steps, recursing into
// inline commands and repeat blocks.
func (r *run) resolveSteps(steps []flow.Step, parentFile string, chain []string) bool {
	ok := true
	parentDir := r.fsys.Dir(parentFile)

	for _, step := range steps {
		switch s := step.(type) {
		case *flow.RunFlowStep:
			if s.File != "" {
				sub := r.resolve(r.fsys.Resolve(parentDir, s.File), chain)
				if sub == nil {
					ok = false
					continue
				}
				s.Steps = sub.Steps
				s.Env = mergeEnv(sub.Config.Env, s.Env)
				continue
			}
			if !r.resolveSteps(s.Steps, parentFile, chain) {
				ok = false
			}

		case *flow.RepeatStep:
			if !r.resolveSteps(s.Steps, parentFile, chain) {
				ok = false
			}
		}
	}
	return ok
}

// mergeEnv returns base overlaid with override.
func mergeEnv(base, override map[string]string) map[string]string {
	if len(base) == 0 {
		return override
	}
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
