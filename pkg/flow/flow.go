// Package flow handles parsing and representation of YAML scenario files.
package flow

import (
	"path/filepath"
	"strings"
)

// Flow represents a parsed scenario file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Scenario configuration (name, url, tags, etc.)
	Steps      []Step // Steps to execute
}

// Config represents scenario-level configuration.
type Config struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	URL         string            `yaml:"url"` // Target URL, resolved against the base URL
	Tags        []string          `yaml:"tags"`
	Env         map[string]string `yaml:"env"`
	Timeout     int               `yaml:"timeout"` // Scenario timeout in ms
}

// Name returns the display name: the configured name, or the file name
// without its extension.
func (f *Flow) Name() string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	base := filepath.Base(f.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
