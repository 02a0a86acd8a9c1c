// Package core provides the execution model types for scenario-runner.
package core

import "fmt"

// Attachment represents a debug artifact captured during step execution
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, page
	ContentType string `json:"contentType"` // MIME type: image/png, text/html
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentPage       = "page"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeHTML = "text/html"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewPageAttachment creates an HTML snapshot attachment
func NewPageAttachment(path string, html string) Attachment {
	return Attachment{
		Name:        AttachmentPage,
		ContentType: ContentTypeHTML,
		Path:        path,
		Body:        []byte(html),
	}
}

// ArtifactMode controls when failure artifacts are captured
type ArtifactMode string

// ArtifactMode values
const (
	ArtifactsOnFailure ArtifactMode = "on-failure" // Default
	ArtifactsAlways    ArtifactMode = "always"
	ArtifactsNever     ArtifactMode = "never"
)

// ParseArtifactMode validates a mode string. Empty means on-failure.
func ParseArtifactMode(s string) (ArtifactMode, error) {
	switch ArtifactMode(s) {
	case "", ArtifactsOnFailure:
		return ArtifactsOnFailure, nil
	case ArtifactsAlways, ArtifactsNever:
		return ArtifactMode(s), nil
	default:
		return "", fmt.Errorf("invalid artifacts mode %q (want on-failure, always or never)", s)
	}
}

// ShouldCapture returns true if artifacts should be captured for the given status
func (m ArtifactMode) ShouldCapture(status StepStatus) bool {
	switch m {
	case ArtifactsNever:
		return false
	case ArtifactsAlways:
		return status.IsTerminal()
	default:
		return status == StatusFailed
	}
}
