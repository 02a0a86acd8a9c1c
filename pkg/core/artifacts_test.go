package core

import "testing"

func TestNewScreenshotAttachment(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4E, 0x47} // PNG header
	attachment := NewScreenshotAttachment("assets/flow-000/failure.png", data)

	if attachment.Name != AttachmentScreenshot {
		t.Errorf("Name = %s, want %s", attachment.Name, AttachmentScreenshot)
	}
	if attachment.ContentType != ContentTypePNG {
		t.Errorf("ContentType = %s, want %s", attachment.ContentType, ContentTypePNG)
	}
	if attachment.Path != "assets/flow-000/failure.png" {
		t.Errorf("Path = %s, want 'assets/flow-000/failure.png'", attachment.Path)
	}
	if len(attachment.Body) != 4 {
		t.Errorf("Body length = %d, want 4", len(attachment.Body))
	}
}

func TestNewPageAttachment(t *testing.T) {
	attachment := NewPageAttachment("assets/flow-000/failure.html", "<html></html>")

	if attachment.Name != AttachmentPage {
		t.Errorf("Name = %s, want %s", attachment.Name, AttachmentPage)
	}
	if attachment.ContentType != ContentTypeHTML {
		t.Errorf("ContentType = %s, want %s", attachment.ContentType, ContentTypeHTML)
	}
	if string(attachment.Body) != "<html></html>" {
		t.Errorf("Body = %q", attachment.Body)
	}
}

func TestParseArtifactMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ArtifactMode
		wantErr bool
	}{
		{"", ArtifactsOnFailure, false},
		{"on-failure", ArtifactsOnFailure, false},
		{"always", ArtifactsAlways, false},
		{"never", ArtifactsNever, false},
		{"sometimes", "", true},
	}

	for _, tt := range tests {
		got, err := ParseArtifactMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseArtifactMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseArtifactMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArtifactMode_ShouldCapture(t *testing.T) {
	tests := []struct {
		mode   ArtifactMode
		status StepStatus
		want   bool
	}{
		{ArtifactsOnFailure, StatusFailed, true},
		{ArtifactsOnFailure, StatusPassed, false},
		{ArtifactsOnFailure, StatusWarned, false},
		{ArtifactsAlways, StatusPassed, true},
		{ArtifactsAlways, StatusFailed, true},
		{ArtifactsAlways, StatusRunning, false},
		{ArtifactsNever, StatusFailed, false},
	}

	for _, tt := range tests {
		if got := tt.mode.ShouldCapture(tt.status); got != tt.want {
			t.Errorf("%s.ShouldCapture(%s) = %v, want %v", tt.mode, tt.status, got, tt.want)
		}
	}
}
