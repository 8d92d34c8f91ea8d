package server

import (
	"strings"
	"testing"

	"cutroom/internal/config"

	"github.com/sirupsen/logrus"
)

func createTestEditorServer() *EditorServer {
	cfg := config.DefaultConfig()
	cfg.Assets.LibraryPath = "/tmp/test-media"

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests

	return &EditorServer{
		config: cfg,
		logger: logger,
	}
}

func TestValidateProjectPath(t *testing.T) {
	ms := createTestEditorServer()

	tests := []struct {
		name      string
		path      string
		wantID    string
		wantRest  string
		wantError bool
	}{
		{
			name:     "bare project resource",
			path:     "/api/projects/abc-123",
			wantID:   "abc-123",
			wantRest: "",
		},
		{
			name:     "timeline sub-resource",
			path:     "/api/projects/abc-123/timeline",
			wantID:   "abc-123",
			wantRest: "timeline",
		},
		{
			name:     "nested gesture endpoint",
			path:     "/api/projects/abc-123/gesture/start",
			wantID:   "abc-123",
			wantRest: "gesture/start",
		},
		{
			name:     "trailing slash stripped",
			path:     "/api/projects/abc-123/lock/",
			wantID:   "abc-123",
			wantRest: "lock",
		},
		{
			name:      "missing project ID",
			path:      "/api/projects/",
			wantError: true,
		},
		{
			name:      "project ID too long",
			path:      "/api/projects/" + strings.Repeat("a", 65),
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, rest, err := ms.validateProjectPath(tt.path)

			if tt.wantError && err == nil {
				t.Errorf("validateProjectPath() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateProjectPath() unexpected error: %v", err)
			}
			if id != tt.wantID {
				t.Errorf("validateProjectPath() id = %q, want %q", id, tt.wantID)
			}
			if rest != tt.wantRest {
				t.Errorf("validateProjectPath() rest = %q, want %q", rest, tt.wantRest)
			}
		})
	}
}

func TestValidateProjectName(t *testing.T) {
	ms := createTestEditorServer()

	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "valid name",
			input:     "Holiday Cut v2",
			wantError: false,
		},
		{
			name:      "empty name",
			input:     "",
			wantError: true,
		},
		{
			name:      "name too long",
			input:     strings.Repeat("a", 256),
			wantError: true,
		},
		{
			name:      "name with newline",
			input:     "bad\nname",
			wantError: true,
		},
		{
			name:      "name with null byte",
			input:     "bad\x00name",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ms.validateProjectName(tt.input)

			if tt.wantError && err == nil {
				t.Errorf("validateProjectName() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateProjectName() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateDragMode(t *testing.T) {
	ms := createTestEditorServer()

	tests := []struct {
		name      string
		mode      string
		wantError bool
	}{
		{name: "move", mode: "move", wantError: false},
		{name: "trim start", mode: "trim-start", wantError: false},
		{name: "trim end", mode: "trim-end", wantError: false},
		{name: "stretch start", mode: "stretch-start", wantError: false},
		{name: "stretch end", mode: "stretch-end", wantError: false},
		{name: "freeze end", mode: "freeze-end", wantError: false},
		{name: "empty mode", mode: "", wantError: true},
		{name: "unknown mode", mode: "wiggle", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ms.validateDragMode(tt.mode)

			if tt.wantError && err == nil {
				t.Errorf("validateDragMode(%q) expected error but got none", tt.mode)
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateDragMode(%q) unexpected error: %v", tt.mode, err)
			}
		})
	}
}

func TestValidateFilePath(t *testing.T) {
	ms := createTestEditorServer()

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{
			name:      "file inside media dir",
			path:      "/tmp/test-media/clips/intro.mp4",
			wantError: false,
		},
		{
			name:      "path traversal",
			path:      "/tmp/test-media/../../etc/passwd",
			wantError: true,
		},
		{
			name:      "file outside media dir",
			path:      "/home/user/video.mp4",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ms.validateFilePath(tt.path)

			if tt.wantError && err == nil {
				t.Errorf("validateFilePath(%q) expected error but got none", tt.path)
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateFilePath(%q) unexpected error: %v", tt.path, err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "clean input unchanged",
			input: "My Project",
			want:  "My Project",
		},
		{
			name:  "null bytes removed",
			input: "My\x00Project",
			want:  "MyProject",
		},
		{
			name:  "whitespace trimmed",
			input: "  My Project  ",
			want:  "My Project",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeInput(tt.input); got != tt.want {
				t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
