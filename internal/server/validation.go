package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"cutroom/internal/engine"

	"github.com/sirupsen/logrus"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// respondJSON encodes v as the JSON response body.
func (ms *EditorServer) respondJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ms.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// respondWithValidationError sends a structured validation error response
func (ms *EditorServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, errors []ValidationError) {
	ms.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errors,
	}).Warn("Validation failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	result := ValidationResult{
		Valid:  false,
		Errors: errors,
	}

	ms.respondJSON(w, result)
}

// respondWithError sends a structured error response
func (ms *EditorServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := ms.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	}

	ms.respondJSON(w, response)
}

// validateProjectPath splits /api/projects/{id}/... into the project id
// and the remaining sub-path ("" for the bare project resource).
func (ms *EditorServer) validateProjectPath(path string) (string, string, *ValidationError) {
	rest := strings.TrimPrefix(path, "/api/projects/")
	if rest == path || rest == "" {
		return "", "", &ValidationError{
			Field:   "project_id",
			Message: "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
		}
	}

	parts := strings.SplitN(rest, "/", 2)
	projectID := parts[0]
	if verr := ms.validateProjectID(projectID); verr != nil {
		return "", "", verr
	}

	if len(parts) == 1 {
		return projectID, "", nil
	}
	return projectID, strings.TrimSuffix(parts[1], "/"), nil
}

// validateProjectID validates a project identifier taken from the URL
func (ms *EditorServer) validateProjectID(projectID string) *ValidationError {
	if projectID == "" {
		return &ValidationError{
			Field:   "project_id",
			Message: "Project ID cannot be empty",
			Code:    "EMPTY_PROJECT_ID",
		}
	}

	if len(projectID) > 64 {
		return &ValidationError{
			Field:   "project_id",
			Message: "Project ID too long (max 64 characters)",
			Code:    "PROJECT_ID_TOO_LONG",
		}
	}

	if strings.ContainsAny(projectID, "/\\\x00") {
		return &ValidationError{
			Field:   "project_id",
			Message: "Project ID contains invalid characters",
			Code:    "INVALID_PROJECT_ID_CHARACTERS",
		}
	}

	return nil
}

// validateProjectName validates a project display name
func (ms *EditorServer) validateProjectName(name string) *ValidationError {
	if name == "" {
		return &ValidationError{
			Field:   "name",
			Message: "Project name is required",
			Code:    "MISSING_PROJECT_NAME",
		}
	}

	if len(name) > 255 {
		return &ValidationError{
			Field:   "name",
			Message: "Project name too long (max 255 characters)",
			Code:    "PROJECT_NAME_TOO_LONG",
		}
	}

	if strings.Contains(name, "\x00") || strings.Contains(name, "\n") || strings.Contains(name, "\r") {
		return &ValidationError{
			Field:   "name",
			Message: "Project name contains invalid characters",
			Code:    "INVALID_PROJECT_NAME_CHARACTERS",
		}
	}

	return nil
}

// validateClipID validates a clip identifier from a request body
func (ms *EditorServer) validateClipID(clipID string) *ValidationError {
	if clipID == "" {
		return &ValidationError{
			Field:   "clip_id",
			Message: "Clip ID is required",
			Code:    "MISSING_CLIP_ID",
		}
	}

	if len(clipID) > 64 {
		return &ValidationError{
			Field:   "clip_id",
			Message: "Clip ID too long (max 64 characters)",
			Code:    "CLIP_ID_TOO_LONG",
		}
	}

	return nil
}

// validateDragMode validates a gesture mode name
func (ms *EditorServer) validateDragMode(mode string) *ValidationError {
	if mode == "" {
		return &ValidationError{
			Field:   "mode",
			Message: "Drag mode is required",
			Code:    "MISSING_DRAG_MODE",
		}
	}

	if !engine.DragMode(mode).Valid() {
		return &ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("Unknown drag mode: %s", mode),
			Code:    "INVALID_DRAG_MODE",
		}
	}

	return nil
}

// validateFilePath ensures file path is within the configured media directory
func (ms *EditorServer) validateFilePath(filePath string) *ValidationError {
	// Clean and resolve the path
	cleanPath := filepath.Clean(filePath)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return &ValidationError{
			Field:   "file_path",
			Message: "Invalid file path",
			Code:    "INVALID_FILE_PATH",
		}
	}

	// Get absolute media directory path
	absMediaDir, err := filepath.Abs(ms.config.Assets.LibraryPath)
	if err != nil {
		return &ValidationError{
			Field:   "file_path",
			Message: "Server configuration error",
			Code:    "CONFIG_ERROR",
		}
	}

	// Check if file is within media directory
	relPath, err := filepath.Rel(absMediaDir, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return &ValidationError{
			Field:   "file_path",
			Message: "File path outside allowed directory",
			Code:    "PATH_TRAVERSAL_DENIED",
		}
	}

	return nil
}

// validateContentType validates that a file is a supported media type
func (ms *EditorServer) validateContentType(filePath string) *ValidationError {
	ext := strings.ToLower(filepath.Ext(filePath))

	if !ms.library.IsSupported(filePath) {
		return &ValidationError{
			Field:   "file_type",
			Message: fmt.Sprintf("Unsupported file type: %s", ext),
			Code:    "UNSUPPORTED_FILE_TYPE",
		}
	}

	return nil
}

// sanitizeInput sanitizes user input to prevent injection attacks
func sanitizeInput(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}
