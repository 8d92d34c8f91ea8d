package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// handleUploadAsset handles media file uploads into the asset library
func (ms *EditorServer) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	// Only allow POST requests
	if r.Method != http.MethodPost {
		ms.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	// Check if uploads are enabled
	if !ms.config.Assets.AllowUploads {
		ms.respondWithError(w, r, http.StatusForbidden, "File uploads are disabled", nil)
		return
	}

	// Parse multipart form with size limit
	maxSize := ms.config.Assets.MaxUploadSizeMB * 1024 * 1024 // Convert MB to bytes
	err := r.ParseMultipartForm(maxSize)
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Failed to parse upload form", err)
		return
	}

	// Get the uploaded file
	file, header, err := r.FormFile("file")
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "No file provided", err)
		return
	}
	defer file.Close()

	// Validate file extension
	filename := header.Filename
	if !ms.library.IsSupported(filename) {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid file type. Supported formats: "+strings.Join(ms.config.Assets.SupportedFormats, ", "), nil)
		return
	}

	// Uploads land in a dedicated subdirectory of the library
	uploadDir := filepath.Join(ms.config.Assets.LibraryPath, "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Failed to create upload folder", err)
		return
	}

	// Sanitize filename to prevent path traversal
	safeFilename := filepath.Base(filename)
	if safeFilename == "." || safeFilename == "/" {
		safeFilename = "uploaded_file" + filepath.Ext(filename)
	}

	// Check if file already exists and create unique name if needed
	destPath := filepath.Join(uploadDir, safeFilename)
	counter := 1
	for {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		// File exists, try with counter
		ext := filepath.Ext(safeFilename)
		nameWithoutExt := strings.TrimSuffix(safeFilename, ext)
		destPath = filepath.Join(uploadDir, fmt.Sprintf("%s_%d%s", nameWithoutExt, counter, ext))
		counter++
	}

	// Create destination file
	destFile, err := os.Create(destPath)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Failed to create destination file", err)
		return
	}
	defer destFile.Close()

	// Copy file content
	_, err = io.Copy(destFile, file)
	if err != nil {
		os.Remove(destPath) // Clean up on error
		ms.respondWithError(w, r, http.StatusInternalServerError, "Failed to save file", err)
		return
	}

	// Probe and register in the asset library
	asset, err := ms.library.AddFile(destPath)
	if err != nil {
		os.Remove(destPath)
		ms.respondWithError(w, r, http.StatusInternalServerError, "Failed to register uploaded file", err)
		return
	}

	ms.logger.WithFields(logrus.Fields{
		"filename":    filepath.Base(destPath),
		"asset_id":    asset.ID,
		"type":        asset.Type,
		"duration_ms": asset.DurationMs,
	}).Info("File uploaded and added to library")

	// Return success response
	response := map[string]interface{}{
		"success":  true,
		"message":  "File uploaded successfully",
		"filename": filepath.Base(destPath),
		"asset":    asset,
	}
	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, response)
}
