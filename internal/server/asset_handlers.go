package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// handleGetAssets lists registered media assets, optionally filtered by
// type (?type=video|audio|image).
func (ms *EditorServer) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	assets, err := ms.library.List()
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving assets", err)
		return
	}

	if typeFilter := r.URL.Query().Get("type"); typeFilter != "" {
		filtered := assets[:0]
		for _, a := range assets {
			if a.Type == typeFilter {
				filtered = append(filtered, a)
			}
		}
		assets = filtered
	}

	json.NewEncoder(w).Encode(assets)
}

// handleScanAssets triggers a library rescan in the background.
func (ms *EditorServer) handleScanAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	go func() {
		if err := ms.library.Scan(ms.config.Assets.LibraryPath); err != nil {
			ms.logger.WithError(err).Error("Asset scan failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "scanning"})
}

// handleStreamAsset streams an asset's media file by ID with Range
// support, so the preview player can seek.
func (ms *EditorServer) handleStreamAsset(w http.ResponseWriter, r *http.Request) {
	assetID := strings.TrimPrefix(r.URL.Path, "/media/")
	if assetID == "" || strings.Contains(assetID, "/") {
		http.Error(w, "Invalid asset ID", http.StatusBadRequest)
		return
	}

	asset, err := ms.library.Resolve(assetID)
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}

	if verr := ms.validateFilePath(asset.FilePath); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	if verr := ms.validateContentType(asset.FilePath); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	// Open the media file
	file, err := os.Open(asset.FilePath)
	if err != nil {
		log.Printf("Error opening file %s: %v", asset.FilePath, err)
		http.Error(w, "Error opening media file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	// Get file info for content length
	stat, err := file.Stat()
	if err != nil {
		http.Error(w, "Error reading file info", http.StatusInternalServerError)
		return
	}

	// Set appropriate headers for media streaming
	w.Header().Set("Content-Type", ms.library.ContentType(asset.FilePath))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", stat.Size()))
	w.Header().Set("Accept-Ranges", "bytes")
	// CORS header applied by middleware if enabled

	// Handle range requests for seeking support
	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" {
		ms.handleRangeRequest(w, r, file, stat.Size(), rangeHeader)
		return
	}

	// Stream the entire file
	_, err = io.Copy(w, file)
	if err != nil {
		log.Printf("Error streaming file: %v", err)
	}
}

// handleRangeRequest implements simple single-range byte serving for seeking.
func (ms *EditorServer) handleRangeRequest(w http.ResponseWriter, _ *http.Request, file *os.File, fileSize int64, rangeHeader string) {
	// Parse range header (e.g., "bytes=0-1023")
	ranges := strings.TrimPrefix(rangeHeader, "bytes=")
	rangeParts := strings.Split(ranges, "-")

	start, err := strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		start = 0
	}

	var end int64
	if len(rangeParts) > 1 && rangeParts[1] != "" {
		end, err = strconv.ParseInt(rangeParts[1], 10, 64)
		if err != nil {
			end = fileSize - 1
		}
	} else {
		end = fileSize - 1
	}

	// Validate range
	if start < 0 || end >= fileSize || start > end {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	// Set partial content headers
	contentLength := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", contentLength))
	w.WriteHeader(http.StatusPartialContent)

	// Seek to start position and copy the requested range
	file.Seek(start, io.SeekStart)
	io.CopyN(w, file, contentLength)
}
