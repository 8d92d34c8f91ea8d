package server

import (
	"encoding/json"
	"net/http"
)

// ConfigResponse represents the public configuration sent to the frontend
type ConfigResponse struct {
	Auth    AuthConfigResponse    `json:"auth"`
	Assets  AssetsConfigResponse  `json:"assets"`
	Editing EditingConfigResponse `json:"editing"`
}

// AuthConfigResponse represents auth-related configuration for the frontend
type AuthConfigResponse struct {
	Enabled           bool `json:"enabled"`
	AllowRegistration bool `json:"allow_registration"`
}

// AssetsConfigResponse represents upload-related configuration for the frontend
type AssetsConfigResponse struct {
	AllowUploads     bool     `json:"allow_uploads"`
	MaxUploadSize    int64    `json:"max_upload_size_mb"`
	SupportedFormats []string `json:"supported_formats"`
}

// EditingConfigResponse carries the editing parameters the timeline UI
// mirrors: snap range, clip floor, speed bounds and zoom scale.
type EditingConfigResponse struct {
	SnapThresholdMs   int64   `json:"snap_threshold_ms"`
	MinClipDurationMs int64   `json:"min_clip_duration_ms"`
	MinSpeed          float64 `json:"min_speed"`
	MaxSpeed          float64 `json:"max_speed"`
	PixelsPerSecond   float64 `json:"pixels_per_second"`
}

// handleGetConfig returns public configuration settings for the frontend
func (ms *EditorServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ms.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	config := ConfigResponse{
		Auth: AuthConfigResponse{
			Enabled:           ms.config.Auth.Enabled,
			AllowRegistration: ms.config.Auth.AllowRegistration,
		},
		Assets: AssetsConfigResponse{
			AllowUploads:     ms.config.Assets.AllowUploads,
			MaxUploadSize:    ms.config.Assets.MaxUploadSizeMB,
			SupportedFormats: ms.config.Assets.SupportedFormats,
		},
		Editing: EditingConfigResponse{
			SnapThresholdMs:   ms.config.Editing.SnapThresholdMs,
			MinClipDurationMs: ms.config.Editing.MinClipDurationMs,
			MinSpeed:          ms.config.Editing.MinSpeed,
			MaxSpeed:          ms.config.Editing.MaxSpeed,
			PixelsPerSecond:   ms.config.Editing.PixelsPerSecond,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(config)
}
