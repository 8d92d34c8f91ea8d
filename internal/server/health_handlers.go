package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"
)

// HealthStatus represents operational status for the /health endpoint.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Database  string                 `json:"database"`
	Storage   string                 `json:"storage"`
	Projects  int                    `json:"projectCount"`
	Assets    int                    `json:"assetCount"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (ms *EditorServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Database:  "ok",
		Storage:   "ok",
		Details:   make(map[string]interface{}),
	}

	// Check database connectivity
	projects, err := ms.store.List()
	if err != nil {
		health.Status = "unhealthy"
		health.Database = "error"
		health.Details["database_error"] = err.Error()
	} else {
		health.Projects = len(projects)
	}

	// Check media directory accessibility
	if err := ms.checkStorageHealth(); err != nil {
		health.Status = "unhealthy"
		health.Storage = "error"
		health.Details["storage_error"] = err.Error()
	}

	// Get asset count
	assets, err := ms.library.List()
	if err != nil {
		health.Details["asset_count_error"] = err.Error()
	} else {
		health.Assets = len(assets)
	}

	// Set appropriate HTTP status code
	if health.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(health)
}

// checkStorageHealth validates that the media library path is accessible.
func (ms *EditorServer) checkStorageHealth() error {
	_, err := os.Stat(ms.config.Assets.LibraryPath)
	return err
}
