package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
)

// handleHome serves the main SPA / index file from the configured static dir.
func (ms *EditorServer) handleHome(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(ms.config.Server.StaticDir, "index.html"))
}

// handleProjects lists projects or creates a new one.
func (ms *EditorServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ms.handleListProjects(w, r)
	case http.MethodPost:
		ms.handleCreateProject(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleListProjects returns all projects without their timeline blobs.
func (ms *EditorServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	projects, err := ms.store.List()
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving projects", err)
		return
	}

	json.NewEncoder(w).Encode(projects)
}

// handleCreateProject creates an empty project and returns it.
func (ms *EditorServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	req.Name = sanitizeInput(req.Name)
	if verr := ms.validateProjectName(req.Name); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	owner := ms.requestUsername(r)
	proj, err := ms.store.Create(req.Name, owner, nil)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error creating project", err)
		return
	}

	ms.logger.WithField("project_id", proj.ID).Info("Project created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(proj)
}

// handleProjectByID serves GET (fetch), PUT (rename) and DELETE for a
// single project resource.
func (ms *EditorServer) handleProjectByID(w http.ResponseWriter, r *http.Request, projectID string) {
	switch r.Method {
	case http.MethodGet:
		proj, err := ms.store.Get(projectID)
		if err != nil {
			ms.respondWithError(w, r, http.StatusNotFound, "Project not found", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(proj)

	case http.MethodPut:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
			return
		}
		req.Name = sanitizeInput(req.Name)
		if verr := ms.validateProjectName(req.Name); verr != nil {
			ms.respondWithValidationError(w, r, []ValidationError{*verr})
			return
		}
		if err := ms.store.Rename(projectID, req.Name); err != nil {
			ms.respondWithError(w, r, http.StatusNotFound, "Project not found", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})

	case http.MethodDelete:
		if err := ms.store.Delete(projectID); err != nil {
			ms.respondWithError(w, r, http.StatusNotFound, "Project not found", err)
			return
		}
		ms.dropEngine(projectID)
		ms.logger.WithField("project_id", projectID).Info("Project deleted")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetTimeline returns the live timeline for a project. The engine
// snapshot is authoritative once a project is open; the snapshot cache
// fronts it for repeat reads.
func (ms *EditorServer) handleGetTimeline(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if tl, ok := ms.snapshots.GetSnapshot(projectID); ok {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tl)
		return
	}

	pe, err := ms.engineFor(projectID)
	if err != nil {
		ms.respondWithError(w, r, http.StatusNotFound, "Project not found", err)
		return
	}

	tl := pe.eng.Snapshot()
	ms.snapshots.SetSnapshot(projectID, tl)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tl)
}

// requestUsername resolves the authenticated username for a request, or
// empty when auth is disabled.
func (ms *EditorServer) requestUsername(r *http.Request) string {
	if ms.authService == nil || !ms.authService.IsEnabled() {
		return ""
	}
	session, valid := ms.authService.GetSessionManager().GetSessionFromRequest(r)
	if !valid {
		return ""
	}
	return session.Username
}
