package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// lockResponse is the wire form of an edit lock grant.
type lockResponse struct {
	ProjectID  string    `json:"projectId"`
	SessionID  string    `json:"sessionId"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// handleLock acquires (POST) or releases (DELETE) the exclusive edit
// lock for a project. Acquisition with no session token mints a fresh
// one; re-sending a held token renews it.
func (ms *EditorServer) handleLock(w http.ResponseWriter, r *http.Request, projectID string) {
	switch r.Method {
	case http.MethodPost:
		ms.handleAcquireLock(w, r, projectID)
	case http.MethodDelete:
		ms.handleReleaseLock(w, r, projectID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (ms *EditorServer) handleAcquireLock(w http.ResponseWriter, r *http.Request, projectID string) {
	// The project must exist before a lock can be taken on it.
	if _, err := ms.store.Get(projectID); err != nil {
		ms.respondWithError(w, r, http.StatusNotFound, "Project not found", err)
		return
	}

	sessionID := r.Header.Get(editSessionHeader)
	if sessionID == "" {
		sessionID = ms.locks.GenerateSessionID()
	}

	lock, ok := ms.locks.Acquire(projectID, sessionID)
	if !ok {
		ms.respondWithError(w, r, http.StatusConflict, "Edit lock held by another session", nil)
		return
	}

	ms.logger.WithField("project_id", projectID).Info("Edit lock acquired")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lockResponse{
		ProjectID:  lock.ProjectID,
		SessionID:  lock.SessionID,
		AcquiredAt: lock.AcquiredAt,
	})
}

func (ms *EditorServer) handleReleaseLock(w http.ResponseWriter, r *http.Request, projectID string) {
	sessionID := r.Header.Get(editSessionHeader)
	if sessionID == "" {
		ms.respondWithError(w, r, http.StatusForbidden, "Edit session token required", nil)
		return
	}

	if !ms.locks.Release(projectID, sessionID) {
		ms.respondWithError(w, r, http.StatusConflict, "Lock not held by this session", nil)
		return
	}

	ms.logger.WithField("project_id", projectID).Info("Edit lock released")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "released"})
}

// handleLockHeartbeat extends a held lock. A heartbeat on an expired
// lock fails; the client must re-acquire.
func (ms *EditorServer) handleLockHeartbeat(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.Header.Get(editSessionHeader)
	if sessionID == "" {
		ms.respondWithError(w, r, http.StatusForbidden, "Edit session token required", nil)
		return
	}

	if !ms.locks.Heartbeat(projectID, sessionID) {
		ms.respondWithError(w, r, http.StatusConflict, "Lock expired or held by another session", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}
