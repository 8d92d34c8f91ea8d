package server

import (
	"encoding/json"
	"net/http"

	"cutroom/internal/engine"
	"cutroom/pkg/timeline"
)

// editSessionHeader carries the edit-lock session token on mutating
// requests.
const editSessionHeader = "X-Edit-Session"

// requireEditLock verifies the request carries a live edit-lock token
// for the project. Writes the error response and returns false when it
// does not.
func (ms *EditorServer) requireEditLock(w http.ResponseWriter, r *http.Request, projectID string) bool {
	sessionID := r.Header.Get(editSessionHeader)
	if sessionID == "" {
		ms.respondWithError(w, r, http.StatusForbidden, "Edit session token required", nil)
		return false
	}
	if !ms.locks.Holds(projectID, sessionID) {
		ms.respondWithError(w, r, http.StatusConflict, "Edit lock held by another session", nil)
		return false
	}
	return true
}

// respondSnapshot sends the engine's current timeline, refreshing the
// snapshot cache on the way out.
func (ms *EditorServer) respondSnapshot(w http.ResponseWriter, pe *projectEngine, projectID string) {
	tl := pe.eng.Snapshot()
	ms.snapshots.SetSnapshot(projectID, tl)
	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, tl)
}

// engineForRequest resolves the project engine, writing a 404 on failure.
func (ms *EditorServer) engineForRequest(w http.ResponseWriter, r *http.Request, projectID string) *projectEngine {
	pe, err := ms.engineFor(projectID)
	if err != nil {
		ms.respondWithError(w, r, http.StatusNotFound, "Project not found", err)
		return nil
	}
	return pe
}

// handleGestureStart opens a drag session on one clip.
func (ms *EditorServer) handleGestureStart(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	var req struct {
		ClipID          string  `json:"clipId"`
		Mode            string  `json:"mode"`
		PointerX        float64 `json:"pointerX"`
		PixelsPerSecond float64 `json:"pixelsPerSecond"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	var verrs []ValidationError
	if verr := ms.validateClipID(req.ClipID); verr != nil {
		verrs = append(verrs, *verr)
	}
	if verr := ms.validateDragMode(req.Mode); verr != nil {
		verrs = append(verrs, *verr)
	}
	if len(verrs) > 0 {
		ms.respondWithValidationError(w, r, verrs)
		return
	}

	if req.PixelsPerSecond <= 0 {
		req.PixelsPerSecond = ms.config.Editing.PixelsPerSecond
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	if err := pe.eng.StartDrag(req.ClipID, engine.DragMode(req.Mode), req.PointerX, req.PixelsPerSecond); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Could not start drag", err)
		return
	}

	pe.sched.Request()

	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, map[string]string{"status": "started"})
}

// handleGestureMove feeds a pointer position into the active session.
// Deltas arriving between preview ticks coalesce; only the latest
// position is recomputed.
func (ms *EditorServer) handleGestureMove(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	var req struct {
		PointerX float64 `json:"pointerX"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	pe.eng.PointerMove(req.PointerX)
	pe.sched.Request()

	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, map[string]string{"status": "moved"})
}

// handleGesturePreview returns the most recent computed preview for the
// active drag session, or null when none is active.
func (ms *EditorServer) handleGesturePreview(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, pe.preview())
}

// handleGestureCommit applies the session's final geometry and persists
// the result.
func (ms *EditorServer) handleGestureCommit(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	if err := pe.eng.Commit(r.Context()); err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Could not commit gesture", err)
		return
	}

	ms.respondSnapshot(w, pe, projectID)
}

// handleGestureCancel discards the active session without touching the
// timeline.
func (ms *EditorServer) handleGestureCancel(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	pe.eng.Cancel()

	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, map[string]string{"status": "cancelled"})
}

// handleSplitClip cuts a clip (and its group partners) at a timeline
// position.
func (ms *EditorServer) handleSplitClip(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	var req struct {
		ClipID string `json:"clipId"`
		AtMs   int64  `json:"atMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if verr := ms.validateClipID(req.ClipID); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	if err := pe.eng.SplitAt(r.Context(), req.ClipID, req.AtMs); err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Could not split clip", err)
		return
	}

	ms.respondSnapshot(w, pe, projectID)
}

// handleSnapToPrevious closes the gap to the left of a clip.
func (ms *EditorServer) handleSnapToPrevious(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	var req struct {
		ClipID string `json:"clipId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if verr := ms.validateClipID(req.ClipID); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	if err := pe.eng.SnapToPrevious(r.Context(), req.ClipID); err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Could not snap clip", err)
		return
	}

	ms.respondSnapshot(w, pe, projectID)
}

// handleInsertClip drops a new clip onto a video layer.
func (ms *EditorServer) handleInsertClip(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	var req struct {
		LayerID string        `json:"layerId"`
		Clip    timeline.Clip `json:"clip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.LayerID == "" {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "layer_id",
			Message: "Layer ID is required",
			Code:    "MISSING_LAYER_ID",
		}})
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	clipID, err := pe.eng.InsertClip(r.Context(), req.LayerID, req.Clip)
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Could not insert clip", err)
		return
	}

	ms.snapshots.SetSnapshot(projectID, pe.eng.Snapshot())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	ms.respondJSON(w, map[string]string{"clipId": clipID})
}

// handleInsertAudioClip drops a new audio clip onto a track.
func (ms *EditorServer) handleInsertAudioClip(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	var req struct {
		TrackID string             `json:"trackId"`
		Clip    timeline.AudioClip `json:"clip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.TrackID == "" {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "track_id",
			Message: "Track ID is required",
			Code:    "MISSING_TRACK_ID",
		}})
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	clipID, err := pe.eng.InsertAudioClip(r.Context(), req.TrackID, req.Clip)
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Could not insert audio clip", err)
		return
	}

	ms.snapshots.SetSnapshot(projectID, pe.eng.Snapshot())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	ms.respondJSON(w, map[string]string{"clipId": clipID})
}

// handleDeleteClip removes a clip, cascading to extracted audio bound
// to it.
func (ms *EditorServer) handleDeleteClip(w http.ResponseWriter, r *http.Request, projectID, clipID string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}
	if verr := ms.validateClipID(clipID); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	if err := pe.eng.DeleteClip(r.Context(), clipID); err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Could not delete clip", err)
		return
	}

	ms.respondSnapshot(w, pe, projectID)
}

// handleCreateGroup links a set of clips for synchronized editing.
func (ms *EditorServer) handleCreateGroup(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	var req struct {
		Name    string   `json:"name"`
		Color   string   `json:"color"`
		ClipIDs []string `json:"clipIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if len(req.ClipIDs) < 2 {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "clip_ids",
			Message: "A group needs at least two clips",
			Code:    "NOT_ENOUGH_GROUP_MEMBERS",
		}})
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	groupID, err := pe.eng.CreateGroup(r.Context(), sanitizeInput(req.Name), req.Color, req.ClipIDs)
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Could not create group", err)
		return
	}

	ms.snapshots.SetSnapshot(projectID, pe.eng.Snapshot())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	ms.respondJSON(w, map[string]string{"groupId": groupID})
}

// handleUngroup detaches clips from their groups.
func (ms *EditorServer) handleUngroup(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	var req struct {
		ClipIDs []string `json:"clipIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	if err := pe.eng.Ungroup(r.Context(), req.ClipIDs); err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Could not ungroup clips", err)
		return
	}

	ms.respondSnapshot(w, pe, projectID)
}

// handleSetSelection replaces the active multi-selection. Selection
// participates in group drags, so it requires the edit lock.
func (ms *EditorServer) handleSetSelection(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ms.requireEditLock(w, r, projectID) {
		return
	}

	var req struct {
		ClipIDs []string `json:"clipIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	pe := ms.engineForRequest(w, r, projectID)
	if pe == nil {
		return
	}

	pe.eng.SetSelection(req.ClipIDs)

	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, map[string]string{"status": "success"})
}
